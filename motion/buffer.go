// Package motion buffers accelerometer samples between waypoints.
package motion

import (
	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/types/fix"
)

// DefaultCapacity is how many samples a waypoint carries at most.
const DefaultCapacity = 15

// Buffer holds the most recent motion samples, dropping the oldest when full.
type Buffer struct {
	ring *common.RingBuffer[fix.MotionSample]
}

// NewBuffer returns a buffer with the given capacity,
// or DefaultCapacity when capacity is not positive.
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{ring: common.NewRingBuffer[fix.MotionSample](capacity)}
}

func (b *Buffer) Append(sample fix.MotionSample) {
	b.ring.Add(sample)
}

// SnapshotAndClear returns the buffered samples, oldest first, and empties the buffer.
// It never returns nil.
func (b *Buffer) SnapshotAndClear() []fix.MotionSample {
	return b.ring.Drain()
}

func (b *Buffer) Capacity() int {
	return b.ring.Cap()
}

func (b *Buffer) Len() int {
	return b.ring.Len()
}

func (b *Buffer) Reset() {
	b.ring.Reset()
}
