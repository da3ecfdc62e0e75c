// Package sinks combines and adapts session.WaypointSinks.
package sinks

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/rotblauer/catride/events"
	"github.com/rotblauer/catride/session"
	"github.com/rotblauer/catride/types/waypoint"
)

// Multi submits each waypoint to every sink, in order.
type Multi []session.WaypointSink

func (m Multi) Submit(w waypoint.Waypoint) {
	for _, s := range m {
		if s != nil {
			s.Submit(w)
		}
	}
}

// JSONWriter writes each waypoint as one GeoJSON line.
type JSONWriter struct {
	mu     sync.Mutex
	enc    *json.Encoder
	logger *slog.Logger
	n      int64
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{
		enc:    json.NewEncoder(w),
		logger: slog.With("d", "sink", "sink", "json"),
	}
}

func (j *JSONWriter) Submit(w waypoint.Waypoint) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(w); err != nil {
		j.logger.Error("Failed to write waypoint", "seq", w.Seq, "error", err)
		return
	}
	j.n++
}

// Written is the number of waypoints written.
func (j *JSONWriter) Written() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.n
}

// Feed publishes waypoints on events.WaypointFeed.
type Feed struct{}

func (Feed) Submit(w waypoint.Waypoint) {
	events.WaypointFeed.Send(w)
}
