// Package cache keeps recent waypoints in memory for quick reads.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/types/waypoint"
)

const lastKey = "last"

// Waypoints caches the last waypoint, expiring after a TTL,
// and a bounded list of recent waypoints.
// It is a session.WaypointSink.
type Waypoints struct {
	last   *ttlcache.Cache[string, waypoint.Waypoint]
	recent *lru.Cache[uint64, waypoint.Waypoint]
	next   uint64
}

// New returns a cache; ttl and size fall back to the params defaults when zero.
func New(ttl time.Duration, size int) (*Waypoints, error) {
	if ttl <= 0 {
		ttl = params.CacheLastWaypointTTL
	}
	if size <= 0 {
		size = params.CacheRecentWaypoints
	}
	recent, err := lru.New[uint64, waypoint.Waypoint](size)
	if err != nil {
		return nil, err
	}
	return &Waypoints{
		last: ttlcache.New[string, waypoint.Waypoint](
			ttlcache.WithTTL[string, waypoint.Waypoint](ttl)),
		recent: recent,
	}, nil
}

// Submit is only called under the session lock, so next needs no lock of its own.
func (c *Waypoints) Submit(w waypoint.Waypoint) {
	c.last.Set(lastKey, w, ttlcache.DefaultTTL)
	c.next++
	c.recent.Add(c.next, w)
}

// Last returns the last waypoint, if it has not expired.
func (c *Waypoints) Last() (waypoint.Waypoint, bool) {
	item := c.last.Get(lastKey)
	if item == nil {
		return waypoint.Waypoint{}, false
	}
	return item.Value(), true
}

// Recent returns up to n of the most recent waypoints, oldest first.
func (c *Waypoints) Recent(n int) []waypoint.Waypoint {
	keys := c.recent.Keys()
	if n > 0 && len(keys) > n {
		keys = keys[len(keys)-n:]
	}
	out := make([]waypoint.Waypoint, 0, len(keys))
	for _, k := range keys {
		if w, ok := c.recent.Peek(k); ok {
			out = append(out, w)
		}
	}
	return out
}

func (c *Waypoints) Len() int {
	return c.recent.Len()
}
