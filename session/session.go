// Package session turns location and motion streams into waypoints and ride statistics.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotblauer/catride/geo/clean"
	"github.com/rotblauer/catride/geo/geodesy"
	"github.com/rotblauer/catride/motion"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/stats"
	"github.com/rotblauer/catride/types/fix"
	"github.com/rotblauer/catride/types/waypoint"
)

// Config wires a TrackingSession. Locations and Motions are required;
// everything else has a default.
type Config struct {
	Tracking  *params.TrackingConfig
	Locations LocationStream
	Motions   MotionStream
	Identity  IdentityProvider
	Sink      WaypointSink
	Observer  ObservabilitySink

	// Stats is shared with the caller so totals can be restored or cleared.
	Stats *stats.Aggregator

	// Clock is "now". Defaults to time.Now.
	Clock  func() time.Time
	Logger *slog.Logger
}

// TrackingSession is Idle until Start, Active until Stop, and can be restarted.
type TrackingSession struct {
	mu sync.Mutex

	config    *params.TrackingConfig
	locations LocationStream
	motions   MotionStream
	identity  IdentityProvider
	sink      WaypointSink
	observer  ObservabilitySink
	gate      *clean.AccuracyGate
	stats     *stats.Aggregator
	now       func() time.Time
	logger    *slog.Logger

	run *run
}

// run is the state of one Start..Stop span.
// Callbacks hold a pointer to the run they were subscribed for,
// and drop anything that arrives once it is no longer current.
type run struct {
	id            string
	active        bool
	buffer        *motion.Buffer
	lastWaypoint  *waypoint.Waypoint
	lastTimestamp time.Time
	seq           int64
	subs          []Subscription
}

func New(c Config) (*TrackingSession, error) {
	if c.Locations == nil {
		return nil, errors.New("session: nil location stream")
	}
	if c.Motions == nil {
		return nil, errors.New("session: nil motion stream")
	}
	if c.Tracking == nil {
		c.Tracking = params.DefaultTrackingConfig()
	}
	if c.Identity == nil {
		c.Identity = defaultIdentity()
	}
	if c.Sink == nil {
		c.Sink = discardSink{}
	}
	if c.Logger == nil {
		c.Logger = slog.With("d", "session")
	}
	if c.Observer == nil {
		c.Observer = logObserver{log: c.Logger}
	}
	if c.Stats == nil {
		c.Stats = stats.NewAggregator(nil)
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return &TrackingSession{
		config:    c.Tracking,
		locations: c.Locations,
		motions:   c.Motions,
		identity:  c.Identity,
		sink:      c.Sink,
		observer:  c.Observer,
		gate:      clean.NewAccuracyGate(c.Tracking.Cleaning),
		stats:     c.Stats,
		now:       c.Clock,
		logger:    c.Logger,
	}, nil
}

// Start subscribes to both streams and begins a ride.
// It returns ErrAlreadyActive if a ride is in progress.
// If either subscription fails, nothing stays subscribed and the session is Idle again.
func (s *TrackingSession) Start() error {
	s.mu.Lock()
	if s.run != nil {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	r := &run{
		id:            uuid.NewString(),
		active:        true,
		buffer:        motion.NewBuffer(s.config.MotionBufferCapacity),
		lastTimestamp: s.now(),
	}
	s.run = r
	s.stats.Reset()
	s.mu.Unlock()

	// Subscribe outside the lock; streams may deliver synchronously.
	motionSub, err := s.motions.Subscribe(func(m fix.MotionSample) {
		s.onMotion(r, m)
	})
	if err != nil {
		s.abort(r)
		return fmt.Errorf("subscribe %s: %w", SourceMotion, err)
	}
	locationSub, err := s.locations.Subscribe(func(f fix.LocationFix) {
		s.onFix(r, f)
	}, func(err error) {
		s.onStreamError(r, SourceLocation, err)
	})
	if err != nil {
		motionSub.Unsubscribe()
		s.abort(r)
		return fmt.Errorf("subscribe %s: %w", SourceLocation, err)
	}

	s.mu.Lock()
	if s.run != r {
		// Stopped while subscribing.
		s.mu.Unlock()
		motionSub.Unsubscribe()
		locationSub.Unsubscribe()
		return nil
	}
	r.subs = []Subscription{motionSub, locationSub}
	s.mu.Unlock()

	s.logger.Info("Session started", "session", r.id)
	return nil
}

func (s *TrackingSession) abort(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.active = false
	if s.run == r {
		s.run = nil
	}
}

// Stop ends the ride, unsubscribes both streams and returns the
// finalized stats. It returns ErrNotActive if no ride is in progress.
func (s *TrackingSession) Stop() (stats.Stats, error) {
	s.mu.Lock()
	r := s.run
	if r == nil {
		s.mu.Unlock()
		return stats.Stats{}, ErrNotActive
	}
	r.active = false
	s.run = nil
	subs := r.subs
	r.subs = nil
	// Fold the ride into the totals before a new Start can reset them.
	out := s.stats.FinalizeSession()
	s.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
	s.logger.Info("Session stopped", "session", r.id, "waypoints", r.seq,
		"distance", out.CurrentDistanceMeters, "duration", out.CurrentDurationSeconds)
	return out, nil
}

func (s *TrackingSession) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.run != nil && s.run.active
}

func (s *TrackingSession) Stats() stats.Stats {
	return s.stats.Snapshot()
}

func (s *TrackingSession) current(r *run) bool {
	return r.active && s.run == r
}

func (s *TrackingSession) onMotion(r *run, m fix.MotionSample) {
	defer s.recoverCallback(SourceMotion)
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(r) {
		return
	}
	r.buffer.Append(m)
}

func (s *TrackingSession) onFix(r *run, f fix.LocationFix) {
	defer s.recoverCallback(SourceLocation)
	if rejected := s.handleFix(r, f); rejected != nil {
		s.observer.LogRejectedFix(rejected.Fix, rejected.Reason)
	}
}

// handleFix runs the fix through the gate and, if accepted, emits a waypoint.
func (s *TrackingSession) handleFix(r *run, f fix.LocationFix) *clean.RejectedFixError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current(r) {
		return nil
	}
	if err := s.gate.Check(f); err != nil {
		rejected := &clean.RejectedFixError{}
		if errors.As(err, &rejected) {
			return rejected
		}
		return &clean.RejectedFixError{Fix: f, Reason: err.Error()}
	}

	now := s.now()
	if s.config.UseFixTime && !f.Time.IsZero() {
		now = f.Time
	}

	w := waypoint.New(f, r.buffer.SnapshotAndClear(), waypoint.Identity{
		DeviceID:     s.identity.DeviceID(),
		Manufacturer: s.identity.Manufacturer(),
	})
	r.seq++
	w.Session = r.id
	w.Seq = r.seq

	if r.lastWaypoint != nil {
		distance := geodesy.DistanceMeters(r.lastWaypoint.Coordinate, f.Coordinate)
		duration := int64(now.Sub(r.lastTimestamp) / time.Second)
		if duration < 0 {
			duration = 0
		}
		w = w.WithDelta(distance, duration)
		s.stats.RecordDelta(distance, duration)
	}

	s.sink.Submit(w)
	r.lastWaypoint = &w
	r.lastTimestamp = now
	return nil
}

func (s *TrackingSession) onStreamError(r *run, source string, err error) {
	defer s.recoverCallback(source)
	s.mu.Lock()
	ok := s.current(r)
	s.mu.Unlock()
	if !ok {
		return
	}
	s.observer.LogStreamError(&StreamError{Source: source, Err: err})
}

// recoverCallback keeps a panicking sink or observer from taking down
// the goroutine delivering the stream.
func (s *TrackingSession) recoverCallback(source string) {
	if v := recover(); v != nil {
		err := &StreamError{Source: source, Err: fmt.Errorf("panic: %v", v)}
		defer func() {
			if recover() != nil {
				s.logger.Error("Observer panicked", "error", err)
			}
		}()
		s.observer.LogStreamError(err)
	}
}
