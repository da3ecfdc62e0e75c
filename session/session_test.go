package session

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rotblauer/catride/geo/clean"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/types/fix"
)

type harness struct {
	session   *TrackingSession
	locations *fakeLocations
	motions   *fakeMotions
	sink      *collectSink
	observer  *recordObserver
	clock     *fakeClock
}

func newHarness(t *testing.T, tracking *params.TrackingConfig) *harness {
	t.Helper()
	h := &harness{
		locations: &fakeLocations{},
		motions:   &fakeMotions{},
		sink:      &collectSink{},
		observer:  &recordObserver{},
		clock:     &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	s, err := New(Config{
		Tracking:  tracking,
		Locations: h.locations,
		Motions:   h.motions,
		Identity:  StaticIdentity("device-1", "acme"),
		Sink:      h.sink,
		Observer:  h.observer,
		Clock:     h.clock.Now,
	})
	if err != nil {
		t.Fatal(err)
	}
	h.session = s
	return h
}

func fixAt(lat, lng, accuracy float64) fix.LocationFix {
	return fix.LocationFix{
		Coordinate: fix.Coordinate{Latitude: lat, Longitude: lng},
		Accuracy:   fix.Float64(accuracy),
	}
}

func TestNew_RequiresStreams(t *testing.T) {
	if _, err := New(Config{Motions: &fakeMotions{}}); err == nil {
		t.Error("expected error without location stream")
	}
	if _, err := New(Config{Locations: &fakeLocations{}}); err == nil {
		t.Error("expected error without motion stream")
	}
}

func TestTrackingSession_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	if !h.session.Active() {
		t.Fatal("expected active")
	}

	for i := 0; i < 3; i++ {
		h.motions.push(fix.MotionSample{X: float64(i)})
	}
	h.locations.push(fixAt(0, 0, 5))

	h.clock.Advance(60 * time.Second)
	h.motions.push(fix.MotionSample{X: 9})
	h.locations.push(fixAt(0.008993, 0, 5))

	got := h.sink.all()
	if len(got) != 2 {
		t.Fatalf("expected 2 waypoints, got %d", len(got))
	}
	first, second := got[0], got[1]
	if first.DistanceMeters != 0 || first.DurationSeconds != 0 {
		t.Errorf("first waypoint carries a delta: %v %v", first.DistanceMeters, first.DurationSeconds)
	}
	if len(first.Motion) != 3 || len(second.Motion) != 1 || second.Motion[0].X != 9 {
		t.Errorf("motion not partitioned between waypoints: %v / %v", first.Motion, second.Motion)
	}
	if math.Abs(second.DistanceMeters-1000) > 1 {
		t.Errorf("distance: got %v want ~1000", second.DistanceMeters)
	}
	if second.DurationSeconds != 60 {
		t.Errorf("duration: got %v want 60", second.DurationSeconds)
	}
	if first.Seq != 1 || second.Seq != 2 || first.Session == "" || first.Session != second.Session {
		t.Errorf("bad sequencing: %v/%v %q/%q", first.Seq, second.Seq, first.Session, second.Session)
	}
	if first.DeviceID != "device-1" || first.Manufacturer != "acme" {
		t.Errorf("identity: %+v", first.Identity)
	}

	s := h.session.Stats()
	if math.Abs(s.CurrentDistanceMeters-1000) > 1 {
		t.Errorf("current distance: got %v", s.CurrentDistanceMeters)
	}
	if math.Abs(s.AvgSpeed-60) > 0.1 {
		t.Errorf("avg speed: got %v want ~60", s.AvgSpeed)
	}

	final, err := h.session.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if final.RideCount != 1 || math.Abs(final.TotalDistanceMeters-1000) > 1 {
		t.Errorf("unexpected final stats: %+v", final)
	}
	if h.locations.unsubscribe != 1 || h.motions.unsubscribe != 1 {
		t.Errorf("unsubscribe counts: %d %d", h.locations.unsubscribe, h.motions.unsubscribe)
	}
	if h.session.Active() {
		t.Error("expected idle after stop")
	}
}

func TestTrackingSession_RejectsPoorFixes(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	h.motions.push(fix.MotionSample{X: 1})
	h.locations.push(fixAt(0, 0, 31))
	h.locations.push(fix.LocationFix{Coordinate: fix.Coordinate{Latitude: 1, Longitude: 1}})
	if n := len(h.sink.all()); n != 0 {
		t.Fatalf("expected no waypoints, got %d", n)
	}
	if len(h.observer.rejected) != 2 {
		t.Fatalf("expected 2 rejections, got %v", h.observer.rejected)
	}
	if !strings.HasPrefix(h.observer.rejected[0], clean.ReasonPoorAccuracy) {
		t.Errorf("reason: %q", h.observer.rejected[0])
	}

	// Motion gathered before the rejections rides along on the next waypoint.
	h.locations.push(fixAt(0, 0, 30.9))
	got := h.sink.all()
	if len(got) != 1 || len(got[0].Motion) != 1 {
		t.Errorf("unexpected waypoints: %+v", got)
	}
}

func TestTrackingSession_LateEventsDropped(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	h.locations.push(fixAt(0, 0, 5))
	before, err := h.session.Stop()
	if err != nil {
		t.Fatal(err)
	}

	h.clock.Advance(10 * time.Second)
	h.motions.push(fix.MotionSample{X: 1})
	h.locations.push(fixAt(0.01, 0, 5))
	h.locations.fail(errBoom)

	if n := len(h.sink.all()); n != 1 {
		t.Errorf("late fix produced a waypoint: %d", n)
	}
	if after := h.session.Stats(); after != before {
		t.Errorf("stats changed after stop: %+v -> %+v", before, after)
	}
	if len(h.observer.errs) != 0 {
		t.Errorf("late error reported: %v", h.observer.errs)
	}
}

func TestTrackingSession_Misuse(t *testing.T) {
	h := newHarness(t, nil)
	if _, err := h.session.Stop(); !errors.Is(err, ErrNotActive) {
		t.Errorf("stop while idle: got %v", err)
	}
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	h.locations.push(fixAt(0, 0, 5))

	err := h.session.Start()
	if !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("second start: got %v", err)
	}
	var misuse *MisuseError
	if !errors.As(err, &misuse) {
		t.Errorf("expected *MisuseError, got %T", err)
	}
	if !h.session.Active() {
		t.Error("second start changed state")
	}

	// The first run is intact: the next fix still gets a delta.
	h.clock.Advance(5 * time.Second)
	h.locations.push(fixAt(0.001, 0, 5))
	got := h.sink.all()
	if len(got) != 2 || got[1].DurationSeconds != 5 {
		t.Errorf("run disturbed by second start: %+v", got)
	}
}

func TestTrackingSession_Restart(t *testing.T) {
	h := newHarness(t, nil)
	for ride := 1; ride <= 2; ride++ {
		if err := h.session.Start(); err != nil {
			t.Fatal(err)
		}
		h.locations.push(fixAt(0, 0, 5))
		h.clock.Advance(60 * time.Second)
		h.locations.push(fixAt(0.008993, 0, 5))
		s := h.session.Stats()
		if math.Abs(s.CurrentDistanceMeters-1000) > 1 {
			t.Errorf("ride %d: current distance %v", ride, s.CurrentDistanceMeters)
		}
		final, err := h.session.Stop()
		if err != nil {
			t.Fatal(err)
		}
		if final.RideCount != int64(ride) {
			t.Errorf("ride count: got %d want %d", final.RideCount, ride)
		}
	}
	got := h.sink.all()
	if got[2].DistanceMeters != 0 {
		t.Error("first waypoint of second ride carries a delta from the first ride")
	}
	if got[0].Session == got[2].Session {
		t.Error("rides share a session id")
	}
}

func TestTrackingSession_StartDuringStop(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	h.locations.push(fixAt(0, 0, 5))
	h.clock.Advance(60 * time.Second)
	h.locations.push(fixAt(0.008993, 0, 5))

	var restartErr error
	h.locations.onUnsubscribe = func() {
		h.locations.onUnsubscribe = nil
		restartErr = h.session.Start()
	}
	final, err := h.session.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if restartErr != nil {
		t.Fatalf("restart during stop: %v", restartErr)
	}
	if final.RideCount != 1 {
		t.Errorf("ride count: got %d want 1", final.RideCount)
	}
	if math.Abs(final.TotalDistanceMeters-1000) > 1 || final.TotalDurationSeconds != 60 {
		t.Errorf("first ride lost from totals: %+v", final)
	}
	if math.Abs(final.CurrentDistanceMeters-1000) > 1 {
		t.Errorf("stopped ride stats: %+v", final)
	}

	if !h.session.Active() {
		t.Fatal("expected the second ride to be active")
	}
	s := h.session.Stats()
	if s.CurrentDistanceMeters != 0 || math.Abs(s.TotalDistanceMeters-1000) > 1 {
		t.Errorf("second ride stats: %+v", s)
	}
	if _, err := h.session.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestTrackingSession_StreamErrors(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	h.locations.fail(errBoom)
	if len(h.observer.errs) != 1 {
		t.Fatalf("expected 1 error, got %v", h.observer.errs)
	}
	var se *StreamError
	if !errors.As(h.observer.errs[0], &se) || se.Source != SourceLocation {
		t.Errorf("expected location StreamError, got %v", h.observer.errs[0])
	}
	if !errors.Is(h.observer.errs[0], errBoom) {
		t.Error("stream error does not wrap cause")
	}
	if !h.session.Active() {
		t.Error("stream error stopped the session")
	}
}

func TestTrackingSession_SinkPanicRecovered(t *testing.T) {
	h := newHarness(t, nil)
	h.sink.panicking = true
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	h.locations.push(fixAt(0, 0, 5))
	if len(h.observer.errs) != 1 || !strings.Contains(h.observer.errs[0].Error(), "sink exploded") {
		t.Fatalf("panic not reported: %v", h.observer.errs)
	}
	// The lock was released; the session still works.
	h.sink.panicking = false
	h.locations.push(fixAt(0, 0, 5))
	if len(h.sink.all()) != 1 {
		t.Error("session unusable after panic")
	}
	if _, err := h.session.Stop(); err != nil {
		t.Error(err)
	}
}

func TestTrackingSession_SubscribeFailure(t *testing.T) {
	t.Run("motion", func(t *testing.T) {
		h := newHarness(t, nil)
		h.motions.err = errBoom
		if err := h.session.Start(); !errors.Is(err, errBoom) {
			t.Fatalf("got %v", err)
		}
		if h.session.Active() {
			t.Error("session left active")
		}
	})
	t.Run("location", func(t *testing.T) {
		h := newHarness(t, nil)
		h.locations.err = errBoom
		if err := h.session.Start(); !errors.Is(err, errBoom) {
			t.Fatalf("got %v", err)
		}
		if h.session.Active() {
			t.Error("session left active")
		}
		if h.motions.unsubscribe != 1 {
			t.Errorf("motion subscription not unwound: %d", h.motions.unsubscribe)
		}
		h.motions.push(fix.MotionSample{X: 1})

		// Retry once the stream recovers.
		h.locations.err = nil
		if err := h.session.Start(); err != nil {
			t.Fatal(err)
		}
		h.locations.push(fixAt(0, 0, 5))
		got := h.sink.all()
		if len(got) != 1 || len(got[0].Motion) != 0 {
			t.Errorf("motion from the failed start leaked: %+v", got)
		}
	})
}

func TestTrackingSession_UseFixTime(t *testing.T) {
	tracking := params.DefaultTrackingConfig()
	tracking.UseFixTime = true
	h := newHarness(t, tracking)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	a := fixAt(0, 0, 5)
	a.Time = t0
	b := fixAt(0.008993, 0, 5)
	b.Time = t0.Add(90 * time.Second)
	h.locations.push(a)
	h.locations.push(b)

	got := h.sink.all()
	if len(got) != 2 || got[1].DurationSeconds != 90 {
		t.Fatalf("expected fix-time duration 90, got %+v", got)
	}
	if s := h.session.Stats(); math.Abs(s.AvgSpeed-40) > 0.1 {
		t.Errorf("avg speed: got %v want ~40", s.AvgSpeed)
	}
}

func TestTrackingSession_ClockSkew(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	h.locations.push(fixAt(0, 0, 5))
	h.clock.Advance(-30 * time.Second)
	h.locations.push(fixAt(0.001, 0, 5))
	got := h.sink.all()
	if got[1].DurationSeconds != 0 {
		t.Errorf("negative duration leaked: %d", got[1].DurationSeconds)
	}
	s := h.session.Stats()
	if s.CurrentDistanceMeters == 0 || s.AvgSpeed != 0 || s.MaxSpeed != 0 {
		t.Errorf("unexpected stats on skew: %+v", s)
	}
}

func TestTrackingSession_MotionBufferBounded(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.session.Start(); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		h.motions.push(fix.MotionSample{X: float64(i)})
	}
	h.locations.push(fixAt(0, 0, 5))
	got := h.sink.all()[0].Motion
	if len(got) != 15 || got[0].X != 5 || got[14].X != 19 {
		t.Errorf("unexpected motion: %v", got)
	}
}
