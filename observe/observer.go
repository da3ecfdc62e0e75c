// Package observe logs and counts what sessions do.
package observe

import (
	"context"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/types/fix"
	"github.com/rotblauer/catride/types/waypoint"
)

const (
	MetricFixesAccepted   = "fixes.accepted"
	MetricFixesRejected   = "fixes.rejected"
	MetricStreamErrors    = "stream.errors"
	MetricWaypointsMeter  = "waypoints.emitted"
	MetricDistanceCounter = "distance.meters"
)

// Observer is both a session.ObservabilitySink and a session.WaypointSink.
type Observer struct {
	logger  *slog.Logger
	started time.Time

	reg          metrics.Registry
	accepted     metrics.Counter
	rejected     metrics.Counter
	streamErrors metrics.Counter
	distance     metrics.Counter
	waypoints    metrics.Meter
}

func New(logger *slog.Logger) *Observer {
	// Enable metrics package.
	// Won't work without this global setting.
	metrics.Enabled = true

	if logger == nil {
		logger = slog.With("d", "observe")
	}
	o := &Observer{
		logger:       logger,
		started:      time.Now(),
		reg:          metrics.NewRegistry(),
		accepted:     metrics.NewCounter(),
		rejected:     metrics.NewCounter(),
		streamErrors: metrics.NewCounter(),
		distance:     metrics.NewCounter(),
		waypoints:    metrics.NewMeter(),
	}
	for name, m := range map[string]interface{}{
		MetricFixesAccepted:   o.accepted,
		MetricFixesRejected:   o.rejected,
		MetricStreamErrors:    o.streamErrors,
		MetricDistanceCounter: o.distance,
		MetricWaypointsMeter:  o.waypoints,
	} {
		if err := o.reg.Register(name, m); err != nil {
			panic(err)
		}
	}
	return o
}

func (o *Observer) LogRejectedFix(f fix.LocationFix, reason string) {
	o.rejected.Inc(1)
	o.logger.Debug("Rejected fix", "lat", f.Latitude, "lng", f.Longitude, "reason", reason)
}

func (o *Observer) LogStreamError(err error) {
	o.streamErrors.Inc(1)
	o.logger.Warn("Stream error", "error", err)
}

// Submit counts an emitted waypoint, and warns when its delta implies
// a speed no rider manages.
func (o *Observer) Submit(w waypoint.Waypoint) {
	o.accepted.Inc(1)
	o.waypoints.Mark(1)
	o.distance.Inc(int64(w.DistanceMeters))
	if w.DurationSeconds <= 0 {
		return
	}
	speed := w.DistanceMeters / float64(w.DurationSeconds)
	switch {
	case speed > common.SpeedOfDrivingAutobahn:
		o.logger.Warn("Implausible waypoint speed", "seq", w.Seq,
			"kmh", common.DecimalToFixed(speed*common.MetersPerSecondToKilometersPerHour, 1))
	case speed > common.SpeedOfCyclingMax:
		o.logger.Debug("Fast waypoint", "seq", w.Seq,
			"kmh", common.DecimalToFixed(speed*common.MetersPerSecondToKilometersPerHour, 1))
	}
}

// Snapshot is a point-in-time read of the counters.
type Snapshot struct {
	FixesAccepted  int64   `json:"fixesAccepted"`
	FixesRejected  int64   `json:"fixesRejected"`
	StreamErrors   int64   `json:"streamErrors"`
	DistanceMeters int64   `json:"distanceMeters"`
	WaypointRate1  float64 `json:"waypointRate1"`
	Uptime         string  `json:"uptime"`
}

func (o *Observer) Snapshot() Snapshot {
	return Snapshot{
		FixesAccepted:  o.accepted.Snapshot().Count(),
		FixesRejected:  o.rejected.Snapshot().Count(),
		StreamErrors:   o.streamErrors.Snapshot().Count(),
		DistanceMeters: o.distance.Snapshot().Count(),
		WaypointRate1:  o.waypoints.Snapshot().Rate1(),
		Uptime:         time.Since(o.started).Round(time.Second).String(),
	}
}

// Registry exposes the metrics for other reporters.
func (o *Observer) Registry() metrics.Registry {
	return o.reg
}

// Run logs the counters every interval until ctx is done.
func (o *Observer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			o.waypoints.Stop()
			return
		case <-ticker.C:
			o.log()
		}
	}
}

func (o *Observer) log() {
	snap := o.Snapshot()
	o.logger.Info("Tracking",
		"accepted", humanize.Comma(snap.FixesAccepted),
		"rejected", humanize.Comma(snap.FixesRejected),
		"errors", humanize.Comma(snap.StreamErrors),
		"distance", humanize.SIWithDigits(float64(snap.DistanceMeters), 2, "m"),
		"wpm", common.DecimalToFixed(snap.WaypointRate1*60, 1),
		"running", snap.Uptime)
}
