// Package app wires a tracking session to its streams, sinks and state for one process.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rotblauer/catride/catdb/cache"
	"github.com/rotblauer/catride/catdb/mongo"
	"github.com/rotblauer/catride/catz"
	"github.com/rotblauer/catride/events"
	"github.com/rotblauer/catride/identity"
	"github.com/rotblauer/catride/metrics/influxdb"
	"github.com/rotblauer/catride/observe"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/session"
	"github.com/rotblauer/catride/sinks"
	"github.com/rotblauer/catride/state"
	"github.com/rotblauer/catride/stats"
	"github.com/rotblauer/catride/streams"
	"github.com/rotblauer/catride/types/fix"
)

type Config struct {
	DataDir      string
	Manufacturer string

	Tracking *params.TrackingConfig
	Stats    *params.StatsConfig

	// Archive appends every waypoint to a gzipped GeoJSON lines file in DataDir.
	Archive bool

	// Sinks are extra waypoint sinks, called after the built-in ones.
	Sinks []session.WaypointSink

	// Optional exports; nil or unset URLs disable them.
	Influx *params.InfluxConfig
	Mongo  *params.MongoConfig

	// Clock is handed to the session. Defaults to time.Now.
	Clock func() time.Time
}

func DefaultConfig() *Config {
	return &Config{
		DataDir:  params.DatadirRoot,
		Tracking: params.DefaultTrackingConfig(),
		Stats:    params.DefaultStatsConfig(),
		Archive:  true,
		Influx:   params.DefaultInfluxConfig(),
		Mongo:    params.DefaultMongoConfig(),
	}
}

// Tracker owns everything one ride-tracking process needs.
type Tracker struct {
	Config *Config

	State     *state.Store
	Cache     *cache.Waypoints
	Observer  *observe.Observer
	Locations *streams.LocationFeed
	Motions   *streams.MotionFeed
	Identity  *identity.Provider

	registry *session.Registry
	stats    *stats.Aggregator
	logger   *slog.Logger

	archive *catz.GZFileWriter
	influx  *influxdb.Sink
	mongo   *mongo.Sink

	closeOnce sync.Once
}

// New opens state in config.DataDir, restores persisted totals and
// connects the configured exports. The session itself is built on first use.
func New(ctx context.Context, config *Config) (*Tracker, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Tracking == nil {
		config.Tracking = params.DefaultTrackingConfig()
	}
	t := &Tracker{
		Config: config,
		logger: slog.With("d", "app"),
		stats:  stats.NewAggregator(config.Stats),
	}

	var err error
	t.State, err = state.Open(config.DataDir, false)
	if err != nil {
		return nil, err
	}
	// Anything below that fails leaves the tracker half built; Close what exists.
	fail := func(err error) (*Tracker, error) {
		_ = t.Close()
		return nil, err
	}

	persisted, ok, err := t.State.ReadStats()
	if err != nil {
		return fail(fmt.Errorf("read stats: %w", err))
	}
	if ok {
		t.stats.Restore(persisted)
		t.logger.Info("Restored totals", "rides", persisted.RideCount,
			"distance", stats.HumanDistance(persisted.TotalDistanceMeters))
	}

	t.Identity, err = identity.New(t.State, config.Manufacturer)
	if err != nil {
		return fail(fmt.Errorf("device id: %w", err))
	}

	t.Cache, err = cache.New(params.CacheLastWaypointTTL, params.CacheRecentWaypoints)
	if err != nil {
		return fail(err)
	}
	t.Observer = observe.New(nil)
	t.Locations = streams.NewLocationFeed(config.Tracking.Location, params.DedupeFixesSize)
	t.Motions = streams.NewMotionFeed(config.Tracking.MotionInterval)

	sink := sinks.Multi{t.State, t.Cache, t.Observer, sinks.Feed{}}
	if config.Archive {
		t.archive, err = catz.NewFlatWithRoot(config.DataDir).
			NewGZFileWriter(params.WaypointsGZFileName, catz.DefaultGZFileWriterConfig())
		if err != nil {
			return fail(fmt.Errorf("open archive: %w", err))
		}
		sink = append(sink, sinks.NewJSONWriter(t.archive))
	}
	t.influx, err = influxdb.New(config.Influx)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
	case err != nil:
		return fail(err)
	default:
		sink = append(sink, t.influx)
	}
	t.mongo, err = mongo.Connect(ctx, config.Mongo)
	switch {
	case errors.Is(err, mongo.ErrDisabled):
	case err != nil:
		return fail(err)
	default:
		sink = append(sink, t.mongo)
	}

	sink = append(sink, config.Sinks...)

	t.registry = session.NewRegistry(func() (*session.TrackingSession, error) {
		return session.New(session.Config{
			Tracking:  config.Tracking,
			Locations: t.Locations,
			Motions:   t.Motions,
			Identity:  t.Identity,
			Sink:      sink,
			Observer:  t.Observer,
			Stats:     t.stats,
			Clock:     config.Clock,
			Logger:    slog.With("d", "session", "device", t.Identity.DeviceID()),
		})
	})
	return t, nil
}

func (t *Tracker) Start() error {
	return t.registry.Start()
}

// Stop ends the ride, persists the totals and publishes them on events.StatsFeed.
func (t *Tracker) Stop() (stats.Stats, error) {
	out, err := t.registry.Stop()
	if err != nil {
		return out, err
	}
	if err := t.State.WriteStats(out); err != nil {
		return out, fmt.Errorf("persist stats: %w", err)
	}
	events.StatsFeed.Send(out)
	return out, nil
}

func (t *Tracker) Active() bool {
	return t.registry.Active()
}

func (t *Tracker) Stats() (stats.Stats, error) {
	return t.registry.Stats()
}

// ClearStats stops any ride in progress and zeroes the current and total figures.
func (t *Tracker) ClearStats() (stats.Stats, error) {
	if t.Active() {
		if _, err := t.registry.Stop(); err != nil && !errors.Is(err, session.ErrNotActive) {
			return stats.Stats{}, err
		}
	}
	t.stats.Clear()
	if err := t.State.ClearStats(); err != nil {
		return stats.Stats{}, err
	}
	out := t.stats.Snapshot()
	events.StatsFeed.Send(out)
	t.logger.Info("Cleared stats")
	return out, nil
}

// PushFix delivers a fix to the session, if it is subscribed.
func (t *Tracker) PushFix(f fix.LocationFix) int {
	return t.Locations.Push(f)
}

func (t *Tracker) PushMotion(m fix.MotionSample) int {
	return t.Motions.Push(m)
}

// Close stops a ride in progress (persisting its totals) and releases everything.
// It is safe to call more than once.
func (t *Tracker) Close() error {
	var errs []error
	t.closeOnce.Do(func() {
		if t.registry != nil && t.Active() {
			if _, err := t.Stop(); err != nil {
				errs = append(errs, err)
			}
		}
		if t.Locations != nil {
			t.Locations.Close()
		}
		if t.archive != nil {
			errs = append(errs, t.archive.Close())
		}
		if t.influx != nil {
			t.influx.Close()
		}
		if t.mongo != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			errs = append(errs, t.mongo.Close(ctx))
			cancel()
		}
		if t.State != nil {
			errs = append(errs, t.State.Close())
		}
	})
	return errors.Join(errs...)
}
