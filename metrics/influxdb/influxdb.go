// Package influxdb exports waypoints to an InfluxDB bucket as time series points.
package influxdb

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/types/waypoint"
)

var ErrDisabled = errors.New("influxdb export not configured")

// Sink posts waypoints to an InfluxDB Write API. The Write API buffers and
// flushes in the background; write errors are logged.
type Sink struct {
	client      influxdb2.Client
	writeAPI    api.WriteAPI
	measurement string
	logger      *slog.Logger
	wait        sync.WaitGroup
}

func New(config *params.InfluxConfig) (*Sink, error) {
	if config == nil || !config.Enabled() {
		return nil, ErrDisabled
	}
	opts := influxdb2.DefaultOptions()
	opts.SetPrecision(time.Millisecond)
	client := influxdb2.NewClientWithOptions(config.URL, config.Token, opts)
	s := &Sink{
		client:      client,
		writeAPI:    client.WriteAPI(config.Org, config.Bucket),
		measurement: config.Measurement,
		logger:      slog.With("d", "influxdb"),
	}

	// Errors returns a channel for reading errors which occurs during async writes.
	// Must be called before performing any writes for errors to be collected.
	// The chan is unbuffered and must be drained or the writer will block.
	errorsCh := s.writeAPI.Errors()
	s.wait.Add(1)
	go func() {
		defer s.wait.Done()
		for err := range errorsCh {
			s.logger.Error("Write failed", "error", err)
		}
	}()
	return s, nil
}

// Point builds the point for a waypoint.
func Point(measurement string, w waypoint.Waypoint) *write.Point {
	at := w.Time
	if at.IsZero() {
		at = time.Now()
	}
	p := influxdb2.NewPointWithMeasurement(measurement).
		SetTime(at).
		AddTag("device", w.DeviceID).
		AddTag("manufacturer", w.Manufacturer).
		AddTag("session", w.Session).
		AddField("latitude", w.Latitude).
		AddField("longitude", w.Longitude).
		AddField("seq", w.Seq).
		AddField("distance", w.DistanceMeters).
		AddField("duration", w.DurationSeconds).
		AddField("motion_count", w.MotionSummary.Count).
		AddField("motion_mean", w.MotionSummary.Mean).
		AddField("motion_max", w.MotionSummary.Max).
		AddField("s2", w.CellToken())
	optional := []struct {
		key string
		v   *float64
	}{
		{"accuracy", w.Accuracy},
		{"elevation", w.Altitude},
		{"heading", w.Heading},
		{"speed", w.Speed},
	}
	for _, o := range optional {
		if o.v != nil {
			p.AddField(o.key, *o.v)
		}
	}
	return p
}

func (s *Sink) Submit(w waypoint.Waypoint) {
	s.writeAPI.WritePoint(Point(s.measurement, w))
}

// Close flushes pending points and closes the client.
func (s *Sink) Close() {
	s.writeAPI.Flush()
	s.client.Close()
	s.wait.Wait()
}
