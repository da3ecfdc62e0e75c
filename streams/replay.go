package streams

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/rotblauer/catride/stream"
	"github.com/rotblauer/catride/types/fix"
	"github.com/tidwall/gjson"
)

const (
	RecordTypeFix    = "fix"
	RecordTypeMotion = "motion"
)

// Replayer pushes recorded NDJSON records into feeds. Each line is a
// fix or a motion sample, tagged by a "type" field:
//
//	{"type":"motion","x":0.01,"y":0.02,"z":0.98,"timestamp":1565095294700}
//	{"type":"fix","latitude":37.33,"longitude":-122.02,"accuracy":5,"timestamp":1565095295116}
type Replayer struct {
	Locations *LocationFeed
	Motions   *MotionFeed

	// Speedup paces records by their timestamps, divided by Speedup.
	// Zero replays as fast as possible.
	Speedup float64

	Logger *slog.Logger
}

type ReplayResult struct {
	Fixes   int
	Samples int
	Skipped int
}

// Run replays until in is exhausted or ctx is done.
// A malformed line ends the replay; the error is also reported to location subscribers.
func (r *Replayer) Run(ctx context.Context, in io.Reader) (ReplayResult, error) {
	res := ReplayResult{}
	logger := r.Logger
	if logger == nil {
		logger = slog.With("d", "replay")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var decodeErr error
	records := stream.NDJSON[json.RawMessage](ctx, in, func(err error) {
		decodeErr = err
	})

	var last time.Time
	for raw := range records {
		var at time.Time
		switch typ := gjson.GetBytes(raw, "type").String(); typ {
		case RecordTypeFix:
			f := fix.LocationFix{}
			if err := json.Unmarshal(raw, &f); err != nil {
				logger.Warn("Skipping bad fix", "error", err)
				res.Skipped++
				continue
			}
			at = f.Time
			if err := r.pace(ctx, &last, at); err != nil {
				return res, err
			}
			r.Locations.Push(f)
			res.Fixes++
		case RecordTypeMotion:
			m := fix.MotionSample{}
			if err := json.Unmarshal(raw, &m); err != nil {
				logger.Warn("Skipping bad motion sample", "error", err)
				res.Skipped++
				continue
			}
			at = m.Time
			if err := r.pace(ctx, &last, at); err != nil {
				return res, err
			}
			r.Motions.Push(m)
			res.Samples++
		default:
			logger.Debug("Skipping record", "type", typ)
			res.Skipped++
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}
	if decodeErr != nil {
		err := fmt.Errorf("replay: %w", decodeErr)
		r.Locations.Fail(err)
		return res, err
	}
	return res, nil
}

// pace sleeps for the scaled gap between the previous record and at.
func (r *Replayer) pace(ctx context.Context, last *time.Time, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if at.IsZero() {
		return nil
	}
	prev := *last
	*last = at
	if r.Speedup <= 0 || prev.IsZero() || !at.After(prev) {
		return nil
	}
	wait := time.Duration(float64(at.Sub(prev)) / r.Speedup)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
