package stats

import (
	"sync"

	"github.com/rotblauer/catride/params"
)

// Aggregator is the only writer of Stats. It is safe for concurrent use.
type Aggregator struct {
	mu     sync.Mutex
	stats  Stats
	factor float64
}

func NewAggregator(config *params.StatsConfig) *Aggregator {
	if config == nil {
		config = params.DefaultStatsConfig()
	}
	unit := config.SpeedUnit
	if unit == "" {
		unit = params.SpeedUnitKMH
	}
	return &Aggregator{
		stats:  Stats{Unit: unit},
		factor: SpeedFactor(unit),
	}
}

// RecordDelta adds one waypoint-to-waypoint delta to the current ride.
// Distance always accumulates. Speeds are only recomputed when the
// duration is positive; negative durations count as zero.
func (a *Aggregator) RecordDelta(distanceMeters float64, durationSeconds int64) {
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	if distanceMeters < 0 {
		distanceMeters = 0
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.stats.CurrentDistanceMeters += distanceMeters
	a.stats.CurrentDurationSeconds += durationSeconds
	if durationSeconds == 0 {
		return
	}
	inst := distanceMeters / float64(durationSeconds) * a.factor
	if inst > a.stats.MaxSpeed {
		a.stats.MaxSpeed = inst
	}
	if a.stats.CurrentDurationSeconds > 0 {
		a.stats.AvgSpeed = a.stats.CurrentDistanceMeters / float64(a.stats.CurrentDurationSeconds) * a.factor
	}
}

// FinalizeSession folds the current ride into the totals and returns the result.
// The current counters are left in place so the finished ride can still be shown.
func (a *Aggregator) FinalizeSession() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.TotalDistanceMeters += a.stats.CurrentDistanceMeters
	a.stats.TotalDurationSeconds += a.stats.CurrentDurationSeconds
	if a.stats.MaxSpeed > a.stats.TotalMaxSpeed {
		a.stats.TotalMaxSpeed = a.stats.MaxSpeed
	}
	a.stats.RideCount++
	return a.stats
}

// Reset zeroes the current ride counters and speeds. Totals are kept.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats.CurrentDistanceMeters = 0
	a.stats.CurrentDurationSeconds = 0
	a.stats.MaxSpeed = 0
	a.stats.AvgSpeed = 0
}

// Clear zeroes everything, totals and ride count included.
func (a *Aggregator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = Stats{Unit: a.stats.Unit}
}

// Restore loads previously persisted stats, converting speeds into
// the aggregator's unit.
func (a *Aggregator) Restore(s Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stats = s.In(a.stats.Unit)
}

func (a *Aggregator) Snapshot() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}
