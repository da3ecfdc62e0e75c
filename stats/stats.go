// Package stats keeps running ride and lifetime statistics.
package stats

import (
	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/params"
)

// Stats is a snapshot of the counters.
// Current* fields describe the ride in progress (or the last one, after stop).
// Total* fields accumulate over all finalized rides until cleared.
// Speeds are in Unit.
type Stats struct {
	CurrentDistanceMeters  float64          `json:"currentDistance"`
	TotalDistanceMeters    float64          `json:"totalDistance"`
	CurrentDurationSeconds int64            `json:"currentDuration"`
	TotalDurationSeconds   int64            `json:"totalDuration"`
	MaxSpeed               float64          `json:"maxSpeed"`
	AvgSpeed               float64          `json:"avgSpeed"`
	TotalMaxSpeed          float64          `json:"totalMaxSpeed"`
	RideCount              int64            `json:"rides"`
	Unit                   params.SpeedUnit `json:"unit"`
}

// SpeedFactor converts m/s into unit.
// Unknown units convert as km/h.
func SpeedFactor(unit params.SpeedUnit) float64 {
	switch unit {
	case params.SpeedUnitMPS:
		return 1
	case params.SpeedUnitMPH:
		return common.MetersPerSecondToMilesPerHour
	default:
		return common.MetersPerSecondToKilometersPerHour
	}
}

// ConvertSpeed converts a speed between units.
func ConvertSpeed(v float64, from, to params.SpeedUnit) float64 {
	if from == to {
		return v
	}
	return v / SpeedFactor(from) * SpeedFactor(to)
}

// In returns a copy of the stats with speeds expressed in unit.
func (s Stats) In(unit params.SpeedUnit) Stats {
	if unit == "" {
		return s
	}
	from := s.Unit
	if from == "" {
		from = params.SpeedUnitKMH
	}
	s.MaxSpeed = ConvertSpeed(s.MaxSpeed, from, unit)
	s.AvgSpeed = ConvertSpeed(s.AvgSpeed, from, unit)
	s.TotalMaxSpeed = ConvertSpeed(s.TotalMaxSpeed, from, unit)
	s.Unit = unit
	return s
}
