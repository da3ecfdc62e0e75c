package clean

import (
	"fmt"
	"math"

	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/types/fix"
)

const (
	ReasonMissingAccuracy = "missing accuracy"
	ReasonInvalidAccuracy = "invalid accuracy"
	ReasonPoorAccuracy    = "poor accuracy"
	ReasonBadCoordinates  = "bad coordinates"
)

// RejectedFixError is returned for fixes that should not become waypoints.
// It is not fatal; sessions hand it to the observer and carry on.
type RejectedFixError struct {
	Fix    fix.LocationFix
	Reason string
}

func (e *RejectedFixError) Error() string {
	return fmt.Sprintf("rejected fix %.6f,%.6f: %s", e.Fix.Latitude, e.Fix.Longitude, e.Reason)
}

// AccuracyGate filters out fixes with poor or unknown accuracies.
type AccuracyGate struct {
	Threshold float64
}

// NewAccuracyGate returns a gate using the config threshold,
// or the default one when config is nil.
func NewAccuracyGate(config *params.FixCleaningConfig) *AccuracyGate {
	if config == nil {
		config = params.DefaultCleanConfig
	}
	return &AccuracyGate{Threshold: config.AccuracyThreshold}
}

// Accepts is the predicate form of Check.
func (g *AccuracyGate) Accepts(f fix.LocationFix) bool {
	return g.Check(f) == nil
}

// Check returns nil for an acceptable fix, or a *RejectedFixError.
func (g *AccuracyGate) Check(f fix.LocationFix) error {
	reason := ""
	switch {
	case f.Accuracy == nil:
		reason = ReasonMissingAccuracy
	case math.IsNaN(*f.Accuracy) || *f.Accuracy < 0:
		reason = ReasonInvalidAccuracy
	case *f.Accuracy >= g.Threshold:
		reason = fmt.Sprintf("%s: %.1fm >= %.1fm", ReasonPoorAccuracy, *f.Accuracy, g.Threshold)
	default:
		if err := f.Validate(); err != nil {
			reason = fmt.Sprintf("%s: %v", ReasonBadCoordinates, err)
		}
	}
	if reason == "" {
		return nil
	}
	return &RejectedFixError{Fix: f, Reason: reason}
}
