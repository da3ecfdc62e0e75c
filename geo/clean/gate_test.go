package clean

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/rotblauer/catride/params"
	"github.com/rotblauer/catride/types/fix"
)

func TestAccuracyGate_Check(t *testing.T) {
	gate := NewAccuracyGate(nil)
	at := func(acc *float64) fix.LocationFix {
		return fix.LocationFix{
			Coordinate: fix.Coordinate{Latitude: 46.87, Longitude: -113.99},
			Accuracy:   acc,
		}
	}
	cases := []struct {
		name   string
		fix    fix.LocationFix
		reason string
	}{
		{"good", at(fix.Float64(30.9)), ""},
		{"zero", at(fix.Float64(0)), ""},
		{"threshold", at(fix.Float64(31.0)), ReasonPoorAccuracy},
		{"poor", at(fix.Float64(65)), ReasonPoorAccuracy},
		{"missing", at(nil), ReasonMissingAccuracy},
		{"negative", at(fix.Float64(-1)), ReasonInvalidAccuracy},
		{"nan", at(fix.Float64(math.NaN())), ReasonInvalidAccuracy},
		{"no coordinates", fix.LocationFix{
			Coordinate: fix.Coordinate{Latitude: math.NaN(), Longitude: math.NaN()},
			Accuracy:   fix.Float64(5),
		}, ReasonBadCoordinates},
		{"out of range", fix.LocationFix{
			Coordinate: fix.Coordinate{Latitude: 91, Longitude: 0},
			Accuracy:   fix.Float64(5),
		}, ReasonBadCoordinates},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := gate.Check(c.fix)
			if c.reason == "" {
				if err != nil {
					t.Fatalf("expected accept, got %v", err)
				}
				if !gate.Accepts(c.fix) {
					t.Error("Accepts disagrees with Check")
				}
				return
			}
			var rej *RejectedFixError
			if !errors.As(err, &rej) {
				t.Fatalf("expected *RejectedFixError, got %v", err)
			}
			if !strings.HasPrefix(rej.Reason, c.reason) {
				t.Errorf("reason: got %q want prefix %q", rej.Reason, c.reason)
			}
			if gate.Accepts(c.fix) {
				t.Error("Accepts disagrees with Check")
			}
		})
	}
}

func TestNewAccuracyGate_Config(t *testing.T) {
	gate := NewAccuracyGate(&params.FixCleaningConfig{AccuracyThreshold: 10})
	f := fix.LocationFix{Accuracy: fix.Float64(12)}
	if gate.Accepts(f) {
		t.Error("expected 12m rejected at 10m threshold")
	}
	if gate.Threshold != 10 {
		t.Errorf("threshold: got %v", gate.Threshold)
	}
}
