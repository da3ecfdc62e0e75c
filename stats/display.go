package stats

import (
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// Kilometers floors meters to the nearest 10 m and returns kilometers.
func Kilometers(meters float64) float64 {
	return math.Floor(meters/10) / 100
}

// Clock formats seconds as MM:SS, or HH:MM:SS when there are hours
// or extended is set.
func Clock(seconds int64, extended bool) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if extended || h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

// RoundSpeed rounds a speed to 2 decimals.
func RoundSpeed(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// HumanDistance renders meters like "1.2 km" or "850 m".
func HumanDistance(meters float64) string {
	v, prefix := humanize.ComputeSI(meters)
	return humanize.FtoaWithDigits(v, 2) + " " + prefix + "m"
}

// Display is the presentation form of Stats.
type Display struct {
	CurrentKilometers float64 `json:"currentKm"`
	TotalKilometers   float64 `json:"totalKm"`
	CurrentTime       string  `json:"currentTime"`
	TotalTime         string  `json:"totalTime"`
	AvgSpeed          float64 `json:"avgSpeed"`
	MaxSpeed          float64 `json:"maxSpeed"`
	TotalMaxSpeed     float64 `json:"totalMaxSpeed"`
	Rides             string  `json:"rides"`
	Unit              string  `json:"unit"`
}

func (s Stats) Display() Display {
	return Display{
		CurrentKilometers: Kilometers(s.CurrentDistanceMeters),
		TotalKilometers:   Kilometers(s.TotalDistanceMeters),
		CurrentTime:       Clock(s.CurrentDurationSeconds, false),
		TotalTime:         Clock(s.TotalDurationSeconds, true),
		AvgSpeed:          RoundSpeed(s.AvgSpeed),
		MaxSpeed:          RoundSpeed(s.MaxSpeed),
		TotalMaxSpeed:     RoundSpeed(s.TotalMaxSpeed),
		Rides:             humanize.Comma(s.RideCount),
		Unit:              string(s.Unit),
	}
}

// String renders the stats for a terminal.
func (s Stats) String() string {
	d := s.Display()
	b := strings.Builder{}
	fmt.Fprintf(&b, "Current: %.2f km (%s) in %s\n", d.CurrentKilometers, HumanDistance(s.CurrentDistanceMeters), d.CurrentTime)
	fmt.Fprintf(&b, "Avg speed: %.2f %s, max speed: %.2f %s\n", d.AvgSpeed, d.Unit, d.MaxSpeed, d.Unit)
	fmt.Fprintf(&b, "Total: %.2f km in %s, best max speed: %.2f %s\n", d.TotalKilometers, d.TotalTime, d.TotalMaxSpeed, d.Unit)
	fmt.Fprintf(&b, "Total rides: %s", d.Rides)
	return b.String()
}
