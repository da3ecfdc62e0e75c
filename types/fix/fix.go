// Package fix holds the raw sensor readings a ride is built from:
// location fixes and accelerometer samples.
package fix

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotblauer/catride/common"
)

var ErrMissingCoordinates = errors.New("missing coordinates")

// Coordinate is a position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Point returns the coordinate as an orb.Point, which is [lon, lat].
func (c Coordinate) Point() orb.Point {
	return orb.Point{c.Longitude, c.Latitude}
}

// Validate checks the coordinate is finite and in range.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || math.IsNaN(c.Longitude) {
		return ErrMissingCoordinates
	}
	if !common.IsFinite(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("latitude out of range: %v", c.Latitude)
	}
	if !common.IsFinite(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("longitude out of range: %v", c.Longitude)
	}
	return nil
}

// LocationFix is a single raw reading from a location stream.
// Optional readings are nil when the source did not report them.
type LocationFix struct {
	Coordinate
	Altitude         *float64  `json:"altitude,omitempty"`         // meters
	Accuracy         *float64  `json:"accuracy,omitempty"`         // horizontal, meters
	AltitudeAccuracy *float64  `json:"altitudeAccuracy,omitempty"` // meters
	Heading          *float64  `json:"heading,omitempty"`          // degrees
	Speed            *float64  `json:"speed,omitempty"`            // m/s
	Time             time.Time `json:"timestamp"`
}

// Float64 is a helper for filling optional readings.
func Float64(v float64) *float64 {
	return &v
}

// UnmarshalJSON accepts both a flat fix and the geolocation shape,
// {"coords": {...}, "timestamp": 1565095295116.673}.
// Timestamps may be unix milliseconds or RFC3339 strings.
// Absent coordinates decode as NaN so they fail validation
// instead of landing at 0,0.
func (f *LocationFix) UnmarshalJSON(data []byte) error {
	type Alias LocationFix
	aux := &struct {
		Coords    json.RawMessage `json:"coords"`
		Timestamp json.RawMessage `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(f),
	}
	f.Latitude, f.Longitude = math.NaN(), math.NaN()
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if coords := bytes.TrimSpace(aux.Coords); len(coords) > 0 && !bytes.Equal(coords, []byte("null")) {
		c := Alias{}
		c.Latitude, c.Longitude = math.NaN(), math.NaN()
		if err := json.Unmarshal(coords, &struct {
			Timestamp json.RawMessage `json:"timestamp"`
			*Alias
		}{Alias: &c}); err != nil {
			return fmt.Errorf("coords: %w", err)
		}
		*f = LocationFix(c)
	}
	t, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	f.Time = t
	return nil
}

// MotionSample is one accelerometer reading, in g.
type MotionSample struct {
	X    float64   `json:"x"`
	Y    float64   `json:"y"`
	Z    float64   `json:"z"`
	Time time.Time `json:"timestamp"`
}

// Magnitude is the length of the acceleration vector.
func (m MotionSample) Magnitude() float64 {
	return math.Sqrt(m.X*m.X + m.Y*m.Y + m.Z*m.Z)
}

func (m *MotionSample) UnmarshalJSON(data []byte) error {
	type Alias MotionSample
	aux := &struct {
		Timestamp json.RawMessage `json:"timestamp"`
		*Alias
	}{
		Alias: (*Alias)(m),
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	t, err := parseTimestamp(aux.Timestamp)
	if err != nil {
		return err
	}
	m.Time = t
	return nil
}

func parseTimestamp(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, err
		}
		if s == "" {
			return time.Time{}, nil
		}
		return time.Parse(time.RFC3339Nano, s)
	}
	var ms float64
	if err := json.Unmarshal(raw, &ms); err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	return time.Unix(0, int64(ms*float64(time.Millisecond))).UTC(), nil
}
