// Package waypoint defines the accepted, enriched fix a session emits.
package waypoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotblauer/catride/motion"
	"github.com/rotblauer/catride/s2"
	"github.com/rotblauer/catride/types/fix"
	"github.com/tidwall/gjson"
)

// Identity names the device a waypoint was recorded on.
type Identity struct {
	DeviceID     string
	Manufacturer string
}

// Waypoint is a fix that passed the accuracy gate, along with the motion
// samples gathered since the previous waypoint and the delta from it.
// DistanceMeters and DurationSeconds are zero for the first waypoint of a session.
type Waypoint struct {
	fix.LocationFix
	Identity

	Session string
	Seq     int64

	DistanceMeters  float64
	DurationSeconds int64

	Motion        []fix.MotionSample
	MotionSummary motion.Summary
}

// New builds a waypoint. The samples are copied;
// later changes to the caller's slice are not seen.
func New(f fix.LocationFix, samples []fix.MotionSample, id Identity) Waypoint {
	cp := make([]fix.MotionSample, len(samples))
	copy(cp, samples)
	return Waypoint{
		LocationFix:   f,
		Identity:      id,
		Motion:        cp,
		MotionSummary: motion.Summarize(cp),
	}
}

// WithDelta returns a copy carrying the distance and duration from the previous waypoint.
func (w Waypoint) WithDelta(meters float64, seconds int64) Waypoint {
	w.DistanceMeters = meters
	w.DurationSeconds = seconds
	return w
}

func (w Waypoint) Point() orb.Point {
	return w.Coordinate.Point()
}

// CellToken is the waypoint's S2 cell at s2.WaypointCellLevel.
func (w Waypoint) CellToken() string {
	return s2.Token(w.Point(), s2.WaypointCellLevel)
}

// properties is the decoded form of Feature properties.
type properties struct {
	Time          time.Time          `json:"Time"`
	Elevation     *float64           `json:"Elevation"`
	Accuracy      *float64           `json:"Accuracy"`
	ElevationAcc  *float64           `json:"ElevationAccuracy"`
	Heading       *float64           `json:"Heading"`
	Speed         *float64           `json:"Speed"`
	DeviceID      string             `json:"DeviceID"`
	Manufacturer  string             `json:"Manufacturer"`
	Session       string             `json:"Session"`
	Seq           int64              `json:"Seq"`
	Distance      float64            `json:"Distance"`
	Duration      int64              `json:"Duration"`
	Motion        []fix.MotionSample `json:"Motion"`
	MotionSummary motion.Summary     `json:"MotionSummary"`
}

// Feature returns the waypoint as a GeoJSON point feature.
func (w Waypoint) Feature() *geojson.Feature {
	f := geojson.NewFeature(w.Point())
	p := f.Properties
	if !w.Time.IsZero() {
		p["Time"] = w.Time.UTC().Format(time.RFC3339Nano)
		p["UnixTime"] = w.Time.Unix()
	}
	optional := map[string]*float64{
		"Elevation":         w.Altitude,
		"Accuracy":          w.Accuracy,
		"ElevationAccuracy": w.AltitudeAccuracy,
		"Heading":           w.Heading,
		"Speed":             w.Speed,
	}
	for k, v := range optional {
		if v != nil {
			p[k] = *v
		}
	}
	p["DeviceID"] = w.DeviceID
	p["Manufacturer"] = w.Manufacturer
	p["Session"] = w.Session
	p["Seq"] = w.Seq
	p["Distance"] = w.DistanceMeters
	p["Duration"] = w.DurationSeconds
	p["Motion"] = w.Motion
	p["MotionSummary"] = w.MotionSummary
	p["S2"] = w.CellToken()
	return f
}

func (w Waypoint) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Feature())
}

var errNotPoint = errors.New("waypoint geometry is not a point")

func (w *Waypoint) UnmarshalJSON(data []byte) error {
	f, err := geojson.UnmarshalFeature(data)
	if err != nil {
		return err
	}
	pt, ok := f.Geometry.(orb.Point)
	if !ok {
		return errNotPoint
	}
	props := properties{}
	if raw := gjson.GetBytes(data, "properties"); raw.Exists() {
		if err := json.Unmarshal([]byte(raw.Raw), &props); err != nil {
			return fmt.Errorf("waypoint properties: %w", err)
		}
	}
	*w = Waypoint{
		LocationFix: fix.LocationFix{
			Coordinate:       fix.Coordinate{Latitude: pt.Lat(), Longitude: pt.Lon()},
			Altitude:         props.Elevation,
			Accuracy:         props.Accuracy,
			AltitudeAccuracy: props.ElevationAcc,
			Heading:          props.Heading,
			Speed:            props.Speed,
			Time:             props.Time,
		},
		Identity:        Identity{DeviceID: props.DeviceID, Manufacturer: props.Manufacturer},
		Session:         props.Session,
		Seq:             props.Seq,
		DistanceMeters:  props.Distance,
		DurationSeconds: props.Duration,
		Motion:          props.Motion,
		MotionSummary:   props.MotionSummary,
	}
	if w.Motion == nil {
		w.Motion = []fix.MotionSample{}
	}
	return nil
}
