package geodesy

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/types/fix"
)

func TestDistanceMeters_Coincident(t *testing.T) {
	for _, c := range []fix.Coordinate{
		{Latitude: 0, Longitude: 0},
		{Latitude: 46.8721, Longitude: -113.994},
		{Latitude: -90, Longitude: 180},
		{Latitude: 89.9999, Longitude: -179.9999},
	} {
		if got := DistanceMeters(c, c); got != 0 {
			t.Errorf("%v: want 0, got %v", c, got)
		}
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	pairs := [][2]fix.Coordinate{
		{{Latitude: 0, Longitude: 0}, {Latitude: 0.008993, Longitude: 0}},
		{{Latitude: 37.3294642, Longitude: -122.01981015}, {Latitude: 37.33, Longitude: -122.03}},
		{{Latitude: 51.5, Longitude: -0.12}, {Latitude: 48.85, Longitude: 2.35}},
		{{Latitude: 10, Longitude: 179.9}, {Latitude: 10, Longitude: -179.9}},
	}
	for _, p := range pairs {
		ab, ba := DistanceMeters(p[0], p[1]), DistanceMeters(p[1], p[0])
		if ab != ba {
			t.Errorf("%v: not symmetric, %v != %v", p, ab, ba)
		}
	}
}

func TestDistanceMeters_Meridian1km(t *testing.T) {
	got := DistanceMeters(fix.Coordinate{}, fix.Coordinate{Latitude: 0.008993})
	if math.Abs(got-1000) > 1 {
		t.Errorf("want ~1000, got %v", got)
	}
}

func TestDistanceMeters_FlooredAndNonNegative(t *testing.T) {
	got := DistanceMeters(fix.Coordinate{}, fix.Coordinate{Latitude: 0.0000045})
	if got != 0 {
		t.Errorf("half a meter floors to 0, got %v", got)
	}
	got = DistanceMeters(fix.Coordinate{Latitude: 45}, fix.Coordinate{Latitude: 45, Longitude: 1})
	if got != math.Floor(got) || got <= 0 {
		t.Errorf("want positive whole meters, got %v", got)
	}
}

func TestDistanceMeters_Antimeridian(t *testing.T) {
	// 0.2 degrees of longitude at the equator, crossing 180.
	got := DistanceMeters(fix.Coordinate{Longitude: 179.9}, fix.Coordinate{Longitude: -179.9})
	want := common.EarthRadiusMeters * 0.2 * math.Pi / 180
	if math.Abs(got-want) > 1 {
		t.Errorf("want ~%v, got %v", want, got)
	}
}

func TestDistanceMeters_Antipodal(t *testing.T) {
	got := DistanceMeters(fix.Coordinate{Latitude: 0, Longitude: 0}, fix.Coordinate{Latitude: 0, Longitude: 180})
	want := math.Floor(common.EarthRadiusMeters * math.Pi)
	if got != want {
		t.Errorf("want %v, got %v", want, got)
	}
}

// orb uses the WGS84 equatorial radius, so scale its haversine to our sphere.
func TestDistanceMeters_MatchesOrbHaversine(t *testing.T) {
	scale := common.EarthRadiusMeters / orb.EarthRadius
	pairs := [][2]fix.Coordinate{
		{{Latitude: 46.8721, Longitude: -113.994}, {Latitude: 46.9, Longitude: -114.1}},
		{{Latitude: -33.86, Longitude: 151.2}, {Latitude: -33.9, Longitude: 151.25}},
		{{Latitude: 64.1, Longitude: -21.9}, {Latitude: 64.15, Longitude: -21.8}},
	}
	for _, p := range pairs {
		want := geo.DistanceHaversine(p[0].Point(), p[1].Point()) * scale
		got := DistanceMeters(p[0], p[1])
		if math.Abs(got-want) > 1.5 {
			t.Errorf("%v: want ~%v, got %v", p, want, got)
		}
	}
}
