/*
Package geodesy measures distances over the surface of the earth,
modeled as a sphere.
*/
package geodesy

import (
	"math"

	"github.com/rotblauer/catride/common"
	"github.com/rotblauer/catride/types/fix"
)

// DistanceMeters returns the great-circle distance between a and b
// using the haversine formula on a sphere of radius common.EarthRadiusMeters.
// The result is floored to whole meters.
//
// a = sin²(Δφ/2) + cos φa ⋅ cos φb ⋅ sin²(Δλ/2)
// c = 2 ⋅ atan2(√a, √(1−a))
// d = R ⋅ c
func DistanceMeters(a, b fix.Coordinate) float64 {
	latA := toRad(a.Latitude)
	latB := toRad(b.Latitude)
	deltaLat := latB - latA
	deltaLon := toRad(b.Longitude - a.Longitude)

	sinLat := math.Sin(deltaLat / 2)
	sinLon := math.Sin(deltaLon / 2)
	h := sinLat*sinLat + math.Cos(latA)*math.Cos(latB)*sinLon*sinLon

	// Rounding can push h a hair outside [0,1] for antipodal points.
	h = math.Min(1, math.Max(0, h))

	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return math.Floor(common.EarthRadiusMeters * c)
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180.0
}
