package common

// All units are in metric unless named otherwise:
// - Speed is in m/s
// - Distance is in meters
// - Time is in seconds
// - Acceleration is in g

// EarthRadiusMeters is the mean radius used for spherical distances.
const EarthRadiusMeters = 6371.0 * 1000

const (
	MetersPerSecondToKilometersPerHour = 3.6
	MetersPerSecondToMilesPerHour      = 2.2369362920544
)

const SpeedOfCyclingMax = 11.76      // or 42 km/h or 26 mph
const SpeedOfDrivingAutobahn = 67.06 // or 241 km/h or 150 mph
