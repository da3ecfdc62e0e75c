package params

import "time"

// LocationOptions are handed to location streams as-is.
// The session never interprets them.
type LocationOptions struct {
	HighAccuracy bool
	// Timeout is how long a stream may go without delivering a fix
	// before it reports an error.
	Timeout time.Duration
	// MaximumAge is the oldest cached fix a stream may deliver.
	// Zero disables the check.
	MaximumAge time.Duration
}

func DefaultLocationOptions() LocationOptions {
	return LocationOptions{
		HighAccuracy: true,
		Timeout:      20 * time.Second,
		MaximumAge:   1 * time.Second,
	}
}

type TrackingConfig struct {
	Cleaning *FixCleaningConfig
	Location LocationOptions

	// MotionInterval is the nominal accelerometer sampling interval.
	MotionInterval time.Duration

	// MotionBufferCapacity bounds the motion samples carried by one waypoint.
	MotionBufferCapacity int

	// UseFixTime measures waypoint durations with fix timestamps
	// instead of the session clock. Useful for replays.
	UseFixTime bool
}

func DefaultTrackingConfig() *TrackingConfig {
	return &TrackingConfig{
		Cleaning:             DefaultCleanConfig,
		Location:             DefaultLocationOptions(),
		MotionInterval:       400 * time.Millisecond,
		MotionBufferCapacity: 15,
	}
}

// SpeedUnit names the unit speeds are displayed in.
type SpeedUnit string

const (
	SpeedUnitKMH SpeedUnit = "km/h"
	SpeedUnitMPH SpeedUnit = "mph"
	SpeedUnitMPS SpeedUnit = "m/s"
)

type StatsConfig struct {
	SpeedUnit SpeedUnit
}

func DefaultStatsConfig() *StatsConfig {
	return &StatsConfig{SpeedUnit: SpeedUnitKMH}
}
