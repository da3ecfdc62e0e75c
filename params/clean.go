package params

type FixCleaningConfig struct {
	// AccuracyThreshold is the exclusive upper bound on horizontal accuracy, in meters.
	// Fixes reporting an accuracy equal to or above it are rejected.
	AccuracyThreshold float64
}

var DefaultCleanConfig = &FixCleaningConfig{
	AccuracyThreshold: 31.0,
}
