package common

import "math"

// DecimalToFixed rounds num half away from zero to precision decimal places.
func DecimalToFixed(num float64, precision int) float64 {
	output := math.Pow(10, float64(precision))
	return math.Round(num*output) / output
}

// IsFinite is false for NaN and either infinity.
func IsFinite(num float64) bool {
	return !math.IsNaN(num) && !math.IsInf(num, 0)
}
