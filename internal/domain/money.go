package domain

import "math"

// All arithmetic inside the module is done in integer minor units (cents).
// Major-unit floats exist only at the presentation boundary.

// CentsToMajor converts minor units to a major-unit amount.
func CentsToMajor(cents int64) float64 {
	return float64(cents) / 100
}

// MajorToCents converts a major-unit amount to minor units, rounding half
// away from zero. Truncation is never acceptable at the cents boundary.
func MajorToCents(major float64) int64 {
	return int64(math.Round(major * 100))
}
