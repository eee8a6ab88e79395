// Package mathutil provides common mathematical utility functions.
package mathutil

import (
	"math"

	"github.com/iwvelando/loan-support/pkg/constants"
	"github.com/shopspring/decimal"
)

var half = decimal.New(5, -1)

// RoundHalfUp rounds a value to the nearest integer with exact halves going
// toward positive infinity, so 2.5 becomes 3 and -2.5 becomes -2. The value must
// be finite.
func RoundHalfUp(val float64) float64 {
	rounded, _ := decimal.NewFromFloat(val).Add(half).Floor().Float64()
	return rounded
}

// RoundHalfUpTo scales by 10^places, rounds half-up and scales back.
func RoundHalfUpTo(val float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return RoundHalfUp(val*scale) / scale
}

// IsFinite reports whether val is neither NaN nor an infinity.
func IsFinite(val float64) bool {
	return !math.IsNaN(val) && !math.IsInf(val, 0)
}

// AllFinite reports whether every value is finite.
func AllFinite(vals ...float64) bool {
	for _, v := range vals {
		if !IsFinite(v) {
			return false
		}
	}
	return true
}

// CalculatePercentage calculates what percentage value is of total
func CalculatePercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// ApplyPercentage applies a percentage to a value
func ApplyPercentage(value, percentage float64) float64 {
	return value * (percentage / constants.PercentageMultiplier)
}
