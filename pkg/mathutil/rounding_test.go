package mathutil

import (
	"math"
	"testing"
)

func TestRoundHalfUp(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Round up at midpoint", 2.5, 3},
		{"Round down below midpoint", 2.4999, 2},
		{"Just below half", 0.49999999999999994, 0},
		{"No rounding needed", 1000, 1000},
		{"Large number", 3069.7741, 3070},
		{"Negative midpoint goes toward positive infinity", -2.5, -2},
		{"Negative below midpoint", -2.51, -3},
		{"Negative whole", -2000, -2000},
		{"Zero", 0.0, 0.0},
		{"Very small negative", -0.001, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundHalfUp(tt.input)
			if result != tt.expected {
				t.Errorf("RoundHalfUp(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRoundHalfUpTo(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		places   int
		expected float64
	}{
		{"One place up", 50.25, 1, 50.3},
		{"One place down", 50.24, 1, 50.2},
		{"One place negative midpoint", -12.25, 1, -12.2},
		{"Zero places", 7.5, 0, 8},
		{"Already rounded", 40.0, 1, 40.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundHalfUpTo(tt.input, tt.places)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("RoundHalfUpTo(%v, %d) = %v, expected %v", tt.input, tt.places, result, tt.expected)
			}
		})
	}
}

func TestIsFinite(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected bool
	}{
		{"Zero", 0, true},
		{"Negative", -42.5, true},
		{"NaN", math.NaN(), false},
		{"Positive infinity", math.Inf(1), false},
		{"Negative infinity", math.Inf(-1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsFinite(tt.input); got != tt.expected {
				t.Errorf("IsFinite(%v) = %v, expected %v", tt.input, got, tt.expected)
			}
		})
	}

	if !AllFinite(1, 2, 3) {
		t.Error("AllFinite(1, 2, 3) = false, expected true")
	}
	if AllFinite(1, math.NaN()) {
		t.Error("AllFinite(1, NaN) = true, expected false")
	}
}

func TestCalculatePercentage(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		total    float64
		expected float64
	}{
		{"Obligations share of income", 4270, 8500, 50.23529411764706},
		{"Zero total", 100, 0, 0},
		{"Negative value", -1000, 5000, -20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculatePercentage(tt.value, tt.total)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("CalculatePercentage(%v, %v) = %v, expected %v", tt.value, tt.total, result, tt.expected)
			}
		})
	}
}

func TestApplyPercentage(t *testing.T) {
	if got := ApplyPercentage(5000, 40); got != 5000*0.4 {
		t.Errorf("ApplyPercentage(5000, 40) = %v, expected %v", got, 5000*0.4)
	}
	if got := ApplyPercentage(8500, 43); got != 8500*0.43 {
		t.Errorf("ApplyPercentage(8500, 43) = %v, expected %v", got, 8500*0.43)
	}
}
