package mathutil

import (
	"math"
	"testing"
)

func TestRound(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Round up at midpoint", 1.235, 1.24},
		{"Round down below midpoint", 1.234, 1.23},
		{"No rounding needed", 1.23, 1.23},
		{"Large number", 12345.678, 12345.68},
		{"Negative number round up", -1.235, -1.24},
		{"Zero", 0.0, 0.0},
		{"Very small positive", 0.001, 0.00},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Round(tt.input)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("Round(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRoundTo(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		places   int
		expected float64
	}{
		{"Whole", 42.6, 0, 43},
		{"One place", 14.04, 1, 14.0},
		{"Four places", 0.180049, 4, 0.18},
		{"Four places up", 24.71364, 4, 24.7136},
		{"Kilowatt peak", 21.6, 2, 21.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RoundTo(tt.input, tt.places)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("RoundTo(%v, %d) = %v, expected %v", tt.input, tt.places, result, tt.expected)
			}
		})
	}
}

func TestNonNegative(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"Positive", 3.5, 3.5},
		{"Zero", 0, 0},
		{"Negative", -1, 0},
		{"NaN", math.NaN(), 0},
		{"Infinity", math.Inf(1), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := NonNegative(tt.input); result != tt.expected {
				t.Errorf("NonNegative(%v) = %v, expected %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		name     string
		val      float64
		lo, hi   float64
		expected float64
	}{
		{"Inside", 0.5, 0, 1, 0.5},
		{"Below", -3, -0.99, 10, -0.99},
		{"Above", 12, -0.99, 10, 10},
		{"At bound", 1, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := Clamp(tt.val, tt.lo, tt.hi); result != tt.expected {
				t.Errorf("Clamp(%v, %v, %v) = %v, expected %v", tt.val, tt.lo, tt.hi, result, tt.expected)
			}
		})
	}
}

func TestWithinTolerance(t *testing.T) {
	tests := []struct {
		name      string
		val1      float64
		val2      float64
		tolerance float64
		expected  bool
	}{
		{"Exactly equal", 100.0, 100.0, 0.01, true},
		{"Within tolerance", 100.0, 100.005, 0.01, true},
		{"Outside tolerance", 100.0, 100.02, 0.01, false},
		{"Zero tolerance exact match", 100.0, 100.0, 0.0, true},
		{"Zero tolerance no match", 100.0, 100.001, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := WithinTolerance(tt.val1, tt.val2, tt.tolerance)
			if result != tt.expected {
				t.Errorf("WithinTolerance(%v, %v, %v) = %v, expected %v",
					tt.val1, tt.val2, tt.tolerance, result, tt.expected)
			}
		})
	}
}

func TestSafeDivide(t *testing.T) {
	if got := SafeDivide(10, 4, -1); got != 2.5 {
		t.Errorf("SafeDivide(10, 4) = %v, expected 2.5", got)
	}
	if got := SafeDivide(10, 0, -1); got != -1 {
		t.Errorf("SafeDivide(10, 0) = %v, expected fallback -1", got)
	}
}

func TestCalculatePercentage(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		total    float64
		expected float64
	}{
		{"Half", 50.0, 100.0, 50.0},
		{"Quarter", 25.0, 100.0, 25.0},
		{"Zero total", 50.0, 0.0, 0.0},
		{"Over 100 percent", 150.0, 100.0, 150.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculatePercentage(tt.value, tt.total)
			if math.Abs(result-tt.expected) > 0.001 {
				t.Errorf("CalculatePercentage(%v, %v) = %v, expected %v",
					tt.value, tt.total, result, tt.expected)
			}
		})
	}
}

func TestApplyPercentage(t *testing.T) {
	if result := ApplyPercentage(200, 14); math.Abs(result-28) > 1e-9 {
		t.Errorf("ApplyPercentage(200, 14) = %v, expected 28", result)
	}
}

func TestSum12(t *testing.T) {
	var values [12]float64
	for i := range values {
		values[i] = float64(i + 1)
	}
	if result := Sum12(values); result != 78 {
		t.Errorf("Sum12() = %v, expected 78", result)
	}
}
