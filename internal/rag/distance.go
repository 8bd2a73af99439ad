package rag

import (
	"fmt"
	"math"
)

// CosineDistance returns 1 - cosine similarity of a and b. A zero-magnitude
// vector has distance 1 to everything. a and b must have equal length.
func CosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}

// CheckDimensions returns an error wrapping ErrDimensionMismatch when vec
// does not have exactly want elements.
func CheckDimensions(vec []float32, want int) error {
	if len(vec) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), want)
	}
	return nil
}
