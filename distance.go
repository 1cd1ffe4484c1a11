package hnsw

import (
	"fmt"

	"github.com/chewxy/math32"
	"github.com/viterin/vek/vek32"
)

// DistanceFunc computes the distance between two vectors.
type DistanceFunc func(a, b []float32) (float32, error)

// vekMinDims is the width at which the SIMD kernel beats the scalar loop.
const vekMinDims = 16

// EuclideanDistance computes the Euclidean distance between two vectors.
// The square root is retained: layer search compares its thresholds against
// these values directly, not against squared distances.
func EuclideanDistance(a, b []float32) (float32, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d != %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) >= vekMinDims {
		return vek32.Distance(a, b), nil
	}

	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math32.Sqrt(sum), nil
}
