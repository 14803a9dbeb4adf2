// Package distance provides the vector distance functions used for
// similarity ranking. All functions return near zero for almost identical
// vectors and a large value for different ones, and are registered both as
// ordinary Go functions and as SQLite scalar functions so the store can
// rank rows without materializing vectors into process memory.
package distance

import (
	"fmt"
	"math"
	"math/bits"
)

// SQL function names registered with the store.
const (
	FuncHamming = "hamming_distance"
	FuncByte    = "byte_distance"
	FuncCosine  = "cosine_distance"
)

// Func computes a distance between two equal-length byte vectors.
type Func func(a, b []byte) (float64, error)

// checkVectors rejects empty or mismatched vectors rather than silently
// truncating.
func checkVectors(a, b []byte) error {
	if len(a) == 0 || len(b) == 0 {
		return fmt.Errorf("distance: empty vector")
	}
	if len(a) != len(b) {
		return fmt.Errorf("distance: length mismatch %d != %d", len(a), len(b))
	}
	return nil
}

// Hamming returns the fraction of differing bits, in [0,1].
// Zero means identical bit patterns.
func Hamming(a, b []byte) (float64, error) {
	if err := checkVectors(a, b); err != nil {
		return 0, err
	}
	set := 0
	for i := range a {
		set += bits.OnesCount8(a[i] ^ b[i])
	}
	return float64(set) / (8 * float64(len(a))), nil
}

// Byte returns the mean absolute byte difference scaled to [0,1].
func Byte(a, b []byte) (float64, error) {
	if err := checkVectors(a, b); err != nil {
		return 0, err
	}
	var sum float64
	for i := range a {
		sum += math.Abs(float64(a[i]) - float64(b[i]))
	}
	return sum / (255 * float64(len(a))), nil
}

// Cosine maps each byte v to (v/255)*2-1 and returns 1/max(sim, 1e-6) - 1,
// where sim is the cosine similarity. Parallel vectors score 0; near
// orthogonal or anti-parallel vectors score large. Degenerate vectors
// (magnitude < 1e-6) are treated as indistinguishable and score 0 rather
// than dividing by zero.
func Cosine(a, b []byte) (float64, error) {
	if err := checkVectors(a, b); err != nil {
		return 0, err
	}

	toUnit := func(v byte) float64 { return (float64(v)/255)*2 - 1 }

	var dot, magA, magB float64
	for i := range a {
		fa, fb := toUnit(a[i]), toUnit(b[i])
		dot += fa * fb
		magA += fa * fa
		magB += fb * fb
	}

	magnitude := math.Sqrt(magA) * math.Sqrt(magB)
	if magnitude < 1e-6 {
		return 0, nil
	}

	sim := dot / magnitude
	return 1/math.Max(sim, 1e-6) - 1, nil
}

// Registry maps SQL function names to their Go implementations.
// The store registers each entry as a deterministic SQLite scalar function;
// the query engine uses the same entries for in-process evaluation, which
// keeps the two paths numerically identical.
func Registry() map[string]Func {
	return map[string]Func{
		FuncHamming: Hamming,
		FuncByte:    Byte,
		FuncCosine:  Cosine,
	}
}

// Lookup returns the named distance function.
func Lookup(name string) (Func, error) {
	fn, ok := Registry()[name]
	if !ok {
		return nil, fmt.Errorf("distance: unknown function %q", name)
	}
	return fn, nil
}
