// Package vector provides the similarity metrics used to rank world
// embeddings. Vectors are compared as-is: Dot is deliberately unnormalized,
// so magnitude affects ranking. Cosine is the normalized variant.
package vector

import "math"

// Dot returns the dot product of a and b. The second return is false when
// either vector is nil or the lengths differ. The result is not normalized:
// larger vectors score higher regardless of direction.
func Dot(a, b []float32) (float64, bool) {
	if a == nil || b == nil || len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum, true
}

// Cosine returns the cosine similarity of a and b, or false for nil input,
// mismatched lengths, or a zero-magnitude vector.
func Cosine(a, b []float32) (float64, bool) {
	dot, ok := Dot(a, b)
	if !ok {
		return 0, false
	}
	aa, _ := Dot(a, a)
	bb, _ := Dot(b, b)
	if aa == 0 || bb == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(aa) * math.Sqrt(bb)), true
}

// Euclidean returns the L2 distance between a and b, or false for nil input
// or mismatched lengths. Lower is more similar.
func Euclidean(a, b []float32) (float64, bool) {
	if a == nil || b == nil || len(a) != len(b) {
		return 0, false
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum), true
}
