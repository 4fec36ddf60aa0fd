package reembed

import "math"

// NormalizeVector scales v to unit length so that stored vectors can be
// compared by dot product. A zero vector stays zero. The input is not
// modified.
func NormalizeVector(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
