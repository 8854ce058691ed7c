package embedding

import "math"

// Provider generates a fixed-size embedding vector for a piece of text.
// Implementations must return unit-length vectors so the index can use
// cosine distance directly.
type Provider interface {
	Embed(text string) ([]float32, error)
}

// Normalize scales a vector to unit length (magnitude = 1).
// Required for accurate cosine distance downstream.
func Normalize(vec []float32) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += float64(v) * float64(v)
	}
	magnitude = math.Sqrt(magnitude)
	if magnitude == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / magnitude)
	}
	return normalized
}
