package vectorindex

import (
	"math"
	"sync"
)

// Index is an in-memory nearest-neighbour index over archive question
// embeddings. It is a derived, rebuildable cache: the archive document stays
// the single source of truth and the index is repopulated from it on startup
// and kept in sync through archive mutation events.
//
// A linear scan is deliberate: archives are small (hundreds of entries) and a
// scan keeps the index trivially correct under concurrent mutation.
type Index struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

func New() *Index {
	return &Index{
		vectors: make(map[string][]float32),
	}
}

// Upsert stores the embedding for a question key, replacing any previous one.
// The vector is normalized so cosine distance reduces to 1 - dot.
func (idx *Index) Upsert(question string, vector []float32) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors[question] = normalize(vector)
}

// Remove drops a question from the index. Unknown keys are a no-op.
func (idx *Index) Remove(question string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.vectors, question)
}

// Reset clears the index ahead of a full rebuild.
func (idx *Index) Reset() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.vectors = make(map[string][]float32)
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.vectors)
}

// Nearest returns the question whose embedding is closest to vector by
// cosine distance, in [0,2] for normalized inputs. ok is false when the
// index is empty.
func (idx *Index) Nearest(vector []float32) (question string, distance float64, ok bool) {
	query := normalize(vector)

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	best := math.MaxFloat64
	for q, v := range idx.vectors {
		if len(v) != len(query) {
			continue
		}
		d := 1 - dot(query, v)
		if d < best || (d == best && q < question) {
			best = d
			question = q
			ok = true
		}
	}
	return question, best, ok
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// normalize scales a vector to unit length. Required for cosine distance.
func normalize(vec []float32) []float32 {
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
