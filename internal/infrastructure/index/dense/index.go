package dense

import (
	"fmt"
	"math"
	"sort"
)

// Index is a flat inner-product index over unit-normalized vectors. With
// normalized inputs the inner product equals cosine similarity, so an
// exhaustive scan ranks by semantic closeness.
type Index struct {
	dim     int
	vectors [][]float32
}

func New(dim int) *Index {
	return &Index{dim: dim}
}

func (idx *Index) Dim() int { return idx.dim }
func (idx *Index) Len() int { return len(idx.vectors) }

// Add appends vectors in chunk-position order. Every vector must match the
// index dimension.
func (idx *Index) Add(vectors [][]float32) error {
	for i, v := range vectors {
		if len(v) != idx.dim {
			return fmt.Errorf("vector %d has dim %d, index dim %d", i, len(v), idx.dim)
		}
		idx.vectors = append(idx.vectors, v)
	}
	return nil
}

// Candidate is one dense match by chunk position.
type Candidate struct {
	Position int
	Score    float64
}

// Search returns the limit nearest positions by inner product, descending,
// ties broken by ascending position. The limit is clamped to the corpus size.
func (idx *Index) Search(query []float32, limit int) ([]Candidate, error) {
	if len(query) != idx.dim {
		return nil, fmt.Errorf("query has dim %d, index dim %d", len(query), idx.dim)
	}
	if limit <= 0 || limit > len(idx.vectors) {
		limit = len(idx.vectors)
	}

	out := make([]Candidate, 0, len(idx.vectors))
	for i, v := range idx.vectors {
		out = append(out, Candidate{Position: i, Score: dot(query, v)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Position < out[j].Position
	})
	return out[:limit], nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Normalize scales the vector to unit length in place. Zero vectors are left
// untouched.
func Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := 1 / math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
}
