// Package vecindex provides a flat, exact k-nearest-neighbour index over
// fixed-dimension float32 vectors, ordered by Euclidean (L2) distance.
//
// The index is append-only: vectors can be added but never updated or
// removed. Every vector position corresponds to its insertion order, which
// lets callers keep a parallel slice of payloads (the memory store keeps
// the memory text log this way).
//
// A flat scan is the right trade-off here: per-owner indexes live for a
// single request and hold at most a few thousand vectors, so an ANN
// structure would cost more to build than it saves.
package vecindex

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrDimensionMismatch is returned when a vector's length does not match
// the dimension the index was created with. The index is never mutated by
// a call that fails this check.
var ErrDimensionMismatch = errors.New("vecindex: vector dimension mismatch")

// Result is a single nearest-neighbour hit.
type Result struct {
	// Position is the insertion index of the matched vector.
	Position int

	// Distance is the L2 distance between the query and the matched vector.
	Distance float64
}

// Flat is an exact L2 nearest-neighbour index.
//
// Flat is not safe for concurrent use; callers that share an index across
// goroutines must serialize access (the memory store does).
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index for vectors of the given dimension.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("vecindex: dimension must be positive, got %d", dim)
	}
	return &Flat{dim: dim}, nil
}

// Dimension returns the fixed vector dimension of the index.
func (f *Flat) Dimension() int {
	return f.dim
}

// Len returns the number of vectors in the index.
func (f *Flat) Len() int {
	return len(f.vectors)
}

// Add appends a vector to the index. The vector is copied, so the caller
// may reuse the slice. Returns ErrDimensionMismatch without mutating the
// index when the vector has the wrong length.
func (f *Flat) Add(vector []float32) error {
	if len(vector) != f.dim {
		return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vector), f.dim)
	}
	v := make([]float32, f.dim)
	copy(v, vector)
	f.vectors = append(f.vectors, v)
	return nil
}

// Search returns up to k vectors nearest to the query, ordered by
// ascending L2 distance. Equal distances are broken by insertion order
// (lower position first), so repeated searches are deterministic.
//
// Searching an empty index, or with k <= 0, returns an empty result set
// without error. k may exceed Len; the result is truncated to Len.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), f.dim)
	}
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}

	results := make([]Result, len(f.vectors))
	for i, v := range f.vectors {
		results[i] = Result{Position: i, Distance: l2Distance(query, v)}
	}

	// Stable sort preserves insertion order among equal distances.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})

	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// l2Distance computes the Euclidean distance between two equal-length
// vectors. Accumulates in float64 to limit rounding drift.
func l2Distance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
