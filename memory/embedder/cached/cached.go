// Package cached wraps any embedder with an in-process ristretto cache.
//
// Embedding providers are deterministic for identical input, so text→vector
// pairs are safely memoizable. The store re-embeds an owner's whole memory
// log on every request; with the cache, steady-state requests embed only
// texts the process has never seen.
package cached

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"

	"github.com/dynamem/dynamem/memory"
)

// Embedder decorates an inner embedder with a lookup cache.
type Embedder struct {
	inner memory.Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache bounded to roughly maxBytes of vector data.
// A maxBytes <= 0 defaults to 64 MiB.
func New(inner memory.Embedder, maxBytes int64) (*Embedder, error) {
	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 100_000,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}
	return &Embedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, embedding and caching on miss.
// Cached slices are shared; callers must not mutate the result (the vector
// index copies on insert).
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := e.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	// Admission is best-effort; a rejected set just means a future re-embed.
	e.cache.Set(text, vec, int64(len(vec))*4)
	return vec, nil
}

// Dimensions returns the inner embedder's vector size.
func (e *Embedder) Dimensions() int {
	return e.inner.Dimensions()
}

// Close releases cache resources.
func (e *Embedder) Close() {
	e.cache.Close()
}

var _ memory.Embedder = (*Embedder)(nil)
