// Package rescache provides an optional per-user semantic response cache
// on top of chromem-go, an embedded pure-Go vector database.
//
// Generation is the most expensive step in the request path. When a user
// asks something near-identical to an exchange they already had, the prior
// reply can be served without touching the model. The cache holds one
// collection per user (namespace isolation, same scheme as the memory
// store) and matches by cosine similarity of the user-input embedding with
// a high threshold, so only effectively-repeated questions hit.
package rescache

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"github.com/google/uuid"

	"github.com/dynamem/dynamem/memory"
)

// DefaultMinSimilarity only reuses replies for near-identical inputs.
// Cosine similarity of 0.97+ on sentence embeddings means rephrasings
// still regenerate; only effectively-the-same question hits.
const DefaultMinSimilarity float32 = 0.97

// Cache is a per-user semantic cache of (user input, reply) exchanges.
// Safe for concurrent use.
type Cache struct {
	db            *chromem.DB
	embedder      memory.Embedder
	minSimilarity float32

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
}

// New creates a cache. A minSimilarity <= 0 uses DefaultMinSimilarity.
func New(embedder memory.Embedder, minSimilarity float32) *Cache {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}
	return &Cache{
		db:            chromem.NewDB(),
		embedder:      embedder,
		minSimilarity: minSimilarity,
		collections:   make(map[string]*chromem.Collection),
	}
}

// collection returns the owner's collection, creating it on first use.
func (c *Cache) collection(ownerID string) (*chromem.Collection, error) {
	c.mu.RLock()
	col, ok := c.collections[ownerID]
	c.mu.RUnlock()
	if ok {
		return col, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if col, ok := c.collections[ownerID]; ok {
		return col, nil
	}

	col, err := c.db.CreateCollection("user_"+ownerID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	c.collections[ownerID] = col
	return col, nil
}

// Put records an exchange for the owner. Failures are the caller's to
// ignore; the cache is an optimization, not a store of record.
func (c *Cache) Put(ctx context.Context, ownerID, userInput, reply string) error {
	col, err := c.collection(ownerID)
	if err != nil {
		return err
	}

	embedding, err := c.embedder.Embed(ctx, userInput)
	if err != nil {
		return fmt.Errorf("embed input: %w", err)
	}

	doc := chromem.Document{
		ID:        uuid.New().String(),
		Content:   reply,
		Embedding: embedding,
		Metadata: map[string]string{
			"user_input": userInput,
			"created_at": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := col.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("add document: %w", err)
	}
	return nil
}

// Lookup returns the cached reply for a near-identical prior input, or
// ok=false on a miss.
func (c *Cache) Lookup(ctx context.Context, ownerID, userInput string) (reply string, ok bool, err error) {
	col, err := c.collection(ownerID)
	if err != nil {
		return "", false, err
	}
	if col.Count() == 0 {
		return "", false, nil
	}

	embedding, err := c.embedder.Embed(ctx, userInput)
	if err != nil {
		return "", false, fmt.Errorf("embed input: %w", err)
	}

	results, err := col.QueryEmbedding(ctx, embedding, 1, nil, nil)
	if err != nil {
		return "", false, fmt.Errorf("query: %w", err)
	}
	if len(results) == 0 || results[0].Similarity < c.minSimilarity {
		return "", false, nil
	}

	log.Printf("[CACHE] Hit for owner=%s similarity=%.3f", ownerID, results[0].Similarity)
	return results[0].Content, true, nil
}
