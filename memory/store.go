package memory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dynamem/dynamem/core"
	"github.com/dynamem/dynamem/vecindex"
)

// DefaultTopK is the default number of memories returned by Retrieve.
const DefaultTopK = 5

// ErrPersistence is wrapped into errors returned by Add when the durable
// write fails. The in-memory index and log keep the appended entry in that
// case (see Add), so callers must treat the error as fatal to the request.
var ErrPersistence = errors.New("memory: persistence failed")

// Store is a per-owner memory store: a vector index over embedded memory
// texts plus a parallel log of the texts themselves, in insertion order.
// The two always have equal length.
//
// A Store is built for exactly one owner via Open and typically lives for
// one request. It is safe for concurrent use by that owner's requests.
type Store struct {
	owner    string
	embedder Embedder
	recorder Recorder

	mu    sync.RWMutex
	index *vecindex.Flat
	texts []string
}

// Open constructs the memory store for one owner, rehydrating it from
// durable storage: every persisted record is re-embedded and appended to
// the index and log in position order. This is the scoping boundary; after
// Open the index and log contain that owner's records and nothing else.
func Open(ctx context.Context, owner string, embedder Embedder, recorder Recorder) (*Store, error) {
	idx, err := vecindex.NewFlat(embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}

	s := &Store{
		owner:    owner,
		embedder: embedder,
		recorder: recorder,
		index:    idx,
	}

	records, err := recorder.ListMemories(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}

	for _, rec := range records {
		vector, err := embedder.Embed(ctx, rec.Content)
		if err != nil {
			return nil, fmt.Errorf("embed memory %d: %w", rec.Position, err)
		}
		if err := idx.Add(vector); err != nil {
			return nil, fmt.Errorf("index memory %d: %w", rec.Position, err)
		}
		s.texts = append(s.texts, rec.Content)
	}

	log.Printf("[MEMORY] Loaded %d memories for owner=%s", len(records), owner)
	return s, nil
}

// Owner returns the owner the store is scoped to.
func (s *Store) Owner() string {
	return s.owner
}

// Len returns the number of memories held in the store.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.texts)
}

// Add embeds text, appends it to the vector index and the text log, and
// persists a memory record.
//
// When the durable write fails the in-memory entry is NOT rolled back; the
// returned error wraps ErrPersistence and the caller must fail the request,
// since in-memory and durable state have diverged. (Rollback-on-failure was
// deliberately not chosen; the store is request-scoped, so the divergence
// dies with the request.)
func (s *Store) Add(ctx context.Context, text string) error {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Add(vector); err != nil {
		return fmt.Errorf("index: %w", err)
	}
	s.texts = append(s.texts, text)

	rec := core.MemoryRecord{
		ID:        uuid.New().String(),
		OwnerID:   s.owner,
		Content:   text,
		Position:  len(s.texts) - 1,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.recorder.AppendMemory(ctx, rec); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Retrieve returns up to topK memory texts nearest to the query, nearest
// first by embedding L2 distance. A topK <= 0 uses DefaultTopK. An empty
// store yields an empty result, never an error.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) ([]string, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	s.mu.RLock()
	empty := len(s.texts) == 0
	s.mu.RUnlock()
	if empty {
		return nil, nil
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.index.Search(vector, topK)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	texts := make([]string, 0, len(results))
	for _, r := range results {
		texts = append(texts, s.texts[r.Position])
	}
	log.Printf("[MEMORY] Retrieved %d/%d memories for owner=%s", len(texts), len(s.texts), s.owner)
	return texts, nil
}
