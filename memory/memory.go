package memory

import (
	"context"

	"github.com/dynamem/dynamem/core"
)

// Embedder converts text to vector embeddings.
// Implementations: mock (testing), OpenAI API, local ONNX model.
//
// Embeddings must be deterministic for identical input and always have
// exactly Dimensions() components; the store's vector index rejects
// anything else.
type Embedder interface {
	// Embed converts a single text to an embedding vector.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimensions returns the embedding vector size.
	Dimensions() int
}

// Recorder is the durable persistence boundary for memory records.
// Implementations: store.Store (SQLite).
type Recorder interface {
	// AppendMemory persists a single memory record.
	AppendMemory(ctx context.Context, rec core.MemoryRecord) error

	// ListMemories returns all records for the owner, ordered by position
	// ascending. Returns an empty slice for an unknown owner.
	ListMemories(ctx context.Context, ownerID string) ([]core.MemoryRecord, error)
}
