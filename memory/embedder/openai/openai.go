// Package openai provides an embedder backed by the OpenAI embeddings API
// (or any compatible endpoint).
package openai

import (
	"context"
	"fmt"

	goopenai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is text-embedding-3-small: 1536 dimensions, cheap
	// enough to re-embed a user's full memory log on every request.
	DefaultModel      = string(goopenai.SmallEmbedding3)
	defaultDimensions = 1536
)

// Config configures the OpenAI embedder.
type Config struct {
	// APIKey is the bearer token for authentication.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for Azure OpenAI, local
	// proxies, or compatible servers. Empty uses the OpenAI default.
	BaseURL string

	// Model is the embedding model. Defaults to DefaultModel.
	Model string

	// Dimensions is the expected vector size. Defaults to 1536 to match
	// text-embedding-3-small; must match the chosen model.
	Dimensions int
}

// Embedder implements memory.Embedder using the OpenAI Embeddings API.
// Safe for concurrent use.
type Embedder struct {
	client     *goopenai.Client
	model      string
	dimensions int
}

// New creates an OpenAI-backed embedder.
func New(cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedder: APIKey is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultDimensions
	}

	clientCfg := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	return &Embedder{
		client:     goopenai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}, nil
}

// Embed converts text to an embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contains no data")
	}

	embedding := resp.Data[0].Embedding
	if len(embedding) != e.dimensions {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d",
			len(embedding), e.dimensions)
	}
	return embedding, nil
}

// Dimensions returns the embedding vector size.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}
