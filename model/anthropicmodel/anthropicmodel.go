// Package anthropicmodel provides a generation-only backend on the
// Anthropic Messages API, for deployments that want hosted generation
// while keeping the rest of the pipeline (memory retrieval, prompt
// framing) intact. Hosted models expose no loss or gradient access, so
// the active-learning path is unavailable with this backend.
package anthropicmodel

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "claude-sonnet-4-20250514"

// Config configures the Anthropic responder.
type Config struct {
	// Model is the Claude model name. Defaults to DefaultModel.
	Model string

	// MaxTokens caps the response length. Defaults to 1024.
	MaxTokens int64
}

// Responder answers memory-augmented prompts via the Anthropic API. It
// satisfies the engine's Responder contract: the returned text is the
// assistant reply itself, no marker extraction required.
type Responder struct {
	client    *anthropic.Client
	model     string
	maxTokens int64
}

// New creates a Responder with the given Anthropic client.
func New(client *anthropic.Client, cfg Config) *Responder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 1024
	}
	return &Responder{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

// Respond sends the prompt as a single user message and returns the
// concatenated text blocks of the reply.
func (r *Responder) Respond(ctx context.Context, prompt string) (string, error) {
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(r.model),
		MaxTokens: r.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic message: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("anthropic message: response contains no text")
	}
	return text, nil
}
