package engine

import (
	"context"
	"fmt"

	"github.com/dynamem/dynamem/model"
)

// Responder answers a complete memory-augmented prompt with the assistant
// reply text.
// Implementations: LocalResponder (token-level, shared local model),
// anthropicmodel.Responder (hosted API).
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// TokenGenerator is the generation slice of the shared model, already
// serialized behind the controller's lock. *learner.Learner satisfies it.
type TokenGenerator interface {
	Generate(ctx context.Context, prompt []int64, params model.GenerateParams) ([]int64, error)
}

// LocalResponder runs token-level generation against the shared local
// model: encode the prompt, sample a continuation, decode, and extract the
// reply after the generation cue.
type LocalResponder struct {
	tok    model.Tokenizer
	gen    TokenGenerator
	params model.GenerateParams
}

// NewLocalResponder creates a responder over a tokenizer and generator.
// A zero params uses model.DefaultGenerateParams.
func NewLocalResponder(tok model.Tokenizer, gen TokenGenerator, params model.GenerateParams) *LocalResponder {
	if params == (model.GenerateParams{}) {
		params = model.DefaultGenerateParams()
	}
	return &LocalResponder{tok: tok, gen: gen, params: params}
}

// Respond generates the assistant reply for the prompt. Returns
// ErrMalformedGeneration when the decoded output lacks the reply marker.
func (r *LocalResponder) Respond(ctx context.Context, prompt string) (string, error) {
	promptTokens, err := r.tok.Encode(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("encode prompt: %w", err)
	}

	outputTokens, err := r.gen.Generate(ctx, promptTokens, r.params)
	if err != nil {
		return "", fmt.Errorf("generate: %w", err)
	}

	decoded, err := r.tok.Decode(ctx, outputTokens)
	if err != nil {
		return "", fmt.Errorf("decode output: %w", err)
	}

	return extractReply(decoded)
}

var _ Responder = (*LocalResponder)(nil)
