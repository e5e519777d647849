// Package model defines the external language-model capability boundary.
// The causal LM itself (parameters, tokenizer, optimizer) is not
// reimplemented here; this package holds only the contracts the rest of
// the system consumes, plus client implementations that speak to backends
// holding the real model.
package model

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by backends that cannot perform an operation
// (e.g. hosted-API backends have no loss or gradient access).
var ErrNotSupported = errors.New("model: operation not supported by this backend")

// Mode is the model's process-wide execution mode. Inference disables
// gradient tracking and makes forward passes deterministic; Training
// enables the gradient graph. The two are mutually exclusive, and the
// active-learning controller is responsible for always restoring Inference
// after a fine-tuning step.
type Mode int

const (
	Inference Mode = iota
	Training
)

// String implements fmt.Stringer for logs.
func (m Mode) String() string {
	switch m {
	case Inference:
		return "inference"
	case Training:
		return "training"
	default:
		return "unknown"
	}
}

// GenerateParams bounds and shapes sampling-based generation.
type GenerateParams struct {
	// MaxLength caps the total token length of the generated sequence.
	MaxLength int

	// NoRepeatNGramSize forbids repeating any n-gram of this size.
	// Zero disables the constraint.
	NoRepeatNGramSize int

	// Temperature scales the next-token distribution.
	Temperature float64

	// TopP applies nucleus truncation to the distribution.
	TopP float64

	// Sample enables stochastic sampling; false means greedy decoding.
	Sample bool
}

// DefaultGenerateParams mirrors the generation policy the assistant uses:
// bounded length, bigram repetition avoidance, and mild sampling for
// diversity while remaining fluent.
func DefaultGenerateParams() GenerateParams {
	return GenerateParams{
		MaxLength:         150,
		NoRepeatNGramSize: 2,
		Temperature:       0.7,
		TopP:              0.9,
		Sample:            true,
	}
}

// Tokenizer converts between text and token sequences.
type Tokenizer interface {
	Encode(ctx context.Context, text string) ([]int64, error)
	Decode(ctx context.Context, tokens []int64) (string, error)
}

// LanguageModel is the opaque causal LM capability. All methods block until
// the backend completes; callers own serialization (see package learner).
type LanguageModel interface {
	// Generate continues the prompt and returns the full token sequence,
	// prompt included. The model free-associates the whole exchange, and
	// the caller extracts the reply from the decoded text.
	Generate(ctx context.Context, prompt []int64, params GenerateParams) ([]int64, error)

	// Loss computes the supervised loss of input against labels without
	// touching parameters. With labels == input this is next-token
	// prediction loss over the sequence, the system's uncertainty proxy.
	Loss(ctx context.Context, input, labels []int64) (float64, error)

	// TrainStep computes the loss of input against labels, backpropagates,
	// applies one optimizer step, clears accumulated gradients, and
	// returns the pre-step loss. Only valid in Training mode.
	TrainStep(ctx context.Context, input, labels []int64) (float64, error)

	// SetMode switches the backend between inference and training modes.
	SetMode(ctx context.Context, mode Mode) error
}
