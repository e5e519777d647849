// Package engine orchestrates the feedback loop: generate with retrieved
// memory context, commit the exchange back to memory, and on correction
// measure uncertainty and conditionally fine-tune the model.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/dynamem/dynamem/core"
	"github.com/dynamem/dynamem/learner"
	"github.com/dynamem/dynamem/memory"
	"github.com/dynamem/dynamem/model"
	"github.com/dynamem/dynamem/rescache"
)

// DefaultThreshold is the uncertainty gate for fine-tuning. Exchanges
// whose measured loss stays at or below it leave the model untouched.
// Experimentally tuned, not derived.
const DefaultThreshold = 1.0

// ErrAdaptationUnavailable is returned by Feedback when the engine was
// built without an active-learning controller (e.g. a hosted generation
// backend with no gradient access).
var ErrAdaptationUnavailable = errors.New("engine: active learning not available")

// FeedbackStore persists correction records.
// Implementations: store.Store (SQLite).
type FeedbackStore interface {
	SaveFeedback(ctx context.Context, rec core.FeedbackRecord) error
}

// Engine ties the memory store, responder, and active-learning controller
// into the request-level operations the HTTP boundary exposes.
type Engine struct {
	embedder  memory.Embedder
	recorder  memory.Recorder
	responder Responder

	tok      model.Tokenizer
	learner  *learner.Learner
	feedback FeedbackStore

	cache     *rescache.Cache
	threshold float64
	topK      int
}

// Option configures the engine.
type Option func(*Engine)

// WithActiveLearning enables the feedback path: uncertainty measurement
// and conditional fine-tuning through the controller, with corrections
// persisted to fb.
func WithActiveLearning(l *learner.Learner, tok model.Tokenizer, fb FeedbackStore) Option {
	return func(e *Engine) {
		e.learner = l
		e.tok = tok
		e.feedback = fb
	}
}

// WithResponseCache short-circuits generation for near-identical repeated
// inputs.
func WithResponseCache(c *rescache.Cache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithThreshold overrides the fine-tuning uncertainty gate.
func WithThreshold(t float64) Option {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithTopK overrides how many memories condition each prompt.
func WithTopK(k int) Option {
	return func(e *Engine) {
		e.topK = k
	}
}

// New creates an engine. The embedder, recorder, and responder are
// required; everything else is optional.
func New(embedder memory.Embedder, recorder memory.Recorder, responder Responder, opts ...Option) *Engine {
	e := &Engine{
		embedder:  embedder,
		recorder:  recorder,
		responder: responder,
		threshold: DefaultThreshold,
		topK:      memory.DefaultTopK,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateOutput is the result of one generation request.
type GenerateOutput struct {
	// Response is the assistant reply.
	Response string

	// FromCache reports whether the reply was served from the response
	// cache without invoking the model.
	FromCache bool
}

// Generate answers userInput for ownerID: retrieve that owner's nearest
// memories, build the augmented prompt, generate, and commit both the
// input and the reply to memory. Memory persistence failure fails the
// request (the reply is not returned), since durable and in-memory state
// have diverged.
func (e *Engine) Generate(ctx context.Context, ownerID, userInput string) (*GenerateOutput, error) {
	if userInput == "" {
		return nil, fmt.Errorf("engine: empty user input")
	}

	if e.cache != nil {
		reply, ok, err := e.cache.Lookup(ctx, ownerID, userInput)
		if err != nil {
			log.Printf("[ENGINE] Cache lookup failed: %v", err)
		} else if ok {
			return &GenerateOutput{Response: reply, FromCache: true}, nil
		}
	}

	store, err := memory.Open(ctx, ownerID, e.embedder, e.recorder)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}

	memories, err := store.Retrieve(ctx, userInput, e.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve memories: %w", err)
	}

	prompt := buildPrompt(memories, userInput)
	reply, err := e.responder.Respond(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("respond: %w", err)
	}

	// Commit the exchange to memory: the responder itself never mutates
	// the store.
	if err := store.Add(ctx, userInput); err != nil {
		return nil, fmt.Errorf("commit user input: %w", err)
	}
	if err := store.Add(ctx, reply); err != nil {
		return nil, fmt.Errorf("commit reply: %w", err)
	}

	if e.cache != nil {
		if err := e.cache.Put(ctx, ownerID, userInput, reply); err != nil {
			log.Printf("[ENGINE] Cache put failed: %v", err)
		}
	}

	return &GenerateOutput{Response: reply}, nil
}

// FeedbackInput is a user correction of a prior exchange.
type FeedbackInput struct {
	UserInput         string
	ModelResponse     string
	CorrectedResponse string
}

// FeedbackOutput reports what the uncertainty-gated policy did.
type FeedbackOutput struct {
	// Tuned reports whether a fine-tuning step ran.
	Tuned bool

	// Uncertainty is the measured loss over the reconstructed context.
	Uncertainty float64

	// Loss is the pre-step training loss; only meaningful when Tuned.
	Loss float64
}

// Feedback applies the uncertainty-gated adaptation policy: reconstruct
// the generation-time context for the corrected exchange, measure the
// model's loss over it, and, only when the loss exceeds the threshold,
// fine-tune one step toward the corrected response and persist the
// correction. Below the threshold nothing changes and nothing is stored.
func (e *Engine) Feedback(ctx context.Context, ownerID string, in FeedbackInput) (*FeedbackOutput, error) {
	if e.learner == nil || e.tok == nil {
		return nil, ErrAdaptationUnavailable
	}
	if in.UserInput == "" || in.CorrectedResponse == "" {
		return nil, fmt.Errorf("engine: user input and corrected response are required")
	}

	store, err := memory.Open(ctx, ownerID, e.embedder, e.recorder)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	memories, err := store.Retrieve(ctx, in.UserInput, e.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieve memories: %w", err)
	}

	// The same prompt framing used at generation time.
	contextTokens, err := e.tok.Encode(ctx, buildPrompt(memories, in.UserInput))
	if err != nil {
		return nil, fmt.Errorf("encode context: %w", err)
	}

	uncertainty, err := e.learner.MeasureUncertainty(ctx, contextTokens)
	if err != nil {
		return nil, fmt.Errorf("measure uncertainty: %w", err)
	}
	log.Printf("[ENGINE] Uncertainty=%.4f threshold=%.2f owner=%s", uncertainty, e.threshold, ownerID)

	if uncertainty <= e.threshold {
		return &FeedbackOutput{Tuned: false, Uncertainty: uncertainty}, nil
	}

	labels, err := e.tok.Encode(ctx, labelText(in.CorrectedResponse))
	if err != nil {
		return nil, fmt.Errorf("encode labels: %w", err)
	}

	loss, err := e.learner.FineTune(ctx, contextTokens, labels)
	if err != nil {
		return nil, fmt.Errorf("fine-tune: %w", err)
	}

	if e.feedback != nil {
		rec := core.FeedbackRecord{
			ID:                uuid.New().String(),
			OwnerID:           ownerID,
			UserInput:         in.UserInput,
			ModelResponse:     in.ModelResponse,
			CorrectedResponse: in.CorrectedResponse,
			Loss:              loss,
			CreatedAt:         time.Now().UTC(),
		}
		if err := e.feedback.SaveFeedback(ctx, rec); err != nil {
			return nil, fmt.Errorf("save feedback: %w", err)
		}
	}

	return &FeedbackOutput{Tuned: true, Uncertainty: uncertainty, Loss: loss}, nil
}
