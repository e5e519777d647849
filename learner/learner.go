// Package learner implements the active-learning controller: it owns
// exclusive access to the shared language model and decides nothing
// itself: it measures uncertainty and performs single fine-tuning steps
// when the feedback orchestrator asks for them.
//
// The model, its parameters, optimizer state, and inference/training mode
// are process-wide shared mutable state. The controller serializes every
// operation that touches them (generation included, since generation must
// never observe parameters mid-update) behind one lock, and guarantees the
// model is back in inference mode on every exit path of a fine-tuning
// step, normal or not.
package learner

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/dynamem/dynamem/model"
)

// ErrModelBusy is returned when the caller's context expires while waiting
// for the model lock. It is a retryable condition; no retry happens here.
var ErrModelBusy = errors.New("learner: model busy")

// Learner is the active-learning controller. Safe for concurrent use;
// concurrent callers serialize on the model lock.
type Learner struct {
	lm model.LanguageModel

	// sem is the model lock. A channel rather than sync.Mutex so waiters
	// can give up when their context expires.
	sem chan struct{}
}

// New creates a controller for the given model. The model is assumed to
// start in inference mode; the controller maintains that as the resting
// state from then on.
func New(lm model.LanguageModel) *Learner {
	return &Learner{
		lm:  lm,
		sem: make(chan struct{}, 1),
	}
}

func (l *Learner) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrModelBusy, ctx.Err())
	}
}

func (l *Learner) release() {
	<-l.sem
}

// Generate runs sampling-based generation under the model lock, so it can
// never interleave with a parameter update.
func (l *Learner) Generate(ctx context.Context, prompt []int64, params model.GenerateParams) ([]int64, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()

	return l.lm.Generate(ctx, prompt, params)
}

// MeasureUncertainty computes the model's next-token prediction loss over
// seq, treating the sequence as both input and labels. Higher loss means
// the model is more surprised by the exchange. Runs entirely in inference
// mode and never mutates parameters.
func (l *Learner) MeasureUncertainty(ctx context.Context, seq []int64) (float64, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer l.release()

	loss, err := l.lm.Loss(ctx, seq, seq)
	if err != nil {
		return 0, fmt.Errorf("measure uncertainty: %w", err)
	}
	return loss, nil
}

// FineTune performs one supervised fine-tuning step: transition to
// training mode, one backward pass and optimizer step on (input, labels),
// transition back to inference mode. The transition back is guaranteed:
// it runs deferred, on error and panic paths alike, with a cancel-immune
// context, because leaking training mode would corrupt every concurrent
// generation that follows.
//
// Returns the pre-step loss as a diagnostic.
func (l *Learner) FineTune(ctx context.Context, input, labels []int64) (float64, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, err
	}
	defer l.release()

	if err := l.lm.SetMode(ctx, model.Training); err != nil {
		return 0, fmt.Errorf("enter training mode: %w", err)
	}
	// Restore with a cancel-immune context so a timed-out request still
	// puts the model back in inference mode.
	defer func() {
		if err := l.lm.SetMode(context.WithoutCancel(ctx), model.Inference); err != nil {
			// The model may now be stuck in training mode; nothing left to
			// do in-process but make noise.
			log.Printf("[LEARNER] FAILED to restore inference mode: %v", err)
		}
	}()

	loss, err := l.lm.TrainStep(ctx, input, labels)
	if err != nil {
		return 0, fmt.Errorf("train step: %w", err)
	}

	log.Printf("[LEARNER] Fine-tuned one step, loss=%.4f", loss)
	return loss, nil
}
