package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/dynamem/dynamem/core"
	"github.com/dynamem/dynamem/engine"
	"github.com/dynamem/dynamem/learner"
	"github.com/dynamem/dynamem/memory/embedder/mock"
	"github.com/dynamem/dynamem/model"
	"github.com/dynamem/dynamem/rescache"
)

// memRecorder is an in-memory memory.Recorder.
type memRecorder struct {
	mu   sync.Mutex
	recs map[string][]core.MemoryRecord
}

func newMemRecorder() *memRecorder {
	return &memRecorder{recs: make(map[string][]core.MemoryRecord)}
}

func (r *memRecorder) AppendMemory(_ context.Context, rec core.MemoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs[rec.OwnerID] = append(r.recs[rec.OwnerID], rec)
	return nil
}

func (r *memRecorder) ListMemories(_ context.Context, ownerID string) ([]core.MemoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.MemoryRecord(nil), r.recs[ownerID]...), nil
}

// textResponder answers every prompt with a fixed reply and counts calls.
type textResponder struct {
	reply string
	calls int
}

func (r *textResponder) Respond(_ context.Context, _ string) (string, error) {
	r.calls++
	return r.reply, nil
}

// byteTokenizer encodes text as its bytes.
type byteTokenizer struct{}

func (byteTokenizer) Encode(_ context.Context, text string) ([]int64, error) {
	tokens := make([]int64, len(text))
	for i := 0; i < len(text); i++ {
		tokens[i] = int64(text[i])
	}
	return tokens, nil
}

func (byteTokenizer) Decode(_ context.Context, tokens []int64) (string, error) {
	b := make([]byte, len(tokens))
	for i, tok := range tokens {
		b[i] = byte(tok)
	}
	return string(b), nil
}

// scriptedModel returns fixed losses and records training activity.
type scriptedModel struct {
	loss      float64
	trainLoss float64

	mode  model.Mode
	steps int
}

func (m *scriptedModel) Generate(_ context.Context, prompt []int64, _ model.GenerateParams) ([]int64, error) {
	return prompt, nil
}

func (m *scriptedModel) Loss(_ context.Context, _, _ []int64) (float64, error) {
	return m.loss, nil
}

func (m *scriptedModel) TrainStep(_ context.Context, _, _ []int64) (float64, error) {
	if m.mode != model.Training {
		return 0, errors.New("train step outside training mode")
	}
	m.steps++
	return m.trainLoss, nil
}

func (m *scriptedModel) SetMode(_ context.Context, mode model.Mode) error {
	m.mode = mode
	return nil
}

// feedbackLog records saved corrections.
type feedbackLog struct {
	saved []core.FeedbackRecord
}

func (f *feedbackLog) SaveFeedback(_ context.Context, rec core.FeedbackRecord) error {
	f.saved = append(f.saved, rec)
	return nil
}

func TestGenerateCommitsExchange(t *testing.T) {
	ctx := context.Background()
	recorder := newMemRecorder()
	responder := &textResponder{reply: "Hi there"}

	eng := engine.New(mock.New(8), recorder, responder)

	out, err := eng.Generate(ctx, "alice", "Hello")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out.Response != "Hi there" {
		t.Fatalf("Response = %q, want %q", out.Response, "Hi there")
	}
	if out.FromCache {
		t.Fatal("FromCache = true, want false")
	}

	recs, err := recorder.ListMemories(ctx, "alice")
	if err != nil {
		t.Fatalf("ListMemories: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("persisted %d memories, want 2", len(recs))
	}
	if recs[0].Content != "Hello" || recs[1].Content != "Hi there" {
		t.Fatalf("persisted contents = %q, %q", recs[0].Content, recs[1].Content)
	}
}

func TestGenerateRejectsEmptyInput(t *testing.T) {
	eng := engine.New(mock.New(8), newMemRecorder(), &textResponder{reply: "x"})
	if _, err := eng.Generate(context.Background(), "alice", ""); err == nil {
		t.Fatal("Generate(empty) = nil error, want error")
	}
}

func TestGenerateServesRepeatFromCache(t *testing.T) {
	ctx := context.Background()
	responder := &textResponder{reply: "Hi there"}
	cache := rescache.New(mock.New(8), rescache.DefaultMinSimilarity)

	eng := engine.New(mock.New(8), newMemRecorder(), responder,
		engine.WithResponseCache(cache))

	first, err := eng.Generate(ctx, "alice", "Hello")
	if err != nil {
		t.Fatalf("first Generate: %v", err)
	}
	if first.FromCache {
		t.Fatal("first call served from cache")
	}

	second, err := eng.Generate(ctx, "alice", "Hello")
	if err != nil {
		t.Fatalf("second Generate: %v", err)
	}
	if !second.FromCache {
		t.Fatal("second call not served from cache")
	}
	if second.Response != "Hi there" {
		t.Fatalf("cached response = %q, want %q", second.Response, "Hi there")
	}
	if responder.calls != 1 {
		t.Fatalf("responder called %d times, want 1", responder.calls)
	}
}

func TestFeedbackBelowThresholdSkipsTuning(t *testing.T) {
	lm := &scriptedModel{loss: 0.5}
	fb := &feedbackLog{}
	eng := engine.New(mock.New(8), newMemRecorder(), &textResponder{reply: "x"},
		engine.WithActiveLearning(learner.New(lm), byteTokenizer{}, fb))

	out, err := eng.Feedback(context.Background(), "alice", engine.FeedbackInput{
		UserInput:         "Hello",
		ModelResponse:     "wrong",
		CorrectedResponse: "right",
	})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if out.Tuned {
		t.Fatal("Tuned = true, want false")
	}
	if out.Uncertainty != 0.5 {
		t.Fatalf("Uncertainty = %v, want 0.5", out.Uncertainty)
	}
	if lm.steps != 0 {
		t.Fatalf("train steps = %d, want 0", lm.steps)
	}
	if len(fb.saved) != 0 {
		t.Fatalf("saved %d feedback records, want 0", len(fb.saved))
	}
}

func TestFeedbackAboveThresholdTunes(t *testing.T) {
	lm := &scriptedModel{loss: 1.5, trainLoss: 1.5}
	fb := &feedbackLog{}
	eng := engine.New(mock.New(8), newMemRecorder(), &textResponder{reply: "x"},
		engine.WithActiveLearning(learner.New(lm), byteTokenizer{}, fb))

	out, err := eng.Feedback(context.Background(), "alice", engine.FeedbackInput{
		UserInput:         "Hello",
		ModelResponse:     "wrong",
		CorrectedResponse: "right",
	})
	if err != nil {
		t.Fatalf("Feedback: %v", err)
	}
	if !out.Tuned {
		t.Fatal("Tuned = false, want true")
	}
	if out.Loss != 1.5 {
		t.Fatalf("Loss = %v, want 1.5", out.Loss)
	}
	if lm.steps != 1 {
		t.Fatalf("train steps = %d, want 1", lm.steps)
	}
	if lm.mode != model.Inference {
		t.Fatalf("final mode = %v, want Inference", lm.mode)
	}
	if len(fb.saved) != 1 {
		t.Fatalf("saved %d feedback records, want 1", len(fb.saved))
	}
	rec := fb.saved[0]
	if rec.OwnerID != "alice" || rec.CorrectedResponse != "right" || rec.Loss != 1.5 {
		t.Fatalf("saved record = %+v", rec)
	}
}

func TestFeedbackRequiresLearner(t *testing.T) {
	eng := engine.New(mock.New(8), newMemRecorder(), &textResponder{reply: "x"})
	_, err := eng.Feedback(context.Background(), "alice", engine.FeedbackInput{
		UserInput:         "Hello",
		CorrectedResponse: "right",
	})
	if !errors.Is(err, engine.ErrAdaptationUnavailable) {
		t.Fatalf("err = %v, want ErrAdaptationUnavailable", err)
	}
}

func TestFeedbackRequiresInputAndCorrection(t *testing.T) {
	lm := &scriptedModel{loss: 0.5}
	eng := engine.New(mock.New(8), newMemRecorder(), &textResponder{reply: "x"},
		engine.WithActiveLearning(learner.New(lm), byteTokenizer{}, nil))

	if _, err := eng.Feedback(context.Background(), "alice", engine.FeedbackInput{}); err == nil {
		t.Fatal("Feedback with empty fields = nil error, want error")
	}
}
