package engine

import (
	"errors"
	"testing"
)

func TestBuildPrompt(t *testing.T) {
	got := buildPrompt([]string{"likes go", "lives in oslo"}, "Hello")
	want := "Context: likes go lives in oslo\nUser: Hello\nAssistant:"
	if got != want {
		t.Fatalf("buildPrompt = %q, want %q", got, want)
	}
}

func TestBuildPromptNoMemories(t *testing.T) {
	got := buildPrompt(nil, "Hello")
	want := "Context: \nUser: Hello\nAssistant:"
	if got != want {
		t.Fatalf("buildPrompt = %q, want %q", got, want)
	}
}

func TestExtractReply(t *testing.T) {
	text := "Context: likes go\nUser: Hello\nAssistant: Hi there  "
	got, err := extractReply(text)
	if err != nil {
		t.Fatalf("extractReply: %v", err)
	}
	if got != "Hi there" {
		t.Fatalf("extractReply = %q, want %q", got, "Hi there")
	}
}

func TestExtractReplyUsesLastMarker(t *testing.T) {
	text := "Assistant: old\nUser: more\nAssistant: final answer"
	got, err := extractReply(text)
	if err != nil {
		t.Fatalf("extractReply: %v", err)
	}
	if got != "final answer" {
		t.Fatalf("extractReply = %q, want %q", got, "final answer")
	}
}

func TestExtractReplyMissingMarker(t *testing.T) {
	_, err := extractReply("no marker here")
	if !errors.Is(err, ErrMalformedGeneration) {
		t.Fatalf("extractReply error = %v, want ErrMalformedGeneration", err)
	}
}
