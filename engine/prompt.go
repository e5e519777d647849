package engine

import (
	"errors"
	"strings"
)

// assistantCue marks where the model's continuation begins. The model
// free-associates the full exchange, prompt echo included, so isolating
// the reply is an extraction problem, not a stop-sequence problem.
const assistantCue = "Assistant:"

// ErrMalformedGeneration is returned when the decoded model output lacks
// the assistant cue. The raw decoded text is never surfaced to the caller
// in that case.
var ErrMalformedGeneration = errors.New("engine: malformed generation: missing reply marker")

// buildPrompt assembles the memory-augmented prompt: a context section of
// space-joined memories (nearest first), the user input, and the
// generation cue.
func buildPrompt(memories []string, userInput string) string {
	var b strings.Builder
	b.WriteString("Context: ")
	b.WriteString(strings.Join(memories, " "))
	b.WriteString("\nUser: ")
	b.WriteString(userInput)
	b.WriteString("\n")
	b.WriteString(assistantCue)
	return b.String()
}

// extractReply isolates the assistant's reply: everything after the last
// occurrence of the cue, trimmed.
func extractReply(decoded string) (string, error) {
	idx := strings.LastIndex(decoded, assistantCue)
	if idx < 0 {
		return "", ErrMalformedGeneration
	}
	return strings.TrimSpace(decoded[idx+len(assistantCue):]), nil
}

// labelText frames a corrected response the way the assistant reply
// appears in training labels.
func labelText(correctedResponse string) string {
	return assistantCue + " " + correctedResponse
}
