package ai

import "context"

// TextGenerator produces a conversational reply from a system prompt and a
// user prompt. The chat assistant depends on this interface so tests can
// substitute a canned generator.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
