package domain

import "context"

// Completer is the text generation contract.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (CompletionResult, error)
}

// CompletionResult carries generated text and token usage.
type CompletionResult struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
}
