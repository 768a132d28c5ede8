// Package llm defines the chat message model and the completion contract the
// rest of the bridge relies on, plus an OpenAI-compatible implementation.
package llm

import "context"

// Completer is the minimal contract required to talk to a language-model
// provider. Implementations return exactly one assistant message or fail.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Request carries one completion call. MaxTokens of zero leaves the provider
// default in place.
type Request struct {
	Model       string
	Messages    []Message
	MaxTokens   int
	Temperature float64
	TopP        float64
	User        string
}

type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
}

type Completion struct {
	Model   string
	Message Message
	Usage   Usage
}

// CompleterFunc adapts a function to the Completer interface.
type CompleterFunc func(ctx context.Context, req Request) (*Completion, error)

func (f CompleterFunc) Complete(ctx context.Context, req Request) (*Completion, error) {
	return f(ctx, req)
}

// Define a custom type for context keys
type ContextKey string

const (
	TurnIDKey ContextKey = "turnID"
	UserIDKey ContextKey = "userID"
)
