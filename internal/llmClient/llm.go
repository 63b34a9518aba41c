package llmclient

import "context"

// Request is one generation call to a provider. SystemPrompt and UserMessage
// are opaque strings supplied by the prompt collaborator.
type Request struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	MaxTokens    int
	Temperature  float32
}

// Response carries the raw model output plus token accounting.
type Response struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client is a thin wrapper around one provider's calling convention.
// It only focuses on the API call itself and error classification.
// Cross-cutting concerns (retries, backoff, observers) live in internal/llm.
type Client interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
	Close() error
}
