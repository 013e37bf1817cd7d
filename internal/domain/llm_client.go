package domain

import "context"

// LLMClient defines the capability to send a grounding prompt to the LLM
// gateway and receive the generated answer text. Retry, caching, and model
// fallback belong to the gateway, not to callers of this interface.
type LLMClient interface {
	Generate(ctx context.Context, prompt string, maxTokens int) (*LLMResponse, error)
	Version() string
}

// LLMResponse carries the LLM output and whether the generation finished.
type LLMResponse struct {
	Text string
	Done bool
}
