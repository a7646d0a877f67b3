// Package llm contains the text-generation clients and the adapter
// that exposes them to the dispatcher under the common backend
// contract.
package llm

import "context"

// GenerateRequest is a single-turn generation call against an upstream
// model name.
type GenerateRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Usage reports token accounting where the provider supplies it.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Client is implemented once per generation provider. Generate returns
// the model's text reply; failures come back as classified
// backend.ProviderError values so the dispatcher can decide about
// retries. Health is the cheap liveness probe used by the registry.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (string, *Usage, error)
	Health(ctx context.Context) bool
}

const (
	defaultMaxTokens   = 4000
	defaultTemperature = 0.7
)

func orDefault(req GenerateRequest) GenerateRequest {
	if req.MaxTokens <= 0 {
		req.MaxTokens = defaultMaxTokens
	}
	if req.Temperature <= 0 {
		req.Temperature = defaultTemperature
	}
	return req
}
