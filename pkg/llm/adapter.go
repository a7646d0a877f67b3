package llm

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"modelbench/pkg/backend"
)

// ModelSpec maps a registry model id to the provider's own model name.
type ModelSpec struct {
	ID       string
	Name     string
	Upstream string
}

// Adapter exposes one generation client as a backend.Adapter. One
// adapter instance serves every model id the provider offers.
type Adapter struct {
	provider backend.Provider
	client   Client
	specs    []ModelSpec
	upstream map[string]string
}

var _ backend.Adapter = (*Adapter)(nil)

// NewAdapter wraps client for the given provider and model table.
func NewAdapter(provider backend.Provider, client Client, specs []ModelSpec) *Adapter {
	upstream := make(map[string]string, len(specs))
	for _, s := range specs {
		upstream[s.ID] = s.Upstream
	}
	return &Adapter{provider: provider, client: client, specs: specs, upstream: upstream}
}

func (a *Adapter) Provider() backend.Provider { return a.provider }

func (a *Adapter) Models() []backend.ModelDescriptor {
	out := make([]backend.ModelDescriptor, 0, len(a.specs))
	for _, s := range a.specs {
		out = append(out, backend.ModelDescriptor{
			ID:           s.ID,
			Name:         s.Name,
			Kind:         backend.KindGeneration,
			Provider:     a.provider,
			Capabilities: []backend.Capability{backend.CapTemperature, backend.CapSystemPrompt},
		})
	}
	return out
}

func (a *Adapter) Invoke(ctx context.Context, req backend.JobRequest) (*backend.JobResult, error) {
	upstream, ok := a.upstream[req.ModelID]
	if !ok {
		// Pass unregistered ids straight through; Ollama serves whatever
		// tag the daemon has pulled.
		if a.provider != backend.ProviderOllama {
			return nil, backend.PermanentError(a.provider, "unknown model", errors.New(req.ModelID))
		}
		upstream = req.ModelID
	}
	if strings.TrimSpace(req.Params.Prompt) == "" {
		return nil, backend.PermanentError(a.provider, "empty prompt", errors.New("generation jobs require params.prompt"))
	}

	text, usage, err := a.client.Generate(ctx, GenerateRequest{
		Model:        upstream,
		Prompt:       req.Params.Prompt,
		SystemPrompt: req.Params.SystemPrompt,
		Temperature:  req.Params.Temperature,
		MaxTokens:    req.Params.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, backend.PermanentError(a.provider, backend.DetailEmptyOutput, errors.New("generation produced empty text"))
	}
	if usage != nil {
		slog.Debug("generation usage",
			slog.String("model", req.ModelID),
			slog.Int("input_tokens", usage.InputTokens),
			slog.Int("output_tokens", usage.OutputTokens))
	}

	return &backend.JobResult{
		ModelID:    req.ModelID,
		OutputText: text,
		Status:     backend.StatusOK,
	}, nil
}

func (a *Adapter) Health(ctx context.Context) bool {
	return a.client.Health(ctx)
}

// DefaultOpenAIModels lists the chat models registered for OpenAI.
func DefaultOpenAIModels() []ModelSpec {
	return []ModelSpec{
		{ID: "gpt-4", Name: "GPT-4 (OpenAI)", Upstream: "gpt-4"},
		{ID: "gpt-4-turbo", Name: "GPT-4 Turbo (OpenAI)", Upstream: "gpt-4-turbo"},
		{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo (OpenAI)", Upstream: "gpt-3.5-turbo"},
	}
}

// DefaultGeminiModels lists the models registered for Gemini.
func DefaultGeminiModels() []ModelSpec {
	return []ModelSpec{
		{ID: "gemini-pro", Name: "Gemini Pro (Google)", Upstream: "gemini-pro"},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro (Google)", Upstream: "gemini-1.5-pro"},
	}
}

// DefaultOllamaModels lists the tags registered for Ollama by default;
// unknown tags are still accepted at invoke time.
func DefaultOllamaModels() []ModelSpec {
	return []ModelSpec{
		{ID: "llama2", Name: "Llama 2 (Ollama)", Upstream: "llama2"},
		{ID: "llama2:13b", Name: "Llama 2 13B (Ollama)", Upstream: "llama2:13b"},
		{ID: "mistral", Name: "Mistral 7B (Ollama)", Upstream: "mistral"},
		{ID: "mixtral", Name: "Mixtral 8x7B (Ollama)", Upstream: "mixtral"},
	}
}

// JudgeDefault returns the model id scoring falls back to when
// JUDGE_MODEL is unset: the first entry of the default list of the
// provider backing the judge.
func JudgeDefault(specs []ModelSpec) string {
	if len(specs) == 0 {
		return ""
	}
	return specs[0].ID
}

// DefaultArkModels lists the models registered for Volcengine Ark.
func DefaultArkModels() []ModelSpec {
	return []ModelSpec{
		{ID: "doubao-seed", Name: "Doubao Seed (Ark)", Upstream: "doubao-seed-1-8-251228"},
	}
}
