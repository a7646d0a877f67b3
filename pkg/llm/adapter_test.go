package llm

import (
	"context"
	"testing"

	"modelbench/pkg/backend"
)

type stubClient struct {
	text    string
	err     error
	lastReq GenerateRequest
}

func (c *stubClient) Generate(ctx context.Context, req GenerateRequest) (string, *Usage, error) {
	c.lastReq = req
	return c.text, nil, c.err
}

func (c *stubClient) Health(ctx context.Context) bool { return true }

func TestAdapterMapsUpstreamName(t *testing.T) {
	client := &stubClient{text: "reply"}
	a := NewAdapter(backend.ProviderGemini, client, []ModelSpec{
		{ID: "gemini-pro", Name: "Gemini Pro", Upstream: "gemini-1.0-pro"},
	})

	res, err := a.Invoke(context.Background(), backend.JobRequest{
		ModelID: "gemini-pro",
		Params:  backend.Params{Prompt: "hi", SystemPrompt: "be brief"},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if res.ModelID != "gemini-pro" || res.OutputText != "reply" {
		t.Errorf("unexpected result: %+v", res)
	}
	if client.lastReq.Model != "gemini-1.0-pro" {
		t.Errorf("upstream model = %q, want gemini-1.0-pro", client.lastReq.Model)
	}
	if client.lastReq.SystemPrompt != "be brief" {
		t.Errorf("system prompt not forwarded: %q", client.lastReq.SystemPrompt)
	}
}

func TestAdapterRejectsUnknownModel(t *testing.T) {
	a := NewAdapter(backend.ProviderOpenAI, &stubClient{text: "x"}, DefaultOpenAIModels())

	_, err := a.Invoke(context.Background(), backend.JobRequest{
		ModelID: "made-up",
		Params:  backend.Params{Prompt: "hi"},
	})
	if err == nil || backend.IsTransient(err) {
		t.Errorf("unknown model should fail permanently, got %v", err)
	}
}

func TestAdapterOllamaPassthrough(t *testing.T) {
	client := &stubClient{text: "ok"}
	a := NewAdapter(backend.ProviderOllama, client, DefaultOllamaModels())

	// Any tag the daemon has pulled is usable, registered or not.
	_, err := a.Invoke(context.Background(), backend.JobRequest{
		ModelID: "qwen2:7b",
		Params:  backend.Params{Prompt: "hi"},
	})
	if err != nil {
		t.Fatalf("Invoke failed: %v", err)
	}
	if client.lastReq.Model != "qwen2:7b" {
		t.Errorf("upstream model = %q, want qwen2:7b", client.lastReq.Model)
	}
}

func TestAdapterRequiresPrompt(t *testing.T) {
	a := NewAdapter(backend.ProviderOpenAI, &stubClient{text: "x"}, DefaultOpenAIModels())

	_, err := a.Invoke(context.Background(), backend.JobRequest{ModelID: "gpt-4"})
	if err == nil {
		t.Fatal("expected error for missing prompt")
	}
}

func TestJudgeDefault(t *testing.T) {
	// Each provider's default judge model must be one it actually
	// serves, so a judge falling back to OpenAI or Ollama never keeps a
	// Gemini model id.
	cases := []struct {
		specs []ModelSpec
		want  string
	}{
		{DefaultGeminiModels(), "gemini-pro"},
		{DefaultOpenAIModels(), "gpt-4"},
		{DefaultOllamaModels(), "llama2"},
		{nil, ""},
	}
	for _, tc := range cases {
		if got := JudgeDefault(tc.specs); got != tc.want {
			t.Errorf("JudgeDefault = %q, want %q", got, tc.want)
		}
	}
}

func TestAdapterEmptyOutput(t *testing.T) {
	a := NewAdapter(backend.ProviderOpenAI, &stubClient{text: "   "}, DefaultOpenAIModels())

	_, err := a.Invoke(context.Background(), backend.JobRequest{
		ModelID: "gpt-4",
		Params:  backend.Params{Prompt: "hi"},
	})
	if backend.Detail(err) != backend.DetailEmptyOutput {
		t.Errorf("got %v, want empty_output", err)
	}
}
