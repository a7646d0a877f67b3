package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"modelbench/pkg/backend"
)

// OllamaClient talks to a local Ollama daemon over its HTTP API.
type OllamaClient struct {
	host   string
	client *http.Client
}

// NewOllamaClient builds a client for the given host, e.g.
// "http://localhost:11434".
func NewOllamaClient(host string) *OllamaClient {
	return &OllamaClient{
		host:   strings.TrimRight(host, "/"),
		client: &http.Client{},
	}
}

type ollamaGenerateRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	System  string        `json:"system,omitempty"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
}

type ollamaGenerateResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (c *OllamaClient) Generate(ctx context.Context, req GenerateRequest) (string, *Usage, error) {
	req = orDefault(req)

	body, err := json.Marshal(ollamaGenerateRequest{
		Model:  req.Model,
		Prompt: req.Prompt,
		System: req.SystemPrompt,
		Stream: false,
		Options: ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		},
	})
	if err != nil {
		return "", nil, fmt.Errorf("marshal generate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", nil, fmt.Errorf("create generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", nil, err
		}
		return "", nil, backend.TransientError(backend.ProviderOllama, backend.DetailUnreachable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, backend.TransientError(backend.ProviderOllama, backend.DetailUnreachable, err)
	}
	if resp.StatusCode >= 500 {
		return "", nil, backend.TransientError(backend.ProviderOllama, backend.DetailUnreachable, fmt.Errorf("ollama returned status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return "", nil, backend.PermanentError(backend.ProviderOllama, backend.DetailMalformedResponse, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, truncate(raw, 200)))
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", nil, backend.PermanentError(backend.ProviderOllama, backend.DetailMalformedResponse, err)
	}

	usage := &Usage{InputTokens: parsed.PromptEvalCount, OutputTokens: parsed.EvalCount}
	return parsed.Response, usage, nil
}

// Tags lists the model names installed in the daemon.
func (c *OllamaClient) Tags(ctx context.Context) ([]string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.host+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, backend.TransientError(backend.ProviderOllama, backend.DetailUnreachable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, backend.TransientError(backend.ProviderOllama, backend.DetailUnreachable, fmt.Errorf("ollama returned status %d", resp.StatusCode))
	}

	var parsed struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, backend.PermanentError(backend.ProviderOllama, backend.DetailMalformedResponse, err)
	}
	names := make([]string, 0, len(parsed.Models))
	for _, m := range parsed.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Health probes the daemon's tag listing within a short bound.
func (c *OllamaClient) Health(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := c.Tags(ctx)
	return err == nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
