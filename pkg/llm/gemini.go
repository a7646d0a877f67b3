package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"modelbench/pkg/backend"
)

// GeminiClient generates text through the Google generative AI API.
type GeminiClient struct {
	client *genai.Client
	apiKey string
}

// NewGeminiClient builds a client for the given API key.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is empty")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, apiKey: apiKey}, nil
}

func (c *GeminiClient) Generate(ctx context.Context, req GenerateRequest) (string, *Usage, error) {
	req = orDefault(req)

	model := c.client.GenerativeModel(req.Model)
	model.SetTemperature(float32(req.Temperature))
	model.SetMaxOutputTokens(int32(req.MaxTokens))
	if req.SystemPrompt != "" {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.SystemPrompt)},
		}
	}

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return "", nil, err
		}
		return "", nil, backend.TransientError(backend.ProviderGemini, backend.DetailUnreachable, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", nil, backend.PermanentError(backend.ProviderGemini, backend.DetailMalformedResponse, errors.New("no content in response"))
	}

	var result string
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			result += string(txt)
		}
	}

	var usage *Usage
	if meta := resp.UsageMetadata; meta != nil {
		usage = &Usage{
			InputTokens:  int(meta.PromptTokenCount),
			OutputTokens: int(meta.CandidatesTokenCount),
		}
	}
	return result, usage, nil
}

func (c *GeminiClient) Health(ctx context.Context) bool {
	return c.apiKey != ""
}

// Close releases the underlying API connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}
