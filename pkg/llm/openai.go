package llm

import (
	"context"
	"errors"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"modelbench/pkg/backend"
)

// OpenAIClient generates text through the OpenAI chat completion API.
type OpenAIClient struct {
	client *openai.Client
	apiKey string
}

// NewOpenAIClient builds a client. An empty key is allowed; the client
// reports unhealthy and every call fails fast.
func NewOpenAIClient(apiKey string) *OpenAIClient {
	return &OpenAIClient{
		client: openai.NewClient(apiKey),
		apiKey: apiKey,
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, req GenerateRequest) (string, *Usage, error) {
	if c.apiKey == "" {
		return "", nil, backend.PermanentError(backend.ProviderOpenAI, backend.DetailAuth, errors.New("api key not configured"))
	}
	req = orDefault(req)

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: float32(req.Temperature),
	})
	if err != nil {
		return "", nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil, backend.PermanentError(backend.ProviderOpenAI, backend.DetailMalformedResponse, errors.New("no choices in response"))
	}

	usage := &Usage{
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

// Health only checks that a credential is configured. A real request
// would cost tokens; reachability problems surface at invoke time as
// transient errors.
func (c *OpenAIClient) Health(ctx context.Context) bool {
	return c.apiKey != ""
}

// classifyOpenAIError maps SDK errors onto the shared taxonomy:
// 429/5xx retry, 401/403/4xx do not, everything else is treated as a
// network failure.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return backend.TransientError(backend.ProviderOpenAI, backend.DetailRateLimited, err)
		case apiErr.HTTPStatusCode >= 500:
			return backend.TransientError(backend.ProviderOpenAI, backend.DetailUnreachable, err)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return backend.PermanentError(backend.ProviderOpenAI, backend.DetailAuth, err)
		default:
			return backend.PermanentError(backend.ProviderOpenAI, backend.DetailMalformedResponse, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return backend.TransientError(backend.ProviderOpenAI, backend.DetailUnreachable, err)
}
