package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"modelbench/pkg/backend"
)

// 25MB upload ceiling enforced by the hosted Whisper API.
const whisperAPIMaxBytes = 25 * 1024 * 1024

// WhisperAPI transcribes through OpenAI's hosted Whisper endpoint.
type WhisperAPI struct {
	client *openai.Client
	apiKey string
}

var _ backend.Adapter = (*WhisperAPI)(nil)

// NewWhisperAPI builds an adapter for the given API key.
func NewWhisperAPI(apiKey string) *WhisperAPI {
	return &WhisperAPI{client: openai.NewClient(apiKey), apiKey: apiKey}
}

func (w *WhisperAPI) Provider() backend.Provider { return backend.ProviderWhisperAPI }

func (w *WhisperAPI) Models() []backend.ModelDescriptor {
	return []backend.ModelDescriptor{{
		ID:           "whisper-api",
		Name:         "Whisper API (OpenAI)",
		Kind:         backend.KindTranscription,
		Provider:     backend.ProviderWhisperAPI,
		Capabilities: []backend.Capability{backend.CapLanguage},
	}}
}

func (w *WhisperAPI) Invoke(ctx context.Context, req backend.JobRequest) (*backend.JobResult, error) {
	if w.apiKey == "" {
		return nil, backend.PermanentError(backend.ProviderWhisperAPI, backend.DetailAuth, errors.New("api key not configured"))
	}
	info, err := os.Stat(req.InputRef)
	if err != nil {
		return nil, backend.PermanentError(backend.ProviderWhisperAPI, "audio file not found", err)
	}
	if info.Size() > whisperAPIMaxBytes {
		return nil, backend.PermanentError(backend.ProviderWhisperAPI, "file too large", fmt.Errorf("%d bytes exceeds 25MB API limit", info.Size()))
	}

	resp, err := w.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: req.InputRef,
		Language: req.Params.Language,
	})
	if err != nil {
		return nil, classifyWhisperAPIError(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return nil, backend.PermanentError(backend.ProviderWhisperAPI, backend.DetailEmptyOutput, errors.New("transcription resulted in empty text"))
	}

	return &backend.JobResult{
		ModelID:    req.ModelID,
		OutputText: text,
		Status:     backend.StatusOK,
	}, nil
}

func (w *WhisperAPI) Health(ctx context.Context) bool {
	return w.apiKey != ""
}

func classifyWhisperAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == http.StatusTooManyRequests:
			return backend.TransientError(backend.ProviderWhisperAPI, backend.DetailRateLimited, err)
		case apiErr.HTTPStatusCode >= 500:
			return backend.TransientError(backend.ProviderWhisperAPI, backend.DetailUnreachable, err)
		case apiErr.HTTPStatusCode == http.StatusUnauthorized || apiErr.HTTPStatusCode == http.StatusForbidden:
			return backend.PermanentError(backend.ProviderWhisperAPI, backend.DetailAuth, err)
		default:
			return backend.PermanentError(backend.ProviderWhisperAPI, backend.DetailMalformedResponse, err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return backend.TransientError(backend.ProviderWhisperAPI, backend.DetailUnreachable, err)
}
