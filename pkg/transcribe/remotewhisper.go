// Package transcribe contains the speech-to-text adapters exposed to
// the dispatcher under the common backend contract.
package transcribe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"modelbench/pkg/backend"
)

var remoteWhisperSizes = []string{"tiny", "base", "small", "medium", "large"}

// RemoteWhisper calls a self-hosted Whisper HTTP server, typically
// reached over a private network link.
type RemoteWhisper struct {
	baseURL string
	client  *http.Client
}

var _ backend.Adapter = (*RemoteWhisper)(nil)

// NewRemoteWhisper builds an adapter for the server at baseURL.
func NewRemoteWhisper(baseURL string) *RemoteWhisper {
	return &RemoteWhisper{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

func (w *RemoteWhisper) Provider() backend.Provider { return backend.ProviderRemoteWhisper }

func (w *RemoteWhisper) Models() []backend.ModelDescriptor {
	out := make([]backend.ModelDescriptor, 0, len(remoteWhisperSizes))
	for _, size := range remoteWhisperSizes {
		out = append(out, backend.ModelDescriptor{
			ID:           "whisper-remote-" + size,
			Name:         fmt.Sprintf("Whisper %s (Remote)", strings.ToUpper(size[:1])+size[1:]),
			Kind:         backend.KindTranscription,
			Provider:     backend.ProviderRemoteWhisper,
			Capabilities: []backend.Capability{backend.CapLanguage},
		})
	}
	return out
}

// transcribeResponse mirrors the JSON shape of the Whisper server.
type transcribeResponse struct {
	Success  bool   `json:"success"`
	Text     string `json:"text"`
	Language string `json:"language"`
	Error    string `json:"error"`
}

func (w *RemoteWhisper) Invoke(ctx context.Context, req backend.JobRequest) (*backend.JobResult, error) {
	size := strings.TrimPrefix(req.ModelID, "whisper-remote-")
	if size == req.ModelID {
		return nil, backend.PermanentError(backend.ProviderRemoteWhisper, "unknown model", errors.New(req.ModelID))
	}

	f, err := os.Open(req.InputRef)
	if err != nil {
		return nil, backend.PermanentError(backend.ProviderRemoteWhisper, "audio file not found", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	errCh := make(chan error, 1)
	go func() {
		defer pw.Close()
		part, err := writer.CreateFormFile("file", filepath.Base(req.InputRef))
		if err != nil {
			errCh <- fmt.Errorf("create form file: %w", err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			errCh <- fmt.Errorf("copy audio data: %w", err)
			return
		}
		_ = writer.WriteField("model_size", size)
		if req.Params.Language != "" {
			_ = writer.WriteField("language", req.Params.Language)
		}
		errCh <- writer.Close()
	}()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.baseURL+"/transcribe", pr)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := w.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, backend.TransientError(backend.ProviderRemoteWhisper, backend.DetailUnreachable, err)
	}
	defer resp.Body.Close()

	if writeErr := <-errCh; writeErr != nil {
		return nil, backend.PermanentError(backend.ProviderRemoteWhisper, "multipart write", writeErr)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, backend.TransientError(backend.ProviderRemoteWhisper, backend.DetailUnreachable, err)
	}
	if resp.StatusCode >= 500 {
		return nil, backend.TransientError(backend.ProviderRemoteWhisper, backend.DetailUnreachable, fmt.Errorf("server error %d: %s", resp.StatusCode, truncate(body, 200)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, backend.PermanentError(backend.ProviderRemoteWhisper, backend.DetailMalformedResponse, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(body, 200)))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, backend.PermanentError(backend.ProviderRemoteWhisper, backend.DetailMalformedResponse, err)
	}
	if !parsed.Success {
		return nil, backend.PermanentError(backend.ProviderRemoteWhisper, backend.DetailMalformedResponse, fmt.Errorf("server reported failure: %s", parsed.Error))
	}
	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, backend.PermanentError(backend.ProviderRemoteWhisper, backend.DetailEmptyOutput, errors.New("transcription resulted in empty text"))
	}

	return &backend.JobResult{
		ModelID:    req.ModelID,
		OutputText: text,
		Status:     backend.StatusOK,
	}, nil
}

// Health probes the server's /health endpoint.
func (w *RemoteWhisper) Health(ctx context.Context) bool {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := w.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
