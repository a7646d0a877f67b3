package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"modelbench/pkg/backend"
)

var localWhisperSizes = []string{"tiny", "base", "small", "medium", "large"}

// LocalWhisper shells out to a whisper CLI binary that prints JSON on
// stdout. Inference happens inside the subprocess; from the
// dispatcher's point of view this is one opaque blocking call.
type LocalWhisper struct {
	binary   string
	modelDir string
}

var _ backend.Adapter = (*LocalWhisper)(nil)

// NewLocalWhisper builds an adapter for the given binary and model
// directory (expects ggml-<size>.bin files).
func NewLocalWhisper(binary, modelDir string) *LocalWhisper {
	return &LocalWhisper{binary: binary, modelDir: modelDir}
}

func (w *LocalWhisper) Provider() backend.Provider { return backend.ProviderLocalWhisper }

func (w *LocalWhisper) Models() []backend.ModelDescriptor {
	out := make([]backend.ModelDescriptor, 0, len(localWhisperSizes))
	for _, size := range localWhisperSizes {
		out = append(out, backend.ModelDescriptor{
			ID:           "whisper-" + size,
			Name:         fmt.Sprintf("Whisper %s (Local)", strings.ToUpper(size[:1])+size[1:]),
			Kind:         backend.KindTranscription,
			Provider:     backend.ProviderLocalWhisper,
			Capabilities: []backend.Capability{backend.CapLanguage},
		})
	}
	return out
}

// whisperOutput is the JSON the CLI prints on stdout.
type whisperOutput struct {
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
	Language string `json:"language"`
}

func (w *LocalWhisper) modelPath(size string) string {
	return filepath.Join(w.modelDir, "ggml-"+size+".bin")
}

func (w *LocalWhisper) Invoke(ctx context.Context, req backend.JobRequest) (*backend.JobResult, error) {
	size := strings.TrimPrefix(req.ModelID, "whisper-")
	if size == req.ModelID {
		return nil, backend.PermanentError(backend.ProviderLocalWhisper, "unknown model", errors.New(req.ModelID))
	}
	if _, err := os.Stat(w.binary); err != nil {
		return nil, backend.PermanentError(backend.ProviderLocalWhisper, backend.DetailUnreachable, fmt.Errorf("binary not found at %q: %w", w.binary, err))
	}
	if _, err := os.Stat(req.InputRef); err != nil {
		return nil, backend.PermanentError(backend.ProviderLocalWhisper, "audio file not found", err)
	}

	args := []string{"-m", w.modelPath(size), "-f", req.InputRef, "--output-json"}
	if req.Params.Language != "" {
		args = append(args, "-l", req.Params.Language)
	}

	cmd := exec.CommandContext(ctx, w.binary, args...)
	// Run in its own process group so cancellation kills the whole
	// subprocess tree, not just the leader.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, backend.TransientError(backend.ProviderLocalWhisper, backend.DetailUnreachable,
			fmt.Errorf("whisper exited: %w: %s", err, strings.TrimSpace(stderr.String())))
	}

	var parsed whisperOutput
	if err := json.Unmarshal(stdout.Bytes(), &parsed); err != nil {
		return nil, backend.PermanentError(backend.ProviderLocalWhisper, backend.DetailMalformedResponse, err)
	}

	var sb strings.Builder
	for _, seg := range parsed.Segments {
		sb.WriteString(seg.Text)
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return nil, backend.PermanentError(backend.ProviderLocalWhisper, backend.DetailEmptyOutput, errors.New("transcription resulted in empty text"))
	}

	return &backend.JobResult{
		ModelID:    req.ModelID,
		OutputText: text,
		Status:     backend.StatusOK,
	}, nil
}

// Health checks that the binary and at least one model file exist.
// Weights load lazily inside the subprocess, so presence on disk is
// the readiness signal.
func (w *LocalWhisper) Health(ctx context.Context) bool {
	if w.binary == "" {
		return false
	}
	if _, err := os.Stat(w.binary); err != nil {
		return false
	}
	for _, size := range localWhisperSizes {
		if _, err := os.Stat(w.modelPath(size)); err == nil {
			return true
		}
	}
	return false
}
