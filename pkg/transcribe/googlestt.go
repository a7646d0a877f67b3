package transcribe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/api/option"

	"modelbench/pkg/backend"
)

// Above this size the synchronous Recognize call is refused by the API
// and the long-running variant is used instead.
const googleSTTAsyncThreshold = 10 * 1024 * 1024

// GoogleSTT transcribes through the Google Cloud Speech-to-Text API.
type GoogleSTT struct {
	client    *speech.Client
	credsFile string
}

var _ backend.Adapter = (*GoogleSTT)(nil)

// NewGoogleSTT builds an adapter authenticated by the given service
// account file.
func NewGoogleSTT(ctx context.Context, credsFile string) (*GoogleSTT, error) {
	if credsFile == "" {
		return nil, fmt.Errorf("google credentials file not configured")
	}
	client, err := speech.NewClient(ctx, option.WithCredentialsFile(credsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSTT{client: client, credsFile: credsFile}, nil
}

func (g *GoogleSTT) Provider() backend.Provider { return backend.ProviderGoogleSTT }

func (g *GoogleSTT) Models() []backend.ModelDescriptor {
	return []backend.ModelDescriptor{{
		ID:           "google-stt",
		Name:         "Google Speech-to-Text",
		Kind:         backend.KindTranscription,
		Provider:     backend.ProviderGoogleSTT,
		Capabilities: []backend.Capability{backend.CapLanguage},
	}}
}

// FormatLanguageCode widens a bare ISO-639 code into the BCP-47 form
// the API expects.
func FormatLanguageCode(lang string) string {
	if lang == "" {
		return "en-US"
	}
	if strings.Contains(lang, "-") {
		return lang
	}
	switch lang {
	case "en":
		return "en-US"
	case "tr":
		return "tr-TR"
	case "de":
		return "de-DE"
	case "fr":
		return "fr-FR"
	case "es":
		return "es-ES"
	default:
		return lang + "-" + strings.ToUpper(lang)
	}
}

func encodingFor(path string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3", ".m4a":
		return speechpb.RecognitionConfig_MP3
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".ogg":
		return speechpb.RecognitionConfig_OGG_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

func (g *GoogleSTT) Invoke(ctx context.Context, req backend.JobRequest) (*backend.JobResult, error) {
	content, err := os.ReadFile(req.InputRef)
	if err != nil {
		return nil, backend.PermanentError(backend.ProviderGoogleSTT, "audio file not found", err)
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   encodingFor(req.InputRef),
		LanguageCode:               FormatLanguageCode(req.Params.Language),
		EnableAutomaticPunctuation: true,
	}
	audio := &speechpb.RecognitionAudio{
		AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
	}

	var results []*speechpb.SpeechRecognitionResult
	if len(content) > googleSTTAsyncThreshold {
		op, err := g.client.LongRunningRecognize(ctx, &speechpb.LongRunningRecognizeRequest{Config: cfg, Audio: audio})
		if err != nil {
			return nil, classifyGoogleSTTError(err)
		}
		resp, err := op.Wait(ctx)
		if err != nil {
			return nil, classifyGoogleSTTError(err)
		}
		results = resp.Results
	} else {
		resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{Config: cfg, Audio: audio})
		if err != nil {
			return nil, classifyGoogleSTTError(err)
		}
		results = resp.Results
	}

	var transcripts []string
	for _, result := range results {
		if len(result.Alternatives) > 0 {
			transcripts = append(transcripts, result.Alternatives[0].Transcript)
		}
	}
	text := strings.TrimSpace(strings.Join(transcripts, " "))
	if text == "" {
		return nil, backend.PermanentError(backend.ProviderGoogleSTT, backend.DetailEmptyOutput, errors.New("transcription resulted in empty text"))
	}

	return &backend.JobResult{
		ModelID:    req.ModelID,
		OutputText: text,
		Status:     backend.StatusOK,
	}, nil
}

// Health checks that the credentials file is still accessible. API
// reachability problems surface at invoke time as transient errors.
func (g *GoogleSTT) Health(ctx context.Context) bool {
	_, err := os.Stat(g.credsFile)
	return err == nil
}

// Close releases the underlying API connection.
func (g *GoogleSTT) Close() error { return g.client.Close() }

func classifyGoogleSTTError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return backend.TransientError(backend.ProviderGoogleSTT, backend.DetailUnreachable, err)
}
