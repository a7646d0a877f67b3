package backend

import "context"

// Kind categorizes what a model produces.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindGeneration    Kind = "generation"
)

// Provider is the closed set of supported backends. One adapter
// implementation exists per variant; the registry enumerates the live
// ones instead of discovering types at runtime.
type Provider string

const (
	ProviderLocalWhisper  Provider = "local-whisper"
	ProviderRemoteWhisper Provider = "remote-whisper"
	ProviderWhisperAPI    Provider = "whisper-api"
	ProviderGoogleSTT     Provider = "google-stt"
	ProviderOpenAI        Provider = "openai"
	ProviderGemini        Provider = "gemini"
	ProviderOllama        Provider = "ollama"
	ProviderArk           Provider = "ark"
)

// Class groups providers for concurrency limiting. The local class
// shares CPU/GPU with the host process and gets a single slot; the
// network class is bounded by a configurable pool.
type Class string

const (
	ClassLocal   Class = "local"
	ClassNetwork Class = "network"
)

// Class returns the concurrency class for the provider. Ollama runs on
// the same machine but behind its own daemon, so it counts as local to
// avoid contending with whisper inference.
func (p Provider) Class() Class {
	switch p {
	case ProviderLocalWhisper, ProviderOllama:
		return ClassLocal
	default:
		return ClassNetwork
	}
}

// Capability names an optional request parameter a model honors.
type Capability string

const (
	CapLanguage     Capability = "language"
	CapTemperature  Capability = "temperature"
	CapSystemPrompt Capability = "system_prompt"
	CapStreaming    Capability = "streaming"
)

// ModelDescriptor identifies one usable model. Descriptors are derived
// state: built by probing adapters at startup, refreshed on demand and
// never persisted.
type ModelDescriptor struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Kind         Kind         `json:"kind"`
	Provider     Provider     `json:"provider"`
	Available    bool         `json:"available"`
	Capabilities []Capability `json:"capabilities,omitempty"`
}

// Params carries the optional knobs of a job. Zero values mean
// "adapter default".
type Params struct {
	Language     string  `json:"language,omitempty"`
	Prompt       string  `json:"prompt,omitempty"`
	SystemPrompt string  `json:"system_prompt,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
	MaxTokens    int     `json:"max_tokens,omitempty"`
}

// JobRequest is an immutable description of one adapter invocation.
// InputRef is a media path or audio URL for transcription models and
// ignored for generation models, which read Params.Prompt.
type JobRequest struct {
	InputRef string `json:"input_ref"`
	ModelID  string `json:"model_id"`
	Params   Params `json:"params"`
}

// JobStatus is the terminal state of a single invocation.
type JobStatus string

const (
	StatusOK      JobStatus = "ok"
	StatusTimeout JobStatus = "timeout"
	StatusError   JobStatus = "error"
)

// JobResult is the normalized outcome of one adapter invocation,
// whatever shape the provider answered in.
type JobResult struct {
	ModelID     string    `json:"model_id"`
	OutputText  string    `json:"output_text"`
	LatencyMS   int64     `json:"latency_ms"`
	Status      JobStatus `json:"status"`
	ErrorDetail string    `json:"error_detail,omitempty"`
}

// OK reports whether the invocation produced usable output.
func (r *JobResult) OK() bool { return r != nil && r.Status == StatusOK }

// Adapter is the uniform contract every provider variant implements.
type Adapter interface {
	// Provider identifies the variant.
	Provider() Provider
	// Models lists the descriptors this adapter serves. Availability is
	// filled in by the registry, not the adapter.
	Models() []ModelDescriptor
	// Invoke executes one job and returns a result with Status == ok, or
	// an error for the dispatcher to classify. The context carries the
	// caller's timeout; implementations must cancel the underlying call
	// when it expires rather than abandon it.
	Invoke(ctx context.Context, req JobRequest) (*JobResult, error)
	// Health is a cheap liveness probe: credentials present, endpoint
	// reachable, binary on disk. It must return well within the context
	// deadline and never perform a full invocation.
	Health(ctx context.Context) bool
}
