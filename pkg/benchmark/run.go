// Package benchmark orchestrates two-model comparison runs: parallel
// dispatch, judge scoring, and assembly of the persisted record.
package benchmark

import (
	"time"

	"modelbench/pkg/backend"
	"modelbench/pkg/judge"
)

// Type distinguishes what is being benchmarked.
type Type string

const (
	TypeTranscription Type = "transcription"
	TypeLLM           Type = "llm_processing"
)

// Status is the run's state-machine position. Scored, partial and
// failed are terminal.
type Status string

const (
	StatusPending Status = "pending"
	StatusScoring Status = "scoring"
	StatusScored  Status = "scored"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusScored || s == StatusPartial || s == StatusFailed
}

// Request is a benchmark submission after boundary decoding. For
// transcription benchmarks InputReference is a media path or URL; for
// LLM benchmarks it is the source transcript text itself (long-term
// storage of transcriptions lives outside this core).
type Request struct {
	Type           Type   `json:"benchmark_type"`
	InputReference string `json:"input_reference"`
	ModelA         string `json:"model_a"`
	ModelB         string `json:"model_b"`
	PromptType     string `json:"prompt_type,omitempty"`
	CustomPrompt   string `json:"custom_prompt,omitempty"`
	Language       string `json:"language,omitempty"`
}

// Run is one in-flight benchmark. It is owned exclusively by the
// orchestrator until a terminal status; observers only ever see
// snapshot copies.
type Run struct {
	ID             string             `json:"id"`
	Type           Type               `json:"benchmark_type"`
	TestName       string             `json:"test_name"`
	InputReference string             `json:"input_reference"`
	PromptType     string             `json:"prompt_type,omitempty"`
	ModelA         string             `json:"model_a"`
	ModelB         string             `json:"model_b"`
	ResultA        *backend.JobResult `json:"result_a,omitempty"`
	ResultB        *backend.JobResult `json:"result_b,omitempty"`
	Verdict        *judge.Verdict     `json:"verdict,omitempty"`
	Winner         string             `json:"winner,omitempty"` // "a", "b" or "" for tie/unscored
	Status         Status             `json:"status"`
	Error          string             `json:"error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// snapshot returns a copy safe to hand to observers while the
// orchestrator keeps mutating the original.
func (r *Run) snapshot() *Run {
	cp := *r
	if r.ResultA != nil {
		ra := *r.ResultA
		cp.ResultA = &ra
	}
	if r.ResultB != nil {
		rb := *r.ResultB
		cp.ResultB = &rb
	}
	if r.Verdict != nil {
		v := *r.Verdict
		cp.Verdict = &v
	}
	return &cp
}
