// Package store is the persistence boundary for benchmark records.
// The in-flight run belongs to the orchestrator; only the assembled
// record survives process restart.
package store

import (
	"context"
	"errors"
	"time"

	"modelbench/pkg/backend"
	"modelbench/pkg/judge"
)

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("benchmark record not found")

// Record mirrors a finished (or terminally failed) BenchmarkRun plus
// timestamps.
type Record struct {
	ID             string                      `json:"id"`
	BenchmarkType  string                      `json:"benchmark_type"`
	TestName       string                      `json:"test_name"`
	InputReference string                      `json:"input_reference"`
	PromptType     string                      `json:"prompt_type,omitempty"`
	ModelA         string                      `json:"model_a"`
	ModelB         string                      `json:"model_b"`
	ResultA        *backend.JobResult          `json:"result_a,omitempty"`
	ResultB        *backend.JobResult          `json:"result_b,omitempty"`
	ScoreA         *float64                    `json:"score_a,omitempty"`
	ScoreB         *float64                    `json:"score_b,omitempty"`
	Winner         string                      `json:"winner,omitempty"`
	JudgeModel     string                      `json:"judge_model,omitempty"`
	JudgeReasoning string                      `json:"judge_reasoning,omitempty"`
	Metrics        map[string]judge.MetricPair `json:"metrics,omitempty"`
	Status         string                      `json:"status"`
	Error          string                      `json:"error,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at"`
}

// TerminalStatus reports whether a record's status admits no further
// updates.
func TerminalStatus(status string) bool {
	switch status {
	case "scored", "partial", "failed":
		return true
	}
	return false
}

// Filter narrows List results.
type Filter struct {
	Type  string // benchmark_type, empty for all
	Page  int    // 1-based, default 1
	Limit int    // default 50
}

// Store persists benchmark records. Implementations must be safe for
// concurrent use.
type Store interface {
	Save(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	// List returns one page of records, newest first, plus the total
	// count matching the filter.
	List(ctx context.Context, f Filter) ([]*Record, int, error)
}
