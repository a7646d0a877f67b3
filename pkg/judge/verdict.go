// Package judge scores a candidate pair with an arbitration model and
// turns its reply into structured data.
package judge

import "fmt"

// Closed scoring scale. Anything outside the range is a parse failure,
// never clamped: a fabricated score is worse than no score.
const (
	ScaleMin = 0.0
	ScaleMax = 10.0
)

// Metric names are invariant across benchmark types.
const (
	MetricAccuracy     = "accuracy"
	MetricCoherence    = "coherence"
	MetricCompleteness = "completeness"
	MetricStyle        = "style"
)

// MetricNames lists the required sub-scores in rubric order.
var MetricNames = []string{MetricAccuracy, MetricCoherence, MetricCompleteness, MetricStyle}

// MetricPair is one sub-score for both sides of the pair.
type MetricPair struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// Verdict is the judge's structured output. Ordering and tie-breaking
// are not here: which side is the baseline, and who wins, is decided
// by the orchestrator.
type Verdict struct {
	ScoreA    float64               `json:"score_a"`
	ScoreB    float64               `json:"score_b"`
	Reasoning string                `json:"reasoning"`
	Metrics   map[string]MetricPair `json:"metrics,omitempty"`
}

func inScale(v float64) bool { return v >= ScaleMin && v <= ScaleMax }

// ParseError reports an arbitration reply that could not be turned
// into a verdict, even best-effort. Runs that hit it become partial,
// with both raw outputs preserved.
type ParseError struct {
	Reason string
	Reply  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("judge reply not parseable: %s", e.Reason)
}
