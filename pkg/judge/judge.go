package judge

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"

	"modelbench/pkg/llm"
)

// Kind selects the rubric.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindGeneration    Kind = "llm_processing"
)

// Input is a candidate pair plus the context the rubric needs. The
// caller has already fixed which side is the baseline.
type Input struct {
	Kind    Kind
	Task    string // prompt type, generation benchmarks only
	ModelA  string
	ModelB  string
	OutputA string
	OutputB string
}

// Scorer drives the arbitration model. When a structured client is
// configured the judge is asked for schema-constrained JSON first (the
// Gemini path); the labelled-text rubric is both the fallback and the
// only path for other judge models.
type Scorer struct {
	client     llm.Client
	model      string
	structured *genai.Client
	retries    int
}

// Option tunes a Scorer.
type Option func(*Scorer)

// WithStructuredClient enables the schema-constrained JSON path.
func WithStructuredClient(c *genai.Client) Option {
	return func(s *Scorer) { s.structured = c }
}

// WithRetries overrides the judge retry budget (default 2).
func WithRetries(n int) Option {
	return func(s *Scorer) { s.retries = n }
}

// NewScorer builds a scorer that judges with the given generation
// client and upstream model name.
func NewScorer(client llm.Client, model string, opts ...Option) *Scorer {
	s := &Scorer{client: client, model: model, retries: 2}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Model returns the judge model name, recorded on persisted results.
func (s *Scorer) Model() string { return s.model }

// Score sends the pair to the judge and parses its reply. Failures are
// retried up to the budget; the final error is either the provider
// failure or a ParseError for the caller to map onto partial status.
func (s *Scorer) Score(ctx context.Context, in Input) (*Verdict, error) {
	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if ctx.Err() != nil {
			break
		}
		v, err := s.scoreOnce(ctx, in)
		if err == nil {
			return v, nil
		}
		lastErr = err
		slog.Warn("judge attempt failed",
			slog.Int("attempt", attempt),
			slog.String("model", s.model),
			slog.Any("error", err))
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	return nil, fmt.Errorf("judge scoring failed: %w", lastErr)
}

func (s *Scorer) scoreOnce(ctx context.Context, in Input) (*Verdict, error) {
	prompt, err := buildRubricPrompt(in)
	if err != nil {
		return nil, err
	}

	if s.structured != nil {
		v, err := s.scoreStructured(ctx, prompt)
		if err == nil {
			return v, nil
		}
		slog.Debug("structured judge path failed, falling back to rubric text", slog.Any("error", err))
	}

	reply, _, err := s.client.Generate(ctx, llm.GenerateRequest{
		Model:        s.model,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, err
	}
	return Parse(reply)
}

// structuredVerdict is the schema the Gemini path constrains the judge
// to. Field names line up with Verdict's wire shape.
type structuredVerdict struct {
	ScoreA  float64 `json:"score_a"`
	ScoreB  float64 `json:"score_b"`
	Metrics struct {
		Accuracy     MetricPair `json:"accuracy"`
		Coherence    MetricPair `json:"coherence"`
		Completeness MetricPair `json:"completeness"`
		Style        MetricPair `json:"style"`
	} `json:"metrics"`
	Reasoning string `json:"reasoning"`
}

func (s *Scorer) scoreStructured(ctx context.Context, prompt string) (*Verdict, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   reflectSchema(reflect.TypeOf(&structuredVerdict{})),
	}
	contents := []*genai.Content{
		{Parts: []*genai.Part{genai.NewPartFromText(systemPrompt + "\n\n" + prompt)}},
	}

	r, err := s.structured.Models.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if usage := r.UsageMetadata; usage != nil {
		slog.Info("judge usage",
			slog.Int("prompt_tokens", int(usage.PromptTokenCount)),
			slog.Int("output_tokens", int(usage.CandidatesTokenCount)),
			slog.Int("total_tokens", int(usage.TotalTokenCount)))
	}

	reply := strings.TrimSpace(r.Text())
	var raw structuredVerdict
	if err := sonic.Unmarshal([]byte(cleanJSONMarkdown(reply)), &raw); err != nil {
		// A mangled structured reply may still carry the labelled rubric.
		return Parse(reply)
	}

	v := &Verdict{
		ScoreA:    raw.ScoreA,
		ScoreB:    raw.ScoreB,
		Reasoning: raw.Reasoning,
		Metrics: map[string]MetricPair{
			MetricAccuracy:     raw.Metrics.Accuracy,
			MetricCoherence:    raw.Metrics.Coherence,
			MetricCompleteness: raw.Metrics.Completeness,
			MetricStyle:        raw.Metrics.Style,
		},
	}
	if !inScale(v.ScoreA) || !inScale(v.ScoreB) {
		return nil, &ParseError{Reason: "score outside 0-10 scale", Reply: reply}
	}
	for name, pair := range v.Metrics {
		if !inScale(pair.A) || !inScale(pair.B) {
			delete(v.Metrics, name)
		}
	}
	return v, nil
}

// cleanJSONMarkdown strips a ``` fence around a JSON object if the
// model wrapped its reply in one.
func cleanJSONMarkdown(content string) string {
	content = strings.TrimSpace(content)
	if len(content) > 3 && content[:3] == "```" {
		start := strings.IndexByte(content, '{')
		end := strings.LastIndexByte(content, '}')
		if start >= 0 && end > start {
			return content[start : end+1]
		}
	}
	return content
}
