package judge

import (
	"context"
	"errors"
	"strings"
	"testing"

	"modelbench/pkg/llm"
)

// scriptedClient replays canned replies, one per Generate call.
type scriptedClient struct {
	replies []string
	errs    []error
	calls   int
	lastReq llm.GenerateRequest
}

func (c *scriptedClient) Generate(ctx context.Context, req llm.GenerateRequest) (string, *llm.Usage, error) {
	i := c.calls
	c.calls++
	c.lastReq = req
	var err error
	if i < len(c.errs) {
		err = c.errs[i]
	}
	var reply string
	if i < len(c.replies) {
		reply = c.replies[i]
	}
	return reply, nil, err
}

func (c *scriptedClient) Health(ctx context.Context) bool { return true }

func input() Input {
	return Input{
		Kind:    KindTranscription,
		Task:    "Transcribe the given audio accurately and completely.",
		ModelA:  "google-stt",
		ModelB:  "whisper-api",
		OutputA: "hello world",
		OutputB: "hello word",
	}
}

func TestScorerParsesReply(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"SCORE_A: 9\nSCORE_B: 6\nREASONING: A matches the audio.",
	}}
	s := NewScorer(client, "gemini-pro")

	v, err := s.Score(context.Background(), input())
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if v.ScoreA != 9 || v.ScoreB != 6 {
		t.Errorf("got scores %v/%v, want 9/6", v.ScoreA, v.ScoreB)
	}
	if client.calls != 1 {
		t.Errorf("expected a single judge call, got %d", client.calls)
	}
	if client.lastReq.Model != "gemini-pro" {
		t.Errorf("judge called with model %q", client.lastReq.Model)
	}
	// Low temperature keeps the judge deterministic.
	if client.lastReq.Temperature != 0.1 {
		t.Errorf("judge temperature = %v, want 0.1", client.lastReq.Temperature)
	}
}

func TestScorerPromptContainsBothOutputs(t *testing.T) {
	client := &scriptedClient{replies: []string{"SCORE_A: 5\nSCORE_B: 5"}}
	s := NewScorer(client, "gpt-4")

	if _, err := s.Score(context.Background(), input()); err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	prompt := client.lastReq.Prompt
	for _, want := range []string{"hello world", "hello word", "SCORE_A", "SCORE_B", "REASONING"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("rubric prompt missing %q", want)
		}
	}
}

func TestScorerRetriesTransientFailure(t *testing.T) {
	client := &scriptedClient{
		replies: []string{"", "SCORE_A: 7\nSCORE_B: 8"},
		errs:    []error{errors.New("upstream hiccup"), nil},
	}
	s := NewScorer(client, "gemini-pro")

	v, err := s.Score(context.Background(), input())
	if err != nil {
		t.Fatalf("Score failed after retry: %v", err)
	}
	if client.calls != 2 {
		t.Errorf("expected 2 judge calls, got %d", client.calls)
	}
	if v.ScoreB != 8 {
		t.Errorf("got score B %v, want 8", v.ScoreB)
	}
}

func TestScorerExhaustsRetryBudget(t *testing.T) {
	client := &scriptedClient{replies: []string{
		"no scores here", "still prose", "and again",
	}}
	s := NewScorer(client, "gemini-pro", WithRetries(2))

	_, err := s.Score(context.Background(), input())
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if client.calls != 3 {
		t.Errorf("expected 3 judge calls, got %d", client.calls)
	}
}

func TestScorerStopsOnDeadContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &scriptedClient{}
	s := NewScorer(client, "gemini-pro")

	if _, err := s.Score(ctx, input()); err == nil {
		t.Fatal("expected error on cancelled context")
	}
	if client.calls != 0 {
		t.Errorf("judge should not be called after cancellation, got %d calls", client.calls)
	}
}

func TestCleanJSONMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"score_a": 8}`, `{"score_a": 8}`},
		{"fenced", "```json\n{\"score_a\": 8}\n```", `{"score_a": 8}`},
		{"fenced no lang", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"not json", "plain text", "plain text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanJSONMarkdown(tt.in); got != tt.want {
				t.Errorf("cleanJSONMarkdown(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
