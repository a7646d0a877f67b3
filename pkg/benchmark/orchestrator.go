package benchmark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"modelbench/pkg/backend"
	"modelbench/pkg/dispatch"
	"modelbench/pkg/judge"
	"modelbench/pkg/prompts"
	"modelbench/pkg/registry"
	"modelbench/pkg/store"
)

// TranscriptionBaseline is pinned as model A whenever it appears in a
// transcription comparison, so head-to-head records stay oriented the
// same way across runs.
const TranscriptionBaseline = "google-stt"

// ErrInvalidRequest marks submissions rejected before any work starts.
var ErrInvalidRequest = errors.New("invalid benchmark request")

// Scorer is the judge dependency. *judge.Scorer satisfies it.
type Scorer interface {
	Score(ctx context.Context, in judge.Input) (*judge.Verdict, error)
	Model() string
}

// Orchestrator drives one benchmark from submission to a terminal
// status: validate against the registry, dispatch both sides in
// parallel, score with the judge, assemble and persist the record.
type Orchestrator struct {
	reg        *registry.Registry
	disp       *dispatch.Dispatcher
	scorer     Scorer
	store      store.Store
	primaryGen string
	judgeWait  time.Duration
	notify     func(*Run)
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithNotifier registers a callback invoked with a run snapshot on
// every status transition. Callbacks must not block.
func WithNotifier(fn func(*Run)) Option {
	return func(o *Orchestrator) { o.notify = fn }
}

// WithJudgeTimeout bounds the whole scoring phase, retries included.
// Zero leaves scoring bounded only by the run context.
func WithJudgeTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.judgeWait = d }
}

func New(reg *registry.Registry, disp *dispatch.Dispatcher, scorer Scorer, st store.Store, primaryGenModel string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		reg:        reg,
		disp:       disp,
		scorer:     scorer,
		store:      st,
		primaryGen: primaryGenModel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start validates req, persists a pending run and executes it in the
// background, detached from the request context. The returned snapshot
// is the pending state; observe progress via the notifier or the store.
func (o *Orchestrator) Start(ctx context.Context, req Request) (*Run, error) {
	run, err := o.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	go o.execute(context.WithoutCancel(ctx), run, req)
	return run.snapshot(), nil
}

// Run executes req to completion and returns the terminal run. A
// non-nil error means the request was rejected and no run was created.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Run, error) {
	run, err := o.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}
	o.execute(ctx, run, req)
	return run, nil
}

func (o *Orchestrator) prepare(ctx context.Context, req *Request) (*Run, error) {
	if err := o.validate(ctx, req); err != nil {
		return nil, err
	}
	run := &Run{
		ID:             uuid.NewString(),
		Type:           req.Type,
		TestName:       testName(*req),
		InputReference: req.InputReference,
		PromptType:     req.PromptType,
		ModelA:         req.ModelA,
		ModelB:         req.ModelB,
		Status:         StatusPending,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	o.persist(run)
	o.emit(run)
	return run, nil
}

func (o *Orchestrator) execute(ctx context.Context, run *Run, req Request) {
	reqA, reqB, err := o.jobRequests(req)
	if err != nil {
		run.Error = err.Error()
		o.transition(run, StatusFailed)
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		run.ResultA = o.disp.Dispatch(ctx, reqA)
	}()
	go func() {
		defer wg.Done()
		run.ResultB = o.disp.Dispatch(ctx, reqB)
	}()
	wg.Wait()

	switch {
	case run.ResultA.OK() && run.ResultB.OK():
		o.transition(run, StatusScoring)
		o.score(ctx, run, req, reqA.Params.Prompt)
	case run.ResultA.OK() || run.ResultB.OK():
		run.Error = "one model failed to produce output"
		o.transition(run, StatusPartial)
	default:
		run.Error = fmt.Sprintf("both models failed: a=%s b=%s", run.ResultA.ErrorDetail, run.ResultB.ErrorDetail)
		o.transition(run, StatusFailed)
	}
}

func (o *Orchestrator) validate(ctx context.Context, req *Request) error {
	if req.Type != TypeTranscription && req.Type != TypeLLM {
		return fmt.Errorf("%w: unknown benchmark type %q", ErrInvalidRequest, req.Type)
	}
	if req.InputReference == "" {
		return fmt.Errorf("%w: input_reference is required", ErrInvalidRequest)
	}
	if req.ModelA == "" || req.ModelB == "" {
		return fmt.Errorf("%w: two model ids are required", ErrInvalidRequest)
	}
	if req.ModelA == req.ModelB {
		return fmt.Errorf("%w: model_a and model_b must differ", ErrInvalidRequest)
	}
	if req.Type == TypeLLM {
		if req.PromptType == "" {
			req.PromptType = "summary"
		}
		if !prompts.Known(req.PromptType) {
			return fmt.Errorf("%w: unknown prompt type %q", ErrInvalidRequest, req.PromptType)
		}
	}

	wantKind := backend.KindTranscription
	if req.Type == TypeLLM {
		wantKind = backend.KindGeneration
	}
	for _, id := range []string{req.ModelA, req.ModelB} {
		_, desc, err := o.reg.Lookup(ctx, id)
		if err != nil {
			return err
		}
		if desc.Kind != wantKind {
			return fmt.Errorf("%w: model %q is a %s model, not %s", ErrInvalidRequest, id, desc.Kind, wantKind)
		}
	}

	// Pin the reference model as side A when exactly one side is it.
	baseline := TranscriptionBaseline
	if req.Type == TypeLLM {
		baseline = o.primaryGen
	}
	if req.ModelB == baseline && req.ModelA != baseline {
		req.ModelA, req.ModelB = req.ModelB, req.ModelA
	}
	return nil
}

func (o *Orchestrator) jobRequests(req Request) (a, b backend.JobRequest, err error) {
	var params backend.Params
	switch req.Type {
	case TypeTranscription:
		params = backend.Params{Language: req.Language}
	case TypeLLM:
		system, user, perr := prompts.Build(req.PromptType, req.InputReference, req.CustomPrompt)
		if perr != nil {
			return a, b, perr
		}
		params = backend.Params{Prompt: user, SystemPrompt: system}
	}
	a = backend.JobRequest{InputRef: req.InputReference, ModelID: req.ModelA, Params: params}
	b = backend.JobRequest{InputRef: req.InputReference, ModelID: req.ModelB, Params: params}
	return a, b, nil
}

// score judges the two outputs. prompt is the rendered user prompt
// both models ran with, empty for transcription runs.
func (o *Orchestrator) score(ctx context.Context, run *Run, req Request, prompt string) {
	in := judge.Input{
		Kind:    judge.KindTranscription,
		Task:    "Transcribe the given audio accurately and completely.",
		ModelA:  run.ModelA,
		ModelB:  run.ModelB,
		OutputA: run.ResultA.OutputText,
		OutputB: run.ResultB.OutputText,
	}
	if req.Type == TypeLLM {
		in.Kind = judge.KindGeneration
		in.Task = prompt
	}

	if o.judgeWait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.judgeWait)
		defer cancel()
	}
	verdict, err := o.scorer.Score(ctx, in)
	if err != nil {
		// Both outputs exist but could not be scored. Never fabricate
		// scores; the record keeps the raw outputs.
		run.Error = fmt.Sprintf("judge scoring failed: %v", err)
		o.transition(run, StatusPartial)
		return
	}
	run.Verdict = verdict
	run.Winner = winner(verdict)
	o.transition(run, StatusScored)
}

// winner picks the side with the strictly greater overall score. Equal
// scores are a tie.
func winner(v *judge.Verdict) string {
	switch {
	case v.ScoreA > v.ScoreB:
		return "a"
	case v.ScoreB > v.ScoreA:
		return "b"
	default:
		return ""
	}
}

func (o *Orchestrator) transition(run *Run, to Status) {
	if run.Status.Terminal() {
		return
	}
	run.Status = to
	run.UpdatedAt = time.Now().UTC()
	o.persist(run)
	o.emit(run)
}

func (o *Orchestrator) persist(run *Run) {
	if err := o.store.Save(context.Background(), assemble(run, o.scorer.Model())); err != nil {
		slog.Warn("failed to persist benchmark record", "run", run.ID, "error", err)
	}
}

func (o *Orchestrator) emit(run *Run) {
	if o.notify != nil {
		o.notify(run.snapshot())
	}
}

func testName(req Request) string {
	if req.Type == TypeLLM {
		return fmt.Sprintf("LLM %s: %s vs %s", req.PromptType, req.ModelA, req.ModelB)
	}
	return fmt.Sprintf("Transcription %s: %s vs %s", filepath.Base(req.InputReference), req.ModelA, req.ModelB)
}

// assemble builds the persisted record from a run snapshot.
func assemble(run *Run, judgeModel string) *store.Record {
	rec := &store.Record{
		ID:             run.ID,
		BenchmarkType:  string(run.Type),
		TestName:       run.TestName,
		InputReference: run.InputReference,
		PromptType:     run.PromptType,
		ModelA:         run.ModelA,
		ModelB:         run.ModelB,
		ResultA:        run.ResultA,
		ResultB:        run.ResultB,
		Winner:         run.Winner,
		Status:         string(run.Status),
		Error:          run.Error,
		CreatedAt:      run.CreatedAt,
		UpdatedAt:      run.UpdatedAt,
	}
	if v := run.Verdict; v != nil {
		a, b := v.ScoreA, v.ScoreB
		rec.ScoreA = &a
		rec.ScoreB = &b
		rec.JudgeModel = judgeModel
		rec.JudgeReasoning = v.Reasoning
		rec.Metrics = v.Metrics
	}
	return rec
}
