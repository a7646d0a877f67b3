// Package service exposes the benchmark core over HTTP.
package service

import (
	"context"
	"fmt"
	"sort"

	"modelbench/pkg/backend"
	"modelbench/pkg/benchmark"
	"modelbench/pkg/config"
	"modelbench/pkg/prompts"
	"modelbench/pkg/registry"
	"modelbench/pkg/store"
)

type Service struct {
	cfg  *config.Config
	reg  *registry.Registry
	orch *benchmark.Orchestrator
	st   store.Store
	hub  *Hub
}

// NewService wires the HTTP surface over the core collaborators. hub
// receives run updates for the events endpoint; pass the same hub as
// the orchestrator's notifier.
func NewService(cfg *config.Config, reg *registry.Registry, orch *benchmark.Orchestrator, st store.Store, hub *Hub) *Service {
	return &Service{cfg: cfg, reg: reg, orch: orch, st: st, hub: hub}
}

// Submit starts a benchmark in the background and returns its pending
// state.
func (s *Service) Submit(ctx context.Context, req benchmark.Request) (*benchmark.Run, error) {
	return s.orch.Start(ctx, req)
}

// BenchmarkPage is the list envelope with paging metadata.
type BenchmarkPage struct {
	Benchmarks []*store.Record `json:"benchmarks"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
}

func (s *Service) ListBenchmarks(ctx context.Context, f store.Filter) (*BenchmarkPage, error) {
	recs, total, err := s.st.List(ctx, f)
	if err != nil {
		return nil, err
	}
	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}
	return &BenchmarkPage{Benchmarks: recs, Total: total, Page: page, Limit: limit}, nil
}

func (s *Service) GetBenchmark(ctx context.Context, id string) (*store.Record, error) {
	return s.st.Get(ctx, id)
}

// ListModels returns registered models, optionally filtered to one
// kind ("transcription" or "generation").
func (s *Service) ListModels(ctx context.Context, kind string) ([]backend.ModelDescriptor, error) {
	switch kind {
	case "", string(backend.KindTranscription), string(backend.KindGeneration):
	default:
		return nil, fmt.Errorf("unknown model kind %q", kind)
	}
	return s.reg.Models(ctx, backend.Kind(kind)), nil
}

func (s *Service) GetModel(ctx context.Context, id string) (backend.ModelDescriptor, error) {
	_, desc, err := s.reg.Lookup(ctx, id)
	return desc, err
}

// RefreshModels forces a probe of every provider, bypassing the TTL.
func (s *Service) RefreshModels(ctx context.Context) []backend.ModelDescriptor {
	s.reg.Refresh(ctx)
	return s.reg.Models(ctx, "")
}

// PromptInfo lists the built-in prompt templates.
func (s *Service) PromptInfo() []prompts.Info {
	return prompts.Types()
}

// ConfigInfo is the non-secret runtime configuration exposed to
// clients.
type ConfigInfo struct {
	JudgeModel      string   `json:"judge_model"`
	PrimaryGenModel string   `json:"primary_gen_model"`
	NetworkPoolSize int64    `json:"network_pool_size"`
	MaxRetries      int      `json:"max_retries"`
	PromptTypes     []string `json:"prompt_types"`
}

func (s *Service) ConfigInfo() ConfigInfo {
	infos := prompts.Types()
	names := make([]string, 0, len(infos))
	for _, p := range infos {
		names = append(names, p.ID)
	}
	sort.Strings(names)
	return ConfigInfo{
		JudgeModel:      s.cfg.JudgeModel,
		PrimaryGenModel: s.cfg.PrimaryGenModel,
		NetworkPoolSize: s.cfg.NetworkPoolSize,
		MaxRetries:      s.cfg.MaxRetries,
		PromptTypes:     names,
	}
}
