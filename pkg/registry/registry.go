// Package registry tracks which models are currently usable and which
// adapter backs each one.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"modelbench/pkg/backend"
)

type entry struct {
	adapter    backend.Adapter
	descriptor backend.ModelDescriptor
}

// Registry enumerates registered adapters and caches their liveness.
// Probes are cheap (credential presence, reachability) and cached with
// a short TTL; lookups never block on a full adapter invocation. The
// availability snapshot is replaced wholesale on every probe, never
// partially updated.
type Registry struct {
	probeTTL     time.Duration
	probeTimeout time.Duration

	mu       sync.RWMutex
	adapters []backend.Adapter
	byModel  map[string]entry
	avail    map[backend.Provider]bool
	probedAt time.Time
}

// New creates an empty registry. probeTTL bounds how stale the cached
// availability may be; probeTimeout bounds each individual probe.
func New(probeTTL, probeTimeout time.Duration) *Registry {
	return &Registry{
		probeTTL:     probeTTL,
		probeTimeout: probeTimeout,
		byModel:      make(map[string]entry),
		avail:        make(map[backend.Provider]bool),
	}
}

// Register adds an adapter and indexes its models. Call during
// startup, before the registry is shared.
func (r *Registry) Register(a backend.Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters = append(r.adapters, a)
	for _, d := range a.Models() {
		r.byModel[d.ID] = entry{adapter: a, descriptor: d}
	}
}

// Refresh re-probes every adapter and atomically replaces the cached
// availability snapshot.
func (r *Registry) Refresh(ctx context.Context) {
	r.mu.RLock()
	adapters := make([]backend.Adapter, len(r.adapters))
	copy(adapters, r.adapters)
	r.mu.RUnlock()

	next := make(map[backend.Provider]bool, len(adapters))
	var (
		wg     sync.WaitGroup
		nextMu sync.Mutex
	)
	for _, a := range adapters {
		wg.Add(1)
		go func(a backend.Adapter) {
			defer wg.Done()
			probeCtx, cancel := context.WithTimeout(ctx, r.probeTimeout)
			defer cancel()
			ok := a.Health(probeCtx)
			nextMu.Lock()
			next[a.Provider()] = ok
			nextMu.Unlock()
			if !ok {
				slog.Debug("provider probe failed", slog.String("provider", string(a.Provider())))
			}
		}(a)
	}
	wg.Wait()

	r.mu.Lock()
	r.avail = next
	r.probedAt = time.Now()
	r.mu.Unlock()
}

func (r *Registry) ensureFresh(ctx context.Context) {
	r.mu.RLock()
	stale := time.Since(r.probedAt) > r.probeTTL
	r.mu.RUnlock()
	if stale {
		r.Refresh(ctx)
	}
}

// Models returns the descriptors for every registered model of the
// given kind (or all kinds when kind is empty), with availability from
// the cached probe.
func (r *Registry) Models(ctx context.Context, kind backend.Kind) []backend.ModelDescriptor {
	r.ensureFresh(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]backend.ModelDescriptor, 0, len(r.byModel))
	for _, e := range r.byModel {
		if kind != "" && e.descriptor.Kind != kind {
			continue
		}
		d := e.descriptor
		d.Available = r.avail[d.Provider]
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Lookup resolves a model id to its adapter and descriptor. Unknown or
// currently unusable models fail with backend.ErrUnavailable so the
// orchestrator can reject the request before any dispatch.
func (r *Registry) Lookup(ctx context.Context, modelID string) (backend.Adapter, backend.ModelDescriptor, error) {
	r.ensureFresh(ctx)

	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byModel[modelID]
	if !ok {
		return nil, backend.ModelDescriptor{}, fmt.Errorf("model %q not registered: %w", modelID, backend.ErrUnavailable)
	}
	if !r.avail[e.descriptor.Provider] {
		return nil, backend.ModelDescriptor{}, fmt.Errorf("model %q provider %s is not usable: %w", modelID, e.descriptor.Provider, backend.ErrUnavailable)
	}
	d := e.descriptor
	d.Available = true
	return e.adapter, d, nil
}
