// Package dispatch executes jobs against backend adapters under
// per-provider-class concurrency limits, with timeout and retry
// policy.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"golang.org/x/sync/semaphore"

	"modelbench/pkg/backend"
	"modelbench/pkg/registry"
)

// Options tunes the dispatcher. Zero values pick the defaults.
type Options struct {
	// NetworkPoolSize caps concurrent jobs against network-bound
	// providers. The local class is always capped at 1.
	NetworkPoolSize int64
	LocalTimeout    time.Duration
	NetworkTimeout  time.Duration
	// MaxRetries bounds retries of transient failures per job.
	MaxRetries int
	// BackoffBase is the first retry delay; tests shrink it.
	BackoffBase time.Duration
}

func (o Options) withDefaults() Options {
	if o.NetworkPoolSize <= 0 {
		o.NetworkPoolSize = 3
	}
	if o.LocalTimeout <= 0 {
		o.LocalTimeout = 10 * time.Minute
	}
	if o.NetworkTimeout <= 0 {
		o.NetworkTimeout = 2 * time.Minute
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	} else if o.MaxRetries == 0 {
		o.MaxRetries = 2
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = time.Second
	}
	return o
}

// Dispatcher owns the two concurrency gates shared by every benchmark
// run in the process. The local gate is a bounded semaphore of weight
// one: local inference contends for the same CPU/GPU, so jobs against
// it serialize while everything else proceeds.
type Dispatcher struct {
	reg     *registry.Registry
	opts    Options
	local   *semaphore.Weighted
	network *semaphore.Weighted
}

// New builds a dispatcher over the given registry.
func New(reg *registry.Registry, opts Options) *Dispatcher {
	opts = opts.withDefaults()
	return &Dispatcher{
		reg:     reg,
		opts:    opts,
		local:   semaphore.NewWeighted(1),
		network: semaphore.NewWeighted(opts.NetworkPoolSize),
	}
}

// Dispatch runs one job to completion and never returns an error:
// every failure mode is folded into the JobResult status so one side
// of a benchmark pair cannot abort the other.
func (d *Dispatcher) Dispatch(ctx context.Context, req backend.JobRequest) *backend.JobResult {
	adapter, desc, err := d.reg.Lookup(ctx, req.ModelID)
	if err != nil {
		return &backend.JobResult{
			ModelID:     req.ModelID,
			Status:      backend.StatusError,
			ErrorDetail: err.Error(),
		}
	}

	sem, timeout := d.gateFor(desc.Provider)
	if err := sem.Acquire(ctx, 1); err != nil {
		// Queuing was interrupted by caller cancellation; exhaustion
		// itself never fails a job.
		return failedResult(req.ModelID, err)
	}
	defer sem.Release(1)

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt <= d.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			if !d.sleepBackoff(ctx, attempt) {
				break
			}
			slog.Info("retrying job",
				slog.String("model", req.ModelID),
				slog.Int("attempt", attempt))
		}

		attemptCtx, cancel := context.WithTimeout(ctx, timeout)
		res, err := adapter.Invoke(attemptCtx, req)
		cancel()

		if err == nil {
			res.ModelID = req.ModelID
			res.Status = backend.StatusOK
			res.LatencyMS = time.Since(start).Milliseconds()
			return res
		}
		lastErr = err

		if ctx.Err() != nil {
			// Caller gave up; don't burn retries against a dead context.
			break
		}
		if !backend.IsTransient(err) {
			break
		}
	}

	res := failedResult(req.ModelID, lastErr)
	res.LatencyMS = time.Since(start).Milliseconds()
	slog.Warn("job failed",
		slog.String("model", req.ModelID),
		slog.String("status", string(res.Status)),
		slog.String("detail", res.ErrorDetail))
	return res
}

func (d *Dispatcher) gateFor(p backend.Provider) (*semaphore.Weighted, time.Duration) {
	if p.Class() == backend.ClassLocal {
		return d.local, d.opts.LocalTimeout
	}
	return d.network, d.opts.NetworkTimeout
}

// sleepBackoff waits base*2^(attempt-1) plus up to 25% jitter,
// returning false if the context died first.
func (d *Dispatcher) sleepBackoff(ctx context.Context, attempt int) bool {
	delay := d.opts.BackoffBase
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	delay += time.Duration(rand.Int63n(int64(delay/4) + 1))

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func failedResult(modelID string, err error) *backend.JobResult {
	if err == nil {
		err = errors.New("unknown failure")
	}
	status := backend.StatusError
	if errors.Is(err, context.DeadlineExceeded) {
		status = backend.StatusTimeout
	}
	return &backend.JobResult{
		ModelID:     modelID,
		Status:      status,
		ErrorDetail: backend.Detail(err),
	}
}
