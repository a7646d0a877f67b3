package service

import (
	"sync"

	"modelbench/pkg/benchmark"
)

// Hub fans run status updates out to websocket subscribers keyed by
// run id. Slow subscribers drop intermediate updates instead of
// blocking the orchestrator.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan *benchmark.Run]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan *benchmark.Run]struct{})}
}

// Notify delivers a run snapshot to every subscriber of its id. After
// a terminal status all channels for that id are closed and removed.
func (h *Hub) Notify(run *benchmark.Run) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs[run.ID] {
		select {
		case ch <- run:
		default:
		}
		if run.Status.Terminal() {
			close(ch)
		}
	}
	if run.Status.Terminal() {
		delete(h.subs, run.ID)
	}
}

// Subscribe returns a channel of updates for one run and a cancel
// function. The channel is closed after the terminal update.
func (h *Hub) Subscribe(runID string) (<-chan *benchmark.Run, func()) {
	ch := make(chan *benchmark.Run, 8)
	h.mu.Lock()
	if h.subs[runID] == nil {
		h.subs[runID] = make(map[chan *benchmark.Run]struct{})
	}
	h.subs[runID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if set, ok := h.subs[runID]; ok {
			if _, live := set[ch]; live {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(h.subs, runID)
			}
		}
	}
	return ch, cancel
}
