package service

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"modelbench/pkg/backend"
	"modelbench/pkg/benchmark"
	"modelbench/pkg/store"
)

func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	// Standard Methods
	mux.HandleFunc("POST /api/benchmarks/transcription", s.handleSubmitTranscription)
	mux.HandleFunc("POST /api/benchmarks/llm", s.handleSubmitLLM)
	mux.HandleFunc("GET /api/benchmarks", s.handleListBenchmarks)
	mux.HandleFunc("GET /api/benchmarks/{id}", s.handleGetBenchmark)
	mux.HandleFunc("GET /api/benchmarks/{id}/events", s.handleBenchmarkEvents)

	// Models
	mux.HandleFunc("GET /api/models", s.handleListModels)
	mux.HandleFunc("GET /api/models/{id}", s.handleGetModel)
	mux.HandleFunc("POST /api/models:refresh", s.handleRefreshModels)
	// Custom Methods - dispatched via POST /api/models/{id} because {id}:suffix is not supported by ServeMux
	mux.HandleFunc("POST /api/models/{id}", s.handleModelOps)

	// Config
	mux.HandleFunc("GET /api/prompts", s.handleListPrompts)
	mux.HandleFunc("GET /api/config", s.handleGetConfig)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := sonic.ConfigDefault.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "error", err)
	}
}

func (s *Service) submit(w http.ResponseWriter, r *http.Request, typ benchmark.Type) {
	var req benchmark.Request
	if err := sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	req.Type = typ

	run, err := s.Submit(r.Context(), req)
	switch {
	case errors.Is(err, benchmark.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, backend.ErrUnavailable):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

// handleSubmitTranscription handles POST /api/benchmarks/transcription
func (s *Service) handleSubmitTranscription(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, benchmark.TypeTranscription)
}

// handleSubmitLLM handles POST /api/benchmarks/llm
func (s *Service) handleSubmitLLM(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, benchmark.TypeLLM)
}

// handleListBenchmarks handles GET /api/benchmarks?type=&page=&limit=
func (s *Service) handleListBenchmarks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := store.Filter{Type: q.Get("type")}
	if v := q.Get("page"); v != "" {
		f.Page, _ = strconv.Atoi(v)
	}
	if v := q.Get("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}

	page, err := s.ListBenchmarks(r.Context(), f)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// handleGetBenchmark handles GET /api/benchmarks/{id}
func (s *Service) handleGetBenchmark(w http.ResponseWriter, r *http.Request) {
	rec, err := s.GetBenchmark(r.Context(), r.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Same-origin policy is left to the deployment; the API serves its
	// own UI.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleBenchmarkEvents handles GET /api/benchmarks/{id}/events. It
// streams run status snapshots over a websocket until the run reaches
// a terminal status or the client disconnects.
func (s *Service) handleBenchmarkEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Subscribe before reading the snapshot. A terminal update closes
	// the run's channels, so a subscriber joining after one would wait
	// forever. Records are persisted before they are emitted, so any
	// update that beats Subscribe shows up in the snapshot read below.
	updates, cancel := s.hub.Subscribe(id)
	defer cancel()

	rec, err := s.GetBenchmark(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Reader goroutine notices client-side close.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	// Current state first, then live updates.
	if err := s.writeEvent(conn, rec); err != nil {
		return
	}
	if store.TerminalStatus(rec.Status) {
		return
	}
	for {
		select {
		case run, ok := <-updates:
			if !ok {
				return
			}
			if err := s.writeEvent(conn, run); err != nil {
				return
			}
			if run.Status.Terminal() {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func (s *Service) writeEvent(conn *websocket.Conn, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// handleListModels handles GET /api/models?kind=
func (s *Service) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.ListModels(r.Context(), r.URL.Query().Get("kind"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleGetModel handles GET /api/models/{id}
func (s *Service) handleGetModel(w http.ResponseWriter, r *http.Request) {
	desc, err := s.GetModel(r.Context(), r.PathValue("id"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

// handleModelOps dispatches custom POST methods
func (s *Service) handleModelOps(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	id, op, _ := strings.Cut(id, ":")
	r.SetPathValue("id", id)

	switch op {
	case "refresh":
		s.handleRefreshModels(w, r)
	default:
		http.Error(w, "Unknown method", http.StatusNotFound)
	}
}

// handleRefreshModels handles POST /api/models:refresh
func (s *Service) handleRefreshModels(w http.ResponseWriter, r *http.Request) {
	models := s.RefreshModels(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

// handleListPrompts handles GET /api/prompts
func (s *Service) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"prompts": s.PromptInfo()})
}

// handleGetConfig handles GET /api/config
func (s *Service) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ConfigInfo())
}
