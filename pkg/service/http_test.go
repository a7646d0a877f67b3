package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"modelbench/pkg/backend"
	"modelbench/pkg/benchmark"
	"modelbench/pkg/config"
	"modelbench/pkg/dispatch"
	"modelbench/pkg/judge"
	"modelbench/pkg/registry"
	"modelbench/pkg/store"
)

type mockAdapter struct {
	provider backend.Provider
	models   []backend.ModelDescriptor
	output   string
}

func (m *mockAdapter) Provider() backend.Provider        { return m.provider }
func (m *mockAdapter) Models() []backend.ModelDescriptor { return m.models }
func (m *mockAdapter) Health(ctx context.Context) bool   { return true }
func (m *mockAdapter) Invoke(ctx context.Context, req backend.JobRequest) (*backend.JobResult, error) {
	return &backend.JobResult{OutputText: m.output + " by " + req.ModelID}, nil
}

type staticScorer struct{}

func (staticScorer) Score(ctx context.Context, in judge.Input) (*judge.Verdict, error) {
	return &judge.Verdict{ScoreA: 8, ScoreB: 6, Reasoning: "A wins"}, nil
}
func (staticScorer) Model() string { return "judge-model" }

func newTestServer(t *testing.T) (*httptest.Server, store.Store) {
	t.Helper()

	stt := &mockAdapter{
		provider: backend.ProviderGoogleSTT,
		output:   "transcript",
		models: []backend.ModelDescriptor{
			{ID: "google-stt", Name: "Google STT", Kind: backend.KindTranscription, Provider: backend.ProviderGoogleSTT},
			{ID: "whisper-api", Name: "Whisper API", Kind: backend.KindTranscription, Provider: backend.ProviderGoogleSTT},
		},
	}

	reg := registry.New(time.Minute, time.Second)
	reg.Register(stt)
	disp := dispatch.New(reg, dispatch.Options{BackoffBase: time.Millisecond})
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}

	hub := NewHub()
	orch := benchmark.New(reg, disp, staticScorer{}, st, "gemini-pro",
		benchmark.WithNotifier(hub.Notify))

	cfg := &config.Config{
		JudgeModel:      "gemini-pro",
		PrimaryGenModel: "gemini-pro",
		NetworkPoolSize: 3,
		MaxRetries:      2,
	}
	svc := NewService(cfg, reg, orch, st, hub)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st
}

func TestSubmitTranscriptionBenchmark(t *testing.T) {
	srv, st := newTestServer(t)

	body := `{"input_reference":"/audio/a.flac","model_a":"google-stt","model_b":"whisper-api"}`
	resp, err := http.Post(srv.URL+"/api/benchmarks/transcription", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("got status %d, want 202", resp.StatusCode)
	}

	var run benchmark.Run
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&run); err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if run.ID == "" || run.Status != benchmark.StatusPending {
		t.Errorf("unexpected pending run: %+v", run)
	}

	// The run completes in the background; poll the store.
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec, err := st.Get(context.Background(), run.ID)
		if err == nil && store.TerminalStatus(rec.Status) {
			if rec.Status != "scored" || rec.Winner != "a" {
				t.Errorf("terminal record: %+v", rec)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run never reached a terminal status")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"same model twice", `{"input_reference":"/a.flac","model_a":"google-stt","model_b":"google-stt"}`, http.StatusBadRequest},
		{"missing input", `{"model_a":"google-stt","model_b":"whisper-api"}`, http.StatusBadRequest},
		{"unknown model", `{"input_reference":"/a.flac","model_a":"google-stt","model_b":"nope"}`, http.StatusConflict},
		{"garbage body", `{"model_a": `, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/benchmarks/transcription", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST failed: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("got status %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestGetBenchmarkNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/benchmarks/no-such-id")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("got status %d, want 404", resp.StatusCode)
	}
}

func TestListModels(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/models?kind=transcription")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}

	var body struct {
		Models []backend.ModelDescriptor `json:"models"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Models) != 2 {
		t.Fatalf("got %d models, want 2", len(body.Models))
	}
	for _, m := range body.Models {
		if !m.Available {
			t.Errorf("%s should be available", m.ID)
		}
	}

	resp, err = http.Get(srv.URL + "/api/models?kind=nonsense")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad kind: got status %d, want 400", resp.StatusCode)
	}
}

func TestRefreshModels(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/models:refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("got status %d", resp.StatusCode)
	}

	var body struct {
		Models []backend.ModelDescriptor `json:"models"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Models) != 2 {
		t.Errorf("got %d models after refresh, want 2", len(body.Models))
	}
}

func TestGetConfig(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/config")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var info ConfigInfo
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.JudgeModel != "gemini-pro" || info.MaxRetries != 2 {
		t.Errorf("unexpected config: %+v", info)
	}
	if len(info.PromptTypes) != 5 {
		t.Errorf("got %d prompt types, want 5", len(info.PromptTypes))
	}
}

func TestListPrompts(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/prompts")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Prompts []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"prompts"`
	}
	if err := sonic.ConfigDefault.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Prompts) != 5 {
		t.Errorf("got %d prompts, want 5", len(body.Prompts))
	}
}

// newEventsServer is newTestServer with the hub exposed and an
// optional wrapper around the store the HTTP layer reads from.
func newEventsServer(t *testing.T, wrap func(store.Store, *Hub) store.Store) (*httptest.Server, store.Store, *Hub) {
	t.Helper()

	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	hub := NewHub()
	svcStore := store.Store(st)
	if wrap != nil {
		svcStore = wrap(st, hub)
	}

	reg := registry.New(time.Minute, time.Second)
	disp := dispatch.New(reg, dispatch.Options{BackoffBase: time.Millisecond})
	orch := benchmark.New(reg, disp, staticScorer{}, st, "gemini-pro",
		benchmark.WithNotifier(hub.Notify))

	cfg := &config.Config{JudgeModel: "gemini-pro", PrimaryGenModel: "gemini-pro"}
	svc := NewService(cfg, reg, orch, svcStore, hub)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, st, hub
}

func dialEvents(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/benchmarks/" + id + "/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial events: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

type runEvent struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Winner string `json:"winner"`
}

func readEvent(t *testing.T, conn *websocket.Conn) runEvent {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var ev runEvent
	if err := sonic.Unmarshal(data, &ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	return ev
}

func saveRecord(t *testing.T, st store.Store, id, status string) {
	t.Helper()
	now := time.Now().UTC()
	err := st.Save(context.Background(), &store.Record{
		ID:            id,
		BenchmarkType: "transcription",
		ModelA:        "google-stt",
		ModelB:        "whisper-api",
		Status:        status,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		t.Fatalf("save record: %v", err)
	}
}

func TestBenchmarkEventsStream(t *testing.T) {
	srv, st, hub := newEventsServer(t, nil)
	saveRecord(t, st, "run-1", "pending")

	conn := dialEvents(t, srv, "run-1")
	if ev := readEvent(t, conn); ev.ID != "run-1" || ev.Status != "pending" {
		t.Fatalf("snapshot event = %+v", ev)
	}

	hub.Notify(&benchmark.Run{ID: "run-1", Status: benchmark.StatusScoring})
	if ev := readEvent(t, conn); ev.Status != "scoring" {
		t.Fatalf("got %+v, want scoring", ev)
	}

	hub.Notify(&benchmark.Run{ID: "run-1", Status: benchmark.StatusScored, Winner: "a"})
	if ev := readEvent(t, conn); ev.Status != "scored" || ev.Winner != "a" {
		t.Fatalf("got %+v, want scored winner a", ev)
	}

	// Terminal update ends the stream server-side.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("stream should close after the terminal update")
	}
}

func TestBenchmarkEventsTerminalSnapshot(t *testing.T) {
	srv, st, _ := newEventsServer(t, nil)
	saveRecord(t, st, "run-1", "scored")

	conn := dialEvents(t, srv, "run-1")
	if ev := readEvent(t, conn); ev.Status != "scored" {
		t.Fatalf("snapshot event = %+v", ev)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("stream should close after a terminal snapshot")
	}
}

func TestBenchmarkEventsUnknownRun(t *testing.T) {
	srv, _, _ := newEventsServer(t, nil)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/benchmarks/no-such-id/events"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial should fail for an unknown run")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("got response %+v, want 404", resp)
	}
}

// terminalOnGetStore fires a terminal update for the requested run just
// before the snapshot read returns, reproducing a run that finishes
// between the websocket attach and the store read.
type terminalOnGetStore struct {
	store.Store
	hub  *Hub
	once sync.Once
}

func (s *terminalOnGetStore) Get(ctx context.Context, id string) (*store.Record, error) {
	rec, err := s.Store.Get(ctx, id)
	s.once.Do(func() {
		s.hub.Notify(&benchmark.Run{ID: id, Status: benchmark.StatusScored, Winner: "a"})
	})
	return rec, err
}

func TestBenchmarkEventsRunFinishingDuringAttach(t *testing.T) {
	srv, st, _ := newEventsServer(t, func(st store.Store, hub *Hub) store.Store {
		return &terminalOnGetStore{Store: st, hub: hub}
	})
	saveRecord(t, st, "run-1", "pending")

	// The handler must already be subscribed when the terminal update
	// fires, or the stream would write the stale pending snapshot and
	// then wait forever.
	conn := dialEvents(t, srv, "run-1")
	if ev := readEvent(t, conn); ev.Status != "pending" {
		t.Fatalf("snapshot event = %+v", ev)
	}
	if ev := readEvent(t, conn); ev.Status != "scored" || ev.Winner != "a" {
		t.Fatalf("got %+v, want the terminal update", ev)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("stream should close after the terminal update")
	}
}

func TestHubSubscribe(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe("r1")
	defer cancel()

	hub.Notify(&benchmark.Run{ID: "r1", Status: benchmark.StatusPending})
	hub.Notify(&benchmark.Run{ID: "other", Status: benchmark.StatusPending})
	hub.Notify(&benchmark.Run{ID: "r1", Status: benchmark.StatusScored})

	got := <-ch
	if got.Status != benchmark.StatusPending {
		t.Fatalf("first update = %s, want pending", got.Status)
	}
	got = <-ch
	if got.Status != benchmark.StatusScored {
		t.Fatalf("second update = %s, want scored", got.Status)
	}
	if _, ok := <-ch; ok {
		t.Error("channel should close after the terminal update")
	}
}
