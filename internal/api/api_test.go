package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/chatsoak/internal/config"
	"github.com/shaiso/chatsoak/internal/domain"
	"github.com/shaiso/chatsoak/internal/worker"
)

// --- stubs ---

type stubWorker struct {
	mu       sync.Mutex
	running  bool
	startErr error
	stopErr  error
	pacing   domain.Pacing
	sent     int64
}

func (s *stubWorker) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	if s.running {
		return worker.ErrAlreadyRunning
	}
	s.running = true
	return nil
}

func (s *stubWorker) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.stopErr
}

func (s *stubWorker) Status() domain.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := domain.LoopStateIdle
	if s.running {
		state = domain.LoopStateCycle
	}
	return domain.Status{Running: s.running, State: state, MessagesSent: s.sent}
}

func (s *stubWorker) Metrics() domain.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.Metrics{Running: s.running, MessagesSent: s.sent}
}

func (s *stubWorker) Pacing() domain.Pacing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pacing
}

func (s *stubWorker) UpdatePacing(p domain.Pacing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pacing = p
}

type stubHistory struct {
	records []domain.Record
	err     error
	limit   int
}

func (h *stubHistory) Recent(_ context.Context, limit int) ([]domain.Record, error) {
	h.limit = limit
	if h.err != nil {
		return nil, h.err
	}
	return h.records, nil
}

type testEnv struct {
	server *httptest.Server
	worker *stubWorker
	store  *config.Store
}

func newTestEnv(t *testing.T, history *stubHistory, mutate func(*config.Config)) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := config.Default()
	cfg.APIKey = ""
	if mutate != nil {
		mutate(&cfg)
	}
	store := config.NewStore("", cfg, logger)
	w := &stubWorker{pacing: cfg.Pacing()}

	hcfg := Config{Worker: w, Store: store, Logger: logger}
	if history != nil {
		hcfg.History = history
	}

	mux := http.NewServeMux()
	NewHandler(hcfg).RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, worker: w, store: store}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decodeData[T any](t *testing.T, body []byte) T {
	t.Helper()
	var envelope struct {
		Data T `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return envelope.Data
}

func decodeError(t *testing.T, body []byte) ErrorDetail {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return resp.Error
}

// --- tests ---

func TestInfo(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) {
		c.Sinks.Postgres.URL = "postgres://secret"
	})

	resp, body := env.do(t, http.MethodGet, "/", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	info := decodeData[InfoResponse](t, body)
	if info.Service != "chatsoak-agent" || info.Running || info.Secured {
		t.Errorf("unexpected info: %+v", info)
	}
	if len(info.Endpoints) != len(endpoints) {
		t.Errorf("expected %d endpoints, got %d", len(endpoints), len(info.Endpoints))
	}
	if bytes.Contains(body, []byte("secret")) {
		t.Errorf("info must not leak secrets: %s", body)
	}
}

func TestInfo_PublicWhenSecured(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.APIKey = "s3cret" })

	resp, body := env.do(t, http.MethodGet, "/", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 without key, got %d", resp.StatusCode)
	}

	info := decodeData[InfoResponse](t, body)
	if !info.Secured {
		t.Error("expected secured=true when api_key is set")
	}
	if bytes.Contains(body, []byte("s3cret")) {
		t.Errorf("info must not leak the api key: %s", body)
	}
}

func TestUnknownPath(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, _ := env.do(t, http.MethodGet, "/nope", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
}

func TestStartStop(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, body := env.do(t, http.MethodPost, "/api/start", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", resp.StatusCode, body)
	}
	if got := decodeData[ActionResponse](t, body); !got.Status.Running || got.Message != "started" {
		t.Errorf("unexpected start response: %+v", got)
	}

	resp, body = env.do(t, http.MethodPost, "/api/start", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("second start: expected 409, got %d", resp.StatusCode)
	}
	if code := decodeError(t, body).Code; code != ErrCodeConflict {
		t.Errorf("expected CONFLICT, got %s", code)
	}

	_, body = env.do(t, http.MethodGet, "/api/status", nil, nil)
	if st := decodeData[domain.Status](t, body); !st.Running || st.State != domain.LoopStateCycle {
		t.Errorf("unexpected status: %+v", st)
	}

	resp, body = env.do(t, http.MethodPost, "/api/stop", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("stop: expected 200, got %d", resp.StatusCode)
	}
	if got := decodeData[ActionResponse](t, body); got.Status.Running {
		t.Errorf("worker must be stopped: %+v", got)
	}

	// Повторный stop тоже успешен
	resp, _ = env.do(t, http.MethodPost, "/api/stop", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("idempotent stop: expected 200, got %d", resp.StatusCode)
	}
}

func TestStart_WhileStopping(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.worker.startErr = worker.ErrStopping

	resp, _ := env.do(t, http.MethodPost, "/api/start", nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409, got %d", resp.StatusCode)
	}
}

func TestStart_InternalError(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.worker.startErr = errors.New("boom")

	resp, body := env.do(t, http.MethodPost, "/api/start", nil, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.StatusCode)
	}
	if bytes.Contains(body, []byte("boom")) {
		t.Errorf("internal error details must not leak: %s", body)
	}
}

func TestStop_TimeoutIsSuccess(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.worker.running = true
	env.worker.stopErr = worker.ErrStopTimeout

	resp, body := env.do(t, http.MethodPost, "/api/stop", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := decodeData[ActionResponse](t, body); got.Message == "stopped" {
		t.Errorf("timeout should be reported in message, got %q", got.Message)
	}
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	env.worker.sent = 7

	resp, body := env.do(t, http.MethodGet, "/api/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if m := decodeData[domain.Metrics](t, body); m.MessagesSent != 7 {
		t.Errorf("expected 7 messages, got %d", m.MessagesSent)
	}
}

func TestConfig_GetHidesSecrets(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) {
		c.APIKey = "k"
		c.Sinks.Redis.URL = "redis://:hunter2@localhost"
	})

	resp, body := env.do(t, http.MethodGet, "/api/config", nil, http.Header{APIKeyHeader: {"k"}})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if bytes.Contains(body, []byte("hunter2")) || bytes.Contains(body, []byte(`"api_key":"k"`)) {
		t.Errorf("config response leaks secrets: %s", body)
	}

	got := decodeData[ConfigResponse](t, body)
	if got.Pacing.IntervalSeconds != 3 {
		t.Errorf("expected interval 3, got %v", got.Pacing.IntervalSeconds)
	}
}

func TestConfig_UpdateAppliesPacing(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, body := env.do(t, http.MethodPost, "/api/config", map[string]any{
		"interval_seconds": 1.5,
		"jitter":           0.25,
		"unknown_key":      true,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}

	p := env.worker.Pacing()
	if p.Interval != 1500*time.Millisecond || p.Jitter != 250*time.Millisecond {
		t.Errorf("pacing not applied live: %+v", p)
	}
	if p.RestartDelay != 10*time.Second {
		t.Errorf("restart delay must be kept, got %s", p.RestartDelay)
	}
	if cfg := env.store.Get(); cfg.IntervalSeconds != 1.5 {
		t.Errorf("store not updated: %v", cfg.IntervalSeconds)
	}

	got := decodeData[ConfigResponse](t, body)
	if got.Pacing.JitterSeconds != 0.25 {
		t.Errorf("response must show new pacing, got %+v", got.Pacing)
	}
}

func TestConfig_UpdateWithoutPacingKeepsWorker(t *testing.T) {
	env := newTestEnv(t, nil, nil)
	before := env.worker.Pacing()

	resp, _ := env.do(t, http.MethodPost, "/api/config", map[string]any{"url": "https://example.org/chat"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if env.worker.Pacing() != before {
		t.Errorf("pacing must be unchanged")
	}
	if env.store.Get().URL != "https://example.org/chat" {
		t.Errorf("url not updated")
	}
}

func TestConfig_UpdateInvalid(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{"interval_seconds":`},
		{"negative interval", `{"interval_seconds": -1}`},
		{"wrong type", `{"jitter": "a lot"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(env.server.URL+"/api/config", "application/json", bytes.NewBufferString(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", resp.StatusCode)
			}
		})
	}

	if env.store.Get().IntervalSeconds != 3 {
		t.Errorf("invalid update must not change config")
	}
}

func TestAPIKey(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.APIKey = "s3cret" })

	tests := []struct {
		name   string
		path   string
		header http.Header
		want   int
	}{
		{"missing", "/api/status", nil, http.StatusUnauthorized},
		{"wrong header", "/api/status", http.Header{APIKeyHeader: {"nope"}}, http.StatusUnauthorized},
		{"header", "/api/status", http.Header{APIKeyHeader: {"s3cret"}}, http.StatusOK},
		{"query", "/api/status?api_key=s3cret", nil, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodGet, tt.path, nil, tt.header)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestAPIKey_RotatedViaConfig(t *testing.T) {
	env := newTestEnv(t, nil, func(c *config.Config) { c.APIKey = "old" })
	auth := http.Header{APIKeyHeader: {"old"}}

	resp, _ := env.do(t, http.MethodPost, "/api/config", map[string]any{"api_key": "new"}, auth)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	if resp, _ := env.do(t, http.MethodGet, "/api/status", nil, auth); resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("old key must be rejected, got %d", resp.StatusCode)
	}
	if resp, _ := env.do(t, http.MethodGet, "/api/status", nil, http.Header{APIKeyHeader: {"new"}}); resp.StatusCode != http.StatusOK {
		t.Errorf("new key must be accepted, got %d", resp.StatusCode)
	}
}

func TestMessages(t *testing.T) {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	history := &stubHistory{records: []domain.Record{
		domain.NewRecord(uuid.New(), "q2", "a2", at.Add(time.Second)),
		domain.NewRecord(uuid.New(), "q1", "a1", at),
	}}
	env := newTestEnv(t, history, nil)

	resp, body := env.do(t, http.MethodGet, "/api/messages?limit=5", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if history.limit != 5 {
		t.Errorf("expected limit 5, got %d", history.limit)
	}

	var list struct {
		Data  []MessageResponse `json:"data"`
		Total int               `json:"total"`
	}
	if err := json.Unmarshal(body, &list); err != nil {
		t.Fatal(err)
	}
	if list.Total != 2 || list.Data[0].Message != "q2" || list.Data[1].Response != "a1" {
		t.Errorf("unexpected messages: %+v", list)
	}

	// Лимит по умолчанию и потолок
	env.do(t, http.MethodGet, "/api/messages", nil, nil)
	if history.limit != defaultMessagesLimit {
		t.Errorf("expected default limit, got %d", history.limit)
	}
	env.do(t, http.MethodGet, "/api/messages?limit=100000", nil, nil)
	if history.limit != maxMessagesLimit {
		t.Errorf("expected capped limit, got %d", history.limit)
	}

	if resp, _ := env.do(t, http.MethodGet, "/api/messages?limit=abc", nil, nil); resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for bad limit, got %d", resp.StatusCode)
	}
}

func TestMessages_NoHistory(t *testing.T) {
	env := newTestEnv(t, nil, nil)

	resp, body := env.do(t, http.MethodGet, "/api/messages", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if code := decodeError(t, body).Code; code != ErrCodeNotFound {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestMessages_HistoryError(t *testing.T) {
	env := newTestEnv(t, &stubHistory{err: errors.New("db down")}, nil)

	resp, _ := env.do(t, http.MethodGet, "/api/messages", nil, nil)
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func TestRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}
