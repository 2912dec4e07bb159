package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/chatsoak/internal/domain"
	"github.com/shaiso/chatsoak/internal/questions"
)

// --- stubs ---

type sendFunc func(ctx context.Context, prompt string, call int) (Reply, error)

type stubExecutor struct {
	acquireErr error
	send       sendFunc

	acquires atomic.Int32
	closes   atomic.Int32
	calls    atomic.Int32
}

func (e *stubExecutor) Acquire(ctx context.Context) (Session, error) {
	e.acquires.Add(1)
	if e.acquireErr != nil {
		return nil, e.acquireErr
	}
	return &stubSession{exec: e}, nil
}

type stubSession struct {
	exec   *stubExecutor
	closed atomic.Bool
}

func (s *stubSession) Send(ctx context.Context, prompt string) (Reply, error) {
	call := int(s.exec.calls.Add(1))
	return s.exec.send(ctx, prompt, call)
}

func (s *stubSession) Close() error {
	if !s.closed.Swap(true) {
		s.exec.closes.Add(1)
	}
	return nil
}

// okUntil отвечает "ok: " + prompt на первые n вызовов, затем блокируется до отмены.
func okUntil(n int) sendFunc {
	return func(ctx context.Context, prompt string, call int) (Reply, error) {
		if call > n {
			<-ctx.Done()
			return Reply{}, ctx.Err()
		}
		return TextReply("ok: " + prompt), nil
	}
}

type memorySink struct {
	mu      sync.Mutex
	records []domain.Record
	err     error
}

func (s *memorySink) Append(_ context.Context, rec domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) snapshot() []domain.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Record(nil), s.records...)
}

type countingRecorder struct {
	sent, actionFailed, acquireFailed atomic.Int32
	running                           atomic.Bool
}

func (r *countingRecorder) MessageSent(time.Duration) { r.sent.Add(1) }
func (r *countingRecorder) ActionFailed()             { r.actionFailed.Add(1) }
func (r *countingRecorder) AcquireFailed()            { r.acquireFailed.Add(1) }
func (r *countingRecorder) SetRunning(v bool)         { r.running.Store(v) }

type recordingNotifier struct {
	mu     sync.Mutex
	states []domain.Status
}

func (n *recordingNotifier) WorkerStateChanged(_ context.Context, st domain.Status) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, st)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastPacing() domain.Pacing {
	return domain.Pacing{MinDelay: time.Millisecond, RestartDelay: time.Millisecond}
}

func newTestWorker(exec Executor, mutate func(*Config)) *Worker {
	cfg := Config{
		Executor:       exec,
		Prompts:        questions.NewSource(questions.StaticLoader{"a", "b", "c"}, "", testLogger()),
		Picker:         &RoundRobinPicker{},
		Pacing:         fastPacing(),
		CaptureReplies: true,
		StopTimeout:    time.Second,
		Logger:         testLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

func eventually(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s: %s", timeout, msg)
}

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

// --- Tests ---

func TestWorker_FreshSnapshot(t *testing.T) {
	w := newTestWorker(&stubExecutor{send: okUntil(0)}, nil)

	st := w.Status()
	if st.Running || st.State != domain.LoopStateIdle {
		t.Errorf("expected idle, got running=%v state=%s", st.Running, st.State)
	}
	if st.MessagesSent != 0 || st.ErrorsCount != 0 {
		t.Errorf("expected zero counters, got %d/%d", st.MessagesSent, st.ErrorsCount)
	}
	if st.LastMessage != nil || st.LastResponse != nil || st.LastError != nil {
		t.Error("expected nil last values")
	}
	if st.StartedAt != nil || st.LastSentAt != nil || st.SessionID != nil {
		t.Error("expected nil timestamps and session")
	}
	if st.UptimeSeconds != 0 {
		t.Errorf("expected zero uptime, got %f", st.UptimeSeconds)
	}

	m := w.Metrics()
	if m.AvgIntervalSeconds != nil {
		t.Errorf("expected nil avg interval, got %v", *m.AvgIntervalSeconds)
	}
	if m.MessagesPerMinute != 0 {
		t.Errorf("expected 0 messages/min, got %f", m.MessagesPerMinute)
	}
}

func TestWorker_StartConflict(t *testing.T) {
	w := newTestWorker(&stubExecutor{send: okUntil(0)}, nil)

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	first := w.Status().SessionID

	if err := w.Start(); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
	if got := w.Status().SessionID; got == nil || *got != *first {
		t.Error("conflicting start must not replace the session")
	}
}

func TestWorker_StopIdempotent(t *testing.T) {
	w := newTestWorker(&stubExecutor{send: okUntil(0)}, nil)

	if err := w.Stop(); err != nil {
		t.Fatalf("stop on idle worker: %v", err)
	}

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := w.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	if w.IsRunning() {
		t.Error("expected worker not running")
	}
}

func TestWorker_RoundRobinCycles(t *testing.T) {
	exec := &stubExecutor{send: okUntil(3)}
	sink := &memorySink{}
	rec := &countingRecorder{}
	w := newTestWorker(exec, func(c *Config) {
		c.Sink = sink
		c.Recorder = rec
	})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	eventually(t, 2*time.Second, func() bool {
		return w.Status().MessagesSent == 3 && len(sink.snapshot()) == 3
	}, "3 messages sent and logged")

	st := w.Status()
	if !st.Running {
		t.Error("expected running")
	}
	if deref(st.LastMessage) != "c" {
		t.Errorf("expected last message 'c', got %s", deref(st.LastMessage))
	}
	if deref(st.LastResponse) != "ok: c" {
		t.Errorf("expected last response 'ok: c', got %s", deref(st.LastResponse))
	}
	if st.ErrorsCount != 0 {
		t.Errorf("expected no errors, got %d", st.ErrorsCount)
	}
	if st.LastSentAt == nil || st.StartedAt == nil || st.SessionID == nil {
		t.Error("expected timestamps and session id to be set")
	}

	records := sink.snapshot()
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	for i, want := range []string{"a", "b", "c"} {
		if records[i].Prompt != want || records[i].Reply != "ok: "+want {
			t.Errorf("record %d: expected %s/ok: %s, got %s/%s", i, want, want, records[i].Prompt, records[i].Reply)
		}
		if records[i].SessionID != *st.SessionID {
			t.Errorf("record %d: wrong session id", i)
		}
	}

	if got := rec.sent.Load(); got != 3 {
		t.Errorf("expected recorder sent=3, got %d", got)
	}
	if !rec.running.Load() {
		t.Error("expected recorder running=true")
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if exec.acquires.Load() != 1 {
		t.Errorf("expected one session, got %d", exec.acquires.Load())
	}
	if exec.closes.Load() != 1 {
		t.Errorf("expected session closed once, got %d", exec.closes.Load())
	}
	if rec.running.Load() {
		t.Error("expected recorder running=false after stop")
	}

	after := w.Status()
	if after.Running || after.MessagesSent != 0 || after.LastMessage != nil {
		t.Errorf("expected reset snapshot after stop, got %+v", after)
	}
}

func TestWorker_AlwaysFailingSend(t *testing.T) {
	exec := &stubExecutor{send: func(context.Context, string, int) (Reply, error) {
		return Reply{}, errors.New("element not found")
	}}
	rec := &countingRecorder{}
	w := newTestWorker(exec, func(c *Config) { c.Recorder = rec })

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return w.Status().ErrorsCount >= 3 }, "3 errors counted")

	st := w.Status()
	if !st.Running {
		t.Error("failures must never stop the loop")
	}
	if st.MessagesSent != 0 {
		t.Errorf("expected 0 messages, got %d", st.MessagesSent)
	}
	if !strings.Contains(deref(st.LastError), "element not found") {
		t.Errorf("expected last error to contain cause, got %s", deref(st.LastError))
	}
	if exec.acquires.Load() < 3 {
		t.Errorf("expected session re-acquired after each failure, got %d acquires", exec.acquires.Load())
	}
	if rec.actionFailed.Load() < 3 {
		t.Errorf("expected recorder action failures, got %d", rec.actionFailed.Load())
	}
}

func TestWorker_AcquireFailureNotCounted(t *testing.T) {
	exec := &stubExecutor{acquireErr: errors.New("browser crashed"), send: okUntil(0)}
	rec := &countingRecorder{}
	w := newTestWorker(exec, func(c *Config) { c.Recorder = rec })

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return exec.acquires.Load() >= 3 }, "acquire retried")

	st := w.Status()
	if st.ErrorsCount != 0 {
		t.Errorf("acquire failures must not count as action errors, got %d", st.ErrorsCount)
	}
	if !strings.Contains(deref(st.LastError), "browser crashed") {
		t.Errorf("expected last error from acquire, got %s", deref(st.LastError))
	}
	if rec.acquireFailed.Load() < 3 {
		t.Errorf("expected recorder acquire failures, got %d", rec.acquireFailed.Load())
	}
}

func TestWorker_StopInterruptsPacing(t *testing.T) {
	exec := &stubExecutor{send: okUntil(100)}
	w := newTestWorker(exec, func(c *Config) {
		c.Pacing = domain.Pacing{Interval: time.Hour, MinDelay: time.Millisecond}
	})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, time.Second, func() bool { return w.Status().State == domain.LoopStatePacing }, "pacing state")

	start := time.Now()
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("stop took %s, expected well under pacing interval", elapsed)
	}
	if exec.calls.Load() != 1 {
		t.Errorf("expected a single send, got %d", exec.calls.Load())
	}
}

func TestWorker_StopInterruptsBackoff(t *testing.T) {
	exec := &stubExecutor{acquireErr: errors.New("down"), send: okUntil(0)}
	w := newTestWorker(exec, func(c *Config) {
		c.Pacing = domain.Pacing{RestartDelay: time.Hour, MinDelay: time.Millisecond}
	})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, time.Second, func() bool { return w.Status().State == domain.LoopStateBackoff }, "backoff state")

	start := time.Now()
	if err := w.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("stop took %s, expected well under restart delay", elapsed)
	}
}

func TestWorker_StopTimeoutOrphansRun(t *testing.T) {
	release := make(chan struct{})
	exec := &stubExecutor{send: func(ctx context.Context, prompt string, call int) (Reply, error) {
		if call == 1 {
			// Игнорирует отмену: имитирует зависший вызов
			<-release
			return TextReply("late"), nil
		}
		<-ctx.Done()
		return Reply{}, ctx.Err()
	}}
	w := newTestWorker(exec, func(c *Config) { c.StopTimeout = 50 * time.Millisecond })

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, time.Second, func() bool { return exec.calls.Load() == 1 }, "first send in flight")

	w.mu.Lock()
	orphan := w.current
	w.mu.Unlock()

	if err := w.Stop(); !errors.Is(err, ErrStopTimeout) {
		t.Fatalf("expected ErrStopTimeout, got %v", err)
	}
	if exec.closes.Load() != 1 {
		t.Errorf("session must be released even on timeout, got %d closes", exec.closes.Load())
	}

	if err := w.Start(); err != nil {
		t.Fatalf("restart after timeout: %v", err)
	}
	defer w.Stop()

	close(release)

	select {
	case <-orphan.done:
	case <-time.After(time.Second):
		t.Fatal("orphaned loop did not exit")
	}

	w.mu.Lock()
	orphanSent := orphan.messagesSent
	current := w.current
	w.mu.Unlock()

	if orphanSent != 1 {
		t.Errorf("late reply should land in the orphaned run, got %d", orphanSent)
	}
	if current == orphan {
		t.Fatal("restart must create a new run")
	}
	if st := w.Status(); st.MessagesSent != 0 || deref(st.LastResponse) == "late" {
		t.Errorf("orphaned loop leaked into the new run: %+v", st)
	}
}

func TestWorker_StartWhileStopping(t *testing.T) {
	release := make(chan struct{})
	exec := &stubExecutor{send: func(context.Context, string, int) (Reply, error) {
		<-release
		return Reply{}, nil
	}}
	w := newTestWorker(exec, func(c *Config) { c.StopTimeout = 500 * time.Millisecond })

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, time.Second, func() bool { return exec.calls.Load() == 1 }, "send in flight")

	stopped := make(chan error, 1)
	go func() { stopped <- w.Stop() }()

	eventually(t, time.Second, func() bool { return w.Status().State == domain.LoopStateStopping }, "stopping state")

	if st := w.Status(); st.Running {
		t.Error("expected running=false while stopping")
	}
	if err := w.Start(); !errors.Is(err, ErrStopping) {
		t.Errorf("expected ErrStopping, got %v", err)
	}

	close(release)
	if err := <-stopped; err != nil {
		t.Errorf("stop: %v", err)
	}
}

func TestWorker_RestartResetsCounters(t *testing.T) {
	exec := &stubExecutor{send: func(context.Context, string, int) (Reply, error) {
		return TextReply("ok"), nil
	}}
	w := newTestWorker(exec, func(c *Config) {
		c.Pacing = domain.Pacing{Interval: time.Hour, MinDelay: time.Millisecond}
	})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	eventually(t, 2*time.Second, func() bool { return w.Status().MessagesSent == 1 }, "first message sent")
	first := *w.Status().SessionID
	w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer w.Stop()

	st := w.Status()
	if st.SessionID == nil || *st.SessionID == first {
		t.Error("expected new session id on restart")
	}
	if st.MessagesSent > 1 {
		t.Errorf("expected counters reset on restart, got %d", st.MessagesSent)
	}
}

func TestWorker_NoReplyCaptured(t *testing.T) {
	exec := &stubExecutor{send: func(ctx context.Context, _ string, call int) (Reply, error) {
		switch call {
		case 1:
			return TextReply("first"), nil
		case 2:
			return Reply{}, nil
		}
		<-ctx.Done()
		return Reply{}, ctx.Err()
	}}
	sink := &memorySink{}
	w := newTestWorker(exec, func(c *Config) { c.Sink = sink })

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return w.Status().MessagesSent == 2 }, "two cycles")
	eventually(t, time.Second, func() bool { return exec.calls.Load() == 3 }, "third send in flight")

	st := w.Status()
	if st.LastResponse != nil {
		t.Errorf("expected no response for the last cycle, got %s", *st.LastResponse)
	}
	if st.ErrorsCount != 0 {
		t.Errorf("missing reply is not an error, got %d", st.ErrorsCount)
	}
	if got := len(sink.snapshot()); got != 1 {
		t.Errorf("expected only the captured reply in sink, got %d", got)
	}
}

func TestWorker_CaptureDisabled(t *testing.T) {
	sink := &memorySink{}
	w := newTestWorker(&stubExecutor{send: okUntil(2)}, func(c *Config) {
		c.Sink = sink
		c.CaptureReplies = false
	})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return w.Status().MessagesSent == 2 }, "two cycles")

	if st := w.Status(); st.LastResponse != nil {
		t.Errorf("expected nil response with capture disabled, got %s", *st.LastResponse)
	}
	if got := len(sink.snapshot()); got != 0 {
		t.Errorf("expected empty sink, got %d records", got)
	}
}

func TestWorker_SinkFailureDoesNotAbort(t *testing.T) {
	sink := &memorySink{err: errors.New("disk full")}
	w := newTestWorker(&stubExecutor{send: okUntil(3)}, func(c *Config) { c.Sink = sink })

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return w.Status().MessagesSent == 3 }, "cycles continue")

	if st := w.Status(); st.ErrorsCount != 0 || st.LastError != nil {
		t.Errorf("sink failure must not count as action error: %+v", st)
	}
}

func TestWorker_PromptTemplate(t *testing.T) {
	w := newTestWorker(&stubExecutor{send: okUntil(2)}, func(c *Config) {
		c.Prompts = questions.NewSource(questions.StaticLoader{"n={{.Seq}}"}, "", testLogger())
	})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return w.Status().MessagesSent == 2 }, "two cycles")

	if got := deref(w.Status().LastMessage); got != "n=2" {
		t.Errorf("expected rendered prompt 'n=2', got %s", got)
	}
}

func TestWorker_MetricsWhileRunning(t *testing.T) {
	w := newTestWorker(&stubExecutor{send: okUntil(2)}, nil)

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return w.Status().MessagesSent == 2 }, "two cycles")
	time.Sleep(5 * time.Millisecond)

	m := w.Metrics()
	if !m.Running || m.MessagesSent != 2 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if m.UptimeSeconds <= 0 {
		t.Errorf("expected positive uptime, got %f", m.UptimeSeconds)
	}
	if m.AvgIntervalSeconds == nil || *m.AvgIntervalSeconds <= 0 {
		t.Errorf("expected positive avg interval, got %v", m.AvgIntervalSeconds)
	}
	if m.MessagesPerMinute <= 0 {
		t.Errorf("expected positive rate, got %f", m.MessagesPerMinute)
	}
	if m.LastSentAt == nil {
		t.Error("expected last sent at")
	}
}

func TestWorker_UpdatePacing(t *testing.T) {
	w := newTestWorker(&stubExecutor{send: okUntil(0)}, nil)

	w.UpdatePacing(domain.Pacing{Interval: 30 * time.Second, Jitter: 5 * time.Second})

	st := w.Status()
	if st.IntervalSeconds != 30 || st.JitterSeconds != 5 {
		t.Errorf("expected 30/5, got %f/%f", st.IntervalSeconds, st.JitterSeconds)
	}
	if got := w.Pacing().MinDelay; got != domain.DefaultMinDelay {
		t.Errorf("expected normalized min delay, got %s", got)
	}
}

func TestWorker_NotifiesStateChanges(t *testing.T) {
	n := &recordingNotifier{}
	w := newTestWorker(&stubExecutor{send: okUntil(0)}, func(c *Config) { c.Notifier = n })

	w.Start()
	w.Stop()

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.states) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(n.states))
	}
	if !n.states[0].Running || n.states[1].Running {
		t.Errorf("expected running then stopped, got %v then %v", n.states[0].Running, n.states[1].Running)
	}
}

func TestWorker_ConcurrentAccess(t *testing.T) {
	w := newTestWorker(&stubExecutor{send: func(context.Context, string, int) (Reply, error) {
		return TextReply("ok"), nil
	}}, nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 20 {
				switch (i + j) % 4 {
				case 0:
					w.Start()
				case 1:
					w.Stop()
				case 2:
					w.Status()
				default:
					w.Metrics()
				}
			}
		}()
	}
	wg.Wait()

	w.Stop()
	if w.IsRunning() {
		t.Error("expected stopped worker")
	}
}

func TestWorker_PromptEnvAllowlist(t *testing.T) {
	t.Setenv("API_KEY", "s3cr3t-admin-key")
	t.Setenv("DB_URL", "postgres://u:pw@db/x")
	t.Setenv("CHATSOAK_PROMPT_COURSE", "calc")

	w := newTestWorker(&stubExecutor{send: okUntil(1)}, func(c *Config) {
		c.Prompts = questions.NewSource(questions.StaticLoader{"hi {{ .Env.API_KEY }}{{ .Env.DB_URL }}|{{ .Env.COURSE }}"}, "", testLogger())
		c.PromptEnv = questions.PromptEnv(os.Environ(), nil)
	})

	if err := w.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer w.Stop()

	eventually(t, 2*time.Second, func() bool { return w.Status().MessagesSent == 1 }, "one cycle")

	if got := deref(w.Status().LastMessage); got != "hi |calc" {
		t.Errorf("process secrets must not reach the prompt, got %q", got)
	}
}
