package worker

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/chatsoak/internal/domain"
	"github.com/shaiso/chatsoak/internal/questions"
	"github.com/shaiso/chatsoak/internal/telemetry"
)

// Default configuration values.
const (
	defaultStopTimeout = 10 * time.Second
	sinkTimeout        = 5 * time.Second
	notifyTimeout      = 5 * time.Second
)

// PromptSource — источник вопросов. Prompts перечитывается каждый цикл
// и всегда возвращает непустой набор.
type PromptSource interface {
	Prompts() []string
}

// Sink — журнал отправленных сообщений и ответов.
type Sink interface {
	Append(ctx context.Context, rec domain.Record) error
}

// Recorder — метрики состояния цикла.
type Recorder interface {
	MessageSent(d time.Duration)
	ActionFailed()
	AcquireFailed()
	SetRunning(running bool)
}

// Notifier получает снимок состояния после Start и Stop.
type Notifier interface {
	WorkerStateChanged(ctx context.Context, st domain.Status) error
}

type nopRecorder struct{}

func (nopRecorder) MessageSent(time.Duration) {}
func (nopRecorder) ActionFailed()             {}
func (nopRecorder) AcquireFailed()            {}
func (nopRecorder) SetRunning(bool)           {}

// Worker — супервизор фонового цикла отправки сообщений.
//
// Worker:
//   - Запускает один фоновый цикл на Start, останавливает на Stop
//   - Открывает сессию через Executor и переоткрывает её после ошибок
//   - Отправляет случайный вопрос, выдерживает паузу interval ± jitter
//   - Ведёт счётчики и последние значения, доступные через Status/Metrics
//
// Все методы безопасны для вызова из любых горутин.
// Мьютекс защищает только состояние; Acquire, Send, Close и паузы
// выполняются без блокировки.
type Worker struct {
	executor Executor
	prompts  PromptSource
	picker   Picker
	sink     Sink
	recorder Recorder
	notifier Notifier
	clock    Clock
	rnd      *lockedRand

	promptEnv      map[string]string
	captureReplies bool
	stopTimeout    time.Duration
	logger         *slog.Logger

	mu      sync.Mutex
	pacing  domain.Pacing
	current *run
}

// Config — конфигурация Worker.
type Config struct {
	// Executor открывает сессии с чат-ботом (обязательно).
	Executor Executor

	// Prompts — источник вопросов (опционально; если nil — один вопрос по умолчанию).
	Prompts PromptSource

	// Picker — стратегия выбора вопроса (default: RandomPicker).
	Picker Picker

	// Sink — журнал ответов (опционально).
	Sink Sink

	// Recorder — метрики (опционально).
	Recorder Recorder

	// Notifier — уведомления о смене состояния (опционально).
	Notifier Notifier

	// Clock — источник времени (default: системное время).
	Clock Clock

	// Pacing — темп отправки.
	Pacing domain.Pacing

	// PromptEnv — переменные {{ .Env.NAME }} для шаблонов вопросов
	// (см. questions.PromptEnv). Копируется при создании Worker.
	PromptEnv map[string]string

	// CaptureReplies — сохранять ответы в LastResponse и Sink.
	CaptureReplies bool

	// StopTimeout — сколько Stop ждёт завершения цикла (default: 10s).
	StopTimeout time.Duration

	// Seed — seed для jitter и RandomPicker (0 — случайный).
	Seed uint64

	// Logger
	Logger *slog.Logger
}

// run — состояние одного запуска (от Start до Stop).
//
// Горутина цикла пишет только в свой run, поэтому цикл, переживший
// StopTimeout, не может испортить счётчики следующего запуска.
type run struct {
	id     uuid.UUID
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	// Поля ниже защищены Worker.mu.
	state        domain.LoopState
	stopping     bool
	session      Session
	messagesSent int64
	errorsCount  int64
	lastMessage  *string
	lastResponse *string
	lastError    *string
	startedAt    time.Time
	lastSentAt   *time.Time
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	prompts := cfg.Prompts
	if prompts == nil {
		prompts = questions.NewSource(questions.StaticLoader{}, "", logger)
	}

	rnd := newLockedRand(cfg.Seed)

	picker := cfg.Picker
	if picker == nil {
		picker = &RandomPicker{rnd: rnd}
	}

	recorder := cfg.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	stopTimeout := cfg.StopTimeout
	if stopTimeout <= 0 {
		stopTimeout = defaultStopTimeout
	}

	return &Worker{
		executor:       cfg.Executor,
		prompts:        prompts,
		picker:         picker,
		sink:           cfg.Sink,
		recorder:       recorder,
		notifier:       cfg.Notifier,
		clock:          clock,
		rnd:            rnd,
		promptEnv:      maps.Clone(cfg.PromptEnv),
		captureReplies: cfg.CaptureReplies,
		stopTimeout:    stopTimeout,
		logger:         logger,
		pacing:         cfg.Pacing.Normalize(),
	}
}

// Start запускает фоновый цикл.
//
// Возвращает ErrAlreadyRunning, если цикл уже запущен, и ErrStopping,
// если предыдущий цикл ещё останавливается. В обоих случаях состояние
// не меняется.
func (w *Worker) Start() error {
	w.mu.Lock()
	if r := w.current; r != nil {
		w.mu.Unlock()
		if r.stopping {
			return ErrStopping
		}
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()
	r := &run{
		id:        id,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		logger:    telemetry.WithSessionID(w.logger, id),
		state:     domain.LoopStateAcquiring,
		startedAt: w.clock.Now(),
	}
	w.current = r
	pacing := w.pacing

	go w.loop(r)
	w.mu.Unlock()

	r.logger.Info("worker started",
		"interval", pacing.Interval,
		"jitter", pacing.Jitter,
		"restart_delay", pacing.RestartDelay,
		"backoff", pacing.Backoff,
	)
	w.recorder.SetRunning(true)
	w.notify()

	return nil
}

// Stop останавливает фоновый цикл.
//
// Сигнал остановки выставляется сразу; затем Stop ждёт завершения цикла
// не дольше StopTimeout и в любом случае закрывает сессию.
// Возвращает ErrStopTimeout, если цикл не успел завершиться.
// Повторный вызов и вызов без запущенного цикла — no-op.
func (w *Worker) Stop() error {
	w.mu.Lock()
	r := w.current
	if r == nil {
		w.mu.Unlock()
		return nil
	}
	if !r.stopping {
		r.stopping = true
		r.state = domain.LoopStateStopping
		r.cancel()
	}
	w.mu.Unlock()

	r.logger.Info("stopping worker...")

	var stopErr error
	select {
	case <-r.done:
	case <-w.clock.After(w.stopTimeout):
		stopErr = ErrStopTimeout
	}

	w.releaseSession(r)

	w.mu.Lock()
	owner := w.current == r
	if owner {
		w.current = nil
	}
	sent, errs := r.messagesSent, r.errorsCount
	w.mu.Unlock()

	if !owner {
		return stopErr
	}

	if stopErr != nil {
		r.logger.Warn("worker stop timed out, session released",
			"timeout", w.stopTimeout,
			"messages_sent", sent,
			"errors_count", errs,
		)
	} else {
		r.logger.Info("worker stopped",
			"messages_sent", sent,
			"errors_count", errs,
		)
	}

	w.recorder.SetRunning(false)
	w.notify()

	return stopErr
}

// IsRunning проверяет, запущен ли цикл.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current != nil && !w.current.stopping
}

// UpdatePacing меняет темп отправки. Применяется со следующей паузы,
// перезапуск не нужен.
func (w *Worker) UpdatePacing(p domain.Pacing) {
	p = p.Normalize()

	w.mu.Lock()
	w.pacing = p
	w.mu.Unlock()

	w.logger.Info("pacing updated",
		"interval", p.Interval,
		"jitter", p.Jitter,
		"restart_delay", p.RestartDelay,
	)
}

// Pacing возвращает текущие настройки темпа.
func (w *Worker) Pacing() domain.Pacing {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pacing
}

// Status возвращает снимок состояния. Никогда не ждёт фоновый цикл.
func (w *Worker) Status() domain.Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.statusLocked(w.clock.Now())
}

// Metrics возвращает производные показатели нагрузки.
func (w *Worker) Metrics() domain.Metrics {
	w.mu.Lock()
	st := w.statusLocked(w.clock.Now())
	w.mu.Unlock()

	uptime := domain.Seconds(st.UptimeSeconds)
	avg, perMinute := domain.ComputeMetrics(uptime, st.MessagesSent)

	return domain.Metrics{
		Running:            st.Running,
		UptimeSeconds:      st.UptimeSeconds,
		MessagesSent:       st.MessagesSent,
		ErrorsCount:        st.ErrorsCount,
		AvgIntervalSeconds: avg,
		MessagesPerMinute:  perMinute,
		LastSentAt:         st.LastSentAt,
	}
}

// statusLocked собирает снимок. Вызывается под w.mu.
func (w *Worker) statusLocked(now time.Time) domain.Status {
	st := domain.Status{
		State:           domain.LoopStateIdle,
		IntervalSeconds: w.pacing.Interval.Seconds(),
		JitterSeconds:   w.pacing.Jitter.Seconds(),
	}

	r := w.current
	if r == nil {
		return st
	}

	id := r.id
	startedAt := r.startedAt

	st.Running = !r.stopping
	st.State = r.state
	st.SessionID = &id
	st.MessagesSent = r.messagesSent
	st.ErrorsCount = r.errorsCount
	st.LastMessage = cloneString(r.lastMessage)
	st.LastResponse = cloneString(r.lastResponse)
	st.LastError = cloneString(r.lastError)
	st.StartedAt = &startedAt
	st.LastSentAt = cloneTime(r.lastSentAt)

	if uptime := now.Sub(r.startedAt).Seconds(); uptime > 0 {
		st.UptimeSeconds = uptime
	}

	return st
}

// notify отправляет текущий снимок в Notifier. Ошибки только логируются.
func (w *Worker) notify() {
	if w.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()

	if err := w.notifier.WorkerStateChanged(ctx, w.Status()); err != nil {
		w.logger.Warn("failed to publish worker state", "error", err)
	}
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
