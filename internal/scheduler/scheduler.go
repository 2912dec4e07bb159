package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/chatsoak/internal/worker"
)

// Controller — то, чем управляет планировщик (worker.Worker).
type Controller interface {
	Start() error
	Stop() error
}

// Action — действие окна.
type Action string

const (
	ActionStart Action = "start"
	ActionStop  Action = "stop"
)

// window — одно cron-правило и время его следующего срабатывания.
type window struct {
	action Action
	expr   string
	sched  cron.Schedule
	next   time.Time
}

// Scheduler открывает и закрывает окна нагрузки по cron.
//
// Tick вызывается из одной горутины, внутренней синхронизации нет.
type Scheduler struct {
	worker  Controller
	loc     *time.Location
	windows []*window
	logger  *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	Worker Controller

	// StartCron / StopCron — 5-полевые cron-выражения. Пустое — правила нет.
	StartCron string
	StopCron  string

	// Timezone — IANA-имя (default: UTC).
	Timezone string

	Logger *slog.Logger
}

// New создаёт Scheduler. Возвращает ошибку на невалидном cron или timezone.
func New(cfg Config) (*Scheduler, error) {
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Scheduler{
		worker: cfg.Worker,
		loc:    loc,
		logger: logger,
	}

	for _, w := range []struct {
		action Action
		expr   string
	}{
		{ActionStart, cfg.StartCron},
		{ActionStop, cfg.StopCron},
	} {
		if w.expr == "" {
			continue
		}
		sched, err := cronParser.Parse(w.expr)
		if err != nil {
			return nil, fmt.Errorf("parse %s cron %q: %w", w.action, w.expr, err)
		}
		s.windows = append(s.windows, &window{action: w.action, expr: w.expr, sched: sched})
	}

	return s, nil
}

// Next возвращает время следующего срабатывания action.
// Нулевое время, если правила нет или Tick ещё не вызывался.
func (s *Scheduler) Next(action Action) time.Time {
	for _, w := range s.windows {
		if w.action == action {
			return w.next
		}
	}
	return time.Time{}
}

// Tick выполняет один тик планировщика.
//
// 1. На первом тике вычисляет next для каждого правила (прошлое не догоняется)
// 2. Выполняет правила с next <= now в порядке next
// 3. Пересчитывает next от now
//
// Конфликты (уже запущен, уже остановлен) не ошибка.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var due []*window
	for _, w := range s.windows {
		if w.next.IsZero() {
			w.next = nextAfter(w.sched, s.loc, now)
			s.logger.Info("schedule armed",
				"action", w.action,
				"cron", w.expr,
				"next", w.next,
			)
			continue
		}
		if !now.Before(w.next) {
			due = append(due, w)
		}
	}

	// При одновременном срабатывании start выполняется раньше stop
	sort.SliceStable(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })

	var errs []error
	for _, w := range due {
		if err := s.fire(w.action); err != nil {
			errs = append(errs, err)
		}
		w.next = nextAfter(w.sched, s.loc, now)
		s.logger.Debug("schedule rearmed", "action", w.action, "next", w.next)
	}

	return errors.Join(errs...)
}

// Run вызывает Tick раз в interval до отмены ctx.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration) {
	tk := time.NewTicker(interval)
	defer tk.Stop()

	for {
		select {
		case t := <-tk.C:
			if err := s.Tick(ctx, t); err != nil && ctx.Err() == nil {
				s.logger.Error("scheduler tick failed", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) fire(action Action) error {
	var err error
	switch action {
	case ActionStart:
		err = s.worker.Start()
	case ActionStop:
		err = s.worker.Stop()
	}

	switch {
	case errors.Is(err, worker.ErrAlreadyRunning), errors.Is(err, worker.ErrStopping):
		s.logger.Info("scheduled action skipped", "action", action, "reason", err)
		return nil
	case errors.Is(err, worker.ErrStopTimeout):
		s.logger.Warn("scheduled stop timed out", "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("scheduled %s: %w", action, err)
	}

	s.logger.Info("scheduled action executed", "action", action)
	return nil
}
