package worker

import (
	"context"
	"sync/atomic"
	"time"
)

// DryRunExecutor — executor без внешнего чат-бота.
//
// Ждёт Latency и отвечает "echo: " + prompt. Поддерживает отмену через context.
// Используется для локальной проверки темпа и метрик.
type DryRunExecutor struct {
	Latency time.Duration
}

// Acquire открывает сессию. Никогда не возвращает ошибку.
func (e *DryRunExecutor) Acquire(_ context.Context) (Session, error) {
	return &dryRunSession{latency: e.Latency}, nil
}

type dryRunSession struct {
	latency time.Duration
	closed  atomic.Bool
}

// Send имитирует задержку ответа.
func (s *dryRunSession) Send(ctx context.Context, prompt string) (Reply, error) {
	if s.closed.Load() {
		return Reply{}, ErrSessionClosed
	}

	if s.latency > 0 {
		// Context-aware ожидание
		select {
		case <-time.After(s.latency):
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}

	return TextReply("echo: " + prompt), nil
}

func (s *dryRunSession) Close() error {
	s.closed.Store(true)
	return nil
}
