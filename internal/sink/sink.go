package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/chatsoak/internal/domain"
)

// Sink — журнал отправленных сообщений и ответов.
type Sink interface {
	Append(ctx context.Context, rec domain.Record) error
}

// History — sink, из которого можно прочитать последние записи.
type History interface {
	Recent(ctx context.Context, limit int) ([]domain.Record, error)
}

// FailureRecorder учитывает ошибки записи по имени sink'а.
type FailureRecorder interface {
	SinkFailed(sink string)
}

// Named — sink с именем для логов и метрик.
type Named struct {
	Name string
	Sink Sink
}

// Fanout пишет каждую запись во все sink'и.
//
// Ошибка одного sink'а не мешает остальным; все ошибки объединяются.
type Fanout struct {
	sinks    []Named
	failures FailureRecorder
	logger   *slog.Logger
}

// NewFanout создаёт Fanout. failures может быть nil.
func NewFanout(logger *slog.Logger, failures FailureRecorder, sinks ...Named) *Fanout {
	return &Fanout{
		sinks:    sinks,
		failures: failures,
		logger:   logger,
	}
}

// Append записывает rec во все sink'и.
func (f *Fanout) Append(ctx context.Context, rec domain.Record) error {
	var errs []error

	for _, s := range f.sinks {
		if err := s.Sink.Append(ctx, rec); err != nil {
			if f.failures != nil {
				f.failures.SinkFailed(s.Name)
			}
			f.logger.Warn("sink append failed", "sink", s.Name, "record_id", rec.ID, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Names возвращает имена sink'ов в порядке записи.
func (f *Fanout) Names() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name
	}
	return names
}

// Len возвращает количество sink'ов.
func (f *Fanout) Len() int {
	return len(f.sinks)
}
