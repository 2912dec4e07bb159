package worker

import (
	"context"
	"time"
)

// Clock — источник времени и таймеров. В тестах подменяется.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time                         { return time.Now() }
func (systemClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// wait ждёт d с учётом ctx.
// Возвращает false, если ctx отменён до или во время ожидания.
//
// Единый примитив ожидания для паузы между сообщениями и для restart delay:
// отмена видна сразу, а не по окончании паузы.
func wait(ctx context.Context, clock Clock, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}

	select {
	case <-clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}
