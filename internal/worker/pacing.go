package worker

import (
	"time"

	"github.com/shaiso/chatsoak/internal/domain"
)

// nextDelay вычисляет паузу перед следующим сообщением:
//
//	delay = max(minDelay, interval + U(-jitter, +jitter))
//
// unit возвращает случайное число в [0, 1).
func nextDelay(p domain.Pacing, unit func() float64) time.Duration {
	p = p.Normalize()

	delay := p.Interval
	if p.Jitter > 0 {
		offset := (unit()*2 - 1) * float64(p.Jitter)
		delay += time.Duration(offset)
	}

	return max(delay, p.MinDelay)
}

// calculateBackoff вычисляет restart delay после failures подряд идущих ошибок.
//
// Стратегии:
//   - "fixed": delay = restartDelay
//   - "exponential": delay = restartDelay * 2^(failures-1), capped at maxRestartDelay
//
// Результат не меньше MinDelay, чтобы постоянно падающий executor
// не превращал цикл в busy loop.
func calculateBackoff(p domain.Pacing, failures int) time.Duration {
	p = p.Normalize()

	delay := p.RestartDelay
	if p.Backoff == domain.BackoffExponential {
		for i := 1; i < failures; i++ {
			delay *= 2
			if delay > p.MaxRestartDelay {
				delay = p.MaxRestartDelay
				break
			}
		}
		if delay > p.MaxRestartDelay {
			delay = p.MaxRestartDelay
		}
	}

	return max(delay, p.MinDelay)
}
