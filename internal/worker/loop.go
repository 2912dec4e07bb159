package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/chatsoak/internal/domain"
	"github.com/shaiso/chatsoak/internal/questions"
)

// loop — фоновый цикл одного запуска.
//
//	ACQUIRING → CYCLE → PACING → CYCLE → ...
//	    ↓ error      ↓ error
//	 BACKOFF      BACKOFF → ACQUIRING
//
// Выходит только по отмене r.ctx. Ошибки Acquire и Send никогда не фатальны.
func (w *Worker) loop(r *run) {
	defer close(r.done)
	defer w.releaseSession(r)

	failures := 0

	for {
		if r.ctx.Err() != nil {
			return
		}

		sess := w.liveSession(r)
		if sess == nil {
			w.setState(r, domain.LoopStateAcquiring)

			s, err := w.executor.Acquire(r.ctx)
			if err != nil {
				if r.ctx.Err() != nil {
					return
				}
				failures++
				w.recorder.AcquireFailed()
				w.recordError(r, classify(ErrAcquireFailed, err), false)
				if !w.backoff(r, failures) {
					return
				}
				continue
			}

			if !w.attachSession(r, s) {
				closeSession(r, s)
				return
			}
			sess = s
			r.logger.Info("session acquired")
		}

		prompt := w.nextPrompt(r)

		// После сигнала остановки новый цикл не начинается.
		if r.ctx.Err() != nil {
			return
		}

		w.setState(r, domain.LoopStateCycle)
		started := w.clock.Now()

		reply, err := sess.Send(r.ctx, prompt)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			failures++
			w.recorder.ActionFailed()
			w.recordError(r, classify(ErrSendFailed, err), true)
			w.discardSession(r, sess)
			if !w.backoff(r, failures) {
				return
			}
			continue
		}

		failures = 0
		now := w.clock.Now()
		w.recorder.MessageSent(now.Sub(started))
		w.recordSuccess(r, prompt, reply, now)

		if w.captureReplies && reply.Captured {
			w.appendRecord(r, domain.NewRecord(r.id, prompt, reply.Text, now))
		}

		w.setState(r, domain.LoopStatePacing)
		if !wait(r.ctx, w.clock, nextDelay(w.Pacing(), w.rnd.Float64)) {
			return
		}
	}
}

// nextPrompt перечитывает источник, выбирает вопрос и рендерит шаблон.
// Ошибка шаблона не прерывает цикл: отправляется исходный текст.
func (w *Worker) nextPrompt(r *run) string {
	prompts := w.prompts.Prompts()
	if len(prompts) == 0 {
		prompts = []string{questions.DefaultPrompt}
	}

	idx := w.picker.Pick(len(prompts))
	if idx < 0 || idx >= len(prompts) {
		idx = 0
	}
	prompt := prompts[idx]
	if !questions.IsTemplate(prompt) {
		return prompt
	}

	w.mu.Lock()
	seq := r.messagesSent + 1
	w.mu.Unlock()

	rendered, err := questions.Render(prompt, questions.NewContext(seq, r.id.String(), w.clock.Now(), w.promptEnv))
	if err != nil {
		r.logger.Warn("prompt template failed, sending raw text", "error", err)
		return prompt
	}
	return rendered
}

// backoff выдерживает restart delay. Возвращает false при остановке.
func (w *Worker) backoff(r *run, failures int) bool {
	w.setState(r, domain.LoopStateBackoff)

	delay := calculateBackoff(w.Pacing(), failures)
	r.logger.Debug("backing off", "delay", delay, "failures", failures)

	return wait(r.ctx, w.clock, delay)
}

// appendRecord пишет запись в Sink. Отмена цикла не прерывает запись,
// ошибки только логируются.
func (w *Worker) appendRecord(r *run, rec domain.Record) {
	if w.sink == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.ctx), sinkTimeout)
	defer cancel()

	if err := w.sink.Append(ctx, rec); err != nil {
		r.logger.Warn("failed to append record", "record_id", rec.ID, "error", err)
	}
}

func (w *Worker) setState(r *run, state domain.LoopState) {
	w.mu.Lock()
	if !r.stopping {
		r.state = state
	}
	w.mu.Unlock()
}

func (w *Worker) recordSuccess(r *run, prompt string, reply Reply, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()

	r.messagesSent++
	r.lastMessage = &prompt
	r.lastSentAt = &at

	if w.captureReplies {
		if reply.Captured {
			text := reply.Text
			r.lastResponse = &text
		} else {
			r.lastResponse = nil
		}
	}
}

// recordError сохраняет lastError. countAction — учитывать в errorsCount
// (только ошибки отправки, не ошибки открытия сессии).
func (w *Worker) recordError(r *run, err error, countAction bool) {
	msg := err.Error()

	w.mu.Lock()
	r.lastError = &msg
	if countAction {
		r.errorsCount++
	}
	w.mu.Unlock()

	r.logger.Warn("cycle failed", "error", err)
}

func (w *Worker) liveSession(r *run) Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return r.session
}

// attachSession сохраняет открытую сессию в run.
// Возвращает false, если запуск уже останавливается: сессию закрывает вызывающий.
func (w *Worker) attachSession(r *run, s Session) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if r.stopping {
		return false
	}
	r.session = s
	return true
}

// discardSession закрывает сессию после ошибки, если она всё ещё текущая.
func (w *Worker) discardSession(r *run, s Session) {
	w.mu.Lock()
	if r.session != s {
		w.mu.Unlock()
		return
	}
	r.session = nil
	w.mu.Unlock()

	closeSession(r, s)
}

// releaseSession закрывает текущую сессию. Идемпотентна: ссылка
// обнуляется под мьютексом, Close вызывается без блокировки.
func (w *Worker) releaseSession(r *run) {
	w.mu.Lock()
	s := r.session
	r.session = nil
	w.mu.Unlock()

	if s != nil {
		closeSession(r, s)
	}
}

// classify помечает err sentinel-ошибкой, если executor не сделал этого сам.
func classify(sentinel, err error) error {
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %v", sentinel, err)
}

func closeSession(r *run, s Session) {
	if err := s.Close(); err != nil {
		r.logger.Warn("failed to close session", "error", err)
	}
}
