package worker

import (
	"context"

	"github.com/shaiso/chatsoak/internal/domain"
	"github.com/shaiso/chatsoak/internal/mq"
)

// PacingHook вызывается после применения control.pacing (например, чтобы
// сохранить новые значения в конфиг).
type PacingHook func(p domain.Pacing)

// HandleControl — mq.Handler для очереди control.commands.
//
// Конфликты (start при запущенном цикле, stop timeout), неизвестные типы
// и некорректный payload подтверждаются и только логируются: повтор
// команды ничего не изменит.
func (w *Worker) HandleControl(onPacing PacingHook) mq.Handler {
	return func(ctx context.Context, d *mq.Delivery) error {
		msg := d.Message
		logger := w.logger.With("message_id", msg.ID, "command", msg.Type)

		switch msg.Type {
		case mq.MessageTypeControlStart:
			if err := w.Start(); err != nil {
				logger.Info("start command ignored", "reason", err)
			}

		case mq.MessageTypeControlStop:
			if err := w.Stop(); err != nil {
				logger.Warn("stop command finished with error", "error", err)
			}

		case mq.MessageTypeControlPacing:
			patch, err := mq.ParsePayload[domain.PacingPatch](&msg)
			if err != nil {
				logger.Warn("invalid pacing payload", "error", err)
				return nil
			}
			if patch.IsEmpty() {
				logger.Info("empty pacing patch ignored")
				return nil
			}
			p := patch.Apply(w.Pacing())
			w.UpdatePacing(p)
			if onPacing != nil {
				onPacing(p)
			}

		default:
			logger.Warn("control command ignored", "error", ErrUnknownCommand)
		}

		return nil
	}
}
