package domain

import (
	"time"

	"github.com/google/uuid"
)

// Record — одна запись журнала сообщений: отправленный вопрос и ответ бота.
type Record struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// SessionID — сессия воркера (новая на каждый Start).
	SessionID uuid.UUID `json:"session_id"`

	// Timestamp — время записи (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Prompt — отправленное сообщение.
	Prompt string `json:"message"`

	// Reply — захваченный ответ.
	Reply string `json:"response"`
}

// NewRecord создаёт запись с новым ID и текущим временем.
func NewRecord(sessionID uuid.UUID, prompt, reply string, at time.Time) Record {
	return Record{
		ID:        uuid.New(),
		SessionID: sessionID,
		Timestamp: at.UTC(),
		Prompt:    prompt,
		Reply:     reply,
	}
}
