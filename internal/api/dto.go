package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/chatsoak/internal/config"
	"github.com/shaiso/chatsoak/internal/domain"
)

// InfoResponse — ответ GET /.
type InfoResponse struct {
	Service   string        `json:"service"`
	Running   bool          `json:"running"`
	Secured   bool          `json:"secured"`
	Config    config.Config `json:"config"`
	Endpoints []string      `json:"endpoints"`
}

// ActionResponse — ответ на start/stop.
type ActionResponse struct {
	Message string        `json:"message"`
	Status  domain.Status `json:"status"`
}

// ConfigResponse — ответ с конфигурацией (без секретов).
type ConfigResponse struct {
	Config config.Config  `json:"config"`
	Pacing PacingResponse `json:"pacing"`
}

// PacingResponse — параметры темпа, которые сейчас использует воркер.
type PacingResponse struct {
	IntervalSeconds     float64 `json:"interval_seconds"`
	JitterSeconds       float64 `json:"jitter"`
	RestartDelaySeconds float64 `json:"restart_delay"`
	Backoff             string  `json:"restart_backoff"`
	MinDelaySeconds     float64 `json:"min_delay_seconds"`
}

// PacingFromDomain конвертирует domain.Pacing в PacingResponse.
func PacingFromDomain(p domain.Pacing) PacingResponse {
	return PacingResponse{
		IntervalSeconds:     p.Interval.Seconds(),
		JitterSeconds:       p.Jitter.Seconds(),
		RestartDelaySeconds: p.RestartDelay.Seconds(),
		Backoff:             string(p.Backoff),
		MinDelaySeconds:     p.MinDelay.Seconds(),
	}
}

// MessageResponse — запись журнала.
type MessageResponse struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
}

// MessageFromDomain конвертирует domain.Record в MessageResponse.
func MessageFromDomain(r domain.Record) MessageResponse {
	return MessageResponse{
		ID:        r.ID,
		SessionID: r.SessionID,
		Timestamp: r.Timestamp,
		Message:   r.Prompt,
		Response:  r.Reply,
	}
}
