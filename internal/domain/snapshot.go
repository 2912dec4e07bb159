package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status — моментальный снимок состояния воркера.
//
// Снимок копируется под мьютексом воркера и не ссылается на живое состояние.
type Status struct {
	Running      bool       `json:"running"`
	State        LoopState  `json:"state"`
	SessionID    *uuid.UUID `json:"session_id,omitempty"`
	MessagesSent int64      `json:"messages_sent"`
	ErrorsCount  int64      `json:"errors_count"`
	LastMessage  *string    `json:"last_message"`
	LastResponse *string    `json:"last_response"`
	LastError    *string    `json:"last_error"`
	StartedAt    *time.Time `json:"started_at"`
	LastSentAt   *time.Time `json:"last_sent_at"`

	UptimeSeconds   float64 `json:"uptime_seconds"`
	IntervalSeconds float64 `json:"interval_seconds"`
	JitterSeconds   float64 `json:"jitter"`
}

// Metrics — производные показатели нагрузки.
type Metrics struct {
	Running            bool       `json:"running"`
	UptimeSeconds      float64    `json:"uptime_seconds"`
	MessagesSent       int64      `json:"messages_sent"`
	ErrorsCount        int64      `json:"errors_count"`
	AvgIntervalSeconds *float64   `json:"avg_interval_seconds"`
	MessagesPerMinute  float64    `json:"messages_per_min"`
	LastSentAt         *time.Time `json:"last_sent_at"`
}

// ComputeMetrics считает производные показатели из счётчиков.
//
// avg_interval не определён (nil) без отправленных сообщений,
// messages_per_min равен 0 при нулевом uptime.
func ComputeMetrics(uptime time.Duration, sent int64) (avgInterval *float64, perMinute float64) {
	uptimeSec := uptime.Seconds()
	if sent > 0 {
		avg := uptimeSec / float64(sent)
		avgInterval = &avg
	}
	if uptimeSec > 0 {
		perMinute = float64(sent) / (uptimeSec / 60)
	}
	return avgInterval, perMinute
}
