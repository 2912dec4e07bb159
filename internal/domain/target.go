package domain

import "time"

// Типы executor'ов.
const (
	TargetKindHTTP      = "http"
	TargetKindWebSocket = "websocket"
	TargetKindDryRun    = "dryrun"
)

// Target — описание чат-бота, которому воркер отправляет сообщения.
type Target struct {
	// Kind — тип executor'а: "http", "websocket", "dryrun".
	Kind string `json:"kind"`

	// URL — endpoint чата (http(s):// или ws(s)://).
	URL string `json:"url"`

	// WarmupURL — страница, загружаемая при открытии сессии (опционально).
	WarmupURL string `json:"warmup_url,omitempty"`

	// Method — HTTP-метод отправки (default: POST).
	Method string `json:"method,omitempty"`

	// Headers — заголовки каждого запроса / handshake.
	Headers map[string]string `json:"headers,omitempty"`

	// MessageField — поле JSON с текстом сообщения (default: "message").
	// Для websocket пустое значение означает отправку сырого текста.
	MessageField string `json:"message_field,omitempty"`

	// ReplyField — путь к ответу в JSON, через точку (default: "reply").
	ReplyField string `json:"reply_field,omitempty"`

	// Timeout — таймаут одного запроса.
	Timeout time.Duration `json:"timeout,omitempty"`

	// ReplyTimeout — сколько ждать ответа по websocket.
	ReplyTimeout time.Duration `json:"reply_timeout,omitempty"`

	// AcquireWait — пауза после открытия сессии (например, ручной логин).
	AcquireWait time.Duration `json:"acquire_wait,omitempty"`

	// Latency — имитация задержки ответа для dryrun.
	Latency time.Duration `json:"latency,omitempty"`
}
