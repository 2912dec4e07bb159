package domain

// LoopState — текущее состояние фонового цикла воркера.
//
// Жизненный цикл:
//
//	IDLE → ACQUIRING → CYCLE → PACING → CYCLE → ...
//	           ↑ ↘        ↘
//	           └─ BACKOFF ←┘  (ошибка acquire или send)
//	(любое) → STOPPING → IDLE
type LoopState string

const (
	// LoopStateIdle — воркер не запущен.
	LoopStateIdle LoopState = "IDLE"

	// LoopStateAcquiring — открывается сессия с чат-ботом.
	LoopStateAcquiring LoopState = "ACQUIRING"

	// LoopStateCycle — отправка сообщения и ожидание ответа.
	LoopStateCycle LoopState = "CYCLE"

	// LoopStatePacing — пауза между сообщениями.
	LoopStatePacing LoopState = "PACING"

	// LoopStateBackoff — пауза перед повторной попыткой после ошибки.
	LoopStateBackoff LoopState = "BACKOFF"

	// LoopStateStopping — получен сигнал остановки, воркер завершается.
	LoopStateStopping LoopState = "STOPPING"
)

// IsActive возвращает true, если фоновый цикл существует и не останавливается.
func (s LoopState) IsActive() bool {
	switch s {
	case LoopStateAcquiring, LoopStateCycle, LoopStatePacing, LoopStateBackoff:
		return true
	default:
		return false
	}
}

// String реализует fmt.Stringer.
func (s LoopState) String() string {
	return string(s)
}
