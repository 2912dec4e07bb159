package worker

import "errors"

// Ошибки воркера.
var (
	// ErrAlreadyRunning — Start вызван, когда цикл уже запущен.
	ErrAlreadyRunning = errors.New("already running")

	// ErrStopping — Start вызван, пока предыдущий цикл ещё завершается.
	ErrStopping = errors.New("worker is stopping")

	// ErrStopTimeout — фоновый цикл не завершился за StopTimeout.
	// Ресурсы всё равно освобождены.
	ErrStopTimeout = errors.New("stop timed out")

	// ErrAcquireFailed — не удалось открыть сессию с чат-ботом.
	ErrAcquireFailed = errors.New("acquire failed")

	// ErrSendFailed — не удалось отправить сообщение.
	ErrSendFailed = errors.New("send failed")

	// ErrSessionClosed — сессия уже закрыта.
	ErrSessionClosed = errors.New("session closed")

	// ErrUnknownExecutor — нет executor'а для данного типа.
	ErrUnknownExecutor = errors.New("unknown executor kind")

	// ErrHTTPStatus — чат-бот ответил HTTP-кодом >= 400.
	ErrHTTPStatus = errors.New("unexpected http status")

	// ErrUnknownCommand — неизвестная команда управления.
	ErrUnknownCommand = errors.New("unknown control command")
)
