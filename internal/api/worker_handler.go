package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/chatsoak/internal/worker"
)

// Info возвращает описание сервиса. Доступен без API-ключа.
// GET /
func (h *Handler) Info(w http.ResponseWriter, r *http.Request) {
	cfg := h.store.Get()
	Success(w, InfoResponse{
		Service:   "chatsoak-agent",
		Running:   h.worker.Status().Running,
		Secured:   cfg.APIKey != "",
		Config:    cfg.Public(),
		Endpoints: endpoints,
	})
}

// GetStatus возвращает снимок состояния воркера.
// GET /api/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	Success(w, h.worker.Status())
}

// GetMetrics возвращает производные показатели.
// GET /api/metrics
func (h *Handler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	Success(w, h.worker.Metrics())
}

// StartWorker запускает фоновый цикл.
// POST /api/start
func (h *Handler) StartWorker(w http.ResponseWriter, r *http.Request) {
	err := h.worker.Start()
	switch {
	case errors.Is(err, worker.ErrAlreadyRunning):
		Conflict(w, "worker already running")
		return
	case errors.Is(err, worker.ErrStopping):
		Conflict(w, "worker is stopping, try again later")
		return
	case err != nil:
		InternalError(w, h.logger, err)
		return
	}

	Success(w, ActionResponse{Message: "started", Status: h.worker.Status()})
}

// StopWorker останавливает фоновый цикл.
// POST /api/stop
//
// Таймаут остановки не ошибка для клиента: ресурсы уже освобождены.
func (h *Handler) StopWorker(w http.ResponseWriter, r *http.Request) {
	message := "stopped"
	if err := h.worker.Stop(); err != nil {
		if !errors.Is(err, worker.ErrStopTimeout) {
			InternalError(w, h.logger, err)
			return
		}
		message = "stopped (timed out waiting for loop)"
	}

	Success(w, ActionResponse{Message: message, Status: h.worker.Status()})
}
