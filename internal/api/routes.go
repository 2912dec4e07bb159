package api

import (
	"net/http"
)

// endpoints — список маршрутов для GET /.
var endpoints = []string{
	"GET /api/status",
	"GET /api/metrics",
	"POST /api/start",
	"POST /api/stop",
	"GET /api/config",
	"POST /api/config",
	"GET /api/messages",
}

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	public := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		APIKey(h.store.APIKey),
	)

	// Описание сервиса доступно без ключа
	mux.Handle("GET /{$}", public(http.HandlerFunc(h.Info)))

	// Worker
	mux.Handle("GET /api/status", chain(http.HandlerFunc(h.GetStatus)))
	mux.Handle("GET /api/metrics", chain(http.HandlerFunc(h.GetMetrics)))
	mux.Handle("POST /api/start", chain(http.HandlerFunc(h.StartWorker)))
	mux.Handle("POST /api/stop", chain(http.HandlerFunc(h.StopWorker)))

	// Config
	mux.Handle("GET /api/config", chain(http.HandlerFunc(h.GetConfig)))
	mux.Handle("POST /api/config", chain(http.HandlerFunc(h.UpdateConfig)))

	// History
	mux.Handle("GET /api/messages", chain(http.HandlerFunc(h.ListMessages)))
}
