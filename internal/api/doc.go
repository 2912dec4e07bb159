// Package api содержит HTTP API управления воркером.
//
// Структура:
//   - handler.go          — Handler с DI (воркер, конфигурация, история)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery, api key)
//   - response.go         — унифицированные JSON-ответы
//   - dto.go              — Data Transfer Objects
//   - worker_handler.go   — /, /api/status, /api/metrics, /api/start, /api/stop
//   - config_handler.go   — /api/config
//   - messages_handler.go — /api/messages
//
// Если в конфигурации задан api_key, каждый запрос к /api/ должен передать
// его в заголовке X-API-KEY или параметре api_key. GET / открыт и сообщает
// secured.
package api
