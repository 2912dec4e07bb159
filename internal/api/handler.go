package api

import (
	"log/slog"

	"github.com/shaiso/chatsoak/internal/config"
	"github.com/shaiso/chatsoak/internal/domain"
	"github.com/shaiso/chatsoak/internal/sink"
)

// Controller — управление воркером (worker.Worker).
type Controller interface {
	Start() error
	Stop() error
	Status() domain.Status
	Metrics() domain.Metrics
	Pacing() domain.Pacing
	UpdatePacing(p domain.Pacing)
}

// ConfigStore — текущая конфигурация (config.Store).
type ConfigStore interface {
	Get() config.Config
	APIKey() string
	Update(p config.Patch) (config.Config, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	worker  Controller
	store   ConfigStore
	history sink.History
	logger  *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Worker Controller
	Store  ConfigStore

	// History — источник для GET /api/messages. nil — история не настроена.
	History sink.History

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		worker:  cfg.Worker,
		store:   cfg.Store,
		history: cfg.History,
		logger:  cfg.Logger,
	}
}
