package config

import (
	"log/slog"
	"sync"

	"github.com/shaiso/chatsoak/internal/domain"
)

// Patch — частичное обновление из POST /api/config.
// nil-поля не меняются, неизвестные ключи игнорируются.
type Patch struct {
	URL              *string    `json:"url,omitempty"`
	QuestionsFile    *string    `json:"questions_file,omitempty"`
	IntervalSeconds  *float64   `json:"interval_seconds,omitempty"`
	Jitter           *float64   `json:"jitter,omitempty"`
	RestartDelay     *float64   `json:"restart_delay,omitempty"`
	CaptureResponses *bool      `json:"capture_responses,omitempty"`
	APIKey           *string    `json:"api_key,omitempty"`
	Autostart        *bool      `json:"autostart,omitempty"`
	TLS              *TLSConfig `json:"tls,omitempty"`
}

// Apply возвращает c с применённым патчем.
func (p Patch) Apply(c Config) Config {
	if p.URL != nil {
		c.URL = *p.URL
	}
	if p.QuestionsFile != nil {
		c.QuestionsFile = *p.QuestionsFile
	}
	if p.IntervalSeconds != nil {
		c.IntervalSeconds = *p.IntervalSeconds
	}
	if p.Jitter != nil {
		c.Jitter = *p.Jitter
	}
	if p.RestartDelay != nil {
		c.RestartDelay = *p.RestartDelay
	}
	if p.CaptureResponses != nil {
		c.CaptureResponses = *p.CaptureResponses
	}
	if p.APIKey != nil {
		c.APIKey = *p.APIKey
	}
	if p.Autostart != nil {
		c.Autostart = *p.Autostart
	}
	if p.TLS != nil {
		c.TLS = *p.TLS
	}
	return c
}

// Pacing возвращает часть патча, которую воркер применяет без перезапуска.
func (p Patch) Pacing() domain.PacingPatch {
	return domain.PacingPatch{
		IntervalSeconds:     p.IntervalSeconds,
		JitterSeconds:       p.Jitter,
		RestartDelaySeconds: p.RestartDelay,
	}
}

// Store — потокобезопасная текущая конфигурация с сохранением в файл.
//
// Ошибка записи файла логируется и не отменяет обновление в памяти.
type Store struct {
	path   string
	logger *slog.Logger

	mu  sync.RWMutex
	cfg Config

	// saveMu упорядочивает запись файла; сохраняется всегда последний cfg.
	saveMu sync.Mutex
}

// NewStore создаёт Store. path == "" — без сохранения.
func NewStore(path string, cfg Config, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
		cfg:    cfg,
	}
}

// Get возвращает текущую конфигурацию.
func (s *Store) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// APIKey возвращает текущий ключ API (пусто — без авторизации).
func (s *Store) APIKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.APIKey
}

// Update применяет патч, валидирует и сохраняет результат.
// При ошибке валидации конфигурация не меняется.
func (s *Store) Update(p Patch) (Config, error) {
	s.mu.Lock()
	next := p.Apply(s.cfg)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return Config{}, err
	}
	s.cfg = next
	s.mu.Unlock()

	s.persist()
	return next, nil
}

// SetPacing сохраняет новые interval/jitter/restart_delay.
func (s *Store) SetPacing(p domain.Pacing) {
	s.mu.Lock()
	s.cfg = s.cfg.WithPacing(p)
	s.mu.Unlock()

	s.persist()
}

// persist сохраняет текущую конфигурацию. Запись, начатая позже,
// видит все предшествующие изменения, поэтому файл не откатывается.
func (s *Store) persist() {
	if s.path == "" {
		return
	}

	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := Save(s.path, s.Get()); err != nil {
		s.logger.Error("failed to save config", "path", s.path, "error", err)
		return
	}
	s.logger.Info("config saved", "path", s.path)
}
