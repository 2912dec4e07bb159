package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/chatsoak/internal/domain"
)

// ErrInvalidConfig — конфигурация не прошла валидацию.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultPath — путь к конфигу, если не задан CONFIG_PATH.
const DefaultPath = "config.yaml"

// Стратегии выбора вопроса.
const (
	PickerRandom     = "random"
	PickerRoundRobin = "round_robin"
)

// Config — конфигурация агента (config.yaml).
type Config struct {
	URL              string  `yaml:"url" json:"url"`
	QuestionsFile    string  `yaml:"questions_file" json:"questions_file"`
	IntervalSeconds  float64 `yaml:"interval_seconds" json:"interval_seconds"`
	Jitter           float64 `yaml:"jitter" json:"jitter"`
	RestartDelay     float64 `yaml:"restart_delay" json:"restart_delay"`
	RestartBackoff   string  `yaml:"restart_backoff" json:"restart_backoff"`
	MaxRestartDelay  float64 `yaml:"max_restart_delay" json:"max_restart_delay"`
	MinDelaySeconds  float64 `yaml:"min_delay_seconds" json:"min_delay_seconds"`
	StopTimeout      float64 `yaml:"stop_timeout_seconds" json:"stop_timeout_seconds"`
	CaptureResponses bool    `yaml:"capture_responses" json:"capture_responses"`
	Picker           string  `yaml:"picker" json:"picker"`
	Seed             uint64  `yaml:"seed" json:"seed"`

	// PromptEnv — значения {{ .Env.NAME }} в вопросах, поверх CHATSOAK_PROMPT_*.
	PromptEnv map[string]string `yaml:"prompt_env,omitempty" json:"prompt_env,omitempty"`

	LogDir      string `yaml:"log_dir" json:"log_dir"`
	MessagesCSV string `yaml:"messages_csv" json:"messages_csv"`

	Port      int       `yaml:"port" json:"port"`
	APIKey    string    `yaml:"api_key,omitempty" json:"api_key,omitempty"`
	Autostart bool      `yaml:"autostart" json:"autostart"`
	TLS       TLSConfig `yaml:"tls" json:"tls"`

	Executor ExecutorConfig `yaml:"executor" json:"executor"`
	Sinks    SinksConfig    `yaml:"sinks" json:"sinks"`
	Schedule ScheduleConfig `yaml:"schedule" json:"schedule"`
	AMQP     AMQPConfig     `yaml:"amqp" json:"amqp"`
}

// TLSConfig — HTTPS для control API. Нужны cert и key.
type TLSConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Cert    string `yaml:"cert" json:"cert"`
	Key     string `yaml:"key" json:"key"`
}

// ExecutorConfig описывает, как разговаривать с чат-ботом.
type ExecutorConfig struct {
	Kind                string            `yaml:"kind" json:"kind"`
	WarmupURL           string            `yaml:"warmup_url,omitempty" json:"warmup_url,omitempty"`
	Method              string            `yaml:"method,omitempty" json:"method,omitempty"`
	Headers             map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	MessageField        string            `yaml:"message_field,omitempty" json:"message_field,omitempty"`
	ReplyField          string            `yaml:"reply_field,omitempty" json:"reply_field,omitempty"`
	TimeoutSeconds      float64           `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	ReplyTimeoutSeconds float64           `yaml:"reply_timeout_seconds,omitempty" json:"reply_timeout_seconds,omitempty"`
	AcquireWaitSeconds  float64           `yaml:"acquire_wait_seconds,omitempty" json:"acquire_wait_seconds,omitempty"`
	LatencySeconds      float64           `yaml:"latency_seconds,omitempty" json:"latency_seconds,omitempty"`
}

// SinksConfig — куда писать пары вопрос/ответ.
type SinksConfig struct {
	CSV      bool           `yaml:"csv" json:"csv"`
	SQLite   SQLiteConfig   `yaml:"sqlite" json:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres" json:"postgres"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	AMQP     bool           `yaml:"amqp" json:"amqp"`

	// History — какой sink отдаёт GET /api/messages: sqlite, postgres, redis.
	// Пусто — первый включённый из них.
	History string `yaml:"history,omitempty" json:"history,omitempty"`
}

type SQLiteConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
}

type PostgresConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"-"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"-"`
	Key     string `yaml:"key" json:"key"`
	MaxLen  int64  `yaml:"max_len" json:"max_len"`
}

// ScheduleConfig — окна нагрузки по cron (5 полей).
type ScheduleConfig struct {
	StartCron string `yaml:"start_cron,omitempty" json:"start_cron,omitempty"`
	StopCron  string `yaml:"stop_cron,omitempty" json:"stop_cron,omitempty"`
	Timezone  string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
}

// Enabled проверяет, задано ли хотя бы одно выражение.
func (s ScheduleConfig) Enabled() bool {
	return s.StartCron != "" || s.StopCron != ""
}

// AMQPConfig — события и команды через RabbitMQ.
type AMQPConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	URL     string `yaml:"url,omitempty" json:"-"`

	// Control — потреблять команды из control.commands.
	Control bool `yaml:"control" json:"control"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		URL:              "https://aprender2teste.unb.br/my/",
		QuestionsFile:    "questions.txt",
		IntervalSeconds:  3,
		Jitter:           0.5,
		RestartDelay:     10,
		RestartBackoff:   string(domain.BackoffFixed),
		MaxRestartDelay:  120,
		MinDelaySeconds:  domain.DefaultMinDelay.Seconds(),
		StopTimeout:      10,
		CaptureResponses: true,
		Picker:           PickerRandom,
		LogDir:           "logs",
		MessagesCSV:      "messages.csv",
		Port:             5000,
		Executor:         ExecutorConfig{Kind: domain.TargetKindHTTP},
		Sinks: SinksConfig{
			CSV:    true,
			SQLite: SQLiteConfig{Path: "logs/messages.db"},
			Redis:  RedisConfig{Key: "chatsoak:messages", MaxLen: 10000},
		},
	}
}

// Path возвращает путь к конфигу из CONFIG_PATH или DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// Load читает YAML поверх значений по умолчанию и применяет env-переопределения.
// Отсутствующий файл — не ошибка.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyEnv переопределяет значения из окружения.
func (c *Config) applyEnv() {
	if v := os.Getenv("AGENT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		}
	}
	if v := os.Getenv("API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("DB_URL"); v != "" {
		c.Sinks.Postgres.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		c.Sinks.Redis.URL = v
	}
	if v := os.Getenv("RABBITMQ_URL"); v != "" {
		c.AMQP.URL = v
	}
}

// Validate проверяет конфигурацию.
func (c Config) Validate() error {
	if c.IntervalSeconds < 0 || c.Jitter < 0 || c.RestartDelay < 0 {
		return fmt.Errorf("%w: interval_seconds, jitter and restart_delay must be >= 0", ErrInvalidConfig)
	}
	if c.MaxRestartDelay < 0 || c.MinDelaySeconds < 0 || c.StopTimeout < 0 {
		return fmt.Errorf("%w: delays must be >= 0", ErrInvalidConfig)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}

	switch c.Executor.Kind {
	case domain.TargetKindHTTP, domain.TargetKindWebSocket, domain.TargetKindDryRun:
	default:
		return fmt.Errorf("%w: unknown executor kind %q", ErrInvalidConfig, c.Executor.Kind)
	}
	if c.Executor.Kind != domain.TargetKindDryRun && c.URL == "" {
		return fmt.Errorf("%w: url is required for %s executor", ErrInvalidConfig, c.Executor.Kind)
	}

	switch domain.BackoffStrategy(c.RestartBackoff) {
	case "", domain.BackoffFixed, domain.BackoffExponential:
	default:
		return fmt.Errorf("%w: unknown restart_backoff %q", ErrInvalidConfig, c.RestartBackoff)
	}

	switch c.Picker {
	case "", PickerRandom, PickerRoundRobin:
	default:
		return fmt.Errorf("%w: unknown picker %q", ErrInvalidConfig, c.Picker)
	}

	switch c.Sinks.History {
	case "", "sqlite", "postgres", "redis":
	default:
		return fmt.Errorf("%w: unknown history sink %q", ErrInvalidConfig, c.Sinks.History)
	}

	if c.TLS.Enabled && (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return fmt.Errorf("%w: tls requires both cert and key", ErrInvalidConfig)
	}

	return nil
}

// Pacing возвращает настройки темпа для воркера.
func (c Config) Pacing() domain.Pacing {
	return domain.Pacing{
		Interval:        domain.Seconds(c.IntervalSeconds),
		Jitter:          domain.Seconds(c.Jitter),
		RestartDelay:    domain.Seconds(c.RestartDelay),
		Backoff:         domain.BackoffStrategy(c.RestartBackoff),
		MaxRestartDelay: domain.Seconds(c.MaxRestartDelay),
		MinDelay:        domain.Seconds(c.MinDelaySeconds),
	}.Normalize()
}

// WithPacing возвращает копию c с interval/jitter/restart_delay из p.
func (c Config) WithPacing(p domain.Pacing) Config {
	c.IntervalSeconds = p.Interval.Seconds()
	c.Jitter = p.Jitter.Seconds()
	c.RestartDelay = p.RestartDelay.Seconds()
	return c
}

// Target возвращает описание чат-бота для executor'а.
func (c Config) Target() domain.Target {
	e := c.Executor
	return domain.Target{
		Kind:         e.Kind,
		URL:          c.URL,
		WarmupURL:    e.WarmupURL,
		Method:       e.Method,
		Headers:      e.Headers,
		MessageField: e.MessageField,
		ReplyField:   e.ReplyField,
		Timeout:      domain.Seconds(e.TimeoutSeconds),
		ReplyTimeout: domain.Seconds(e.ReplyTimeoutSeconds),
		AcquireWait:  domain.Seconds(e.AcquireWaitSeconds),
		Latency:      domain.Seconds(e.LatencySeconds),
	}
}

// StopTimeoutDuration возвращает stop_timeout_seconds как time.Duration.
func (c Config) StopTimeoutDuration() time.Duration {
	return domain.Seconds(c.StopTimeout)
}

// CSVPath возвращает путь к CSV-журналу.
func (c Config) CSVPath() string {
	return filepath.Join(c.LogDir, c.MessagesCSV)
}

// Public возвращает копию без секретов (для GET /).
func (c Config) Public() Config {
	c.APIKey = ""
	c.Sinks.Postgres.URL = ""
	c.Sinks.Redis.URL = ""
	c.AMQP.URL = ""
	return c
}

// Save атомарно записывает конфигурацию в YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}

	return nil
}
