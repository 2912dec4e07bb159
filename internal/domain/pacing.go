package domain

import "time"

// DefaultMinDelay — нижняя граница паузы между сообщениями.
// Цикл никогда не крутится без задержки.
const DefaultMinDelay = 500 * time.Millisecond

// BackoffStrategy — стратегия задержки перед повторной попыткой.
type BackoffStrategy string

const (
	// BackoffFixed — всегда RestartDelay.
	BackoffFixed BackoffStrategy = "fixed"

	// BackoffExponential — RestartDelay * 2^(n-1), не больше MaxRestartDelay.
	BackoffExponential BackoffStrategy = "exponential"
)

// Pacing — настройки темпа отправки сообщений.
//
// Значение неизменяемо в рамках одного вычисления задержки;
// обновление через Worker.UpdatePacing применяется со следующего цикла.
type Pacing struct {
	// Interval — базовый интервал между сообщениями.
	Interval time.Duration `json:"interval"`

	// Jitter — граница случайного отклонения: interval ± jitter.
	Jitter time.Duration `json:"jitter"`

	// RestartDelay — задержка после ошибки acquire/send.
	RestartDelay time.Duration `json:"restart_delay"`

	// Backoff — стратегия restart delay (default: fixed).
	Backoff BackoffStrategy `json:"backoff,omitempty"`

	// MaxRestartDelay — потолок для exponential (default: 2 минуты).
	MaxRestartDelay time.Duration `json:"max_restart_delay,omitempty"`

	// MinDelay — нижняя граница паузы (default: DefaultMinDelay).
	MinDelay time.Duration `json:"min_delay,omitempty"`
}

// Normalize приводит значения к допустимым: отрицательные обнуляются,
// пустые поля получают значения по умолчанию.
func (p Pacing) Normalize() Pacing {
	if p.Interval < 0 {
		p.Interval = 0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.RestartDelay < 0 {
		p.RestartDelay = 0
	}
	if p.Backoff == "" {
		p.Backoff = BackoffFixed
	}
	if p.MaxRestartDelay <= 0 {
		p.MaxRestartDelay = 2 * time.Minute
	}
	if p.MinDelay <= 0 {
		p.MinDelay = DefaultMinDelay
	}
	return p
}

// PacingPatch — частичное обновление Pacing (из API или команды управления).
// nil-поля не меняются.
type PacingPatch struct {
	IntervalSeconds     *float64 `json:"interval_seconds,omitempty"`
	JitterSeconds       *float64 `json:"jitter,omitempty"`
	RestartDelaySeconds *float64 `json:"restart_delay,omitempty"`
}

// IsEmpty возвращает true, если патч ничего не меняет.
func (pp PacingPatch) IsEmpty() bool {
	return pp.IntervalSeconds == nil && pp.JitterSeconds == nil && pp.RestartDelaySeconds == nil
}

// Apply возвращает p с применённым патчем.
func (pp PacingPatch) Apply(p Pacing) Pacing {
	if pp.IntervalSeconds != nil {
		p.Interval = Seconds(*pp.IntervalSeconds)
	}
	if pp.JitterSeconds != nil {
		p.Jitter = Seconds(*pp.JitterSeconds)
	}
	if pp.RestartDelaySeconds != nil {
		p.RestartDelay = Seconds(*pp.RestartDelaySeconds)
	}
	return p.Normalize()
}

// Seconds переводит дробные секунды в time.Duration.
func Seconds(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
