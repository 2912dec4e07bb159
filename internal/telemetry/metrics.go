package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chatsoak"

// Metrics — Prometheus-метрики воркера.
//
// Реализует worker.Recorder и sink.FailureRecorder.
type Metrics struct {
	messagesSent    prometheus.Counter
	actionErrors    prometheus.Counter
	acquireFailures prometheus.Counter
	sinkFailures    *prometheus.CounterVec
	sendDuration    prometheus.Histogram
	running         prometheus.Gauge
}

// NewMetrics регистрирует метрики в reg.
// Если reg == nil — используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		messagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total chat messages sent successfully",
		}),
		actionErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_errors_total",
			Help:      "Total failed send attempts",
		}),
		acquireFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "acquire_failures_total",
			Help:      "Total failed attempts to open a chat session",
		}),
		sinkFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_failures_total",
			Help:      "Total failed record appends per sink",
		}, []string{"sink"}),
		sendDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "send_duration_seconds",
			Help:      "Duration of a single send, including reply capture",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		running: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "worker_running",
			Help:      "1 while the worker loop is running",
		}),
	}
}

// MessageSent учитывает успешную отправку.
func (m *Metrics) MessageSent(d time.Duration) {
	m.messagesSent.Inc()
	m.sendDuration.Observe(d.Seconds())
}

// ActionFailed учитывает ошибку отправки.
func (m *Metrics) ActionFailed() {
	m.actionErrors.Inc()
}

// AcquireFailed учитывает ошибку открытия сессии.
func (m *Metrics) AcquireFailed() {
	m.acquireFailures.Inc()
}

// SinkFailed учитывает ошибку записи в sink.
func (m *Metrics) SinkFailed(sink string) {
	m.sinkFailures.WithLabelValues(sink).Inc()
}

// SetRunning выставляет gauge worker_running.
func (m *Metrics) SetRunning(running bool) {
	if running {
		m.running.Set(1)
		return
	}
	m.running.Set(0)
}
