package switchcore

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// coreMetrics метрики ядра: сессии и кадры, прошедшие через диспетчеризацию.
// При nil Registerer коллекторы создаются, но нигде не регистрируются.
type coreMetrics struct {
	sessionsActive  prometheus.Gauge
	sessionsTotal   *prometheus.CounterVec
	allocFailures   *prometheus.CounterVec
	frames          *prometheus.CounterVec
	stateTransition *prometheus.CounterVec
}

func newCoreMetrics(reg prometheus.Registerer) *coreMetrics {
	factory := promauto.With(reg)

	return &coreMetrics{
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "switch",
			Subsystem: "core",
			Name:      "sessions_active",
			Help:      "Number of currently allocated sessions",
		}),
		sessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switch",
			Subsystem: "core",
			Name:      "sessions_total",
			Help:      "Total number of sessions allocated",
		}, []string{"endpoint", "direction"}),
		allocFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switch",
			Subsystem: "core",
			Name:      "session_alloc_failures_total",
			Help:      "Total number of refused session allocations",
		}, []string{"reason"}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switch",
			Subsystem: "core",
			Name:      "frames_total",
			Help:      "Frames dispatched to endpoints by media type, direction and status",
		}, []string{"media", "direction", "status"}),
		stateTransition: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "switch",
			Subsystem: "core",
			Name:      "channel_state_transitions_total",
			Help:      "Total number of channel state transitions",
		}, []string{"to_state"}),
	}
}

func (m *coreMetrics) frame(t string, direction string, err error) {
	m.frames.WithLabelValues(t, direction, StatusOf(err).String()).Inc()
}
