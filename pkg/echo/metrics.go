package echo

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arzzra/echo_endpoint/pkg/switchcore"
)

type moduleMetrics struct {
	iterations   prometheus.Counter
	originations *prometheus.CounterVec
	frames       *prometheus.CounterVec
}

func newModuleMetrics(reg prometheus.Registerer, endpoint string) *moduleMetrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"endpoint": endpoint}

	return &moduleMetrics{
		iterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   "echo",
			Name:        "runtime_iterations_total",
			Help:        "Total number of background task iterations",
			ConstLabels: labels,
		}),
		originations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "echo",
			Name:        "originations_total",
			Help:        "Outbound channel creations by result cause",
			ConstLabels: labels,
		}, []string{"cause"}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "echo",
			Name:        "frames_total",
			Help:        "Frames passed through echo sessions by media type, direction and status",
			ConstLabels: labels,
		}, []string{"media", "direction", "status"}),
	}
}

func (mm *moduleMetrics) origination(err error) {
	mm.originations.WithLabelValues(switchcore.CauseOf(err).String()).Inc()
}

func (mm *moduleMetrics) frame(media, direction string, err error) {
	mm.frames.WithLabelValues(media, direction, switchcore.StatusOf(err).String()).Inc()
}
