package fleet

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the fleet poller and probes.
type Metrics struct {
	PollsTotal    *prometheus.CounterVec
	ProbesTotal   *prometheus.CounterVec
	ProbeDuration *prometheus.HistogramVec
	FleetSize     prometheus.Gauge
}

// NewMetrics registers the fleet instruments with reg. Tests pass their own
// registry so parallel module instances do not collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		PollsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scanfleet",
			Subsystem: "fleet",
			Name:      "polls_total",
			Help:      "Fleet poll cycles by result.",
		}, []string{"result"}),
		ProbesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scanfleet",
			Subsystem: "fleet",
			Name:      "probes_total",
			Help:      "Scanner probes by probe type and resulting status.",
		}, []string{"probe", "status"}),
		ProbeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scanfleet",
			Subsystem: "fleet",
			Name:      "probe_duration_seconds",
			Help:      "Scanner probe duration by probe type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"probe"}),
		FleetSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "scanfleet",
			Subsystem: "fleet",
			Name:      "scanners",
			Help:      "Scanners in the last successful registry snapshot.",
		}),
	}
}
