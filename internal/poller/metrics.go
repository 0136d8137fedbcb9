package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeInvalid = "invalid"
)

// Metrics holds the Prometheus collectors for probes and cycles.
//
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	probes          *prometheus.CounterVec
	probeDuration   prometheus.Histogram
	cycles          prometheus.Counter
	cyclesSkipped   prometheus.Counter
	recordsAppended prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		probes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "sitewatch",
				Name:      "probes_total",
				Help:      "Total number of URL probes by outcome.",
			},
			[]string{"outcome"},
		),
		probeDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "sitewatch",
				Name:      "probe_duration_seconds",
				Help:      "Duration of URL probes that reached the network.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
		),
		cycles: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sitewatch",
				Name:      "cycles_total",
				Help:      "Total number of completed probe cycles.",
			},
		),
		cyclesSkipped: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sitewatch",
				Name:      "cycles_skipped_total",
				Help:      "Ticks skipped because the previous cycle overran the interval.",
			},
		),
		recordsAppended: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "sitewatch",
				Name:      "records_appended_total",
				Help:      "Total number of status records appended to the store.",
			},
		),
	}
}

func (m *Metrics) observeProbe(outcome string, latency time.Duration) {
	if m == nil {
		return
	}
	m.probes.WithLabelValues(outcome).Inc()
	if outcome != outcomeInvalid {
		m.probeDuration.Observe(latency.Seconds())
	}
}

func (m *Metrics) observeCycle(appended int) {
	if m == nil {
		return
	}
	m.cycles.Inc()
	m.recordsAppended.Add(float64(appended))
}

func (m *Metrics) observeSkipped(n int) {
	if m == nil {
		return
	}
	m.cyclesSkipped.Add(float64(n))
}
