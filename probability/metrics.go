package probability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus instruments a Driver updates. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Draws    prometheus.Counter
	Discards prometheus.Counter
	Duration prometheus.Histogram
	Workers  prometheus.Gauge
}

// NewMetrics registers the driver instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Draws: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rbergomi",
			Name:      "draws_total",
			Help:      "Monte-Carlo draws completed by the main run.",
		}),
		Discards: f.NewCounter(prometheus.CounterOpts{
			Namespace: "rbergomi",
			Name:      "discarded_cells_total",
			Help:      "Cell samples dropped because the path or payoff was not finite.",
		}),
		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rbergomi",
			Name:      "run_duration_seconds",
			Help:      "Wall time of pricing runs.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		Workers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "rbergomi",
			Name:      "workers",
			Help:      "Worker goroutines of the current run.",
		}),
	}
}

func (m *Metrics) draw(n int) {
	if m == nil {
		return
	}
	m.Draws.Add(float64(n))
}

func (m *Metrics) discard(n int) {
	if m == nil {
		return
	}
	m.Discards.Add(float64(n))
}

func (m *Metrics) workers(n int) {
	if m == nil {
		return
	}
	m.Workers.Set(float64(n))
}

func (m *Metrics) observe(d time.Duration) {
	if m == nil {
		return
	}
	m.Duration.Observe(d.Seconds())
}
