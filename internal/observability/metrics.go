package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the pipeline stages.
type Metrics struct {
	StageRuns       *prometheus.CounterVec   // labels: stage, outcome={ok,<error kind>}
	StageDuration   *prometheus.HistogramVec // labels: stage
	Rasters         *prometheus.CounterVec   // labels: outcome={processed,failed}
	PixelsSegmented prometheus.Counter
}

var durationBuckets = []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.StageRuns, m.StageDuration, m.Rasters, m.PixelsSegmented)
	return m
}

// NewMetricsForTesting creates unregistered collectors so tests can build
// as many instances as they need.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		StageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firerisk",
			Name:      "stage_runs_total",
			Help:      "Pipeline stage invocations by outcome.",
		}, []string{"stage", "outcome"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "firerisk",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of a pipeline stage.",
			Buckets:   durationBuckets,
		}, []string{"stage"}),
		Rasters: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "firerisk",
			Name:      "rasters_total",
			Help:      "Raster files handled by the region scanner.",
		}, []string{"outcome"}),
		PixelsSegmented: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "firerisk",
			Name:      "pixels_segmented_total",
			Help:      "Pixels assigned to a cluster.",
		}),
	}
}
