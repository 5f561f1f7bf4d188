package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for granule extraction.
type Metrics struct {
	VariablesProcessed prometheus.Counter
	VariablesSkipped   *prometheus.CounterVec // labels: reason={dimension,filtered,non_numeric}
	ExtractionFailures *prometheus.CounterVec // labels: kind={malformed_header,unknown_dimension,extraction_io,unsupported_dimensionality,granule_time,other}
	ExtractionRunning  prometheus.Gauge

	// Output metrics.
	PointsWritten  prometheus.Counter
	UnitsSealed    prometheus.Counter
	UnitOvershoots prometheus.Counter

	// Dump tool metrics.
	DumpToolDuration *prometheus.HistogramVec // labels: op={header,extract}
	RunDuration      prometheus.Histogram

	// Notification metrics.
	NotificationsPublished prometheus.Counter
	NotificationErrors     prometheus.Counter
}

// NewMetricsWith creates all extraction metrics and registers them with reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := newMetrics()

	reg.MustRegister(
		m.VariablesProcessed,
		m.VariablesSkipped,
		m.ExtractionFailures,
		m.ExtractionRunning,
		m.PointsWritten,
		m.UnitsSealed,
		m.UnitOvershoots,
		m.DumpToolDuration,
		m.RunDuration,
		m.NotificationsPublished,
		m.NotificationErrors,
	)

	return m
}

// NewUnregisteredMetrics creates Metrics that belong to no registry. Values
// are recorded but never exported; components use it when the caller passes
// no Metrics.
func NewUnregisteredMetrics() *Metrics {
	return newMetrics()
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		VariablesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "variables_processed_total",
			Help:      "Variables flattened and written to output units.",
		}),
		VariablesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "variables_skipped_total",
			Help:      "Declared variables not extracted, by reason.",
		}, []string{"reason"}),
		ExtractionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "extraction_failures_total",
			Help:      "Extraction runs aborted, by error kind.",
		}, []string{"kind"}),
		ExtractionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "granule_extract",
			Name:      "extraction_running",
			Help:      "1 while an extraction run is active, 0 otherwise.",
		}),
		PointsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "points_written_total",
			Help:      "Flat points written to output units.",
		}),
		UnitsSealed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "units_sealed_total",
			Help:      "Output units completed.",
		}),
		UnitOvershoots: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "unit_overshoot_total",
			Help:      "Point batches larger than the per-unit budget, written whole.",
		}),
		DumpToolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "granule_extract",
			Name:      "dump_tool_duration_seconds",
			Help:      "Duration of dump tool invocations.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"op"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "granule_extract",
			Name:      "run_duration_seconds",
			Help:      "Duration of a complete granule extraction.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "notifications_published_total",
			Help:      "Unit-sealed notifications delivered.",
		}),
		NotificationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "granule_extract",
			Name:      "notification_errors_total",
			Help:      "Unit-sealed notification attempts that failed.",
		}),
	}
}
