package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shake_monitor"

// Metrics holds the Prometheus counters, histograms, and gauges for the
// shake monitoring pipeline.
type Metrics struct {
	SamplesConsumed  prometheus.Counter
	ReadingsProduced prometheus.Counter
	InvalidSamples   prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Tracker output.
	Readings  *prometheus.CounterVec // labels: level={still,mild,moderate,strong}
	Intensity prometheus.Histogram

	// Session lifecycle.
	ActiveSessions  prometheus.Gauge
	SessionsStarted *prometheus.CounterVec // labels: reason={new,idle,requested}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()

	prometheus.MustRegister(
		m.SamplesConsumed,
		m.ReadingsProduced,
		m.InvalidSamples,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.Readings,
		m.Intensity,
		m.ActiveSessions,
		m.SessionsStarted,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		SamplesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_consumed_total",
			Help:      "Total samples read from the sample source.",
		}),
		ReadingsProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_produced_total",
			Help:      "Total intensity readings written to the sink topic.",
		}),
		InvalidSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invalid_samples_total",
			Help:      "Samples rejected for a NaN or infinite axis.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total messages that could not be turned into a reading.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of samples per extracted batch.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
		}),
		Readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "readings_total",
			Help:      "Readings by shake level.",
		}, []string{"level"}),
		Intensity: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "intensity",
			Help:      "Distribution of shake intensity (absolute change in acceleration magnitude).",
			Buckets:   []float64{0.1, 0.5, 1, 2, 3, 4, 6, 10, 20},
		}),
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Devices with an open monitoring session.",
		}),
		SessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_started_total",
			Help:      "Monitoring sessions started, by reason.",
		}, []string{"reason"}),
	}
}
