package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains Prometheus metrics for the telemetry engine.
type EngineMetrics struct {
	ReadingsIngested *prometheus.CounterVec
	IngestDuration   prometheus.Histogram
	BatchSize        prometheus.Histogram
	HistoryEvictions prometheus.Counter
	SensorsByHealth  *prometheus.GaugeVec
}

// NewEngineMetrics creates and registers telemetry engine metrics.
func NewEngineMetrics(namespace string) *EngineMetrics {
	m := &EngineMetrics{
		ReadingsIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "readings_ingested_total",
				Help:      "Total number of readings submitted for ingestion",
			},
			[]string{"status"}, // status: accepted, rejected
		),
		IngestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "ingest_duration_seconds",
				Help:      "Duration of single-reading ingestion",
				Buckets:   prometheus.DefBuckets,
			},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "batch_size",
				Help:      "Number of items per batch ingestion",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		HistoryEvictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "history_evictions_total",
				Help:      "Total number of readings evicted from bounded sensor histories",
			},
		),
		SensorsByHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "sensors_by_health",
				Help:      "Number of registered sensors per health status",
			},
			[]string{"status"}, // status: healthy, degraded, faulty
		),
	}

	MustRegister(
		m.ReadingsIngested,
		m.IngestDuration,
		m.BatchSize,
		m.HistoryEvictions,
		m.SensorsByHealth,
	)

	return m
}
