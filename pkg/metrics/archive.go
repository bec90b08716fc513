package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ArchiveMetrics contains Prometheus metrics for the reading archive sink.
type ArchiveMetrics struct {
	ReadingsArchived prometheus.Counter
	ReadingsDropped  prometheus.Counter
	WriteFailures    prometheus.Counter
	WriteDuration    prometheus.Histogram
}

// NewArchiveMetrics creates and registers archive sink metrics.
func NewArchiveMetrics(namespace string) *ArchiveMetrics {
	m := &ArchiveMetrics{
		ReadingsArchived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "archive",
				Name:      "readings_archived_total",
				Help:      "Total number of readings written to the archive",
			},
		),
		ReadingsDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "archive",
				Name:      "readings_dropped_total",
				Help:      "Total number of readings dropped because the archive buffer was full",
			},
		),
		WriteFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "archive",
				Name:      "write_failures_total",
				Help:      "Total number of failed archive writes",
			},
		),
		WriteDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "archive",
				Name:      "write_duration_seconds",
				Help:      "Duration of archive writes",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	MustRegister(
		m.ReadingsArchived,
		m.ReadingsDropped,
		m.WriteFailures,
		m.WriteDuration,
	)

	return m
}
