package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PublisherMetrics contains Prometheus metrics for the reading publisher.
type PublisherMetrics struct {
	ReadingsPublished prometheus.Counter
	PublishFailures   prometheus.Counter
	ActivePublishers  prometheus.Gauge
}

// NewPublisherMetrics creates and registers reading publisher metrics.
func NewPublisherMetrics(namespace string) *PublisherMetrics {
	m := &PublisherMetrics{
		ReadingsPublished: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "publisher",
				Name:      "readings_published_total",
				Help:      "Total number of synthetic readings published",
			},
		),
		PublishFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "publisher",
				Name:      "publish_failures_total",
				Help:      "Total number of failed publish attempts",
			},
		),
		ActivePublishers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "publisher",
				Name:      "active_publishers",
				Help:      "Number of currently running publisher workers",
			},
		),
	}

	MustRegister(
		m.ReadingsPublished,
		m.PublishFailures,
		m.ActivePublishers,
	)

	return m
}
