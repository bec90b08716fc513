// Package consumer feeds readings from RabbitMQ into the telemetry engine.
// It is a thin transport adapter: validation, defaults and health scoring
// all happen inside the engine.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sensorhub-io/sensorhub/internal/engine"
	"github.com/sensorhub-io/sensorhub/pkg/metrics"
	"github.com/sensorhub-io/sensorhub/pkg/mq"
)

// Consumer consumes reading messages from RabbitMQ and ingests them.
type Consumer struct {
	logger    *slog.Logger
	engine    *engine.Engine
	mqClient  mq.ClientInterface
	queueName string
	metrics   *metrics.ConsumerMetrics // Optional metrics
	warmup    time.Duration
	started   bool
	done      chan struct{}
}

// Config holds the configuration for the Consumer.
type Config struct {
	Logger      *slog.Logger
	Engine      *engine.Engine
	RabbitMQURL string
	QueueName   string

	// Client, when set, replaces the RabbitMQ client built from
	// RabbitMQURL/QueueName. Used by tests.
	Client mq.ClientInterface

	// Metrics, when set, instruments message processing.
	Metrics *metrics.ConsumerMetrics
}

// New creates a new Consumer instance.
func New(cfg *Config) (*Consumer, error) {
	if cfg == nil {
		return nil, errors.New("consumer config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine cannot be nil")
	}

	client := cfg.Client
	var warmup time.Duration
	if client == nil {
		if cfg.RabbitMQURL == "" {
			return nil, errors.New("rabbitmq URL cannot be empty")
		}
		if cfg.QueueName == "" {
			return nil, errors.New("queue name cannot be empty")
		}
		client = mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger)
		// A freshly built client needs a moment to establish its first
		// connection before Consume can succeed.
		warmup = 2 * time.Second
	}

	return &Consumer{
		logger:    cfg.Logger,
		engine:    cfg.Engine,
		mqClient:  client,
		queueName: cfg.QueueName,
		metrics:   cfg.Metrics,
		warmup:    warmup,
		done:      make(chan struct{}),
	}, nil
}

// Start begins consuming messages from the queue.
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("starting reading consumer", "queue", c.queueName)

	if c.warmup > 0 {
		time.Sleep(c.warmup)
	}

	deliveries, err := c.mqClient.Consume()
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}

	if c.metrics != nil {
		c.metrics.ActiveConsumers.Inc()
	}

	c.logger.Info("reading consumer started, waiting for messages")
	c.started = true
	go c.processMessages(ctx, deliveries)

	return nil
}

func (c *Consumer) processMessages(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer func() {
		if c.metrics != nil {
			c.metrics.ActiveConsumers.Dec()
		}
		close(c.done)
	}()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("context canceled, stopping message processing")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed")
				return
			}
			c.handleDelivery(delivery)
		}
	}
}

// handleDelivery ingests a single message. Malformed payloads and readings
// the engine rejects as invalid or unknown are acknowledged and dropped so a
// poison message can never loop; only unexpected engine failures are nacked
// for redelivery.
func (c *Consumer) handleDelivery(delivery amqp.Delivery) {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.ProcessingDuration.WithLabelValues(c.queueName))
		defer timer.ObserveDuration()
	}

	var req engine.IngestRequest
	if err := json.Unmarshal(delivery.Body, &req); err != nil {
		c.logger.Error("failed to unmarshal reading message", "error", err)
		c.count("dropped")
		c.ack(delivery)
		return
	}

	point, err := c.engine.IngestOne(req)
	if err != nil {
		if engine.IsValidation(err) || engine.IsNotFound(err) {
			c.logger.Warn("reading rejected",
				"sensor_id", req.SensorID,
				"error", err,
			)
			c.count("dropped")
			c.ack(delivery)
			return
		}

		c.logger.Error("failed to ingest reading",
			"sensor_id", req.SensorID,
			"error", err,
		)
		c.count("requeued")
		if nackErr := delivery.Nack(false, true); nackErr != nil {
			c.logger.Error("failed to nack message", "error", nackErr)
		}
		return
	}

	c.count("ingested")
	c.ack(delivery)

	c.logger.Debug("reading ingested",
		"sensor_id", req.SensorID,
		"timestamp", point.Timestamp,
	)
}

func (c *Consumer) ack(delivery amqp.Delivery) {
	if err := delivery.Ack(false); err != nil {
		c.logger.Error("failed to ack message", "error", err)
	}
}

func (c *Consumer) count(status string) {
	if c.metrics != nil {
		c.metrics.MessagesTotal.WithLabelValues(c.queueName, status).Inc()
	}
}

// Stop stops the consumer and closes the MQ client. Waiting on the
// processing goroutine only applies once Start has spawned it; stopping a
// consumer that never started must not block.
func (c *Consumer) Stop() error {
	c.logger.Info("stopping reading consumer")

	if err := c.mqClient.Close(); err != nil {
		return fmt.Errorf("failed to close mq client: %w", err)
	}

	if c.started {
		<-c.done
	}

	c.logger.Info("reading consumer stopped")
	return nil
}
