// Package mq provides a RabbitMQ client with automatic reconnection and
// confirmed publishing, shared by the reading consumer and the simulator.
package mq

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sensorhub-io/sensorhub/pkg/metrics"
)

// Client manages one AMQP connection and channel for a single queue. It
// reconnects in the background after connection or channel failures.
type Client struct {
	mu              sync.Mutex
	logger          *slog.Logger
	connection      *amqp.Connection
	channel         *amqp.Channel
	done            chan bool
	notifyConnClose chan *amqp.Error
	notifyChanClose chan *amqp.Error
	notifyConfirm   chan amqp.Confirmation
	queueName       string
	isReady         bool
	metrics         *metrics.MQMetrics // Optional metrics
}

const (
	// Delay before redialing after a connection failure.
	reconnectDelay = 5 * time.Second

	// Delay before re-opening the channel after a channel exception.
	reInitDelay = 2 * time.Second

	// Push retry backoff: initial delay, ceiling, multiplier, attempt cap.
	initialBackoff    = 100 * time.Millisecond
	maxBackoff        = 10 * time.Second
	backoffMultiplier = 2
	maxRetryAttempts  = 5
)

var (
	errNotConnected       = errors.New("not connected to a server")
	errAlreadyClosed      = errors.New("already closed: not connected to the server")
	errShutdown           = errors.New("client is shutting down")
	errMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// New creates a client for the given queue and starts connecting to addr in
// the background.
func New(queueName, addr string, l *slog.Logger) *Client {
	c := Client{
		logger:    l,
		queueName: queueName,
		done:      make(chan bool),
	}
	go c.handleReconnect(addr)
	return &c
}

// SetMetrics sets the metrics collector for this client. Call it before the
// client starts processing messages.
func (c *Client) SetMetrics(m *metrics.MQMetrics) {
	c.metrics = m
}

// handleReconnect redials until connected, then hands off to handleReInit.
func (c *Client) handleReconnect(addr string) {
	for {
		c.setReady(false)

		c.logger.Info("attempting to connect", "queue", c.queueName)
		if c.metrics != nil {
			c.metrics.ReconnectAttempts.Inc()
		}

		conn, err := c.connect(addr)
		if err != nil {
			c.logger.Error("failed to connect, retrying", "error", err)

			select {
			case <-c.done:
				return
			case <-time.After(reconnectDelay):
			}
			continue
		}

		if done := c.handleReInit(conn); done {
			break
		}
	}
}

func (c *Client) connect(addr string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(addr)
	if err != nil {
		if c.metrics != nil {
			c.metrics.ConnectionStatus.Set(0)
		}
		return nil, err
	}

	c.changeConnection(conn)
	c.logger.Info("connected", "queue", c.queueName)

	if c.metrics != nil {
		c.metrics.ConnectionStatus.Set(1)
	}
	return conn, nil
}

// handleReInit re-opens the channel until the client shuts down or the
// connection drops (in which case the reconnect loop takes over again).
func (c *Client) handleReInit(conn *amqp.Connection) bool {
	for {
		c.setReady(false)

		if err := c.init(conn); err != nil {
			c.logger.Error("failed to initialize channel, retrying", "error", err)

			select {
			case <-c.done:
				return true
			case <-c.notifyConnClose:
				c.logger.Info("connection closed, reconnecting")
				return false
			case <-time.After(reInitDelay):
			}
			continue
		}

		select {
		case <-c.done:
			return true
		case <-c.notifyConnClose:
			c.logger.Info("connection closed, reconnecting")
			return false
		case <-c.notifyChanClose:
			c.logger.Info("channel closed, re-running init")
		}
	}
}

// init opens the channel, enables publisher confirms and declares the queue.
func (c *Client) init(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return err
	}

	if err := ch.Confirm(false); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(
		c.queueName,
		false, // Durable
		false, // Delete when unused
		false, // Exclusive
		false, // No-wait
		nil,   // Arguments
	); err != nil {
		return err
	}

	c.changeChannel(ch)
	c.setReady(true)
	c.logger.Info("client init done", "queue", c.queueName)
	return nil
}

func (c *Client) changeConnection(connection *amqp.Connection) {
	c.connection = connection
	c.notifyConnClose = make(chan *amqp.Error, 1)
	c.connection.NotifyClose(c.notifyConnClose)
}

func (c *Client) changeChannel(channel *amqp.Channel) {
	c.channel = channel
	c.notifyChanClose = make(chan *amqp.Error, 1)
	c.notifyConfirm = make(chan amqp.Confirmation, 1)
	c.channel.NotifyClose(c.notifyChanClose)
	c.channel.NotifyPublish(c.notifyConfirm)
}

func (c *Client) setReady(ready bool) {
	c.mu.Lock()
	c.isReady = ready
	c.mu.Unlock()
}

func (c *Client) ready() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isReady
}

// Push publishes data and waits for broker confirmation, retrying with
// exponential backoff while the client reconnects. After maxRetryAttempts
// failed attempts it gives up with an error.
func (c *Client) Push(ctx context.Context, data []byte) error {
	var timer *prometheus.Timer
	if c.metrics != nil {
		timer = prometheus.NewTimer(c.metrics.PushDuration.WithLabelValues(c.queueName))
		defer timer.ObserveDuration()
	}

	backoff := initialBackoff
	retryCount := 0

	wait := func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return errShutdown
		case <-time.After(backoff):
			backoff *= backoffMultiplier
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			retryCount++
			return nil
		}
	}

	for {
		if retryCount >= maxRetryAttempts {
			c.logger.Error("maximum retry attempts exceeded",
				"retry_count", retryCount,
				"max_attempts", maxRetryAttempts)
			if c.metrics != nil {
				c.metrics.PushFailures.WithLabelValues(c.queueName, "max_retries_exceeded").Inc()
			}
			return errMaxRetriesExceeded
		}

		if !c.ready() {
			c.logger.Info("not connected, waiting for reconnection",
				"backoff", backoff,
				"retry_count", retryCount)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		if err := c.UnsafePush(ctx, data); err != nil {
			c.logger.Error("push failed, retrying with backoff",
				"error", err,
				"backoff", backoff,
				"retry_count", retryCount)
			if err := wait(); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			if c.metrics != nil {
				c.metrics.PushFailures.WithLabelValues(c.queueName, "context_canceled").Inc()
			}
			return ctx.Err()
		case confirm := <-c.notifyConfirm:
			if confirm.Ack {
				if c.metrics != nil {
					c.metrics.MessagesPushed.WithLabelValues(c.queueName).Inc()
				}
				c.logger.Debug("push confirmed",
					"delivery_tag", confirm.DeliveryTag,
					"retry_count", retryCount)
				return nil
			}
			c.logger.Warn("push not acknowledged, retrying",
				"delivery_tag", confirm.DeliveryTag,
				"backoff", backoff)
			if err := wait(); err != nil {
				return err
			}
		}
	}
}

// UnsafePush publishes without waiting for confirmation.
func (c *Client) UnsafePush(ctx context.Context, data []byte) error {
	if !c.ready() {
		return errNotConnected
	}

	return c.channel.PublishWithContext(
		ctx,
		"",          // Exchange
		c.queueName, // Routing key
		false,       // Mandatory
		false,       // Immediate
		amqp.Publishing{
			ContentType: "application/json",
			Body:        data,
		},
	)
}

// Consume returns a delivery channel for the queue with per-consumer
// prefetch of one, so unacknowledged messages don't pile up on one consumer.
func (c *Client) Consume() (<-chan amqp.Delivery, error) {
	if !c.ready() {
		return nil, errNotConnected
	}

	if err := c.channel.Qos(
		1,     // prefetchCount
		0,     // prefetchSize
		false, // global
	); err != nil {
		return nil, err
	}

	return c.channel.Consume(
		c.queueName,
		"",    // Consumer
		false, // Auto-Ack
		false, // Exclusive
		false, // No-local
		false, // No-Wait
		nil,   // Args
	)
}

// Close cleanly shuts down the channel and connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isReady {
		return errAlreadyClosed
	}
	close(c.done)
	if err := c.channel.Close(); err != nil {
		return err
	}
	if err := c.connection.Close(); err != nil {
		return err
	}

	c.isReady = false
	if c.metrics != nil {
		c.metrics.ConnectionStatus.Set(0)
	}
	return nil
}
