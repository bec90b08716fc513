package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sensorhub-io/sensorhub/pkg/metrics"
	"github.com/sensorhub-io/sensorhub/pkg/mq"
)

// ServerConfig holds the configuration for the publisher server.
type ServerConfig struct {
	// Logger is the structured logger
	Logger *slog.Logger
	// APIBaseURL is the base URL of the HTTP API used to register the
	// simulated devices and sensors
	APIBaseURL string
	// RabbitMQURL is the connection string for RabbitMQ
	RabbitMQURL string
	// QueueName is the name of the queue to publish readings to
	QueueName string
	// Interval is the time between publish rounds
	Interval time.Duration
	// PublisherCount is the number of concurrent publishers
	PublisherCount int
	// Metrics is the optional Prometheus metrics collector
	Metrics *metrics.PublisherMetrics
	// MQMetrics is the optional Prometheus metrics collector for MQ operations
	MQMetrics *metrics.MQMetrics
}

// Server manages multiple publisher instances.
type Server struct {
	logger     *slog.Logger
	config     *ServerConfig
	publishers []*Publisher
	clients    []*mq.Client
	wg         sync.WaitGroup
	metrics    *metrics.PublisherMetrics
}

var (
	errInvalidPublisherCount = errors.New("publisher count must be greater than 0")
	errInvalidInterval       = errors.New("interval must be greater than 0")
	errLoggerRequired        = errors.New("logger is required")
	errAPIBaseURLRequired    = errors.New("API base URL is required")
)

// NewServer creates a new publisher server with the given configuration.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.PublisherCount <= 0 {
		return nil, errInvalidPublisherCount
	}

	if cfg.Interval <= 0 {
		return nil, errInvalidInterval
	}

	if cfg.Logger == nil {
		return nil, errLoggerRequired
	}

	if cfg.APIBaseURL == "" {
		return nil, errAPIBaseURLRequired
	}

	s := &Server{
		config:     cfg,
		publishers: make([]*Publisher, 0, cfg.PublisherCount),
		clients:    make([]*mq.Client, 0, cfg.PublisherCount),
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}

	for i := 0; i < cfg.PublisherCount; i++ {
		client := mq.New(cfg.QueueName, cfg.RabbitMQURL, cfg.Logger.With(
			slog.String("component", "mq-client"),
			slog.Int("publisher_id", i),
		))

		if cfg.MQMetrics != nil {
			client.SetMetrics(cfg.MQMetrics)
		}

		pub := NewPublisher(client)
		if cfg.Metrics != nil {
			pub.SetMetrics(cfg.Metrics)
		}

		s.clients = append(s.clients, client)
		s.publishers = append(s.publishers, pub)
	}

	return s, nil
}

// Run registers the simulated fleet, starts all publishers, and blocks until
// a shutdown signal is received.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	api := NewAPIClient(s.config.APIBaseURL)
	for i, pub := range s.publishers {
		if err := pub.Register(ctx, api); err != nil {
			return fmt.Errorf("failed to register fleet for publisher %d: %w", i, err)
		}

		s.logger.Info("registered simulated fleet",
			"publisher_id", i,
			"sensor_count", pub.SensorCount(),
		)
	}

	for i, pub := range s.publishers {
		s.wg.Add(1)
		go s.runPublisher(ctx, i, pub)
	}

	s.logger.Info("publisher server started",
		"publisher_count", len(s.publishers),
		"interval", s.config.Interval,
	)

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled, shutting down")
	}

	s.logger.Info("waiting for publishers to shut down...")
	s.wg.Wait()

	s.logger.Info("closing MQ clients...")
	s.closeClients()

	s.logger.Info("publisher server stopped")
	return nil
}

// runPublisher runs one publisher, pushing a round of readings per tick.
func (s *Server) runPublisher(ctx context.Context, id int, pub *Publisher) {
	defer s.wg.Done()

	if s.metrics != nil {
		s.metrics.ActivePublishers.Inc()
		defer s.metrics.ActivePublishers.Dec()
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	logger := s.logger.With(slog.Int("publisher_id", id))
	logger.Info("publisher started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("publisher shutting down")
			return

		case <-ticker.C:
			if err := pub.PublishRound(ctx); err != nil {
				logger.Error("failed to publish readings", "error", err)
				// Keep going, transient broker errors are expected.
				continue
			}

			logger.Debug("published reading round")
		}
	}
}

// closeClients closes all MQ clients gracefully.
func (s *Server) closeClients() {
	var wg sync.WaitGroup

	for i, client := range s.clients {
		wg.Add(1)
		go func(id int, c *mq.Client) {
			defer wg.Done()

			if err := c.Close(); err != nil {
				s.logger.Error("failed to close MQ client",
					"publisher_id", id,
					"error", err,
				)
				return
			}

			s.logger.Info("MQ client closed", "publisher_id", id)
		}(i, client)
	}

	wg.Wait()
}
