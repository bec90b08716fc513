// Package api exposes the telemetry engine over HTTP: device and sensor
// registries, reading ingestion, the query layer and Prometheus metrics.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sensorhub-io/sensorhub/internal/engine"
	"github.com/sensorhub-io/sensorhub/pkg/metrics"
)

// Server is the sensorhub HTTP server.
type Server struct {
	logger     *slog.Logger
	engine     *engine.Engine
	httpServer *http.Server
	config     *ServerConfig
	metrics    *metrics.APIMetrics // Optional metrics
}

// ServerConfig holds the configuration for the Server.
type ServerConfig struct {
	Logger *slog.Logger
	Engine *engine.Engine

	// HTTP server configuration
	HTTPPort int

	// Metrics, when set, instruments every API route.
	Metrics *metrics.APIMetrics
}

// NewServer creates a new Server instance.
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.Engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if cfg.HTTPPort <= 0 {
		return nil, errors.New("HTTP port must be positive")
	}

	return &Server{
		logger:  cfg.Logger,
		engine:  cfg.Engine,
		config:  cfg,
		metrics: cfg.Metrics,
	}, nil
}

// Run starts the server and blocks until shutdown.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting API server")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.HTTPPort),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("starting HTTP server", "address", s.httpServer.Addr)

	httpErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- fmt.Errorf("HTTP server error: %w", err)
		}
		close(httpErr)
	}()

	s.logger.Info("API server started successfully")

	select {
	case sig := <-sigChan:
		s.logger.Info("received shutdown signal", "signal", sig.String())
		cancel()
	case <-ctx.Done():
		s.logger.Info("context canceled")
	case err := <-httpErr:
		if err != nil {
			s.logger.Error("HTTP server error", "error", err)
			cancel()
			return err
		}
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	s.logger.Info("shutting down API server")

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown HTTP server", "error", err)
			return fmt.Errorf("HTTP server shutdown error: %w", err)
		}
		s.logger.Info("HTTP server stopped")
	}

	s.logger.Info("API server shutdown completed successfully")
	return nil
}

// Handler builds the route table. It is exported so tests can drive the API
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/devices", s.route("/api/devices", s.handleRegisterDevice))
	mux.HandleFunc("GET /api/devices", s.route("/api/devices", s.handleListDevices))
	mux.HandleFunc("GET /api/devices/{id}", s.route("/api/devices/{id}", s.handleGetDevice))
	mux.HandleFunc("PATCH /api/devices/{id}", s.route("/api/devices/{id}", s.handleUpdateDevice))
	mux.HandleFunc("DELETE /api/devices/{id}", s.route("/api/devices/{id}", s.handleDeleteDevice))

	mux.HandleFunc("POST /api/sensors", s.route("/api/sensors", s.handleRegisterSensor))
	mux.HandleFunc("GET /api/sensors", s.route("/api/sensors", s.handleListSensors))
	mux.HandleFunc("GET /api/sensors/summary", s.route("/api/sensors/summary", s.handleSensorSummary))
	mux.HandleFunc("GET /api/sensors/{id}", s.route("/api/sensors/{id}", s.handleGetSensor))

	mux.HandleFunc("POST /api/readings", s.route("/api/readings", s.handleIngestReading))
	mux.HandleFunc("POST /api/readings/batch", s.route("/api/readings/batch", s.handleIngestBatch))
	mux.HandleFunc("GET /api/readings", s.route("/api/readings", s.handleListReadings))

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	return mux
}

// route wraps a handler with request metrics keyed by the route pattern.
func (s *Server) route(pattern string, h http.HandlerFunc) http.HandlerFunc {
	if s.metrics == nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RequestsInFlight.Inc()
		defer s.metrics.RequestsInFlight.Dec()

		timer := prometheus.NewTimer(s.metrics.RequestDuration.WithLabelValues(r.Method, pattern))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)

		s.metrics.RequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(rec.status)).Inc()
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// handleHealth serves the liveness endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}
