package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sensorhub-io/sensorhub/internal/api"
	"github.com/sensorhub-io/sensorhub/internal/archive"
	"github.com/sensorhub-io/sensorhub/internal/consumer"
	"github.com/sensorhub-io/sensorhub/internal/engine"
	"github.com/sensorhub-io/sensorhub/pkg/logger"
	"github.com/sensorhub-io/sensorhub/pkg/metrics"
)

const metricsNamespace = "sensorhub"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the telemetry engine",
	Long: `Run the telemetry engine that:
- Accepts device and sensor registrations over HTTP
- Ingests readings, scores sensor health, and serves queries
- Optionally consumes readings from RabbitMQ (--consume)
- Optionally archives accepted readings to PostgreSQL (--archive)`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Serve-specific flags
	serveCmd.Flags().Int("http-port", 8080, "HTTP API port")
	serveCmd.Flags().Bool("consume", false, "Consume readings from RabbitMQ")
	serveCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	serveCmd.Flags().String("queue-name", "sensor-readings", "RabbitMQ queue name for readings")
	serveCmd.Flags().Bool("archive", false, "Archive accepted readings to PostgreSQL")
	serveCmd.Flags().String("db-host", "localhost", "PostgreSQL host")
	serveCmd.Flags().Int("db-port", 5432, "PostgreSQL port")
	serveCmd.Flags().String("db-user", "postgres", "PostgreSQL user")
	serveCmd.Flags().String("db-password", "", "PostgreSQL password")
	serveCmd.Flags().String("db-name", "sensorhub", "PostgreSQL database name")
	serveCmd.Flags().String("db-sslmode", "disable", "PostgreSQL SSL mode")

	// Bind flags to viper
	_ = viper.BindPFlag("serve.http.port", serveCmd.Flags().Lookup("http-port"))
	_ = viper.BindPFlag("serve.consumer.enabled", serveCmd.Flags().Lookup("consume"))
	_ = viper.BindPFlag("serve.rabbitmq.url", serveCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("serve.rabbitmq.queue_name", serveCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("serve.archive.enabled", serveCmd.Flags().Lookup("archive"))
	_ = viper.BindPFlag("serve.db.host", serveCmd.Flags().Lookup("db-host"))
	_ = viper.BindPFlag("serve.db.port", serveCmd.Flags().Lookup("db-port"))
	_ = viper.BindPFlag("serve.db.user", serveCmd.Flags().Lookup("db-user"))
	_ = viper.BindPFlag("serve.db.password", serveCmd.Flags().Lookup("db-password"))
	_ = viper.BindPFlag("serve.db.name", serveCmd.Flags().Lookup("db-name"))
	_ = viper.BindPFlag("serve.db.sslmode", serveCmd.Flags().Lookup("db-sslmode"))
}

func runServe(_ *cobra.Command, _ []string) error {
	log := GetLogger()
	log.Info("starting telemetry engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Optional PostgreSQL archive, wired as the engine's reading sink.
	var recorder *archive.Recorder
	var sink engine.ReadingSink
	if viper.GetBool("serve.archive.enabled") {
		db, err := archive.NewDB(&archive.DBConfig{
			Logger:   logger.ForComponent(log, "archive"),
			Host:     viper.GetString("serve.db.host"),
			Port:     viper.GetInt("serve.db.port"),
			User:     viper.GetString("serve.db.user"),
			Password: viper.GetString("serve.db.password"),
			DBName:   viper.GetString("serve.db.name"),
			SSLMode:  viper.GetString("serve.db.sslmode"),
		})
		if err != nil {
			log.Error("failed to connect archive database", "error", err)
			return err
		}
		defer func() {
			if err := archive.CloseDB(db, log); err != nil {
				log.Error("failed to close archive database", "error", err)
			}
		}()

		recorder, err = archive.NewRecorder(&archive.RecorderConfig{
			Logger:  logger.ForComponent(log, "archive"),
			DB:      db,
			Metrics: metrics.NewArchiveMetrics(metricsNamespace),
		})
		if err != nil {
			log.Error("failed to create archive recorder", "error", err)
			return err
		}
		recorder.Start(ctx)
		defer recorder.Stop()
		sink = recorder
	}

	eng, err := engine.New(&engine.Config{
		Logger:  logger.ForComponent(log, "engine"),
		Sink:    sink,
		Metrics: metrics.NewEngineMetrics(metricsNamespace),
	})
	if err != nil {
		log.Error("failed to create engine", "error", err)
		return err
	}

	// Optional RabbitMQ ingest path.
	if viper.GetBool("serve.consumer.enabled") {
		cons, err := consumer.New(&consumer.Config{
			Logger:      logger.ForComponent(log, "consumer"),
			Engine:      eng,
			RabbitMQURL: viper.GetString("serve.rabbitmq.url"),
			QueueName:   viper.GetString("serve.rabbitmq.queue_name"),
			Metrics:     metrics.NewConsumerMetrics(metricsNamespace),
		})
		if err != nil {
			log.Error("failed to create consumer", "error", err)
			return err
		}
		if err := cons.Start(ctx); err != nil {
			log.Error("failed to start consumer", "error", err)
			return err
		}
		defer func() {
			cancel()
			if err := cons.Stop(); err != nil {
				log.Error("failed to stop consumer", "error", err)
			}
		}()
	}

	server, err := api.NewServer(&api.ServerConfig{
		Logger:   logger.ForComponent(log, "api"),
		Engine:   eng,
		HTTPPort: viper.GetInt("serve.http.port"),
		Metrics:  metrics.NewAPIMetrics(metricsNamespace),
	})
	if err != nil {
		log.Error("failed to create API server", "error", err)
		return err
	}

	log.Info("telemetry engine configuration",
		"http_port", viper.GetInt("serve.http.port"),
		"consumer_enabled", viper.GetBool("serve.consumer.enabled"),
		"archive_enabled", viper.GetBool("serve.archive.enabled"),
	)

	if err := server.Run(ctx); err != nil {
		log.Error("API server error", "error", err)
		return err
	}

	log.Info("telemetry engine stopped")
	return nil
}
