package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sensorhub-io/sensorhub/internal/publisher"
	"github.com/sensorhub-io/sensorhub/pkg/metrics"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Run the synthetic reading publisher",
	Long: `Run the synthetic reading publisher that:
- Registers a simulated device fleet through the HTTP API
- Generates correlated synthetic readings per sensor
- Publishes readings to RabbitMQ for the ingest consumer
- Supports multiple concurrent publishers`,
	RunE: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)

	// Publisher-specific flags
	publishCmd.Flags().String("api-url", "http://localhost:8080", "Base URL of the HTTP API")
	publishCmd.Flags().String("rabbitmq-url", "amqp://localhost:5672", "RabbitMQ URL")
	publishCmd.Flags().String("queue-name", "sensor-readings", "RabbitMQ queue name for readings")
	publishCmd.Flags().Int("publisher-count", 5, "Number of concurrent publishers")
	publishCmd.Flags().Duration("interval", 5*time.Second, "Interval between publish rounds")

	// Bind flags to viper
	_ = viper.BindPFlag("publish.api.url", publishCmd.Flags().Lookup("api-url"))
	_ = viper.BindPFlag("publish.rabbitmq.url", publishCmd.Flags().Lookup("rabbitmq-url"))
	_ = viper.BindPFlag("publish.rabbitmq.queue_name", publishCmd.Flags().Lookup("queue-name"))
	_ = viper.BindPFlag("publish.publisher_count", publishCmd.Flags().Lookup("publisher-count"))
	_ = viper.BindPFlag("publish.interval", publishCmd.Flags().Lookup("interval"))
}

func runPublish(_ *cobra.Command, _ []string) error {
	log := GetLogger()
	log.Info("starting publisher service")

	config := &publisher.ServerConfig{
		Logger:         log,
		APIBaseURL:     viper.GetString("publish.api.url"),
		RabbitMQURL:    viper.GetString("publish.rabbitmq.url"),
		QueueName:      viper.GetString("publish.rabbitmq.queue_name"),
		PublisherCount: viper.GetInt("publish.publisher_count"),
		Interval:       viper.GetDuration("publish.interval"),
		Metrics:        metrics.NewPublisherMetrics(metricsNamespace),
		MQMetrics:      metrics.NewMQMetrics(metricsNamespace),
	}

	server, err := publisher.NewServer(config)
	if err != nil {
		log.Error("failed to create publisher server", "error", err)
		return err
	}

	log.Info("publisher server configuration",
		"api_url", config.APIBaseURL,
		"rabbitmq_url", config.RabbitMQURL,
		"queue", config.QueueName,
		"publisher_count", config.PublisherCount,
		"interval", config.Interval,
	)

	if err := server.Run(context.Background()); err != nil {
		log.Error("publisher server error", "error", err)
		return err
	}

	log.Info("publisher server stopped")
	return nil
}
