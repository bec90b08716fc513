// Package publisher drives the synthetic load path: it registers simulated
// devices and sensors against the HTTP API and streams generated readings
// into RabbitMQ for the ingest consumer to pick up.
package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sensorhub-io/sensorhub/internal/engine"
	"github.com/sensorhub-io/sensorhub/pkg/metrics"
	"github.com/sensorhub-io/sensorhub/pkg/mq"
	"github.com/sensorhub-io/sensorhub/pkg/simulator"
)

const sensorsPerDevice = 3

// Publisher simulates one device with a handful of sensors and publishes
// their readings.
type Publisher struct {
	mqClient   mq.ClientInterface
	generators map[string]*simulator.ReadingGenerator
	metrics    *metrics.PublisherMetrics // Optional metrics
}

// NewPublisher creates a publisher that pushes readings with the given MQ
// client. Sensors are attached with Register before the first PublishRound.
func NewPublisher(mqClient mq.ClientInterface) *Publisher {
	return &Publisher{
		mqClient:   mqClient,
		generators: make(map[string]*simulator.ReadingGenerator),
	}
}

// SetMetrics sets the metrics collector for this publisher.
func (p *Publisher) SetMetrics(m *metrics.PublisherMetrics) {
	p.metrics = m
}

// Register creates one device with sensorsPerDevice sensors through the API
// and sets up a reading generator per sensor.
func (p *Publisher) Register(ctx context.Context, api *APIClient) error {
	input, err := simulator.NewDeviceInput()
	if err != nil {
		return fmt.Errorf("failed to generate device: %w", err)
	}

	device, err := api.RegisterDevice(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}

	for i := 0; i < sensorsPerDevice; i++ {
		sensorInput := simulator.NewSensorInput(device.ID)
		sensor, err := api.RegisterSensor(ctx, sensorInput)
		if err != nil {
			return fmt.Errorf("failed to register sensor: %w", err)
		}

		r := sensor.Specifications.Range
		p.generators[sensor.ID] = simulator.NewReadingGenerator(
			sensor.ID,
			simulator.Unit(sensor.Type),
			r.Min,
			r.Max,
		)
	}

	return nil
}

// PublishRound generates and pushes one reading per registered sensor.
func (p *Publisher) PublishRound(ctx context.Context) error {
	now := time.Now().UTC()

	for _, gen := range p.generators {
		req := gen.Generate(now)

		body, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("failed to marshal reading: %w", err)
		}

		if err := p.mqClient.Push(ctx, body); err != nil {
			if p.metrics != nil {
				p.metrics.PublishFailures.Inc()
			}
			return fmt.Errorf("failed to push reading: %w", err)
		}

		if p.metrics != nil {
			p.metrics.ReadingsPublished.Inc()
		}
	}

	return nil
}

// SensorCount reports how many sensors this publisher simulates.
func (p *Publisher) SensorCount() int {
	return len(p.generators)
}

// APIClient is a minimal client for the registration endpoints of the HTTP
// API.
type APIClient struct {
	baseURL string
	http    *http.Client
}

// NewAPIClient creates a client for the API at baseURL.
func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// RegisterDevice creates a device and returns the stored record.
func (c *APIClient) RegisterDevice(ctx context.Context, input engine.DeviceInput) (engine.Device, error) {
	var device engine.Device
	err := c.post(ctx, "/api/devices", input, &device)
	return device, err
}

// RegisterSensor creates a sensor and returns the stored record.
func (c *APIClient) RegisterSensor(ctx context.Context, input engine.SensorInput) (engine.Sensor, error) {
	var sensor engine.Sensor
	err := c.post(ctx, "/api/sensors", input, &sensor)
	return sensor, err
}

func (c *APIClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, data)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}
