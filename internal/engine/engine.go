package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sensorhub-io/sensorhub/pkg/metrics"
)

// Engine is the telemetry core. It owns the device and sensor stores and
// exposes every operation the transport layers call into. Construct one per
// process (or per test) and share it by reference.
type Engine struct {
	logger  *slog.Logger
	devices *DeviceStore
	sensors *SensorStore
	sink    ReadingSink
	metrics *metrics.EngineMetrics // Optional metrics
	now     func() time.Time
}

// Config holds the configuration for the Engine.
type Config struct {
	Logger *slog.Logger

	// Sink, when set, observes every accepted reading. It must not block.
	Sink ReadingSink

	// Metrics, when set, receives engine instrumentation.
	Metrics *metrics.EngineMetrics

	// Now overrides the clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// New creates a new Engine instance.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, errors.New("engine config cannot be nil")
	}
	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	devices := newDeviceStore(now)
	return &Engine{
		logger:  cfg.Logger,
		devices: devices,
		sensors: newSensorStore(devices, now),
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		now:     now,
	}, nil
}

// RegisterDevice registers a new device and returns it with its generated id.
func (e *Engine) RegisterDevice(input DeviceInput) (Device, error) {
	d, err := e.devices.Register(input)
	if err != nil {
		return Device{}, err
	}
	e.logger.Info("device registered", "device_id", d.ID, "type", d.Type)
	return d, nil
}

// GetDevice returns the device or a NotFoundError.
func (e *Engine) GetDevice(id string) (Device, error) {
	return e.devices.Get(id)
}

// ListDevices returns one page of devices matching the filter.
func (e *Engine) ListDevices(filter DeviceFilter, page, limit int) ([]Device, Pagination) {
	return e.devices.List(filter, page, limit)
}

// UpdateDevice applies a partial patch to the device.
func (e *Engine) UpdateDevice(id string, patch DevicePatch) (Device, error) {
	return e.devices.Update(id, patch)
}

// DeleteDevice deletes the device and cascades to every sensor attached to
// it, returning the number of sensors removed.
func (e *Engine) DeleteDevice(id string) (int, error) {
	removed, err := e.sensors.DeleteDeviceCascade(id)
	if err != nil {
		return 0, err
	}
	e.logger.Info("device deleted", "device_id", id, "sensors_removed", removed)
	e.observeHealthCounts()
	return removed, nil
}

// RegisterSensor registers a new sensor against an existing device.
func (e *Engine) RegisterSensor(input SensorInput) (Sensor, error) {
	sensor, err := e.sensors.Register(input)
	if err != nil {
		return Sensor{}, err
	}
	e.logger.Info("sensor registered", "sensor_id", sensor.ID, "device_id", sensor.DeviceID)
	e.observeHealthCounts()
	return sensor, nil
}

// GetSensor returns the sensor or a NotFoundError.
func (e *Engine) GetSensor(id string) (Sensor, error) {
	return e.sensors.Get(id)
}

// ListSensors returns one page of sensors matching the filter.
func (e *Engine) ListSensors(filter SensorFilter, page, limit int) ([]Sensor, Pagination) {
	return e.sensors.List(filter, page, limit)
}

// SensorHealthCounts returns the number of sensors in each health status.
func (e *Engine) SensorHealthCounts() map[HealthStatus]int {
	return e.sensors.HealthCounts()
}

// SensorHistory returns a copy of the sensor's bounded reading history in
// insertion order.
func (e *Engine) SensorHistory(id string) ([]DataPoint, error) {
	state := e.sensors.lookup(id)
	if state == nil {
		return nil, notFound("sensor", id)
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.removed {
		return nil, notFound("sensor", id)
	}
	return state.history.Snapshot(), nil
}

// IngestOne validates and appends a single reading. The history append and
// the health update happen atomically under the sensor's lock; two
// concurrent ingestions into the same sensor serialize, ingestions into
// different sensors proceed in parallel.
func (e *Engine) IngestOne(req IngestRequest) (DataPoint, error) {
	var timer *prometheus.Timer
	if e.metrics != nil {
		timer = prometheus.NewTimer(e.metrics.IngestDuration)
		defer timer.ObserveDuration()
	}

	point, rec, err := e.ingest(req)
	if err != nil {
		if e.metrics != nil {
			e.metrics.ReadingsIngested.WithLabelValues("rejected").Inc()
		}
		return DataPoint{}, err
	}

	if e.metrics != nil {
		e.metrics.ReadingsIngested.WithLabelValues("accepted").Inc()
	}

	if e.sink != nil {
		e.sink.Record(rec)
	}
	return point, nil
}

func (e *Engine) ingest(req IngestRequest) (DataPoint, ReadingRecord, error) {
	if req.SensorID == "" {
		return DataPoint{}, ReadingRecord{}, invalid("sensorId", "required")
	}
	if req.Value == nil {
		return DataPoint{}, ReadingRecord{}, invalid("value", "required")
	}

	state := e.sensors.lookup(req.SensorID)
	if state == nil {
		return DataPoint{}, ReadingRecord{}, notFound("sensor", req.SensorID)
	}

	now := e.now()
	point := DataPoint{
		Timestamp: now,
		Value:     *req.Value,
		Unit:      req.Unit,
		Quality:   req.Quality.Resolve(),
		Metadata:  cloneStringMap(req.Metadata),
	}
	if req.Timestamp != nil {
		point.Timestamp = *req.Timestamp
	}

	state.mu.Lock()
	if state.removed {
		state.mu.Unlock()
		return DataPoint{}, ReadingRecord{}, notFound("sensor", req.SensorID)
	}

	evicted := state.history.Append(point)
	before := state.sensor.Health.Status
	UpdateHealth(&state.sensor, point, now)
	after := state.sensor.Health.Status
	if after != before && after != HealthHealthy {
		state.sensor.Alerts = append(state.sensor.Alerts, healthAlert(before, after, now))
	}
	state.sensor.UpdatedAt = now

	rec := ReadingRecord{
		DataPoint:  point,
		SensorID:   state.sensor.ID,
		SensorName: state.sensor.Name,
		DeviceID:   state.sensor.DeviceID,
	}
	state.mu.Unlock()

	rec.DeviceName = e.devices.name(rec.DeviceID)
	e.devices.touch(rec.DeviceID, now)

	if evicted && e.metrics != nil {
		e.metrics.HistoryEvictions.Inc()
	}
	if after != before {
		// Refreshing the health gauge is an O(sensors) scan, so it runs
		// only when a status actually changed, not on every reading.
		e.observeHealthCounts()
		e.logger.Info("sensor health transition",
			"sensor_id", rec.SensorID,
			"from", string(before),
			"to", string(after),
		)
	}
	return point, rec, nil
}

func healthAlert(from, to HealthStatus, at time.Time) Alert {
	severity := "warning"
	if to == HealthFaulty {
		severity = "critical"
	}
	return Alert{
		Timestamp: at,
		Severity:  severity,
		Message:   fmt.Sprintf("health changed from %s to %s", from, to),
	}
}

// IngestBatch processes each item independently. One item's failure never
// aborts the rest; partial success is the normal outcome and
// ProcessedCount+FailedCount always equals len(items).
func (e *Engine) IngestBatch(items []IngestRequest) BatchResult {
	result := BatchResult{
		Results: []AcceptedReading{},
		Errors:  []BatchError{},
	}

	for i, item := range items {
		point, err := e.IngestOne(item)
		if err != nil {
			result.FailedCount++
			result.Errors = append(result.Errors, BatchError{
				Index:    i,
				SensorID: item.SensorID,
				Code:     errorCode(err),
				Message:  err.Error(),
			})
			continue
		}
		result.ProcessedCount++
		result.Results = append(result.Results, AcceptedReading{
			Index:    i,
			SensorID: item.SensorID,
			Point:    point,
		})
	}

	if e.metrics != nil {
		e.metrics.BatchSize.Observe(float64(len(items)))
	}
	return result
}

func errorCode(err error) string {
	switch {
	case IsValidation(err):
		return "validation"
	case IsNotFound(err):
		return "not_found"
	case IsConflict(err):
		return "conflict"
	default:
		return "internal"
	}
}

func (e *Engine) observeHealthCounts() {
	if e.metrics == nil {
		return
	}
	for status, n := range e.sensors.HealthCounts() {
		e.metrics.SensorsByHealth.WithLabelValues(string(status)).Set(float64(n))
	}
}
