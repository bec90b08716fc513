// Package engine implements the sensorhub core: device and sensor registries,
// telemetry ingestion with bounded per-sensor history, health scoring, and the
// read-only query layer. The engine holds all state in memory behind explicit
// store objects and is safe for concurrent use.
package engine

import "time"

// DeviceStatus is the lifecycle status of a device.
type DeviceStatus string

const (
	DeviceOnline      DeviceStatus = "online"
	DeviceOffline     DeviceStatus = "offline"
	DeviceDegraded    DeviceStatus = "degraded"
	DeviceMaintenance DeviceStatus = "maintenance"
)

// HealthStatus is the derived three-state classification of a sensor.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthFaulty   HealthStatus = "faulty"
)

// CalibrationStatus reports whether a sensor's calibration is still valid.
type CalibrationStatus string

const (
	CalibrationValid   CalibrationStatus = "valid"
	CalibrationExpired CalibrationStatus = "expired"
)

const (
	// DefaultDeviceCategory is assigned when registration omits a category.
	DefaultDeviceCategory = "monitoring"
	// DefaultSensorCategory is assigned when registration omits a category.
	DefaultSensorCategory = "general"

	// HistoryCapacity is the fixed per-sensor reading history size. When a
	// sensor is at capacity the oldest reading is evicted on append.
	HistoryCapacity = 1000

	// DefaultCalibrationValidity is applied when a sensor is registered
	// without calibration metadata.
	DefaultCalibrationValidity = 365 * 24 * time.Hour

	// DefaultSamplingRateHz is assumed when specifications omit a sampling
	// rate; the health engine needs a nonzero rate to derive the expected
	// reporting interval.
	DefaultSamplingRateHz = 1.0
)

// Quality defaults applied per omitted field on ingestion.
const (
	DefaultQualityAccuracy     = 95.0
	DefaultQualityCompleteness = 100.0
	DefaultQualityConsistency  = 95.0
	DefaultQualityTimeliness   = 100.0
	DefaultQualityConfidence   = 90.0
)

// Connectivity describes how a device is reached. Protocol is required at
// registration.
type Connectivity struct {
	Protocol string `json:"protocol"`
	Address  string `json:"address,omitempty"`
	Port     int    `json:"port,omitempty"`
}

// Location places a device physically. All fields are optional.
type Location struct {
	Site      string  `json:"site,omitempty"`
	Building  string  `json:"building,omitempty"`
	Zone      string  `json:"zone,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// DeviceHealth is the coarse device-level health record.
type DeviceHealth struct {
	Overall string `json:"overall"`
}

// Device is a physical or logical endpoint that owns zero or more sensors.
type Device struct {
	ID           string            `json:"id"`
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Category     string            `json:"category"`
	Status       DeviceStatus      `json:"status"`
	Capabilities []string          `json:"capabilities"`
	Location     Location          `json:"location"`
	Connectivity Connectivity      `json:"connectivity"`
	Metadata     map[string]string `json:"metadata"`
	Health       DeviceHealth      `json:"health"`
	LastSeen     time.Time         `json:"lastSeen"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// Range bounds the values a sensor is specified to produce.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Specifications describe a sensor's measurement characteristics.
type Specifications struct {
	Range               Range   `json:"range"`
	Precision           float64 `json:"precision,omitempty"`
	Accuracy            float64 `json:"accuracy,omitempty"`
	Resolution          float64 `json:"resolution,omitempty"`
	ResponseTimeMs      float64 `json:"responseTimeMs,omitempty"`
	SamplingRateHz      float64 `json:"samplingRateHz"`
	OperatingConditions string  `json:"operatingConditions,omitempty"`
	PowerRequirements   string  `json:"powerRequirements,omitempty"`
}

// Calibration records when a sensor was last calibrated and when the next
// calibration is due. Invariant: NextCalibration >= LastCalibrated.
type Calibration struct {
	LastCalibrated  time.Time `json:"lastCalibrated"`
	NextCalibration time.Time `json:"nextCalibration"`
	Method          string    `json:"method,omitempty"`
	Standards       []string  `json:"standards,omitempty"`
	Coefficients    []float64 `json:"coefficients,omitempty"`
	Certified       bool      `json:"certified"`
}

// Health is the derived health record of a sensor. Status is always a pure
// function of ErrorRate, Uptime and CalibrationStatus.
type Health struct {
	Status            HealthStatus      `json:"status"`
	ErrorRate         float64           `json:"errorRate"`
	CalibrationStatus CalibrationStatus `json:"calibrationStatus"`
	Uptime            float64           `json:"uptime"`
	LastReading       time.Time         `json:"lastReading"`
}

// Alert is an append-only record of a health transition.
type Alert struct {
	Timestamp time.Time `json:"timestamp"`
	Severity  string    `json:"severity"`
	Message   string    `json:"message"`
}

// Sensor is a telemetry source attached to a device. Its bounded reading
// history is held by the store and exposed through the query layer; DataCount
// reports the current history length.
type Sensor struct {
	ID             string         `json:"id"`
	DeviceID       string         `json:"deviceId"`
	Name           string         `json:"name"`
	Type           string         `json:"type"`
	Category       string         `json:"category"`
	Specifications Specifications `json:"specifications"`
	Calibration    Calibration    `json:"calibration"`
	Alerts         []Alert        `json:"alerts"`
	Health         Health         `json:"health"`
	DataCount      int            `json:"dataCount"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// Quality is the resolved quality assessment attached to a data point.
type Quality struct {
	Accuracy     float64 `json:"accuracy"`
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Timeliness   float64 `json:"timeliness"`
	Validity     bool    `json:"validity"`
	Confidence   float64 `json:"confidence"`
}

// QualityInput carries caller-supplied quality fields. Nil fields take the
// documented defaults, so a partially specified quality is filled in per
// field rather than all-or-nothing.
type QualityInput struct {
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Completeness *float64 `json:"completeness,omitempty"`
	Consistency  *float64 `json:"consistency,omitempty"`
	Timeliness   *float64 `json:"timeliness,omitempty"`
	Validity     *bool    `json:"validity,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
}

// Resolve applies defaults for every field the caller omitted. A nil input
// yields the full default quality.
func (q *QualityInput) Resolve() Quality {
	out := Quality{
		Accuracy:     DefaultQualityAccuracy,
		Completeness: DefaultQualityCompleteness,
		Consistency:  DefaultQualityConsistency,
		Timeliness:   DefaultQualityTimeliness,
		Validity:     true,
		Confidence:   DefaultQualityConfidence,
	}
	if q == nil {
		return out
	}
	if q.Accuracy != nil {
		out.Accuracy = *q.Accuracy
	}
	if q.Completeness != nil {
		out.Completeness = *q.Completeness
	}
	if q.Consistency != nil {
		out.Consistency = *q.Consistency
	}
	if q.Timeliness != nil {
		out.Timeliness = *q.Timeliness
	}
	if q.Validity != nil {
		out.Validity = *q.Validity
	}
	if q.Confidence != nil {
		out.Confidence = *q.Confidence
	}
	return out
}

// DataPoint is one timestamped reading with its quality assessment.
type DataPoint struct {
	Timestamp time.Time         `json:"timestamp"`
	Value     float64           `json:"value"`
	Unit      string            `json:"unit,omitempty"`
	Quality   Quality           `json:"quality"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ReadingRecord is a data point enriched with the identity of the sensor and
// device it belongs to, as returned by the query layer.
type ReadingRecord struct {
	DataPoint
	SensorID   string `json:"sensorId"`
	SensorName string `json:"sensorName"`
	DeviceID   string `json:"deviceId"`
	DeviceName string `json:"deviceName"`
}

// DeviceInput is the registration payload for a device.
type DeviceInput struct {
	Name         string            `json:"name"`
	Type         string            `json:"type"`
	Category     string            `json:"category,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Location     *Location         `json:"location,omitempty"`
	Connectivity *Connectivity     `json:"connectivity,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// DevicePatch is a partial update. Nil fields are left unchanged; the device
// id is immutable.
type DevicePatch struct {
	Name         *string           `json:"name,omitempty"`
	Type         *string           `json:"type,omitempty"`
	Category     *string           `json:"category,omitempty"`
	Status       *DeviceStatus     `json:"status,omitempty"`
	Capabilities []string          `json:"capabilities,omitempty"`
	Location     *Location         `json:"location,omitempty"`
	Connectivity *Connectivity     `json:"connectivity,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// SensorInput is the registration payload for a sensor.
type SensorInput struct {
	DeviceID       string          `json:"deviceId"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	Category       string          `json:"category,omitempty"`
	Specifications *Specifications `json:"specifications,omitempty"`
	Calibration    *Calibration    `json:"calibration,omitempty"`
}

// IngestRequest is one reading submitted for ingestion. Value is required;
// everything else takes defaults when omitted.
type IngestRequest struct {
	SensorID  string            `json:"sensorId"`
	Value     *float64          `json:"value"`
	Unit      string            `json:"unit,omitempty"`
	Quality   *QualityInput     `json:"quality,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp *time.Time        `json:"timestamp,omitempty"`
}

// AcceptedReading pairs a batch item index with the data point that was
// appended for it.
type AcceptedReading struct {
	Index    int       `json:"index"`
	SensorID string    `json:"sensorId"`
	Point    DataPoint `json:"point"`
}

// BatchError records a single failed batch item. Code is the error kind
// ("not_found", "validation" or "internal").
type BatchError struct {
	Index    int    `json:"index"`
	SensorID string `json:"sensorId,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// BatchResult summarizes a batch ingestion. ProcessedCount+FailedCount always
// equals the number of submitted items.
type BatchResult struct {
	ProcessedCount int               `json:"processedCount"`
	FailedCount    int               `json:"failedCount"`
	Results        []AcceptedReading `json:"results"`
	Errors         []BatchError      `json:"errors"`
}

// ReadingSink observes accepted readings. Implementations must not block;
// the engine calls Record synchronously on the ingestion path, outside the
// per-sensor critical section.
type ReadingSink interface {
	Record(rec ReadingRecord)
}

// DeviceFilter narrows ListDevices results. Empty fields match everything.
type DeviceFilter struct {
	Type   string
	Status string
}

// SensorFilter narrows ListSensors results. Empty fields match everything.
type SensorFilter struct {
	DeviceID string
	Type     string
	Category string
}

// ReadingFilter narrows ListReadings results. Nil times are open-ended.
type ReadingFilter struct {
	SensorID string
	DeviceID string
	Start    *time.Time
	End      *time.Time
}
