package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// sensorState bundles a sensor record with its bounded reading history.
// state.mu guards both: the history append and the health update on
// ingestion must be atomic as a unit, and readers must never observe a
// health record inconsistent with the data it was derived from.
type sensorState struct {
	mu      sync.Mutex
	sensor  Sensor
	history *readingRing
	removed bool
}

// SensorStore owns all registered sensors. It keeps a secondary index by
// device id so a device's cascade delete touches only the affected sensors
// instead of scanning the whole registry.
type SensorStore struct {
	mu       sync.RWMutex
	sensors  map[string]*sensorState
	byDevice map[string]map[string]*sensorState
	devices  *DeviceStore
	now      func() time.Time
}

func newSensorStore(devices *DeviceStore, now func() time.Time) *SensorStore {
	return &SensorStore{
		sensors:  make(map[string]*sensorState),
		byDevice: make(map[string]map[string]*sensorState),
		devices:  devices,
		now:      now,
	}
}

// Register validates the input, checks that the referenced device exists,
// applies specification and calibration defaults, and stores the sensor.
func (s *SensorStore) Register(input SensorInput) (Sensor, error) {
	if input.DeviceID == "" {
		return Sensor{}, invalid("deviceId", "required")
	}
	if input.Name == "" {
		return Sensor{}, invalid("name", "required")
	}
	if input.Type == "" {
		return Sensor{}, invalid("type", "required")
	}
	// A zero NextCalibration is not a violation: defaulting fills it from
	// the last calibration below.
	if input.Calibration != nil &&
		!input.Calibration.NextCalibration.IsZero() &&
		input.Calibration.NextCalibration.Before(input.Calibration.LastCalibrated) {
		return Sensor{}, invalid("calibration", "nextCalibration must not precede lastCalibrated")
	}

	now := s.now()

	// Registration and cascade delete both hold s.mu while consulting the
	// device store, so a sensor can never be attached to a device that a
	// concurrent delete is tearing down.
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.devices.exists(input.DeviceID) {
		return Sensor{}, notFound("device", input.DeviceID)
	}

	sensor := Sensor{
		ID:             uuid.NewString(),
		DeviceID:       input.DeviceID,
		Name:           input.Name,
		Type:           input.Type,
		Category:       input.Category,
		Specifications: defaultSpecifications(input.Specifications),
		Calibration:    defaultCalibration(input.Calibration, now),
		Alerts:         []Alert{},
		Health: Health{
			Status:            HealthHealthy,
			ErrorRate:         0,
			CalibrationStatus: CalibrationValid,
			Uptime:            100,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if sensor.Category == "" {
		sensor.Category = DefaultSensorCategory
	}

	state := &sensorState{
		sensor:  sensor,
		history: newReadingRing(HistoryCapacity),
	}
	s.sensors[sensor.ID] = state
	if s.byDevice[sensor.DeviceID] == nil {
		s.byDevice[sensor.DeviceID] = make(map[string]*sensorState)
	}
	s.byDevice[sensor.DeviceID][sensor.ID] = state

	return cloneSensor(&sensor, state.history.Len()), nil
}

func defaultSpecifications(in *Specifications) Specifications {
	spec := Specifications{
		Range:          Range{Min: 0, Max: 100},
		SamplingRateHz: DefaultSamplingRateHz,
	}
	if in != nil {
		spec = *in
		if spec.Range == (Range{}) {
			spec.Range = Range{Min: 0, Max: 100}
		}
		if spec.SamplingRateHz <= 0 {
			spec.SamplingRateHz = DefaultSamplingRateHz
		}
	}
	return spec
}

func defaultCalibration(in *Calibration, now time.Time) Calibration {
	if in == nil {
		return Calibration{
			LastCalibrated:  now,
			NextCalibration: now.Add(DefaultCalibrationValidity),
			Method:          "factory",
			Certified:       true,
		}
	}
	cal := *in
	cal.Standards = append([]string(nil), in.Standards...)
	cal.Coefficients = append([]float64(nil), in.Coefficients...)
	if cal.LastCalibrated.IsZero() {
		cal.LastCalibrated = now
	}
	if cal.NextCalibration.IsZero() {
		cal.NextCalibration = cal.LastCalibrated.Add(DefaultCalibrationValidity)
	}
	return cal
}

// Get returns a snapshot of the sensor or a NotFoundError. The snapshot is
// taken under the sensor's lock, so health and data count are consistent.
func (s *SensorStore) Get(id string) (Sensor, error) {
	state := s.lookup(id)
	if state == nil {
		return Sensor{}, notFound("sensor", id)
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	if state.removed {
		return Sensor{}, notFound("sensor", id)
	}
	return cloneSensor(&state.sensor, state.history.Len()), nil
}

// List returns the page of sensors matching the filter, ordered by creation
// time. Filters are conjunctive; empty filter fields match everything.
func (s *SensorStore) List(filter SensorFilter, page, limit int) ([]Sensor, Pagination) {
	matched := make([]Sensor, 0)
	for _, state := range s.states() {
		state.mu.Lock()
		if !state.removed && matchSensor(&state.sensor, filter) {
			matched = append(matched, cloneSensor(&state.sensor, state.history.Len()))
		}
		state.mu.Unlock()
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return paginate(matched, page, limit)
}

func matchSensor(sensor *Sensor, filter SensorFilter) bool {
	if filter.DeviceID != "" && sensor.DeviceID != filter.DeviceID {
		return false
	}
	if filter.Type != "" && sensor.Type != filter.Type {
		return false
	}
	if filter.Category != "" && sensor.Category != filter.Category {
		return false
	}
	return true
}

// HealthCounts returns the number of sensors in each health status, for
// summary responses.
func (s *SensorStore) HealthCounts() map[HealthStatus]int {
	counts := map[HealthStatus]int{
		HealthHealthy:  0,
		HealthDegraded: 0,
		HealthFaulty:   0,
	}
	for _, state := range s.states() {
		state.mu.Lock()
		if !state.removed {
			counts[state.sensor.Health.Status]++
		}
		state.mu.Unlock()
	}
	return counts
}

// DeleteDeviceCascade removes the device and every sensor attached to it.
// The device row and all affected sensors disappear from the maps in one
// critical section, so no reader can observe a half-deleted cascade; the
// removed flag then stops in-flight ingestions that already hold a state
// pointer. Returns the number of sensors removed, or a NotFoundError when
// the device does not exist.
func (s *SensorStore) DeleteDeviceCascade(deviceID string) (int, error) {
	s.mu.Lock()
	if !s.devices.remove(deviceID) {
		s.mu.Unlock()
		return 0, notFound("device", deviceID)
	}

	attached := s.byDevice[deviceID]
	delete(s.byDevice, deviceID)
	states := make([]*sensorState, 0, len(attached))
	for id, state := range attached {
		delete(s.sensors, id)
		states = append(states, state)
	}
	s.mu.Unlock()

	for _, state := range states {
		state.mu.Lock()
		state.removed = true
		state.mu.Unlock()
	}
	return len(states), nil
}

// lookup returns the live state for id, or nil.
func (s *SensorStore) lookup(id string) *sensorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sensors[id]
}

// states returns a stable snapshot of all current sensor states.
func (s *SensorStore) states() []*sensorState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*sensorState, 0, len(s.sensors))
	for _, state := range s.sensors {
		out = append(out, state)
	}
	return out
}

func cloneSensor(sensor *Sensor, dataCount int) Sensor {
	out := *sensor
	out.Alerts = append([]Alert(nil), sensor.Alerts...)
	out.Calibration.Standards = append([]string(nil), sensor.Calibration.Standards...)
	out.Calibration.Coefficients = append([]float64(nil), sensor.Calibration.Coefficients...)
	out.DataCount = dataCount
	return out
}
