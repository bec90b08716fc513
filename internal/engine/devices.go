package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeviceStore owns all registered devices. It is constructed once per engine
// and passed by reference; there is no package-level state, so tests can run
// isolated instances side by side.
type DeviceStore struct {
	mu      sync.RWMutex
	devices map[string]*Device
	now     func() time.Time
}

func newDeviceStore(now func() time.Time) *DeviceStore {
	return &DeviceStore{
		devices: make(map[string]*Device),
		now:     now,
	}
}

func validDeviceStatus(s DeviceStatus) bool {
	switch s {
	case DeviceOnline, DeviceOffline, DeviceDegraded, DeviceMaintenance:
		return true
	}
	return false
}

// Register validates the input, assigns an identifier and stores the device.
// New devices always start offline with overall health "good".
func (s *DeviceStore) Register(input DeviceInput) (Device, error) {
	if input.Name == "" {
		return Device{}, invalid("name", "required")
	}
	if input.Type == "" {
		return Device{}, invalid("type", "required")
	}
	if input.Connectivity == nil || input.Connectivity.Protocol == "" {
		return Device{}, invalid("connectivity", "protocol is required")
	}

	now := s.now()
	d := &Device{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Type:         input.Type,
		Category:     input.Category,
		Status:       DeviceOffline,
		Capabilities: append([]string(nil), input.Capabilities...),
		Connectivity: *input.Connectivity,
		Metadata:     cloneStringMap(input.Metadata),
		Health:       DeviceHealth{Overall: "good"},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if d.Category == "" {
		d.Category = DefaultDeviceCategory
	}
	if input.Location != nil {
		d.Location = *input.Location
	}
	if d.Metadata == nil {
		d.Metadata = map[string]string{}
	}

	s.mu.Lock()
	s.devices[d.ID] = d
	s.mu.Unlock()

	return cloneDevice(d), nil
}

// Get returns a copy of the device or a NotFoundError.
func (s *DeviceStore) Get(id string) (Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.devices[id]
	if !ok {
		return Device{}, notFound("device", id)
	}
	return cloneDevice(d), nil
}

// List returns the page of devices matching the filter, ordered by creation
// time. Filters are conjunctive; empty filter fields match everything.
func (s *DeviceStore) List(filter DeviceFilter, page, limit int) ([]Device, Pagination) {
	s.mu.RLock()
	matched := make([]Device, 0, len(s.devices))
	for _, d := range s.devices {
		if filter.Type != "" && d.Type != filter.Type {
			continue
		}
		if filter.Status != "" && string(d.Status) != filter.Status {
			continue
		}
		matched = append(matched, cloneDevice(d))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	return paginate(matched, page, limit)
}

// Update merges the patch into the stored device. The id is immutable and
// UpdatedAt is bumped on every successful patch.
func (s *DeviceStore) Update(id string, patch DevicePatch) (Device, error) {
	if patch.Status != nil && !validDeviceStatus(*patch.Status) {
		return Device{}, invalid("status", "must be one of online, offline, degraded, maintenance")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[id]
	if !ok {
		return Device{}, notFound("device", id)
	}

	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if patch.Type != nil {
		d.Type = *patch.Type
	}
	if patch.Category != nil {
		d.Category = *patch.Category
	}
	if patch.Status != nil {
		d.Status = *patch.Status
	}
	if patch.Capabilities != nil {
		d.Capabilities = append([]string(nil), patch.Capabilities...)
	}
	if patch.Location != nil {
		d.Location = *patch.Location
	}
	if patch.Connectivity != nil {
		d.Connectivity = *patch.Connectivity
	}
	if patch.Metadata != nil {
		d.Metadata = cloneStringMap(patch.Metadata)
	}
	d.UpdatedAt = s.now()

	return cloneDevice(d), nil
}

// exists reports whether the device id is registered.
func (s *DeviceStore) exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.devices[id]
	return ok
}

// name returns the device name, or "" when the device is gone.
func (s *DeviceStore) name(id string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if d, ok := s.devices[id]; ok {
		return d.Name
	}
	return ""
}

// touch updates LastSeen after one of the device's sensors ingested data.
func (s *DeviceStore) touch(id string, t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.devices[id]; ok {
		d.LastSeen = t
	}
}

// remove deletes the device record. The sensor cascade is driven by the
// sensor store, which calls remove while holding its own lock so no new
// sensor can be registered against a dying device.
func (s *DeviceStore) remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return false
	}
	delete(s.devices, id)
	return true
}

func cloneDevice(d *Device) Device {
	out := *d
	out.Capabilities = append([]string(nil), d.Capabilities...)
	out.Metadata = cloneStringMap(d.Metadata)
	return out
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
