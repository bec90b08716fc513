package engine

import "sort"

// ListReadings gathers data points from every sensor matching the filter,
// attaches sensor and device identity to each, sorts newest first and
// paginates. It is read-only: concurrent ingestions may land before or after
// the per-sensor snapshot, but each sensor's history and health are never
// observed mid-update.
func (e *Engine) ListReadings(filter ReadingFilter, page, limit int) ([]ReadingRecord, Pagination) {
	records := make([]ReadingRecord, 0)

	for _, state := range e.sensors.states() {
		state.mu.Lock()
		if state.removed ||
			(filter.SensorID != "" && state.sensor.ID != filter.SensorID) ||
			(filter.DeviceID != "" && state.sensor.DeviceID != filter.DeviceID) {
			state.mu.Unlock()
			continue
		}
		sensorID := state.sensor.ID
		sensorName := state.sensor.Name
		deviceID := state.sensor.DeviceID
		points := state.history.Snapshot()
		state.mu.Unlock()

		deviceName := e.devices.name(deviceID)
		for _, p := range points {
			if filter.Start != nil && p.Timestamp.Before(*filter.Start) {
				continue
			}
			if filter.End != nil && p.Timestamp.After(*filter.End) {
				continue
			}
			records = append(records, ReadingRecord{
				DataPoint:  p,
				SensorID:   sensorID,
				SensorName: sensorName,
				DeviceID:   deviceID,
				DeviceName: deviceName,
			})
		}
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})

	return paginate(records, page, limit)
}
