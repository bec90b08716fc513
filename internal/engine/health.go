package engine

import "time"

// Health scoring policy constants. These are inherited operating decisions,
// not derivable values; recalibrating them changes every deployed fleet's
// status distribution.
const (
	// A reading older than lateFactor expected intervals counts as late.
	lateFactor = 5

	uptimePenalty = 5.0
	uptimeReward  = 1.0

	// Readings below this accuracy, or flagged invalid, raise the error rate.
	accuracyFloor = 80.0

	errorRatePenalty = 1.0
	errorRateDecay   = 0.1

	faultyErrorRate   = 20.0
	degradedErrorRate = 10.0
	degradedUptime    = 90.0
)

// DeriveHealthStatus classifies a sensor from its error rate, uptime and
// calibration status. Precedence: faulty conditions are checked first, then
// degraded, else healthy. Calibration expiry forces faulty regardless of how
// clean the readings are.
func DeriveHealthStatus(errorRate, uptime float64, cal CalibrationStatus) HealthStatus {
	if errorRate > faultyErrorRate || cal == CalibrationExpired {
		return HealthFaulty
	}
	if errorRate > degradedErrorRate || uptime < degradedUptime {
		return HealthDegraded
	}
	return HealthHealthy
}

// expectedInterval is the reporting interval implied by the sampling rate.
func expectedInterval(spec Specifications) time.Duration {
	rate := spec.SamplingRateHz
	if rate <= 0 {
		rate = DefaultSamplingRateHz
	}
	return time.Duration(float64(time.Second) / rate)
}

// UpdateHealth folds one accepted reading into the sensor's health record.
// It is a pure derivation over the sensor, the new point and the current
// time; the caller holds the sensor's lock so the update is atomic with the
// history append. Uptime and error rate stay clamped to [0, 100].
func UpdateHealth(sensor *Sensor, point DataPoint, now time.Time) {
	h := &sensor.Health
	h.LastReading = point.Timestamp

	if now.Sub(point.Timestamp) > lateFactor*expectedInterval(sensor.Specifications) {
		h.Uptime = max(0, h.Uptime-uptimePenalty)
	} else {
		h.Uptime = min(100, h.Uptime+uptimeReward)
	}

	if now.After(sensor.Calibration.NextCalibration) {
		h.CalibrationStatus = CalibrationExpired
	}

	if point.Quality.Accuracy < accuracyFloor || !point.Quality.Validity {
		h.ErrorRate = min(100, h.ErrorRate+errorRatePenalty)
	} else {
		h.ErrorRate = max(0, h.ErrorRate-errorRateDecay)
	}

	h.Status = DeriveHealthStatus(h.ErrorRate, h.Uptime, h.CalibrationStatus)
}
