package engine_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sensorhub-io/sensorhub/internal/engine"
)

var _ = Describe("Health", func() {
	Describe("DeriveHealthStatus", func() {
		DescribeTable("classifies from error rate, uptime and calibration",
			func(errorRate, uptime float64, cal engine.CalibrationStatus, want engine.HealthStatus) {
				Expect(engine.DeriveHealthStatus(errorRate, uptime, cal)).To(Equal(want))
			},

			Entry("clean sensor is healthy", 0.0, 100.0, engine.CalibrationValid, engine.HealthHealthy),
			Entry("error rate at 10 is still healthy", 10.0, 100.0, engine.CalibrationValid, engine.HealthHealthy),
			Entry("error rate just above 10 is degraded", 10.1, 100.0, engine.CalibrationValid, engine.HealthDegraded),
			Entry("error rate at 20 is degraded, not faulty", 20.0, 100.0, engine.CalibrationValid, engine.HealthDegraded),
			Entry("error rate just above 20 is faulty", 20.1, 100.0, engine.CalibrationValid, engine.HealthFaulty),

			Entry("uptime at 90 is healthy", 0.0, 90.0, engine.CalibrationValid, engine.HealthHealthy),
			Entry("uptime just below 90 is degraded", 0.0, 89.9, engine.CalibrationValid, engine.HealthDegraded),
			Entry("low uptime alone never reaches faulty", 0.0, 0.0, engine.CalibrationValid, engine.HealthDegraded),

			Entry("expired calibration forces faulty on a clean sensor", 0.0, 100.0, engine.CalibrationExpired, engine.HealthFaulty),
			Entry("expired calibration outranks degraded conditions", 15.0, 50.0, engine.CalibrationExpired, engine.HealthFaulty),

			Entry("faulty outranks degraded", 25.0, 50.0, engine.CalibrationValid, engine.HealthFaulty),
		)
	})

	Describe("UpdateHealth", func() {
		var (
			sensor engine.Sensor
			now    time.Time
		)

		point := func(ts time.Time, accuracy float64, valid bool) engine.DataPoint {
			return engine.DataPoint{
				Timestamp: ts,
				Value:     21.5,
				Quality: engine.Quality{
					Accuracy:   accuracy,
					Validity:   valid,
					Confidence: 90,
				},
			}
		}

		BeforeEach(func() {
			now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
			sensor = engine.Sensor{
				Specifications: engine.Specifications{SamplingRateHz: 1},
				Calibration: engine.Calibration{
					LastCalibrated:  now.Add(-24 * time.Hour),
					NextCalibration: now.Add(30 * 24 * time.Hour),
				},
				Health: engine.Health{
					Status:            engine.HealthHealthy,
					Uptime:            100,
					ErrorRate:         0,
					CalibrationStatus: engine.CalibrationValid,
				},
			}
		})

		It("records the reading timestamp", func() {
			engine.UpdateHealth(&sensor, point(now, 95, true), now)
			Expect(sensor.Health.LastReading).To(Equal(now))
		})

		It("rewards an on-time reading and caps uptime at 100", func() {
			engine.UpdateHealth(&sensor, point(now, 95, true), now)
			Expect(sensor.Health.Uptime).To(Equal(100.0))

			sensor.Health.Uptime = 97.5
			engine.UpdateHealth(&sensor, point(now, 95, true), now)
			Expect(sensor.Health.Uptime).To(Equal(98.5))
		})

		It("penalizes a reading older than five expected intervals", func() {
			late := point(now.Add(-6*time.Second), 95, true)
			engine.UpdateHealth(&sensor, late, now)
			Expect(sensor.Health.Uptime).To(Equal(95.0))
		})

		It("treats a reading at exactly five intervals as on time", func() {
			onTime := point(now.Add(-5*time.Second), 95, true)
			sensor.Health.Uptime = 50
			engine.UpdateHealth(&sensor, onTime, now)
			Expect(sensor.Health.Uptime).To(Equal(51.0))
		})

		It("scales the lateness window with the sampling rate", func() {
			sensor.Specifications.SamplingRateHz = 10 // expected interval 100ms
			late := point(now.Add(-time.Second), 95, true)
			engine.UpdateHealth(&sensor, late, now)
			Expect(sensor.Health.Uptime).To(Equal(95.0))
		})

		It("clamps uptime at 0", func() {
			sensor.Health.Uptime = 3
			late := point(now.Add(-time.Minute), 95, true)
			engine.UpdateHealth(&sensor, late, now)
			Expect(sensor.Health.Uptime).To(Equal(0.0))
		})

		It("raises the error rate on low accuracy", func() {
			engine.UpdateHealth(&sensor, point(now, 50, true), now)
			Expect(sensor.Health.ErrorRate).To(Equal(1.0))
		})

		It("raises the error rate on an invalid reading", func() {
			engine.UpdateHealth(&sensor, point(now, 95, false), now)
			Expect(sensor.Health.ErrorRate).To(Equal(1.0))
		})

		It("treats accuracy at exactly 80 as acceptable", func() {
			sensor.Health.ErrorRate = 5
			engine.UpdateHealth(&sensor, point(now, 80, true), now)
			Expect(sensor.Health.ErrorRate).To(BeNumerically("~", 4.9, 1e-9))
		})

		It("decays the error rate on a good reading and clamps at 0", func() {
			sensor.Health.ErrorRate = 0.05
			engine.UpdateHealth(&sensor, point(now, 95, true), now)
			Expect(sensor.Health.ErrorRate).To(Equal(0.0))
		})

		It("marks calibration expired once the due date passes", func() {
			sensor.Calibration.NextCalibration = now.Add(-time.Hour)
			engine.UpdateHealth(&sensor, point(now, 95, true), now)
			Expect(sensor.Health.CalibrationStatus).To(Equal(engine.CalibrationExpired))
			Expect(sensor.Health.Status).To(Equal(engine.HealthFaulty))
		})

		It("derives the status from the updated scores", func() {
			sensor.Health.ErrorRate = 10.5
			engine.UpdateHealth(&sensor, point(now, 50, true), now)
			Expect(sensor.Health.ErrorRate).To(Equal(11.5))
			Expect(sensor.Health.Status).To(Equal(engine.HealthDegraded))
		})
	})
})
