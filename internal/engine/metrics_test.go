package engine_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sensorhub-io/sensorhub/internal/engine"
	"github.com/sensorhub-io/sensorhub/pkg/metrics"
)

// Registered once for the whole suite; the registry rejects duplicates.
var engineMetrics = metrics.NewEngineMetrics("engine_suite")

var _ = Describe("Health gauge", func() {
	var (
		eng      *engine.Engine
		clock    time.Time
		deviceID string
		sensorID string
	)

	byHealth := func(status string) float64 {
		return testutil.ToFloat64(engineMetrics.SensorsByHealth.WithLabelValues(status))
	}

	BeforeEach(func() {
		clock = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		var err error
		eng, err = engine.New(&engine.Config{
			Logger:  testLogger(),
			Metrics: engineMetrics,
			Now:     func() time.Time { return clock },
		})
		Expect(err).NotTo(HaveOccurred())

		device, err := eng.RegisterDevice(deviceInput("edge-gw-1"))
		Expect(err).NotTo(HaveOccurred())
		deviceID = device.ID

		sensor, err := eng.RegisterSensor(engine.SensorInput{
			DeviceID: deviceID,
			Name:     "temp-1",
			Type:     "temperature",
		})
		Expect(err).NotTo(HaveOccurred())
		sensorID = sensor.ID
	})

	It("tracks registration, health transitions and cascade deletes", func() {
		Expect(byHealth("healthy")).To(Equal(1.0))
		Expect(byHealth("degraded")).To(Equal(0.0))
		Expect(byHealth("faulty")).To(Equal(0.0))

		// Sustained bad accuracy crosses the degraded threshold on the
		// 11th reading.
		for i := 0; i < 11; i++ {
			_, err := eng.IngestOne(engine.IngestRequest{
				SensorID: sensorID,
				Value:    floatPtr(23.5),
				Quality:  &engine.QualityInput{Accuracy: floatPtr(50)},
			})
			Expect(err).NotTo(HaveOccurred())
		}

		sensor, err := eng.GetSensor(sensorID)
		Expect(err).NotTo(HaveOccurred())
		Expect(sensor.Health.Status).To(Equal(engine.HealthDegraded))

		Expect(byHealth("healthy")).To(Equal(0.0))
		Expect(byHealth("degraded")).To(Equal(1.0))

		_, err = eng.DeleteDevice(deviceID)
		Expect(err).NotTo(HaveOccurred())

		Expect(byHealth("healthy")).To(Equal(0.0))
		Expect(byHealth("degraded")).To(Equal(0.0))
		Expect(byHealth("faulty")).To(Equal(0.0))
	})
})
