package simulator_test

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sensorhub-io/sensorhub/pkg/simulator"
)

var _ = Describe("Simulator", func() {
	Describe("NewDeviceInput", func() {
		It("should generate a complete device registration payload", func() {
			input, err := simulator.NewDeviceInput()
			Expect(err).NotTo(HaveOccurred())

			Expect(input.Name).NotTo(BeEmpty())
			Expect(input.Type).To(BeElementOf("gateway", "controller", "edge-node", "datalogger"))

			Expect(input.Location).NotTo(BeNil())
			Expect(input.Location.Site).NotTo(BeEmpty())

			Expect(input.Connectivity).NotTo(BeNil())
			Expect(input.Connectivity.Protocol).To(Equal("mqtt"))
			Expect(input.Connectivity.Address).NotTo(BeEmpty())
			Expect(input.Connectivity.Port).To(BeNumerically(">=", 1024))

			Expect(input.Metadata).To(HaveKey("manufacturer"))
			Expect(input.Metadata).To(HaveKey("model"))
		})

		It("should generate distinct devices across calls", func() {
			names := map[string]bool{}
			for i := 0; i < 20; i++ {
				input, err := simulator.NewDeviceInput()
				Expect(err).NotTo(HaveOccurred())
				names[input.Name] = true
			}
			Expect(len(names)).To(BeNumerically(">", 1))
		})
	})

	Describe("NewSensorInput", func() {
		It("should bind the sensor to the given device", func() {
			input := simulator.NewSensorInput("device-123")
			Expect(input.DeviceID).To(Equal("device-123"))
			Expect(input.Name).NotTo(BeEmpty())
		})

		It("should generate a known sensor kind with a sane range", func() {
			input := simulator.NewSensorInput("device-123")
			Expect(input.Type).To(BeElementOf("temperature", "humidity", "pressure", "co2"))

			Expect(input.Specifications).NotTo(BeNil())
			Expect(input.Specifications.Range.Max).To(BeNumerically(">", input.Specifications.Range.Min))
			Expect(input.Specifications.SamplingRateHz).To(Equal(1.0))
		})
	})

	Describe("Unit", func() {
		It("should map sensor types to measurement units", func() {
			Expect(simulator.Unit("temperature")).To(Equal("celsius"))
			Expect(simulator.Unit("humidity")).To(Equal("percent"))
			Expect(simulator.Unit("pressure")).To(Equal("hPa"))
			Expect(simulator.Unit("co2")).To(Equal("ppm"))
		})

		It("should return empty for unknown types", func() {
			Expect(simulator.Unit("vibration")).To(BeEmpty())
		})
	})

	Describe("ReadingGenerator", func() {
		var gen *simulator.ReadingGenerator

		BeforeEach(func() {
			gen = simulator.NewReadingGenerator("sensor-1", "celsius", -20, 60)
		})

		It("should produce a fully populated ingest request", func() {
			now := time.Now().UTC()
			req := gen.Generate(now)

			Expect(req.SensorID).To(Equal("sensor-1"))
			Expect(req.Unit).To(Equal("celsius"))
			Expect(req.Value).NotTo(BeNil())
			Expect(req.Timestamp).NotTo(BeNil())
			Expect(*req.Timestamp).To(Equal(now))
		})

		It("should round values to two decimal places", func() {
			req := gen.Generate(time.Now().UTC())
			v := *req.Value
			Expect(v * 100).To(BeNumerically("~", math.Round(v*100), 1e-6))
		})

		It("should keep values near the baseline most of the time", func() {
			values := make([]float64, 0, 100)
			now := time.Now().UTC()
			for i := 0; i < 100; i++ {
				req := gen.Generate(now.Add(time.Duration(i) * time.Second))
				values = append(values, *req.Value)
			}

			// The generator spans at most baseline ± noise*(5+0.5+7.5), i.e.
			// well inside a few multiples of the configured range.
			for _, v := range values {
				Expect(v).To(BeNumerically(">", -20-80))
				Expect(v).To(BeNumerically("<", 60+80))
			}
		})
	})
})
