package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sensorhub-io/sensorhub/internal/api"
	"github.com/sensorhub-io/sensorhub/internal/engine"
)

var _ = Describe("Handlers", func() {
	var (
		eng     *engine.Engine
		handler http.Handler
	)

	do := func(method, path string, body any) *httptest.ResponseRecorder {
		var reader *bytes.Reader
		if body != nil {
			payload, err := json.Marshal(body)
			Expect(err).NotTo(HaveOccurred())
			reader = bytes.NewReader(payload)
		} else {
			reader = bytes.NewReader(nil)
		}

		req := httptest.NewRequest(method, path, reader)
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	decodeBody := func(rec *httptest.ResponseRecorder, dst any) {
		Expect(json.NewDecoder(rec.Body).Decode(dst)).To(Succeed())
	}

	registerDevice := func(name string) engine.Device {
		rec := do(http.MethodPost, "/api/devices", engine.DeviceInput{
			Name:         name,
			Type:         "gateway",
			Connectivity: &engine.Connectivity{Protocol: "mqtt"},
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var device engine.Device
		decodeBody(rec, &device)
		return device
	}

	registerSensor := func(deviceID, name string) engine.Sensor {
		rec := do(http.MethodPost, "/api/sensors", engine.SensorInput{
			DeviceID: deviceID,
			Name:     name,
			Type:     "temperature",
		})
		Expect(rec.Code).To(Equal(http.StatusCreated))
		var sensor engine.Sensor
		decodeBody(rec, &sensor)
		return sensor
	}

	BeforeEach(func() {
		var err error
		eng, err = engine.New(&engine.Config{Logger: testLogger()})
		Expect(err).NotTo(HaveOccurred())

		server, err := api.NewServer(&api.ServerConfig{
			Logger:   testLogger(),
			Engine:   eng,
			HTTPPort: 8080,
		})
		Expect(err).NotTo(HaveOccurred())
		handler = server.Handler()
	})

	Describe("device endpoints", func() {
		It("registers and fetches a device", func() {
			device := registerDevice("edge-gw-1")
			Expect(device.ID).NotTo(BeEmpty())

			rec := do(http.MethodGet, "/api/devices/"+device.ID, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var got engine.Device
			decodeBody(rec, &got)
			Expect(got.Name).To(Equal("edge-gw-1"))
			Expect(got.Status).To(Equal(engine.DeviceOffline))
		})

		It("rejects an invalid registration with 400", func() {
			rec := do(http.MethodPost, "/api/devices", engine.DeviceInput{Type: "gateway"})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))

			var resp struct {
				Error struct {
					Code    string `json:"code"`
					Message string `json:"message"`
				} `json:"error"`
			}
			decodeBody(rec, &resp)
			Expect(resp.Error.Code).To(Equal("validation"))
		})

		It("rejects a malformed body with 400", func() {
			req := httptest.NewRequest(http.MethodPost, "/api/devices", strings.NewReader("{not json"))
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 404 for an unknown device", func() {
			rec := do(http.MethodGet, "/api/devices/missing", nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("patches a device", func() {
			device := registerDevice("edge-gw-1")

			rec := do(http.MethodPatch, "/api/devices/"+device.ID, map[string]any{
				"status": "online",
			})
			Expect(rec.Code).To(Equal(http.StatusOK))

			var got engine.Device
			decodeBody(rec, &got)
			Expect(got.Status).To(Equal(engine.DeviceOnline))
			Expect(got.Name).To(Equal("edge-gw-1"))
		})

		It("lists devices with pagination metadata", func() {
			for i := 0; i < 3; i++ {
				registerDevice(fmt.Sprintf("gw-%d", i))
			}

			rec := do(http.MethodGet, "/api/devices?page=1&limit=2", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Data       []engine.Device   `json:"data"`
				Pagination engine.Pagination `json:"pagination"`
			}
			decodeBody(rec, &resp)
			Expect(resp.Data).To(HaveLen(2))
			Expect(resp.Pagination.TotalItems).To(Equal(3))
			Expect(resp.Pagination.TotalPages).To(Equal(2))
			Expect(resp.Pagination.HasNext).To(BeTrue())
		})

		It("deletes a device and reports the cascade size", func() {
			device := registerDevice("edge-gw-1")
			for i := 0; i < 3; i++ {
				registerSensor(device.ID, fmt.Sprintf("temp-%d", i))
			}

			rec := do(http.MethodDelete, "/api/devices/"+device.ID, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp map[string]int
			decodeBody(rec, &resp)
			Expect(resp["deletedSensorCount"]).To(Equal(3))

			rec = do(http.MethodGet, "/api/devices/"+device.ID, nil)
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})
	})

	Describe("sensor endpoints", func() {
		var deviceID string

		BeforeEach(func() {
			deviceID = registerDevice("edge-gw-1").ID
		})

		It("registers a sensor with defaults", func() {
			sensor := registerSensor(deviceID, "temp-1")
			Expect(sensor.Category).To(Equal(engine.DefaultSensorCategory))
			Expect(sensor.Health.Status).To(Equal(engine.HealthHealthy))
		})

		It("returns 404 when the device does not exist", func() {
			rec := do(http.MethodPost, "/api/sensors", engine.SensorInput{
				DeviceID: "missing",
				Name:     "temp-1",
				Type:     "temperature",
			})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("filters the sensor list by device", func() {
			otherID := registerDevice("edge-gw-2").ID
			registerSensor(deviceID, "temp-1")
			registerSensor(otherID, "temp-2")

			rec := do(http.MethodGet, "/api/sensors?deviceId="+deviceID, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Data []engine.Sensor `json:"data"`
			}
			decodeBody(rec, &resp)
			Expect(resp.Data).To(HaveLen(1))
			Expect(resp.Data[0].Name).To(Equal("temp-1"))
		})

		It("serves the health summary", func() {
			registerSensor(deviceID, "temp-1")
			registerSensor(deviceID, "temp-2")

			rec := do(http.MethodGet, "/api/sensors/summary", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				TotalSensors int            `json:"totalSensors"`
				ByHealth     map[string]int `json:"byHealth"`
			}
			decodeBody(rec, &resp)
			Expect(resp.TotalSensors).To(Equal(2))
			Expect(resp.ByHealth["healthy"]).To(Equal(2))
		})
	})

	Describe("reading endpoints", func() {
		var sensorID string

		BeforeEach(func() {
			deviceID := registerDevice("edge-gw-1").ID
			sensorID = registerSensor(deviceID, "temp-1").ID
		})

		It("ingests a reading", func() {
			rec := do(http.MethodPost, "/api/readings", map[string]any{
				"sensorId": sensorID,
				"value":    23.5,
			})
			Expect(rec.Code).To(Equal(http.StatusCreated))

			var point engine.DataPoint
			decodeBody(rec, &point)
			Expect(point.Value).To(Equal(23.5))
			Expect(point.Quality.Accuracy).To(Equal(engine.DefaultQualityAccuracy))
		})

		It("returns 404 for an unknown sensor", func() {
			rec := do(http.MethodPost, "/api/readings", map[string]any{
				"sensorId": "missing",
				"value":    23.5,
			})
			Expect(rec.Code).To(Equal(http.StatusNotFound))
		})

		It("returns 400 when the value is missing", func() {
			rec := do(http.MethodPost, "/api/readings", map[string]any{
				"sensorId": sensorID,
			})
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})

		It("processes a batch with partial failures as 200", func() {
			items := []map[string]any{
				{"sensorId": sensorID, "value": 1.0},
				{"sensorId": "ghost", "value": 2.0},
				{"sensorId": sensorID, "value": 3.0},
			}
			rec := do(http.MethodPost, "/api/readings/batch", items)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var result engine.BatchResult
			decodeBody(rec, &result)
			Expect(result.ProcessedCount).To(Equal(2))
			Expect(result.FailedCount).To(Equal(1))
			Expect(result.Errors[0].Index).To(Equal(1))
			Expect(result.Errors[0].Code).To(Equal("not_found"))
		})

		It("lists readings newest first", func() {
			for i := 0; i < 3; i++ {
				rec := do(http.MethodPost, "/api/readings", map[string]any{
					"sensorId": sensorID,
					"value":    float64(i),
				})
				Expect(rec.Code).To(Equal(http.StatusCreated))
			}

			rec := do(http.MethodGet, "/api/readings?sensorId="+sensorID, nil)
			Expect(rec.Code).To(Equal(http.StatusOK))

			var resp struct {
				Data       []engine.ReadingRecord `json:"data"`
				Pagination engine.Pagination      `json:"pagination"`
			}
			decodeBody(rec, &resp)
			Expect(resp.Data).To(HaveLen(3))
			Expect(resp.Pagination.TotalItems).To(Equal(3))
		})

		It("rejects a bad startTime with 400", func() {
			rec := do(http.MethodGet, "/api/readings?startTime=yesterday", nil)
			Expect(rec.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("health endpoint", func() {
		It("reports ok", func() {
			rec := do(http.MethodGet, "/health", nil)
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Body.String()).To(ContainSubstring(`"status":"ok"`))
		})
	})
})
