// Package simulator generates synthetic devices, sensors and readings for
// demos and load testing.
package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/sensorhub-io/sensorhub/internal/engine"
)

// deviceTemplate drives gofakeit struct generation for a fake device.
type deviceTemplate struct {
	Name         string  `fake:"{adjective}-{noun}"`
	Manufacturer string  `fake:"{company}"`
	Model        string  `fake:"{appname} {appversion}"`
	Site         string  `fake:"{city}"`
	Building     string  `fake:"{company} HQ"`
	Zone         string  `fake:"zone-{number:1,12}"`
	Latitude     float64 `fake:"{latitude}"`
	Longitude    float64 `fake:"{longitude}"`
	Address      string  `fake:"{ipv4address}"`
	Port         int     `fake:"{number:1024,65535}"`
}

var deviceTypes = []string{"gateway", "controller", "edge-node", "datalogger"}

// NewDeviceInput generates a random device registration payload.
func NewDeviceInput() (engine.DeviceInput, error) {
	var tpl deviceTemplate
	if err := gofakeit.Struct(&tpl); err != nil {
		return engine.DeviceInput{}, err
	}

	return engine.DeviceInput{
		Name: tpl.Name,
		Type: deviceTypes[rand.Intn(len(deviceTypes))],
		Location: &engine.Location{
			Site:      tpl.Site,
			Building:  tpl.Building,
			Zone:      tpl.Zone,
			Latitude:  tpl.Latitude,
			Longitude: tpl.Longitude,
		},
		Connectivity: &engine.Connectivity{
			Protocol: "mqtt",
			Address:  tpl.Address,
			Port:     tpl.Port,
		},
		Metadata: map[string]string{
			"manufacturer": tpl.Manufacturer,
			"model":        tpl.Model,
		},
	}, nil
}

type sensorKind struct {
	Type string
	Unit string
	Min  float64
	Max  float64
}

var sensorKinds = []sensorKind{
	{Type: "temperature", Unit: "celsius", Min: -20, Max: 60},
	{Type: "humidity", Unit: "percent", Min: 0, Max: 100},
	{Type: "pressure", Unit: "hPa", Min: 950, Max: 1050},
	{Type: "co2", Unit: "ppm", Min: 300, Max: 5000},
}

// NewSensorInput generates a random sensor registration payload bound to the
// given device.
func NewSensorInput(deviceID string) engine.SensorInput {
	kind := sensorKinds[rand.Intn(len(sensorKinds))]

	return engine.SensorInput{
		DeviceID: deviceID,
		Name:     gofakeit.AppName() + " " + kind.Type,
		Type:     kind.Type,
		Specifications: &engine.Specifications{
			Range:          engine.Range{Min: kind.Min, Max: kind.Max},
			SamplingRateHz: 1,
		},
	}
}

// Unit returns the measurement unit for a sensor type, defaulting to empty
// for unknown types.
func Unit(sensorType string) string {
	for _, k := range sensorKinds {
		if k.Type == sensorType {
			return k.Unit
		}
	}
	return ""
}

// ReadingGenerator produces a correlated stream of readings for one sensor.
// Values follow a daily cycle with noise and occasional anomalies; quality
// occasionally degrades so downstream health scoring has something to react
// to.
type ReadingGenerator struct {
	sensorID string
	unit     string
	baseline float64
	noise    float64
}

// NewReadingGenerator creates a generator for the given sensor. The baseline
// is picked randomly inside [min, max].
func NewReadingGenerator(sensorID, unit string, min, max float64) *ReadingGenerator {
	span := max - min
	return &ReadingGenerator{
		sensorID: sensorID,
		unit:     unit,
		baseline: min + span*0.3 + rand.Float64()*span*0.4,
		noise:    span * 0.02,
	}
}

// value computes the reading value at t: daily sinusoid plus noise plus a
// rare spike.
func (g *ReadingGenerator) value(t time.Time) float64 {
	hour := float64(t.Hour())

	// Daily cycle peaking mid-afternoon.
	dailyCycle := g.noise * 5 * math.Sin((hour-6)*math.Pi/12)

	noise := (rand.Float64() - 0.5) * g.noise

	// Occasional anomalies (5% chance).
	anomaly := 0.0
	if rand.Float64() < 0.05 {
		anomaly = (rand.Float64() - 0.5) * g.noise * 15
	}

	v := g.baseline + dailyCycle + noise + anomaly
	return math.Round(v*100) / 100
}

// Generate produces the next ingest request at time t.
func (g *ReadingGenerator) Generate(t time.Time) engine.IngestRequest {
	v := g.value(t)
	ts := t

	req := engine.IngestRequest{
		SensorID:  g.sensorID,
		Value:     &v,
		Unit:      g.unit,
		Timestamp: &ts,
	}

	// 4% of readings carry degraded quality.
	if rand.Float64() < 0.04 {
		accuracy := 40 + rand.Float64()*35
		validity := rand.Float64() > 0.5
		req.Quality = &engine.QualityInput{
			Accuracy: &accuracy,
			Validity: &validity,
		}
	}

	return req
}
