package influxdb

import (
	"fmt"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names and tags written by the service.
const (
	MeasurementTemperatures     = "temperatures"
	MeasurementControllerStatus = "controller_status"

	TagController = "controller"
)

// WriteTemperatures records one temperatures report from a controller.
// values maps sensor names (beerTemp, fridgeSet, ...) to readings.
func (c *Client) WriteTemperatures(controllerURI string, values map[string]float64, at time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(values) == 0 {
		return fmt.Errorf("%w: no temperature values for %s", ErrWriteFailed, controllerURI)
	}

	c.writeAPI.WritePoint(temperaturePoint(controllerURI, values, at))
	return nil
}

// WriteControllerStatus records a connect (1) or disconnect (0) of a controller.
func (c *Client) WriteControllerStatus(controllerURI string, connected bool, at time.Time) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	state := 0
	if connected {
		state = 1
	}
	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementControllerStatus,
		map[string]string{TagController: controllerURI},
		map[string]any{"connected": state},
		at,
	))
	return nil
}

func temperaturePoint(controllerURI string, values map[string]float64, at time.Time) *write.Point {
	fields := make(map[string]any, len(values))
	for name, v := range values {
		fields[name] = v
	}
	return write.NewPoint(
		MeasurementTemperatures,
		map[string]string{TagController: controllerURI},
		fields,
		at,
	)
}
