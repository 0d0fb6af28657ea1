package datasync

import (
	"time"

	"github.com/BrewPi/brewpi-service/internal/controller"
)

// StatusWriter records controller connection state as a time series.
// Implemented by *influxdb.Client.
type StatusWriter interface {
	WriteControllerStatus(uri string, connected bool, at time.Time) error
}

// StatusSubscriber returns a controller.Bus subscriber writing every
// connect and disconnect to w.
func StatusSubscriber(w StatusWriter, logger Logger) controller.Subscriber {
	return func(evt controller.Event) {
		connected := evt.Type == controller.EventConnected
		if err := w.WriteControllerStatus(evt.Controller.URI, connected, evt.Timestamp); err != nil && logger != nil {
			logger.Warn("writing controller status failed",
				"uri", evt.Controller.URI,
				"error", err,
			)
		}
	}
}
