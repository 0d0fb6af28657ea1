package datasync

import (
	"os"

	"github.com/BrewPi/brewpi-service/internal/connector"
	"github.com/BrewPi/brewpi-service/internal/controller"
)

// EventPublisher receives controller events. Implemented by *controller.Bus.
type EventPublisher interface {
	Publish(evt controller.Event)
}

var _ connector.Observer = (*Observer)(nil)

// Observer translates connection transitions into controller events.
type Observer struct {
	host   string
	events EventPublisher
}

// NewObserver returns an Observer building URIs on host.
func NewObserver(host string, events EventPublisher) *Observer {
	return &Observer{host: host, events: events}
}

// ControllerConnected publishes controller_connected with the full record.
func (o *Observer) ControllerConnected(ep connector.Endpoint) {
	if ep == nil || o.events == nil {
		return
	}
	o.events.Publish(controller.NewEvent(controller.EventConnected, controller.Connected(o.host, ep.Address())))
}

// ControllerDisconnected publishes controller_disconnected carrying only the URI.
func (o *Observer) ControllerDisconnected(ep connector.Endpoint) {
	if ep == nil || o.events == nil {
		return
	}
	o.events.Publish(controller.NewEvent(controller.EventDisconnected, controller.Disconnected(o.host, ep.Address())))
}

// ResolveHost returns configured, or the machine host name when it is empty.
func ResolveHost(configured string) string {
	if configured != "" {
		return configured
	}
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	return "localhost"
}
