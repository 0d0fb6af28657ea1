package controller

import (
	"errors"

	"github.com/BrewPi/brewpi-service/internal/infrastructure/mqtt"
)

// JSONPublisher sends JSON payloads to MQTT. Implemented by *mqtt.Client.
type JSONPublisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// Publisher mirrors controller events to MQTT.
type Publisher struct {
	client JSONPublisher
	topics mqtt.Topics
	logger Logger
}

// NewPublisher returns a Publisher. logger may be nil.
func NewPublisher(client JSONPublisher, logger Logger) *Publisher {
	return &Publisher{client: client, logger: logger}
}

// Handle is a Bus subscriber. The event goes to brewpi/event/<type> and
// the controller record to its retained state topic.
func (p *Publisher) Handle(evt Event) {
	if err := p.Publish(evt); err != nil && p.logger != nil {
		p.logger.Warn("publishing controller event failed",
			"event", string(evt.Type),
			"uri", evt.Controller.URI,
			"error", err,
		)
	}
}

// Publish sends evt and the controller state, returning every failure.
func (p *Publisher) Publish(evt Event) error {
	return errors.Join(
		p.client.PublishJSON(p.topics.Event(string(evt.Type)), evt, false),
		p.client.PublishJSON(p.topics.ControllerState(evt.Controller.URI), evt.Controller, true),
	)
}
