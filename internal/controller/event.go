package controller

import "time"

// EventType names a controller event.
type EventType string

const (
	// EventConnected is raised when a controller connection opens.
	EventConnected EventType = "controller_connected"

	// EventDisconnected is raised when a controller connection closes or is lost.
	EventDisconnected EventType = "controller_disconnected"
)

// Event is a controller lifecycle event.
type Event struct {
	Type       EventType  `json:"type"`
	Controller Controller `json:"controller"`
	Timestamp  time.Time  `json:"timestamp"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(t EventType, c Controller) Event {
	return Event{
		Type:       t,
		Controller: c,
		Timestamp:  time.Now().UTC(),
	}
}
