package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every topic the service publishes or subscribes to.
const TopicPrefix = "brewpi"

// Topics builds BrewPi MQTT topic names.
//
//	topics := mqtt.Topics{}
//	topics.ControllerState("brewhouse:/dev/ttyACM0")
//	// brewpi/controller/brewhouse:_dev_ttyACM0/state
type Topics struct{}

// Event returns the topic for a domain event type.
//
// Example: brewpi/event/controller_connected
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// ControllerState returns the retained state topic for a controller URI.
func (Topics) ControllerState(uri string) string {
	return fmt.Sprintf("%s/controller/%s/state", TopicPrefix, SanitizeTopicSegment(uri))
}

// Health returns the health topic of a service component.
//
// Example: brewpi/health/datasync
func (Topics) Health(component string) string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, component)
}

// SystemStatus is where the online/offline status and the LWT are published.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// SyncRequest is subscribed to; any message wakes the sync loop.
func (Topics) SyncRequest() string {
	return TopicPrefix + "/request/sync"
}

var topicReplacer = strings.NewReplacer(
	"/", "_",
	"+", "_",
	"#", "_",
	" ", "_",
)

// SanitizeTopicSegment makes s safe to use as a single topic level: level
// separators, wildcards and spaces become underscores.
func SanitizeTopicSegment(s string) string {
	s = topicReplacer.Replace(s)
	if s == "" {
		return "_"
	}
	return s
}
