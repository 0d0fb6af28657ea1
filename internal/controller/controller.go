package controller

import "fmt"

// Controller is the domain record of a BrewPi controller.
type Controller struct {
	Name        string `json:"name,omitempty"`
	URI         string `json:"uri"`
	Description string `json:"description,omitempty"`
	Connected   bool   `json:"connected"`
}

// NewURI returns the controller URI for a connection address on host.
func NewURI(host, address string) string {
	return host + ":" + address
}

// Connected builds the record of a controller that has just connected.
func Connected(host, address string) Controller {
	return Controller{
		Name:        fmt.Sprintf("BrewPi on %s at %s", host, address),
		URI:         NewURI(host, address),
		Description: fmt.Sprintf("A BrewPi connected to %s, using the legacy protocol.", address),
		Connected:   true,
	}
}

// Disconnected builds the record of a controller that has gone away.
func Disconnected(host, address string) Controller {
	return Controller{URI: NewURI(host, address)}
}
