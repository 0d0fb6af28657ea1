package connector

import "errors"

var (
	// ErrNotConnected is returned by Send when the controller is not connected.
	ErrNotConnected = errors.New("connector: controller not connected")

	// ErrConnectionFailed is returned when opening the port or dialing fails.
	ErrConnectionFailed = errors.New("connector: connection failed")

	// ErrConnectionLost is returned when a write fails on an open connection.
	ErrConnectionLost = errors.New("connector: connection lost")

	// ErrInvalidAddress is returned for addresses the transport cannot open.
	ErrInvalidAddress = errors.New("connector: invalid address")
)
