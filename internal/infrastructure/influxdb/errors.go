package influxdb

import "errors"

// Sentinel errors; compare with errors.Is.
var (
	ErrNotConnected     = errors.New("influxdb: not connected")
	ErrConnectionFailed = errors.New("influxdb: connection failed")

	// ErrWriteFailed is returned for points that cannot be built. Server side
	// failures arrive asynchronously through SetOnError.
	ErrWriteFailed = errors.New("influxdb: write failed")

	ErrDisabled = errors.New("influxdb: disabled in configuration")
)
