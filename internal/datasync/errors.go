package datasync

import (
	"errors"
	"fmt"

	"github.com/BrewPi/brewpi-service/internal/protocol"
)

// ErrHandlerPanic marks a message handler that panicked.
var ErrHandlerPanic = errors.New("datasync: message handler panicked")

// MessageError reports a message that could not be handled.
type MessageError struct {
	URI  string
	Kind protocol.Kind
	Err  error
}

// Error includes the controller URI and message kind.
func (e *MessageError) Error() string {
	return fmt.Sprintf("handling %s from %s: %v", e.Kind, e.URI, e.Err)
}

// Unwrap returns the underlying failure.
func (e *MessageError) Unwrap() error {
	return e.Err
}
