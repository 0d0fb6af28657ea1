package datasync

import (
	"time"

	"github.com/BrewPi/brewpi-service/internal/protocol"
)

// TemperatureSink stores temperature readings. Implemented by
// *influxdb.Client.
type TemperatureSink interface {
	WriteTemperatures(uri string, values map[string]float64, at time.Time) error
}

// HandlerFactory returns the message handler for a controller URI.
type HandlerFactory func(uri string) protocol.Handler

var _ protocol.Handler = (*MessageHandler)(nil)

// MessageHandler acts on the messages of one controller.
type MessageHandler struct {
	uri    string
	logger Logger
	sink   TemperatureSink
	now    func() time.Time
}

// NewMessageHandler returns a handler for uri. sink may be nil.
func NewMessageHandler(uri string, logger Logger, sink TemperatureSink) *MessageHandler {
	return &MessageHandler{
		uri:    uri,
		logger: logger,
		sink:   sink,
		now:    time.Now,
	}
}

// NewHandlerFactory binds logger and sink into a HandlerFactory.
func NewHandlerFactory(logger Logger, sink TemperatureSink) HandlerFactory {
	return func(uri string) protocol.Handler {
		return NewMessageHandler(uri, logger, sink)
	}
}

// InstalledDevice logs that installed devices are not handled yet.
func (h *MessageHandler) InstalledDevice(msg protocol.InstalledDevice) error {
	h.notImplemented(msg.Kind(), "device", msg.Device.String())
	return nil
}

// AvailableDevice logs that available hardware is not handled yet.
func (h *MessageHandler) AvailableDevice(msg protocol.AvailableDevice) error {
	h.notImplemented(msg.Kind(), "device", msg.Device.String())
	return nil
}

// UninstalledDevice logs that device removal is not handled yet.
func (h *MessageHandler) UninstalledDevice(msg protocol.UninstalledDevice) error {
	h.notImplemented(msg.Kind(), "device", msg.Device.String())
	return nil
}

// LogMessage forwards a firmware log line to the service log.
func (h *MessageHandler) LogMessage(msg protocol.LogMessage) error {
	if h.logger != nil {
		h.logger.Info("controller log message",
			"uri", h.uri,
			"log_type", msg.Type,
			"log_id", msg.ID,
			"values", msg.Values,
		)
	}
	return nil
}

// ControlSettings logs that control settings are not handled yet.
func (h *MessageHandler) ControlSettings(msg protocol.ControlSettings) error {
	h.notImplemented(msg.Kind(), "fields", len(msg.Values))
	return nil
}

// ControlConstants logs that control constants are not handled yet.
func (h *MessageHandler) ControlConstants(msg protocol.ControlConstants) error {
	h.notImplemented(msg.Kind(), "fields", len(msg.Values))
	return nil
}

// Temperatures writes the readings to the sink when one is configured.
func (h *MessageHandler) Temperatures(msg protocol.Temperatures) error {
	if h.sink == nil {
		h.notImplemented(msg.Kind(), "fields", len(msg.Values))
		return nil
	}
	if len(msg.Values) == 0 {
		return nil
	}
	return h.sink.WriteTemperatures(h.uri, msg.Values, h.now())
}

func (h *MessageHandler) notImplemented(kind protocol.Kind, args ...any) {
	if h.logger == nil {
		return
	}
	h.logger.Warn("message handling not yet implemented",
		append([]any{"uri", h.uri, "kind", string(kind)}, args...)...)
}
