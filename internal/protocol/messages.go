package protocol

import (
	"encoding/json"
	"fmt"
)

// Kind identifies a decoded message variant.
type Kind string

// The seven message kinds produced by Decoder.
const (
	KindInstalledDevice   Kind = "installed_device"
	KindAvailableDevice   Kind = "available_device"
	KindUninstalledDevice Kind = "uninstalled_device"
	KindLogMessage        Kind = "log_message"
	KindControlSettings   Kind = "control_settings"
	KindControlConstants  Kind = "control_constants"
	KindTemperatures      Kind = "temperatures"
)

// AllKinds lists every message kind in a stable order.
var AllKinds = []Kind{
	KindInstalledDevice,
	KindAvailableDevice,
	KindUninstalledDevice,
	KindLogMessage,
	KindControlSettings,
	KindControlConstants,
	KindTemperatures,
}

// RawMessage is one framed line read from a controller, without the
// trailing line terminator.
type RawMessage []byte

// Message is a decoded controller message. The set of implementations is
// closed: only the types in this package satisfy it.
type Message interface {
	Kind() Kind

	// Accept calls the Handler method matching the message kind.
	Accept(h Handler) error

	isMessage()
}

// Handler receives decoded messages, one method per kind.
type Handler interface {
	InstalledDevice(msg InstalledDevice) error
	AvailableDevice(msg AvailableDevice) error
	UninstalledDevice(msg UninstalledDevice) error
	LogMessage(msg LogMessage) error
	ControlSettings(msg ControlSettings) error
	ControlConstants(msg ControlConstants) error
	Temperatures(msg Temperatures) error
}

// Device is a legacy device definition as reported by the firmware.
// Slot is -1 for devices that are not installed.
type Device struct {
	Slot        int             `json:"i"`
	Chamber     int             `json:"c"`
	Beer        int             `json:"b"`
	Function    int             `json:"f"`
	Hardware    int             `json:"h"`
	Pin         int             `json:"p"`
	Invert      int             `json:"x"`
	Deactivated int             `json:"d"`
	Address     string          `json:"a,omitempty"`
	Type        int             `json:"t,omitempty"`
	Value       json.RawMessage `json:"v,omitempty"`
}

// Installed reports whether the device occupies a slot.
func (d Device) Installed() bool {
	return d.Slot >= 0
}

// String formats the device for logs.
func (d Device) String() string {
	if d.Address != "" {
		return fmt.Sprintf("slot=%d function=%d hardware=%d address=%s", d.Slot, d.Function, d.Hardware, d.Address)
	}
	return fmt.Sprintf("slot=%d function=%d hardware=%d pin=%d", d.Slot, d.Function, d.Hardware, d.Pin)
}

// InstalledDevice is a device assigned to a slot.
type InstalledDevice struct {
	Device Device
}

// AvailableDevice is detected hardware that has not been installed.
type AvailableDevice struct {
	Device Device
}

// UninstalledDevice confirms a device was removed from its slot.
type UninstalledDevice struct {
	Device Device
}

// LogMessage is a firmware log entry. Type is the firmware's single letter
// level (E, W, I, D), ID indexes its message table and Values are the
// message arguments.
type LogMessage struct {
	Type   string `json:"logType"`
	ID     int    `json:"logID"`
	Values []any  `json:"V"`
}

// ControlSettings is the controller's current mode and setpoints.
type ControlSettings struct {
	Values map[string]any
}

// ControlConstants is the controller's tuning parameters.
type ControlConstants struct {
	Values map[string]any
}

// Temperatures is a snapshot of sensor readings and setpoints. Sensors
// reporting null are omitted.
type Temperatures struct {
	Values map[string]float64
}

// Kind identifies the message type.
func (InstalledDevice) Kind() Kind   { return KindInstalledDevice }
func (AvailableDevice) Kind() Kind   { return KindAvailableDevice }
func (UninstalledDevice) Kind() Kind { return KindUninstalledDevice }
func (LogMessage) Kind() Kind        { return KindLogMessage }
func (ControlSettings) Kind() Kind   { return KindControlSettings }
func (ControlConstants) Kind() Kind  { return KindControlConstants }
func (Temperatures) Kind() Kind      { return KindTemperatures }

// Accept passes the message to its Handler method.
func (m InstalledDevice) Accept(h Handler) error   { return h.InstalledDevice(m) }
func (m AvailableDevice) Accept(h Handler) error   { return h.AvailableDevice(m) }
func (m UninstalledDevice) Accept(h Handler) error { return h.UninstalledDevice(m) }
func (m LogMessage) Accept(h Handler) error        { return h.LogMessage(m) }
func (m ControlSettings) Accept(h Handler) error   { return h.ControlSettings(m) }
func (m ControlConstants) Accept(h Handler) error  { return h.ControlConstants(m) }
func (m Temperatures) Accept(h Handler) error      { return h.Temperatures(m) }

func (InstalledDevice) isMessage()   {}
func (AvailableDevice) isMessage()   {}
func (UninstalledDevice) isMessage() {}
func (LogMessage) isMessage()        {}
func (ControlSettings) isMessage()   {}
func (ControlConstants) isMessage()  {}
func (Temperatures) isMessage()      {}
