package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Line prefixes of the legacy firmware.
const (
	prefixTemperatures     = 'T'
	prefixLog              = 'D'
	prefixControlSettings  = 'S'
	prefixControlConstants = 'C'
	prefixInstalledDevices = 'd'
	prefixAvailableDevices = 'h'
	prefixDeviceUpdate     = 'U'
)

// Decoder decodes legacy protocol lines. The zero value is ready to use and
// it holds no state, so one Decoder may be shared.
type Decoder struct{}

// NewDecoder returns a Decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode turns one raw line into messages.
//
// A device list line yields one message per entry, which may be none for an
// empty list. Empty or malformed lines return ErrDecodingFailed; lines with
// an unknown prefix return ErrUnsupportedMessage.
func (d *Decoder) Decode(raw RawMessage) ([]Message, error) {
	line := bytes.TrimSpace(raw)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty message", ErrDecodingFailed)
	}
	if len(line) < 2 || line[1] != ':' {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMessage, truncate(line))
	}

	prefix, payload := line[0], line[2:]
	switch prefix {
	case prefixTemperatures:
		return decodeTemperatures(payload)
	case prefixLog:
		var msg LogMessage
		if err := unmarshal(payload, &msg); err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	case prefixControlSettings:
		values, err := decodeObject(payload)
		if err != nil {
			return nil, err
		}
		return []Message{ControlSettings{Values: values}}, nil
	case prefixControlConstants:
		values, err := decodeObject(payload)
		if err != nil {
			return nil, err
		}
		return []Message{ControlConstants{Values: values}}, nil
	case prefixInstalledDevices:
		return decodeDeviceList(payload, func(dev Device) Message { return InstalledDevice{Device: dev} })
	case prefixAvailableDevices:
		return decodeDeviceList(payload, func(dev Device) Message { return AvailableDevice{Device: dev} })
	case prefixDeviceUpdate:
		var dev Device
		if err := unmarshal(payload, &dev); err != nil {
			return nil, err
		}
		if dev.Installed() {
			return []Message{InstalledDevice{Device: dev}}, nil
		}
		return []Message{UninstalledDevice{Device: dev}}, nil
	default:
		return nil, fmt.Errorf("%w: prefix %q", ErrUnsupportedMessage, prefix)
	}
}

func decodeTemperatures(payload []byte) ([]Message, error) {
	var fields map[string]json.RawMessage
	if err := unmarshal(payload, &fields); err != nil {
		return nil, err
	}

	values := make(map[string]float64, len(fields))
	for name, rawValue := range fields {
		var v float64
		// null and non-numeric fields are skipped
		if err := json.Unmarshal(rawValue, &v); err != nil || bytes.Equal(rawValue, []byte("null")) {
			continue
		}
		values[name] = v
	}
	return []Message{Temperatures{Values: values}}, nil
}

func decodeDeviceList(payload []byte, wrap func(Device) Message) ([]Message, error) {
	var devices []Device
	if err := unmarshal(payload, &devices); err != nil {
		return nil, err
	}

	msgs := make([]Message, 0, len(devices))
	for _, dev := range devices {
		msgs = append(msgs, wrap(dev))
	}
	return msgs, nil
}

func decodeObject(payload []byte) (map[string]any, error) {
	var values map[string]any
	if err := unmarshal(payload, &values); err != nil {
		return nil, err
	}
	if values == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrDecodingFailed)
	}
	return values, nil
}

func unmarshal(payload []byte, v any) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: empty payload", ErrDecodingFailed)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodingFailed, err)
	}
	return nil
}

// truncate keeps log output bounded for garbage lines.
func truncate(b []byte) string {
	const maxLen = 32
	if len(b) > maxLen {
		return string(b[:maxLen]) + "..."
	}
	return string(b)
}
