package protocol

// Command is a request sent to a controller.
type Command interface {
	// Encode returns the wire form, including the line terminator.
	Encode() []byte
	String() string
}

// ListInstalledDevices asks for every installed device, optionally with its
// current value. The controller answers with a "d:" line.
type ListInstalledDevices struct {
	WithValues bool
}

// Encode returns "d{r:1}" when values are requested, "d{}" otherwise.
func (c ListInstalledDevices) Encode() []byte {
	if c.WithValues {
		return []byte("d{r:1}\n")
	}
	return []byte("d{}\n")
}

// String describes the command for logs.
func (c ListInstalledDevices) String() string {
	if c.WithValues {
		return "list installed devices with values"
	}
	return "list installed devices"
}

// ListAvailableDevices asks for detected hardware that is not installed.
// The controller answers with an "h:" line.
type ListAvailableDevices struct{}

// Encode returns "h{u:-1,v:1}".
func (ListAvailableDevices) Encode() []byte { return []byte("h{u:-1,v:1}\n") }

// String describes the command for logs.
func (ListAvailableDevices) String() string { return "list available devices" }

// RequestControlSettings asks for the current mode and setpoints.
type RequestControlSettings struct{}

// Encode returns "s".
func (RequestControlSettings) Encode() []byte { return []byte("s\n") }

// String describes the command for logs.
func (RequestControlSettings) String() string { return "request control settings" }

// RequestControlConstants asks for the tuning parameters.
type RequestControlConstants struct{}

// Encode returns "c".
func (RequestControlConstants) Encode() []byte { return []byte("c\n") }

// String describes the command for logs.
func (RequestControlConstants) String() string { return "request control constants" }

// RequestTemperatures asks for a temperature snapshot.
type RequestTemperatures struct{}

// Encode returns "t".
func (RequestTemperatures) Encode() []byte { return []byte("t\n") }

// String describes the command for logs.
func (RequestTemperatures) String() string { return "request temperatures" }
