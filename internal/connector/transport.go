package connector

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"go.bug.st/serial"
)

// SocketScheme prefixes TCP controller addresses.
const SocketScheme = "socket://"

const (
	DefaultBaudRate    = 57600
	defaultDialTimeout = 5 * time.Second
)

// SocketAddress returns the controller address for a host:port endpoint.
func SocketAddress(hostPort string) string {
	return SocketScheme + hostPort
}

// Transport opens serial ports and TCP sockets for controllers.
type Transport struct {
	BaudRate    int
	DialTimeout time.Duration

	openSerial func(name string, mode *serial.Mode) (serial.Port, error)
	dialTCP    func(ctx context.Context, network, address string) (net.Conn, error)
}

// NewTransport returns a Transport using go.bug.st/serial and net.Dialer.
func NewTransport(baudRate int, dialTimeout time.Duration) *Transport {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	dialer := &net.Dialer{Timeout: dialTimeout}
	return &Transport{
		BaudRate:    baudRate,
		DialTimeout: dialTimeout,
		openSerial:  serial.Open,
		dialTCP:     dialer.DialContext,
	}
}

// Dial implements DialFunc. Addresses starting with socket:// are dialed
// over TCP; anything else is opened as a serial port.
func (t *Transport) Dial(ctx context.Context, address string) (io.ReadWriteCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if hostPort, ok := strings.CutPrefix(address, SocketScheme); ok {
		return t.dialSocket(ctx, hostPort)
	}
	return t.openPort(address)
}

func (t *Transport) dialSocket(ctx context.Context, hostPort string) (io.ReadWriteCloser, error) {
	host, port, err := net.SplitHostPort(hostPort)
	if err != nil || host == "" || port == "" {
		return nil, fmt.Errorf("%w: %q is not host:port", ErrInvalidAddress, hostPort)
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.DialTimeout)
	defer cancel()

	conn, err := t.dialTCP(dialCtx, "tcp", hostPort)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", hostPort, err)
	}
	return conn, nil
}

func (t *Transport) openPort(name string) (io.ReadWriteCloser, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty serial port name", ErrInvalidAddress)
	}

	port, err := t.openSerial(name, &serial.Mode{
		BaudRate: t.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}

	// Discard anything the board printed while resetting.
	_ = port.ResetInputBuffer() //nolint:errcheck // Best effort
	return port, nil
}
