package datasync

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/BrewPi/brewpi-service/internal/connector"
	"github.com/BrewPi/brewpi-service/internal/controller"
	"github.com/BrewPi/brewpi-service/internal/protocol"
)

var errNotConnected = errors.New("fake: not connected")

// fakeConn implements connector.Conn. Calls made while disconnected are
// counted as violations.
type fakeConn struct {
	mu         sync.Mutex
	address    string
	connected  bool
	connectErr error
	sendErr    error
	lines      []protocol.RawMessage
	sent       []protocol.Command
	observers  []connector.Observer

	connectCalls int
	violations   int
}

func newFakeConn(address string, lines ...string) *fakeConn {
	c := &fakeConn{address: address}
	c.push(lines...)
	return c
}

func (c *fakeConn) push(lines ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range lines {
		c.lines = append(c.lines, protocol.RawMessage(l))
	}
}

func (c *fakeConn) Address() string { return c.address }

func (c *fakeConn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeConn) Subscribe(o connector.Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !slices.Contains(c.observers, o) {
		c.observers = append(c.observers, o)
	}
}

func (c *fakeConn) Connect(context.Context) error {
	c.mu.Lock()
	c.connectCalls++
	if c.connectErr != nil {
		c.mu.Unlock()
		return c.connectErr
	}
	if c.connected {
		c.mu.Unlock()
		return nil
	}
	c.connected = true
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		o.ControllerConnected(c)
	}
	return nil
}

// drop simulates a lost connection.
func (c *fakeConn) drop() {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	c.connected = false
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	for _, o := range observers {
		o.ControllerDisconnected(c)
	}
}

func (c *fakeConn) Send(_ context.Context, cmd protocol.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		c.violations++
		return errNotConnected
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *fakeConn) ProcessMessages() []protocol.RawMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		c.violations++
		return nil
	}
	lines := c.lines
	c.lines = nil
	return lines
}

func (c *fakeConn) RetryDue(time.Time) bool { return false }

func (c *fakeConn) Close() error {
	c.drop()
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) violationCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.violations
}

// fakeManager hands out each added controller once and lists all of them.
type fakeManager struct {
	mu      sync.Mutex
	all     []connector.Conn
	pending []connector.Conn
	err     error
}

func (m *fakeManager) add(conns ...*fakeConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range conns {
		m.all = append(m.all, c)
		m.pending = append(m.pending, c)
	}
}

func (m *fakeManager) Update(context.Context) ([]connector.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pending := m.pending
	m.pending = nil
	return pending, m.err
}

func (m *fakeManager) Controllers() []connector.Conn {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.all)
}

// recordingHandler implements protocol.Handler and records every kind it
// receives. Kinds listed in fail return an error; kinds in panicOn panic.
type recordingHandler struct {
	kinds   []protocol.Kind
	fail    map[protocol.Kind]bool
	panicOn map[protocol.Kind]bool
}

func (h *recordingHandler) record(k protocol.Kind) error {
	h.kinds = append(h.kinds, k)
	if h.panicOn[k] {
		panic("handler exploded on " + string(k))
	}
	if h.fail[k] {
		return errors.New("handler failed on " + string(k))
	}
	return nil
}

func (h *recordingHandler) InstalledDevice(m protocol.InstalledDevice) error {
	return h.record(m.Kind())
}

func (h *recordingHandler) AvailableDevice(m protocol.AvailableDevice) error {
	return h.record(m.Kind())
}

func (h *recordingHandler) UninstalledDevice(m protocol.UninstalledDevice) error {
	return h.record(m.Kind())
}

func (h *recordingHandler) LogMessage(m protocol.LogMessage) error {
	return h.record(m.Kind())
}

func (h *recordingHandler) ControlSettings(m protocol.ControlSettings) error {
	return h.record(m.Kind())
}

func (h *recordingHandler) ControlConstants(m protocol.ControlConstants) error {
	return h.record(m.Kind())
}

func (h *recordingHandler) Temperatures(m protocol.Temperatures) error {
	return h.record(m.Kind())
}

// eventRecorder collects events published on a controller.Bus.
type eventRecorder struct {
	mu     sync.Mutex
	events []controller.Event
}

func (r *eventRecorder) Publish(evt controller.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *eventRecorder) snapshot() []controller.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// mockLogger counts log calls per level.
type mockLogger struct {
	mu     sync.Mutex
	debugs []string
	infos  []string
	warns  []string
	errors []string
}

func (l *mockLogger) Debug(msg string, _ ...any) { l.add(&l.debugs, msg) }
func (l *mockLogger) Info(msg string, _ ...any)  { l.add(&l.infos, msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.add(&l.warns, msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.add(&l.errors, msg) }

func (l *mockLogger) add(dst *[]string, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	*dst = append(*dst, msg)
}

func (l *mockLogger) count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch level {
	case "debug":
		return len(l.debugs)
	case "info":
		return len(l.infos)
	case "warn":
		return len(l.warns)
	default:
		return len(l.errors)
	}
}

// noSleep skips the connect and command delays.
func noSleep(ctx context.Context, _ time.Duration) error {
	return ctx.Err()
}
