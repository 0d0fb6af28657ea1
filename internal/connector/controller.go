package connector

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BrewPi/brewpi-service/internal/protocol"
)

const (
	// inboxSize bounds the lines buffered between two ProcessMessages calls.
	inboxSize = 256

	// maxLineLength is the longest line the reader accepts.
	maxLineLength = 64 * 1024

	defaultWriteTimeout = 5 * time.Second
)

// Logger is the logging dependency of the package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Endpoint is what observers see of a controller.
type Endpoint interface {
	Address() string
	IsConnected() bool
}

// Observer is notified of connection state transitions. Callbacks run on
// the goroutine that caused the transition and must not call back into the
// Controller's Connect or Close.
type Observer interface {
	ControllerConnected(ep Endpoint)
	ControllerDisconnected(ep Endpoint)
}

// Conn is a controller connection as used by the sync loop.
type Conn interface {
	Endpoint

	// Subscribe registers an observer; subscribing twice has no effect.
	Subscribe(o Observer)
	Connect(ctx context.Context) error
	Send(ctx context.Context, cmd protocol.Command) error

	// ProcessMessages returns the lines received since the last call.
	ProcessMessages() []protocol.RawMessage

	// RetryDue reports whether a reconnect should be attempted at now.
	RetryDue(now time.Time) bool
	Close() error
}

// DialFunc opens the byte stream behind an address.
type DialFunc func(ctx context.Context, address string) (io.ReadWriteCloser, error)

// ControllerStats is a snapshot of a controller's counters.
type ControllerStats struct {
	Address         string    `json:"address"`
	Connected       bool      `json:"connected"`
	LinesRead       uint64    `json:"lines_read"`
	LinesDropped    uint64    `json:"lines_dropped"`
	LinesDiscarded  uint64    `json:"lines_discarded"`
	CommandsSent    uint64    `json:"commands_sent"`
	ConnectFailures uint64    `json:"connect_failures"`
	Disconnects     uint64    `json:"disconnects"`
	NextRetry       time.Time `json:"next_retry,omitzero"`
}

var _ Conn = (*Controller)(nil)

// Controller is a line-framed connection to one BrewPi board.
type Controller struct {
	address string
	dial    DialFunc
	now     func() time.Time
	logger  Logger

	mu        sync.Mutex
	rwc       io.ReadWriteCloser
	connected bool
	closed    bool
	backoff   Backoff
	retryAt   time.Time
	observers []Observer

	inbox chan protocol.RawMessage
	wg    sync.WaitGroup

	linesRead       atomic.Uint64
	linesDropped    atomic.Uint64
	linesDiscarded  atomic.Uint64
	commandsSent    atomic.Uint64
	connectFailures atomic.Uint64
	disconnects     atomic.Uint64
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger Logger) ControllerOption {
	return func(c *Controller) { c.logger = logger }
}

// WithBackoff sets the reconnect backoff bounds.
func WithBackoff(initial, maxDelay time.Duration) ControllerOption {
	return func(c *Controller) {
		c.backoff = Backoff{Initial: initial, Max: maxDelay}
	}
}

// WithClock replaces time.Now for retry scheduling.
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// NewController returns a disconnected controller for address.
func NewController(address string, dial DialFunc, opts ...ControllerOption) *Controller {
	c := &Controller{
		address: address,
		dial:    dial,
		now:     time.Now,
		backoff: Backoff{Initial: DefaultRetryInitial, Max: DefaultRetryMax},
		inbox:   make(chan protocol.RawMessage, inboxSize),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Address returns the serial port name or socket:// address.
func (c *Controller) Address() string {
	return c.address
}

// IsConnected reports whether the connection is open.
func (c *Controller) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Subscribe registers o for connect and disconnect notifications.
// Observers are compared by identity, so pass pointers.
func (c *Controller) Subscribe(o Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if slices.Contains(c.observers, o) {
		return
	}
	c.observers = append(c.observers, o)
}

// Connect opens the connection and notifies observers. It is a no-op when
// already connected. On failure a retry is scheduled.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.closed:
		c.mu.Unlock()
		return fmt.Errorf("%w: %s: controller closed", ErrConnectionFailed, c.address)
	case c.connected:
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	// The previous reader must be gone before its leftovers are dropped.
	c.wg.Wait()
	c.discardInbox()

	rwc, err := c.dial(ctx, c.address)
	if err != nil {
		c.connectFailures.Add(1)
		c.mu.Lock()
		delay := c.scheduleRetryLocked()
		c.mu.Unlock()
		c.logWarn("controller connect failed", "address", c.address, "error", err, "retry_in", delay.String())
		return fmt.Errorf("%w: %s: %w", ErrConnectionFailed, c.address, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		rwc.Close() //nolint:errcheck // Closed concurrently, nothing to report to
		return fmt.Errorf("%w: %s: controller closed", ErrConnectionFailed, c.address)
	}
	c.rwc = rwc
	c.connected = true
	c.backoff.Reset()
	c.retryAt = time.Time{}
	observers := slices.Clone(c.observers)
	c.wg.Add(1)
	c.mu.Unlock()

	go c.readLoop(rwc)

	c.logInfo("controller connected", "address", c.address)
	for _, o := range observers {
		o.ControllerConnected(c)
	}
	return nil
}

// scheduleRetryLocked must be called with mu held.
func (c *Controller) scheduleRetryLocked() time.Duration {
	delay := c.backoff.Next()
	c.retryAt = c.now().Add(delay)
	return delay
}

// readLoop frames lines from rwc into the inbox until the stream ends.
func (c *Controller) readLoop(rwc io.ReadWriteCloser) {
	defer c.wg.Done()

	scanner := bufio.NewScanner(rwc)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	for scanner.Scan() {
		line := bytes.TrimRight(scanner.Bytes(), "\r")
		if len(line) == 0 {
			continue
		}
		msg := make(protocol.RawMessage, len(line))
		copy(msg, line)

		c.linesRead.Add(1)
		select {
		case c.inbox <- msg:
		default:
			c.linesDropped.Add(1)
			c.logWarn("controller inbox full, dropping line", "address", c.address)
		}
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	c.connectionLost(rwc, err)
}

// connectionLost tears down rwc if it is still the active connection.
func (c *Controller) connectionLost(rwc io.ReadWriteCloser, cause error) {
	c.mu.Lock()
	if !c.connected || c.rwc != rwc {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.rwc = nil
	delay := c.scheduleRetryLocked()
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	rwc.Close() //nolint:errcheck // Already broken
	c.disconnects.Add(1)
	c.discardInbox()

	c.logWarn("controller connection lost", "address", c.address, "error", cause, "retry_in", delay.String())
	for _, o := range observers {
		o.ControllerDisconnected(c)
	}
}

// discardInbox drops lines left over from a previous connection.
func (c *Controller) discardInbox() {
	var n uint64
	for {
		select {
		case <-c.inbox:
			n++
		default:
			if n > 0 {
				c.linesDiscarded.Add(n)
				c.logDebug("discarded stale controller lines", "address", c.address, "count", n)
			}
			return
		}
	}
}

// Send writes cmd to the controller. A write failure closes the connection
// and returns ErrConnectionLost.
func (c *Controller) Send(ctx context.Context, cmd protocol.Command) error {
	c.mu.Lock()
	rwc, connected := c.rwc, c.connected
	c.mu.Unlock()

	if !connected {
		return fmt.Errorf("%w: %s", ErrNotConnected, c.address)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sending %s to %s: %w", cmd, c.address, err)
	}

	if d, ok := rwc.(interface{ SetWriteDeadline(time.Time) error }); ok {
		deadline := time.Now().Add(defaultWriteTimeout)
		if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
			deadline = ctxDeadline
		}
		_ = d.SetWriteDeadline(deadline) //nolint:errcheck // Not all conns support deadlines
	}

	if _, err := rwc.Write(cmd.Encode()); err != nil {
		c.connectionLost(rwc, err)
		return fmt.Errorf("%w: %s: %w", ErrConnectionLost, c.address, err)
	}

	c.commandsSent.Add(1)
	c.logDebug("command sent", "address", c.address, "command", cmd.String())
	return nil
}

// ProcessMessages drains the buffered lines without blocking.
func (c *Controller) ProcessMessages() []protocol.RawMessage {
	var msgs []protocol.RawMessage
	for {
		select {
		case msg := <-c.inbox:
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

// RetryDue reports whether a failed or lost controller should be reconnected.
func (c *Controller) RetryDue(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.connected && !c.closed && !c.retryAt.IsZero() && !now.Before(c.retryAt)
}

// Close closes the connection for good, notifying observers if it was open.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	rwc, wasConnected := c.rwc, c.connected
	c.rwc = nil
	c.connected = false
	observers := slices.Clone(c.observers)
	c.mu.Unlock()

	var err error
	if rwc != nil {
		if cerr := rwc.Close(); cerr != nil {
			err = fmt.Errorf("closing %s: %w", c.address, cerr)
		}
	}
	c.wg.Wait()

	if wasConnected {
		for _, o := range observers {
			o.ControllerDisconnected(c)
		}
	}
	return err
}

// Stats returns the controller counters.
func (c *Controller) Stats() ControllerStats {
	c.mu.Lock()
	connected, retryAt := c.connected, c.retryAt
	c.mu.Unlock()

	return ControllerStats{
		Address:         c.address,
		Connected:       connected,
		LinesRead:       c.linesRead.Load(),
		LinesDropped:    c.linesDropped.Load(),
		LinesDiscarded:  c.linesDiscarded.Load(),
		CommandsSent:    c.commandsSent.Load(),
		ConnectFailures: c.connectFailures.Load(),
		Disconnects:     c.disconnects.Load(),
		NextRetry:       retryAt,
	}
}

func (c *Controller) logDebug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Controller) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
