package datasync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/BrewPi/brewpi-service/internal/connector"
	"github.com/BrewPi/brewpi-service/internal/controller"
	"github.com/BrewPi/brewpi-service/internal/protocol"
)

// Default loop timings.
const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultCommandDelay = time.Second
	DefaultConnectDelay = time.Second
)

// Logger is the logging dependency of the package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// ControllerManager is the view of connector.Manager the loop needs.
type ControllerManager interface {
	// Update returns controllers that need a Connect.
	Update(ctx context.Context) ([]connector.Conn, error)

	// Controllers returns every known controller.
	Controllers() []connector.Conn
}

// Decoder turns a raw line into messages. Implemented by *protocol.Decoder.
type Decoder interface {
	Decode(raw protocol.RawMessage) ([]protocol.Message, error)
}

// Config holds the loop timings and the host used in controller URIs.
type Config struct {
	Host string

	// PollInterval is the pause at the end of every cycle.
	PollInterval time.Duration

	// CommandDelay is the wait between sending the device listing and
	// reading the replies.
	CommandDelay time.Duration

	// ConnectDelay is the pause before connecting each new controller.
	ConnectDelay time.Duration
}

// Stats is a snapshot of the loop counters.
type Stats struct {
	Cycles               uint64    `json:"cycles"`
	MessagesDecoded      uint64    `json:"messages_decoded"`
	DecodeErrors         uint64    `json:"decode_errors"`
	HandlerErrors        uint64    `json:"handler_errors"`
	SendErrors           uint64    `json:"send_errors"`
	ConnectErrors        uint64    `json:"connect_errors"`
	ConnectedControllers int       `json:"connected_controllers"`
	KnownControllers     int       `json:"known_controllers"`
	LastCycle            time.Time `json:"last_cycle,omitzero"`
}

type counters struct {
	cycles          atomic.Uint64
	messagesDecoded atomic.Uint64
	decodeErrors    atomic.Uint64
	handlerErrors   atomic.Uint64
	sendErrors      atomic.Uint64
	connectErrors   atomic.Uint64
	connected       atomic.Int64
	known           atomic.Int64
	lastCycle       atomic.Int64
}

// Syncher runs the controller synchronisation loop.
//
// Thread Safety:
//   - Run must be called from a single goroutine.
//   - Trigger and Stats are safe for concurrent use.
type Syncher struct {
	cfg        Config
	manager    ControllerManager
	decoder    Decoder
	observer   connector.Observer
	newHandler HandlerFactory
	logger     Logger
	sleep      func(ctx context.Context, d time.Duration) error

	trigger chan struct{}
	stats   counters
}

// Option configures a Syncher.
type Option func(*Syncher)

// WithLogger sets the loop logger.
func WithLogger(logger Logger) Option {
	return func(s *Syncher) { s.logger = logger }
}

// WithHandlerFactory sets how message handlers are built per controller.
func WithHandlerFactory(f HandlerFactory) Option {
	return func(s *Syncher) { s.newHandler = f }
}

// WithSleep replaces the context-aware sleep used for the connect and
// command delays.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Syncher) { s.sleep = sleep }
}

// NewSyncher returns a loop over manager. observer is subscribed to every
// controller before it is connected.
func NewSyncher(cfg Config, manager ControllerManager, decoder Decoder, observer connector.Observer, opts ...Option) *Syncher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CommandDelay < 0 {
		cfg.CommandDelay = DefaultCommandDelay
	}
	if cfg.ConnectDelay < 0 {
		cfg.ConnectDelay = DefaultConnectDelay
	}

	s := &Syncher{
		cfg:      cfg,
		manager:  manager,
		decoder:  decoder,
		observer: observer,
		sleep:    sleepContext,
		trigger:  make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.newHandler == nil {
		s.newHandler = NewHandlerFactory(s.logger, nil)
	}
	return s
}

// Run executes cycles until ctx is cancelled. The controller being
// synchronised when ctx is cancelled finishes its exchange first.
func (s *Syncher) Run(ctx context.Context) {
	s.logInfo("sync loop started",
		"poll_interval", s.cfg.PollInterval.String(),
		"command_delay", s.cfg.CommandDelay.String(),
	)
	defer s.logInfo("sync loop stopped", "cycles", s.stats.cycles.Load())

	for ctx.Err() == nil {
		s.cycle(ctx)
		s.waitPoll(ctx)
	}
}

// Trigger wakes the loop from its poll interval pause. Triggers arriving
// while a cycle runs collapse into one.
func (s *Syncher) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Stats returns the loop counters.
func (s *Syncher) Stats() Stats {
	st := Stats{
		Cycles:               s.stats.cycles.Load(),
		MessagesDecoded:      s.stats.messagesDecoded.Load(),
		DecodeErrors:         s.stats.decodeErrors.Load(),
		HandlerErrors:        s.stats.handlerErrors.Load(),
		SendErrors:           s.stats.sendErrors.Load(),
		ConnectErrors:        s.stats.connectErrors.Load(),
		ConnectedControllers: int(s.stats.connected.Load()),
		KnownControllers:     int(s.stats.known.Load()),
	}
	if ns := s.stats.lastCycle.Load(); ns != 0 {
		st.LastCycle = time.Unix(0, ns).UTC()
	}
	return st
}

// cycle runs one discovery and synchronisation pass.
func (s *Syncher) cycle(ctx context.Context) {
	s.connectNew(ctx)

	connected := 0
	controllers := s.manager.Controllers()
	for _, c := range controllers {
		if ctx.Err() != nil {
			break
		}
		if !c.IsConnected() {
			continue
		}
		connected++
		s.syncController(ctx, c)
	}

	s.stats.connected.Store(int64(connected))
	s.stats.known.Store(int64(len(controllers)))
	s.stats.cycles.Add(1)
	s.stats.lastCycle.Store(time.Now().UnixNano())
}

// connectNew subscribes and connects the controllers the manager hands out.
func (s *Syncher) connectNew(ctx context.Context) {
	pending, err := s.manager.Update(ctx)
	if err != nil {
		s.logDebug("controller update incomplete", "error", err)
	}

	for _, c := range pending {
		if err := s.sleep(ctx, s.cfg.ConnectDelay); err != nil {
			return
		}
		if s.observer != nil {
			c.Subscribe(s.observer)
		}
		if err := c.Connect(ctx); err != nil {
			s.stats.connectErrors.Add(1)
			s.logWarn("controller connect failed", "address", c.Address(), "error", err)
		}
	}
}

// syncController requests the installed devices of c and handles whatever
// the controller sent since the previous cycle.
func (s *Syncher) syncController(ctx context.Context, c connector.Conn) {
	uri := controller.NewURI(s.cfg.Host, c.Address())

	if err := c.Send(ctx, protocol.ListInstalledDevices{WithValues: true}); err != nil {
		s.stats.sendErrors.Add(1)
		s.logWarn("sending command failed", "uri", uri, "error", err)
		return
	}

	// Replies already buffered are still handled if the wait is cut short.
	_ = s.sleep(ctx, s.cfg.CommandDelay) //nolint:errcheck // Cancellation is checked by the caller

	lines := c.ProcessMessages()
	if len(lines) == 0 {
		return
	}

	handler := s.newHandler(uri)
	for _, raw := range lines {
		s.processLine(uri, handler, raw)
	}
}

// processLine decodes raw and dispatches every message it yields.
func (s *Syncher) processLine(uri string, handler protocol.Handler, raw protocol.RawMessage) {
	msgs, err := s.decoder.Decode(raw)
	if err != nil {
		s.stats.decodeErrors.Add(1)
		s.logWarn("decoding controller message failed", "uri", uri, "line", string(raw), "error", err)
		return
	}

	for _, msg := range msgs {
		s.stats.messagesDecoded.Add(1)
		if err := dispatch(uri, handler, msg); err != nil {
			s.stats.handlerErrors.Add(1)
			s.logError("handling controller message failed", "uri", uri, "kind", string(msg.Kind()), "error", err)
		}
	}
}

// dispatch routes msg to handler, turning errors and panics into a
// *MessageError.
func dispatch(uri string, handler protocol.Handler, msg protocol.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &MessageError{URI: uri, Kind: msg.Kind(), Err: fmt.Errorf("%w: %v", ErrHandlerPanic, r)}
		}
	}()

	if herr := msg.Accept(handler); herr != nil {
		return &MessageError{URI: uri, Kind: msg.Kind(), Err: herr}
	}
	return nil
}

// waitPoll pauses for the poll interval, returning early on Trigger or
// cancellation.
func (s *Syncher) waitPoll(ctx context.Context) {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-s.trigger:
		s.logDebug("sync triggered")
	}
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Syncher) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Syncher) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Syncher) logWarn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Syncher) logError(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
