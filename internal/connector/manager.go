package connector

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"time"
)

// DefaultForgetAfter is how many consecutive discovery rounds a disconnected
// controller may be missing before the manager drops it.
const DefaultForgetAfter = 5

// DiscoverFunc returns the addresses of candidate controllers.
type DiscoverFunc func(ctx context.Context) ([]string, error)

// ControllerFactory builds the Controller for a newly discovered address.
type ControllerFactory func(address string) *Controller

// tracked is a known controller and the number of discovery rounds in a
// row it has been missing while disconnected.
type tracked struct {
	ctrl   *Controller
	missed int
}

// Manager owns the known controllers, at most one per address.
type Manager struct {
	discover      DiscoverFunc
	newController ControllerFactory
	now           func() time.Time
	logger        Logger
	forgetAfter   int

	mu          sync.RWMutex
	controllers map[string]*tracked
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(logger Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// WithManagerClock replaces time.Now when checking retry deadlines.
func WithManagerClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithForgetAfter sets how many discovery rounds a disconnected controller
// may be missing before it is dropped. Values below 1 are ignored.
func WithForgetAfter(rounds int) ManagerOption {
	return func(m *Manager) {
		if rounds > 0 {
			m.forgetAfter = rounds
		}
	}
}

// NewManager returns an empty Manager.
func NewManager(discover DiscoverFunc, factory ControllerFactory, opts ...ManagerOption) *Manager {
	m := &Manager{
		discover:      discover,
		newController: factory,
		now:           time.Now,
		forgetAfter:   DefaultForgetAfter,
		controllers:   make(map[string]*tracked),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Update runs discovery and returns the controllers that need a Connect:
// those seen for the first time, followed by known ones whose retry is due.
// A discovery error is returned alongside whatever could still be found.
//
// Disconnected controllers that discovery has not reported for
// forgetAfter successful rounds are closed and forgotten, so an unplugged
// board stops being retried. A failed round does not count against them.
func (m *Manager) Update(ctx context.Context) ([]Conn, error) {
	addresses, err := m.discover(ctx)
	if err != nil && m.logger != nil {
		m.logger.Warn("controller discovery failed", "error", err)
	}

	now := m.now()

	m.mu.Lock()
	var pending []Conn
	seen := make(map[string]bool, len(addresses))
	for _, addr := range addresses {
		seen[addr] = true
		if _, known := m.controllers[addr]; known {
			continue
		}
		ctrl := m.newController(addr)
		m.controllers[addr] = &tracked{ctrl: ctrl}
		pending = append(pending, ctrl)
		if m.logger != nil {
			m.logger.Info("controller discovered", "address", addr)
		}
	}

	var forgotten []*Controller
	for _, addr := range slices.Sorted(maps.Keys(m.controllers)) {
		t := m.controllers[addr]
		switch {
		case seen[addr] || t.ctrl.IsConnected():
			t.missed = 0
		case err == nil:
			t.missed++
			if t.missed >= m.forgetAfter {
				delete(m.controllers, addr)
				forgotten = append(forgotten, t.ctrl)
				continue
			}
		}
		if t.ctrl.RetryDue(now) {
			pending = append(pending, t.ctrl)
		}
	}
	m.mu.Unlock()

	for _, ctrl := range forgotten {
		if cerr := ctrl.Close(); cerr != nil && m.logger != nil {
			m.logger.Warn("closing forgotten controller failed", "address", ctrl.Address(), "error", cerr)
		}
		if m.logger != nil {
			m.logger.Info("controller forgotten", "address", ctrl.Address())
		}
	}

	return pending, err
}

// Controllers returns every known controller ordered by address.
func (m *Manager) Controllers() []Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns := make([]Conn, 0, len(m.controllers))
	for _, addr := range slices.Sorted(maps.Keys(m.controllers)) {
		conns = append(conns, m.controllers[addr].ctrl)
	}
	return conns
}

// ControllerStats returns the counters of every known controller ordered
// by address.
func (m *Manager) ControllerStats() []ControllerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make([]ControllerStats, 0, len(m.controllers))
	for _, addr := range slices.Sorted(maps.Keys(m.controllers)) {
		stats = append(stats, m.controllers[addr].ctrl.Stats())
	}
	return stats
}

// Close closes every controller.
func (m *Manager) Close() error {
	m.mu.RLock()
	ctrls := make([]*Controller, 0, len(m.controllers))
	for _, t := range m.controllers {
		ctrls = append(ctrls, t.ctrl)
	}
	m.mu.RUnlock()

	var errs []error
	for _, ctrl := range ctrls {
		if err := ctrl.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
