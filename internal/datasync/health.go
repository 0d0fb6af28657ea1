package datasync

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/BrewPi/brewpi-service/internal/connector"
	"github.com/BrewPi/brewpi-service/internal/infrastructure/mqtt"
)

// HealthComponent is the component name in the health topic.
const HealthComponent = "datasync"

const defaultHealthInterval = 30 * time.Second

// HealthStatus represents the operational status of the sync loop.
type HealthStatus string

const (
	// HealthStarting is published once before the loop runs.
	HealthStarting HealthStatus = "starting"

	// HealthHealthy means at least one controller is connected.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded means the loop runs but no controller is connected.
	HealthDegraded HealthStatus = "degraded"

	// HealthStopping is published once on shutdown.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is published retained on brewpi/health/datasync.
type HealthMessage struct {
	Component     string                      `json:"component"`
	Timestamp     time.Time                   `json:"timestamp"`
	Status        HealthStatus                `json:"status"`
	Version       string                      `json:"version"`
	UptimeSeconds int64                       `json:"uptime_seconds"`
	Statistics    *Stats                      `json:"statistics,omitempty"`
	Controllers   []connector.ControllerStats `json:"controllers,omitempty"`
	Reason        string                      `json:"reason,omitempty"`
}

// HealthPublisher sends raw payloads. Implemented by *mqtt.Client.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// StatsSource provides the loop statistics. Implemented by *Syncher.
type StatsSource interface {
	Stats() Stats
}

// ControllerStatsSource provides per-controller counters. Implemented by
// *connector.Manager.
type ControllerStatsSource interface {
	ControllerStats() []connector.ControllerStats
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	Publisher   HealthPublisher
	Stats       StatsSource
	Controllers ControllerStatsSource
}

// HealthReporter periodically publishes the loop health to MQTT.
type HealthReporter struct {
	version     string
	startTime   time.Time
	interval    time.Duration
	publisher   HealthPublisher
	stats       StatsSource
	controllers ControllerStatsSource
	topic       string

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// NewHealthReporter creates a health reporter. Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}

	return &HealthReporter{
		version:     cfg.Version,
		startTime:   time.Now(),
		interval:    interval,
		publisher:   cfg.Publisher,
		stats:       cfg.Stats,
		controllers: cfg.Controllers,
		topic:       mqtt.Topics{}.Health(HealthComponent),
		done:        make(chan struct{}),
	}
}

// Start begins periodic health reporting until ctx is cancelled or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "service stopping")
	})
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "sync loop starting")
}

// PublishNow publishes the current health status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

// Topic returns the health topic.
func (h *HealthReporter) Topic() string {
	return h.topic
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logError("failed to publish initial health", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logError("failed to publish health", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.stats == nil {
		return HealthDegraded, "no sync loop"
	}
	if h.stats.Stats().ConnectedControllers == 0 {
		return HealthDegraded, "no controller connected"
	}
	return HealthHealthy, ""
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return nil
	}

	msg := HealthMessage{
		Component:     HealthComponent,
		Timestamp:     time.Now().UTC(),
		Status:        status,
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Reason:        reason,
	}
	if h.stats != nil {
		stats := h.stats.Stats()
		msg.Statistics = &stats
	}
	if h.controllers != nil {
		msg.Controllers = h.controllers.ControllerStats()
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(h.topic, payload, 1, true)
}

func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
