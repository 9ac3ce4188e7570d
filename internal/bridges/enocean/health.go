package enocean

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/jtjart/enocean-bridge/internal/infrastructure/mqtt"
)

// HealthReporter publishes per-gateway health messages to MQTT at
// regular intervals. One reporter serves every gateway in the manager.
type HealthReporter struct {
	manager   *Manager
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher

	// Per-gateway device counts (updated externally)
	deviceCounts   map[string]int
	deviceCountsMu sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger   Logger
	loggerMu sync.RWMutex
}

// HealthPublisher is the interface for publishing health messages.
// This is typically implemented by an MQTT client.
type HealthPublisher interface {
	// Publish sends a message to a topic with the specified QoS and retention.
	Publish(topic string, payload []byte, qos byte, retained bool) error

	// IsConnected returns true if the publisher is connected.
	IsConnected() bool
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Manager provides the gateways to report on.
	Manager *Manager

	// Version is the bridge software version.
	Version string

	// Interval is how often to publish health status.
	// Default: 30 seconds.
	Interval time.Duration

	// Publisher is the MQTT client for publishing messages.
	Publisher HealthPublisher
}

// NewHealthReporter creates a new health reporter.
// Call Start to begin reporting.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval == 0 {
		interval = 30 * time.Second
	}

	return &HealthReporter{
		manager:      cfg.Manager,
		version:      cfg.Version,
		startTime:    time.Now(),
		interval:     interval,
		publisher:    cfg.Publisher,
		deviceCounts: make(map[string]int),
		done:         make(chan struct{}),
	}
}

// Start begins periodic health reporting.
//
// Parameters:
//   - ctx: Context for cancellation (will stop reporting when cancelled)
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops health reporting.
// Safe to call multiple times (uses sync.Once).
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
	})
}

// SetDeviceCount updates the managed device count for a gateway.
func (h *HealthReporter) SetDeviceCount(gatewayID string, count int) {
	h.deviceCountsMu.Lock()
	h.deviceCounts[gatewayID] = count
	h.deviceCountsMu.Unlock()
}

// SetLogger sets the logger for this reporter.
func (h *HealthReporter) SetLogger(logger Logger) {
	h.loggerMu.Lock()
	h.logger = logger
	h.loggerMu.Unlock()
}

// PublishNow publishes the current health of every gateway immediately.
// Useful for forcing an update after a significant event.
func (h *HealthReporter) PublishNow() error {
	if h.publisher == nil || h.manager == nil {
		return nil
	}

	var firstErr error
	for _, g := range h.manager.All() {
		if err := h.publishGateway(g); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// reportLoop runs the periodic health reporting.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	// Publish initial status
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

// publishGateway publishes one gateway's health message.
func (h *HealthReporter) publishGateway(g *Gateway) error {
	h.deviceCountsMu.RLock()
	deviceCount := h.deviceCounts[g.ID()]
	h.deviceCountsMu.RUnlock()

	msg := NewHealthMessage(g, h.version, deviceCount, h.startTime)

	if msg.Status == HealthHealthy && !h.publisher.IsConnected() {
		msg.Status = HealthDegraded
		msg.Reason = "MQTT disconnected"
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return h.publisher.Publish(mqtt.Topics{}.Health(g.ID()), payload, 1, true)
}

// logError logs an error if logger is set.
func (h *HealthReporter) logError(msg string, err error) {
	h.loggerMu.RLock()
	logger := h.logger
	h.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
