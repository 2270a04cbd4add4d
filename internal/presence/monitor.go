package presence

import (
	"context"
	"log/slog"
	"time"
)

// Monitor expires connections that stop heartbeating, treating silence as
// an implicit disconnect. It runs independently of transport-level close
// detection to catch connections that die without a clean close.
type Monitor struct {
	registry *Registry
	manager  *Manager
	timeout  time.Duration
	interval time.Duration
	onExpire func(connID string)
	logger   *slog.Logger
	done     chan struct{}
}

func NewMonitor(registry *Registry, manager *Manager, timeout, interval time.Duration, onExpire func(connID string), logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		registry: registry,
		manager:  manager,
		timeout:  timeout,
		interval: interval,
		onExpire: onExpire,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (m *Monitor) Start() {
	go m.run()
}

func (m *Monitor) Stop() {
	close(m.done)
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Sweep(context.Background())
		case <-m.done:
			return
		}
	}
}

// Sweep expires every connection whose heartbeat age exceeds the timeout.
// Exposed so tests can drive it without waiting on the ticker.
func (m *Monitor) Sweep(ctx context.Context) {
	for _, connID := range m.registry.Stale(m.timeout) {
		m.logger.Warn("expiring silent connection", "connId", connID, "timeout", m.timeout)
		if err := m.manager.Disconnect(ctx, connID); err != nil {
			m.logger.Error("failed to expire connection", "connId", connID, "error", err)
		}
		if m.onExpire != nil {
			m.onExpire(connID)
		}
	}
}
