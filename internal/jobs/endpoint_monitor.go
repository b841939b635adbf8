package jobs

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"makosite/internal/metrics"
)

// Prober reports whether the contact endpoint is reachable.
type Prober interface {
	HealthCheck(ctx context.Context) bool
}

// EndpointMonitor probes the contact endpoint on an interval, exports the
// result as a gauge and logs when the endpoint goes down or comes back.
type EndpointMonitor struct {
	prober   Prober
	queue    metrics.QueueCounter
	interval time.Duration
	logger   *zap.Logger

	mu      sync.RWMutex
	checked bool
	up      bool
	lastAt  time.Time
}

// NewEndpointMonitor creates a monitor. queue may be nil; when set, the
// number of waiting messages is logged on recovery.
func NewEndpointMonitor(prober Prober, queue metrics.QueueCounter, interval time.Duration, logger *zap.Logger) *EndpointMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EndpointMonitor{
		prober:   prober,
		queue:    queue,
		interval: interval,
		logger:   logger,
	}
}

// Start begins the background probe loop. It returns when ctx is done.
func (m *EndpointMonitor) Start(ctx context.Context) {
	m.logger.Info("endpoint monitor started", zap.Duration("interval", m.interval))

	// Run immediately on start
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("endpoint monitor stopped")
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Check runs one probe and records the result.
func (m *EndpointMonitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout())
	up := m.prober.HealthCheck(probeCtx)
	cancel()

	m.mu.Lock()
	changed := !m.checked || m.up != up
	wasChecked := m.checked
	m.checked = true
	m.up = up
	m.lastAt = time.Now()
	m.mu.Unlock()

	metrics.SetEndpointUp(up)

	if !changed {
		return up
	}
	switch {
	case !up:
		m.logger.Warn("contact endpoint unreachable, submissions will be queued")
	case wasChecked:
		fields := []zap.Field{}
		if m.queue != nil {
			if n, err := m.queue.CountQueued(ctx); err == nil {
				fields = append(fields, zap.Int("queued", n))
			}
		}
		m.logger.Info("contact endpoint recovered", fields...)
	default:
		m.logger.Info("contact endpoint reachable")
	}
	return up
}

// Status returns the last probe result and when it ran. ok is false before
// the first probe.
func (m *EndpointMonitor) Status() (up bool, at time.Time, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.up, m.lastAt, m.checked
}

func (m *EndpointMonitor) probeTimeout() time.Duration {
	if m.interval > 0 && m.interval < 10*time.Second {
		return m.interval
	}
	return 10 * time.Second
}
