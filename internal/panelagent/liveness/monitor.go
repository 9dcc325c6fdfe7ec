package liveness

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/pkg/metrics"
	"github.com/autopeer-io/panellink/pkg/log"
)

// Sink receives link transitions. It is called without the monitor lock held.
type Sink func(core.LinkStatus)

// Monitor declares the simulator link stale when no inbound signal arrives
// within the deadline. Any signal counts, not only ALIVE.
type Monitor struct {
	deadline time.Duration
	clock    clock.WithTicker
	sink     Sink
	log      log.Logger

	mu      sync.Mutex
	last    time.Time
	stale   bool
	stopped bool
}

// NewMonitor returns a fresh, non-stale monitor whose deadline starts now.
// A nil clk uses the real clock.
func NewMonitor(deadline time.Duration, clk clock.WithTicker, sink Sink) *Monitor {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if sink == nil {
		sink = func(core.LinkStatus) {}
	}
	metrics.LinkStale.Set(0)
	return &Monitor{
		deadline: deadline,
		clock:    clk,
		sink:     sink,
		log:      log.WithName("liveness"),
		last:     clk.Now(),
	}
}

// Touch records inbound traffic and clears a stale link immediately.
func (m *Monitor) Touch() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.last = m.clock.Now()
	if !m.stale {
		m.mu.Unlock()
		return
	}
	m.stale = false
	status := core.LinkStatus{Stale: false, Since: m.last}
	m.mu.Unlock()

	m.report(status)
}

// Check marks the link stale once the deadline has passed since the last
// traffic. It reports whether the link is stale.
func (m *Monitor) Check() bool {
	m.mu.Lock()
	if m.stopped || m.stale {
		stale := m.stale
		m.mu.Unlock()
		return stale
	}
	now := m.clock.Now()
	if now.Sub(m.last) < m.deadline {
		m.mu.Unlock()
		return false
	}
	m.stale = true
	status := core.LinkStatus{Stale: true, Since: now}
	m.mu.Unlock()

	m.report(status)
	return true
}

// Stale reports the current link status without evaluating the deadline.
func (m *Monitor) Stale() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale
}

// LastSeen returns the time of the most recent traffic, or the creation time.
func (m *Monitor) LastSeen() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run checks the deadline every quarter deadline until ctx is done or the
// monitor is stopped.
func (m *Monitor) Run(ctx context.Context) {
	period := m.deadline / 4
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := m.clock.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			m.Check()
			if m.isStopped() {
				return
			}
		}
	}
}

// Stop silences the monitor. Later Touch and Check calls do nothing.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

func (m *Monitor) isStopped() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopped
}

func (m *Monitor) report(status core.LinkStatus) {
	if status.Stale {
		metrics.LinkStale.Set(1)
		m.log.Warn("Simulator link is stale", "deadline", m.deadline, "since", status.Since)
	} else {
		metrics.LinkStale.Set(0)
		m.log.Info("Simulator link restored")
	}
	m.sink(status)
}
