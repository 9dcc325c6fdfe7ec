package session

import (
	"context"
	"sync"

	"github.com/autopeer-io/panellink/internal/panelagent/classifier"
	"github.com/autopeer-io/panellink/internal/panelagent/liveness"
	"github.com/autopeer-io/panellink/internal/panelagent/negotiator"
)

// Handle owns the per-session protocol objects. A zero or nil Handle may be
// closed.
type Handle struct {
	ID         string
	generation uint64

	negotiator *negotiator.Negotiator
	monitor    *liveness.Monitor
	classifier *classifier.Classifier
	values     *classifier.ValueTable

	cancels   []func()
	stopRun   context.CancelFunc
	closeOnce sync.Once
}

// Close releases channel subscriptions, invalidates the negotiator's
// transport and stops the liveness monitor. It is safe to call repeatedly.
func (h *Handle) Close() {
	if h == nil {
		return
	}
	h.closeOnce.Do(func() {
		for _, cancel := range h.cancels {
			cancel()
		}
		h.cancels = nil
		if h.negotiator != nil {
			h.negotiator.Close()
		}
		if h.monitor != nil {
			h.monitor.Stop()
		}
		if h.stopRun != nil {
			h.stopRun()
		}
	})
}

// Negotiator returns the session's negotiator.
func (h *Handle) Negotiator() *negotiator.Negotiator { return h.negotiator }

// Monitor returns the session's liveness monitor.
func (h *Handle) Monitor() *liveness.Monitor { return h.monitor }

// Values returns the values received during the session.
func (h *Handle) Values() *classifier.ValueTable { return h.values }
