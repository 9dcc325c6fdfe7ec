package negotiator

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/pkg/metrics"
	"github.com/autopeer-io/panellink/pkg/log"
)

// DriverState is the simulator's last reported export driver.
type DriverState struct {
	CurrentDriverName string `json:"name"`
	IsModule          bool   `json:"isModule"`
}

// Config describes what the panel expects from the simulator.
type Config struct {
	Vehicle  core.VehicleIdentity
	Strategy core.Strategy

	// CoalesceWindow suppresses a repeated identical request while the
	// previous one is younger than the window. Zero sends every request.
	CoalesceWindow time.Duration

	// Clock defaults to the real clock.
	Clock clock.PassiveClock

	// Logger defaults to the global logger.
	Logger log.Logger
}

type request struct {
	name  string
	value string
	at    time.Time
}

// Negotiator decides whether the simulator runs the export driver the panel
// needs and asks it to switch when it does not. It is safe for concurrent use.
// Requests are fire-and-forget; the outcome arrives later through
// HandleDriverReport or HandleModuleReport.
type Negotiator struct {
	cfg   Config
	clock clock.PassiveClock
	log   log.Logger
	emit  func(core.DriverStatus)

	mu      sync.Mutex
	channel core.Channel
	machine *fsm.FSM
	driver  DriverState
	pending *request

	// reported is set once a report arrives and cleared by Reset.
	reported bool
}

// New binds a negotiator to ch. emit receives the DriverStatus events the
// negotiator raises itself when a request finds the driver already correct.
func New(ch core.Channel, cfg Config, emit func(core.DriverStatus)) *Negotiator {
	n := &Negotiator{
		cfg:     cfg,
		clock:   cfg.Clock,
		log:     cfg.Logger,
		emit:    emit,
		channel: ch,
	}
	if n.clock == nil {
		n.clock = clock.RealClock{}
	}
	if n.log == nil {
		n.log = log.WithName("negotiator")
	}
	if n.emit == nil {
		n.emit = func(core.DriverStatus) {}
	}
	n.log = n.log.WithValues("vehicle", cfg.Vehicle.EffectiveName(), "strategy", cfg.Strategy)
	n.machine = n.newStateMachine()
	return n
}

// RequestDriver makes sure the simulator runs the driver the panel needs.
// If the reported driver already satisfies the panel it emits a DriverStatus
// and sends nothing; otherwise it sends a single switch or activation
// request. It returns core.ErrTransportAbsent after Close.
func (n *Negotiator) RequestDriver(ctx context.Context) error {
	n.mu.Lock()

	if n.channel == nil {
		n.mu.Unlock()
		n.log.Error(core.ErrTransportAbsent, "RequestDriver called without an active session")
		return core.ErrTransportAbsent
	}

	if n.satisfiedLocked() {
		n.pending = nil
		n.fire(ctx, eventConfirm)
		status := core.DriverStatus{ExportDriver: n.driver.CurrentDriverName}
		n.mu.Unlock()

		metrics.DriverRequestsTotal.WithLabelValues(n.command(), "matched").Inc()
		n.emit(status)
		return nil
	}

	req := &request{name: n.command(), value: n.cfg.Vehicle.EffectiveName(), at: n.clock.Now()}
	if n.coalescedLocked(req) {
		n.mu.Unlock()
		metrics.DriverRequestsTotal.WithLabelValues(req.name, "coalesced").Inc()
		n.log.Debug("Driver request already in flight, not resending", "command", req.name, "value", req.value)
		return nil
	}

	ch := n.channel
	n.pending = req
	n.fire(ctx, eventRequest)
	n.mu.Unlock()

	n.log.Info("Requesting export driver", "command", req.name, "value", req.value)
	if err := ch.Send(ctx, req.name, req.value); err != nil {
		n.mu.Lock()
		if n.pending == req {
			n.pending = nil
		}
		n.mu.Unlock()

		metrics.DriverRequestsTotal.WithLabelValues(req.name, "failed").Inc()
		return fmt.Errorf("send %s=%s: %w", req.name, req.value, err)
	}

	metrics.DriverRequestsTotal.WithLabelValues(req.name, "sent").Inc()
	return nil
}

// HandleDriverReport applies an ACTIVE_DRIVER report. It returns false when
// the negotiator is closed and the report was dropped.
func (n *Negotiator) HandleDriverReport(ctx context.Context, driver string) bool {
	return n.handleReport(ctx, DriverState{CurrentDriverName: driver, IsModule: false})
}

// HandleModuleReport applies an ACTIVE_MODULE report. It returns false when
// the negotiator is closed and the report was dropped.
func (n *Negotiator) HandleModuleReport(ctx context.Context, module string) bool {
	return n.handleReport(ctx, DriverState{CurrentDriverName: module, IsModule: true})
}

func (n *Negotiator) handleReport(ctx context.Context, state DriverState) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channel == nil {
		n.log.Debug("Dropping driver report after session stop", "driver", state.CurrentDriverName)
		return false
	}

	n.driver = state
	n.reported = true
	matched := n.satisfiedLocked()
	if matched {
		n.pending = nil
		n.fire(ctx, eventReportMatch)
	} else {
		n.fire(ctx, eventReportMismatch)
	}

	kind := "driver"
	if state.IsModule {
		kind = "module"
	}
	metrics.DriverReportsTotal.WithLabelValues(kind, strconv.FormatBool(matched)).Inc()
	n.log.Debug("Driver report applied", "kind", kind, "driver", state.CurrentDriverName, "matched", matched)
	return true
}

// Reset forgets the reported driver, e.g. because a different simulator
// instance is now on the other end. It does not issue a new request.
func (n *Negotiator) Reset(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.channel == nil {
		return
	}
	n.driver = DriverState{}
	n.reported = false
	n.pending = nil
	n.fire(ctx, eventReset)
}

// Close invalidates the transport handle. Later requests fail with
// core.ErrTransportAbsent and later reports are dropped.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channel = nil
	n.pending = nil
}

// State returns the current negotiation state.
func (n *Negotiator) State() State {
	return State(n.machine.Current())
}

// Driver returns the last reported driver state.
func (n *Negotiator) Driver() DriverState {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.driver
}

// Reported reports whether the simulator has reported a driver since the
// negotiator was created or last reset.
func (n *Negotiator) Reported() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.reported
}

// Pending reports whether a request is outstanding.
func (n *Negotiator) Pending() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pending != nil
}

// Config returns the negotiation configuration.
func (n *Negotiator) Config() Config {
	return n.cfg
}

func (n *Negotiator) command() string {
	if n.cfg.Strategy == core.StrategyModule {
		return core.CommandActivateModule
	}
	return core.CommandSwitchDriver
}

// satisfiedLocked is the matching test shared by requests and reports. With
// the module strategy any module is accepted: the module picks per-vehicle
// behaviour itself.
func (n *Negotiator) satisfiedLocked() bool {
	switch n.cfg.Strategy {
	case core.StrategyModule:
		return n.driver.IsModule
	default:
		return !n.driver.IsModule && n.driver.CurrentDriverName == n.cfg.Vehicle.EffectiveName()
	}
}

func (n *Negotiator) coalescedLocked(req *request) bool {
	if n.cfg.CoalesceWindow <= 0 || n.pending == nil {
		return false
	}
	if n.pending.name != req.name || n.pending.value != req.value {
		return false
	}
	return req.at.Sub(n.pending.at) < n.cfg.CoalesceWindow
}
