package session

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/autopeer-io/panellink/internal/panelagent/classifier"
	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/liveness"
	"github.com/autopeer-io/panellink/internal/panelagent/negotiator"
	"github.com/autopeer-io/panellink/internal/panelagent/profile"
	"github.com/autopeer-io/panellink/internal/panelagent/readiness"
	"github.com/autopeer-io/panellink/internal/pkg/metrics"
	"github.com/autopeer-io/panellink/pkg/log"
)

// Config configures a Controller.
type Config struct {
	Profile *profile.Profile

	// KnownVehicles are the identities that have an export driver.
	KnownVehicles core.VehicleSet

	LivenessDeadline time.Duration
	CoalesceWindow   time.Duration

	// RequestOnStart issues RequestDriver right after Start.
	RequestOnStart bool

	// Clock defaults to the real clock.
	Clock clock.WithTicker
}

func (c *Config) validate() error {
	if c.Profile == nil {
		return &core.ConfigError{Field: "profile", Reason: "must be set"}
	}
	if err := c.Profile.Validate(c.KnownVehicles); err != nil {
		return err
	}
	if c.LivenessDeadline <= 0 {
		return &core.ConfigError{Field: "livenessDeadline", Value: c.LivenessDeadline.String(), Reason: "must be positive"}
	}
	if c.CoalesceWindow < 0 {
		return &core.ConfigError{Field: "coalesceWindow", Value: c.CoalesceWindow.String(), Reason: "must not be negative"}
	}
	return nil
}

// Controller starts and stops panel sessions around one channel. Event
// subscriptions made through Events survive restarts; channel subscriptions
// belong to a session and never outlive it.
type Controller struct {
	channel core.Channel
	events  core.Events
	clock   clock.WithTicker
	log     log.Logger

	mu         sync.Mutex
	cfg        Config
	handle     *Handle
	generation uint64
}

// New validates cfg and returns a stopped controller. A profile naming an
// unknown vehicle fails with *core.ConfigError.
func New(ch core.Channel, cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Controller{
		channel: ch,
		clock:   clk,
		cfg:     cfg,
		log:     log.WithName("session"),
	}, nil
}

// Events returns the feeds external collaborators subscribe to.
func (c *Controller) Events() *core.Events {
	return &c.events
}

// Start begins a session. It does nothing if one is already running. The
// liveness monitor runs until Stop or until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.handle != nil {
		c.mu.Unlock()
		return nil
	}
	if c.channel == nil {
		c.mu.Unlock()
		c.log.Error(core.ErrTransportAbsent, "Cannot start session without a channel")
		return core.ErrTransportAbsent
	}

	c.generation++
	h := c.newHandle(c.generation)
	runCtx, cancel := context.WithCancel(ctx)
	h.stopRun = cancel
	c.handle = h
	cfg := c.cfg
	c.mu.Unlock()

	go h.monitor.Run(runCtx)

	metrics.SessionStartsTotal.Inc()
	c.log.Info("Session started", "sessionID", h.ID, "vehicle", cfg.Profile.Identity().String(),
		"strategy", cfg.Profile.Strategy())

	if cfg.RequestOnStart {
		if err := c.RequestDriver(ctx); err != nil {
			c.log.Warn("Initial driver request failed", "sessionID", h.ID, "error", err)
		}
	}
	return nil
}

// newHandle wires a fresh session. Callers hold c.mu.
func (c *Controller) newHandle(gen uint64) *Handle {
	p := c.cfg.Profile
	h := &Handle{
		ID:         uuid.NewString(),
		generation: gen,
		values:     classifier.NewValueTable(),
	}

	h.negotiator = negotiator.New(c.channel, negotiator.Config{
		Vehicle:        p.Identity(),
		Strategy:       p.Strategy(),
		CoalesceWindow: c.cfg.CoalesceWindow,
		Clock:          c.clock,
		Logger:         c.log.WithValues("sessionID", h.ID).WithName("negotiator"),
	}, func(s core.DriverStatus) {
		if c.current(gen) != nil {
			c.events.DriverStatus.Publish(s)
		}
	})

	h.monitor = liveness.NewMonitor(c.cfg.LivenessDeadline, c.clock, func(s core.LinkStatus) {
		if c.current(gen) != nil {
			c.events.LinkStatus.Publish(s)
		}
	})

	h.classifier = classifier.New(h.monitor, h.negotiator, &c.events, h.values)

	h.cancels = append(h.cancels, c.channel.OnReceive(func(name, value string) {
		c.deliver(gen, name, value)
	}))
	if n, ok := c.channel.(core.EndpointNotifier); ok {
		h.cancels = append(h.cancels, n.OnEndpointChange(func(remote string) {
			c.endpointChanged(gen, remote)
		}))
	}
	return h
}

// current returns the running handle if it still belongs to gen.
func (c *Controller) current(gen uint64) *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil || c.handle.generation != gen {
		return nil
	}
	return c.handle
}

func (c *Controller) deliver(gen uint64, name, value string) {
	h := c.current(gen)
	if h == nil {
		c.log.Debug("Dropping value from stopped session", "name", name)
		return
	}
	h.classifier.Deliver(context.Background(), name, value)
}

func (c *Controller) endpointChanged(gen uint64, remote string) {
	h := c.current(gen)
	if h == nil {
		return
	}
	c.log.Info("Simulator endpoint changed, forgetting driver state", "sessionID", h.ID, "remote", remote)
	h.negotiator.Reset(context.Background())
	h.values.Reset()
}

// Stop ends the running session. It does nothing if none is running.
func (c *Controller) Stop() {
	c.mu.Lock()
	h := c.handle
	c.handle = nil
	c.mu.Unlock()

	if h == nil {
		return
	}
	h.Close()
	c.log.Info("Session stopped", "sessionID", h.ID)
}

// Reload stops the session, swaps the profile and starts again if a session
// was running. An invalid profile leaves the current session untouched.
func (c *Controller) Reload(ctx context.Context, p *profile.Profile) error {
	c.mu.Lock()
	cfg := c.cfg
	cfg.Profile = p
	if err := cfg.validate(); err != nil {
		c.mu.Unlock()
		return err
	}
	c.cfg = cfg
	running := c.handle != nil
	c.mu.Unlock()

	if !running {
		return nil
	}
	c.Stop()
	return c.Start(ctx)
}

// Running reports whether a session is started.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Handle returns the running session, or nil.
func (c *Controller) Handle() *Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle
}

// Profile returns the profile the next or current session uses.
func (c *Controller) Profile() *profile.Profile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Profile
}

// RequestDriver asks the simulator for the driver the panel needs. Without a
// started session it fails with core.ErrTransportAbsent.
func (c *Controller) RequestDriver(ctx context.Context) error {
	h := c.Handle()
	if h == nil {
		c.log.Error(core.ErrTransportAbsent, "RequestDriver called before session start")
		return core.ErrTransportAbsent
	}
	return h.negotiator.RequestDriver(ctx)
}

// SendValue pushes a panel value to the simulator.
func (c *Controller) SendValue(ctx context.Context, name, value string) error {
	if c.Handle() == nil {
		return core.ErrTransportAbsent
	}
	return c.channel.Send(ctx, name, value)
}

// Status is a point-in-time view of the controller.
type Status struct {
	Running   bool                   `json:"running"`
	SessionID string                 `json:"sessionID,omitempty"`
	Vehicle   string                 `json:"vehicle"`
	Strategy  string                 `json:"strategy"`
	State     negotiator.State       `json:"state,omitempty"`
	Driver    negotiator.DriverState `json:"driver"`
	Stale     bool                   `json:"stale"`
	LastSeen  time.Time              `json:"lastSeen,omitzero"`
	Values    map[string]string      `json:"values,omitempty"`
}

// Snapshot returns the current status.
func (c *Controller) Snapshot() Status {
	c.mu.Lock()
	h, p := c.handle, c.cfg.Profile
	c.mu.Unlock()

	st := Status{
		Vehicle:  p.Identity().String(),
		Strategy: p.Strategy().String(),
	}
	if h == nil {
		return st
	}
	st.Running = true
	st.SessionID = h.ID
	st.State = h.negotiator.State()
	st.Driver = h.negotiator.Driver()
	st.Stale = h.monitor.Stale()
	st.LastSeen = h.monitor.LastSeen()
	st.Values = h.values.Snapshot()
	return st
}

// ReadyCheck reports readiness findings for the current profile and, when a
// session runs, what the simulator has reported so far.
func (c *Controller) ReadyCheck() iter.Seq[core.StatusReportItem] {
	c.mu.Lock()
	h, p := c.handle, c.cfg.Profile
	c.mu.Unlock()

	export := &readiness.ExportChecker{Profile: p, Values: classifier.NewValueTable()}
	if h != nil {
		export.Values = h.values
		export.Driver = h.negotiator
	}
	viewports := &readiness.ViewportChecker{Viewports: p.Viewports, Monitors: p.Monitors}
	return readiness.NewReporter(export, viewports).PerformReadyCheck()
}
