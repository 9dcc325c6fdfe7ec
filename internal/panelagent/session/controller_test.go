package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"

	"github.com/autopeer-io/panellink/internal/panelagent/channel"
	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/negotiator"
	"github.com/autopeer-io/panellink/internal/panelagent/profile"
	"github.com/autopeer-io/panellink/internal/panelagent/readiness"
)

var known = core.NewVehicleSet("AV8B", "F-16C", "FA-18C")

type events struct {
	mu      sync.Mutex
	drivers []core.DriverStatus
	hints   []core.ProfileHint
	links   []core.LinkStatus
}

func (e *events) driverCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.drivers)
}

func (e *events) linkCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.links)
}

func newController(t *testing.T, p *profile.Profile, ch core.Channel) (*Controller, *events, *testingclock.FakeClock) {
	t.Helper()
	clk := testingclock.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	c, err := New(ch, Config{
		Profile:          p,
		KnownVehicles:    known,
		LivenessDeadline: 4 * time.Second,
		Clock:            clk,
	})
	require.NoError(t, err)
	t.Cleanup(c.Stop)

	ev := &events{}
	c.Events().OnDriverStatus(func(s core.DriverStatus) {
		ev.mu.Lock()
		defer ev.mu.Unlock()
		ev.drivers = append(ev.drivers, s)
	})
	c.Events().OnProfileHint(func(h core.ProfileHint) {
		ev.mu.Lock()
		defer ev.mu.Unlock()
		ev.hints = append(ev.hints, h)
	})
	c.Events().OnLinkStatus(func(s core.LinkStatus) {
		ev.mu.Lock()
		defer ev.mu.Unlock()
		ev.links = append(ev.links, s)
	})
	return c, ev, clk
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no profile", Config{KnownVehicles: known, LivenessDeadline: time.Second}},
		{"unknown vehicle", Config{Profile: &profile.Profile{Vehicle: "Camel"}, KnownVehicles: known, LivenessDeadline: time.Second}},
		{"unknown impersonation", Config{
			Profile:          &profile.Profile{Vehicle: "AV8B", ImpersonatedVehicleName: "Camel"},
			KnownVehicles:    known,
			LivenessDeadline: time.Second,
		}},
		{"no deadline", Config{Profile: &profile.Profile{Vehicle: "AV8B"}, KnownVehicles: known}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(channel.NewMemory(), tt.cfg)
			var cfgErr *core.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestRequestDriverBeforeStart(t *testing.T) {
	ch := channel.NewMemory()
	c, _, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)

	assert.ErrorIs(t, c.RequestDriver(context.Background()), core.ErrTransportAbsent)
	assert.ErrorIs(t, c.SendValue(context.Background(), "X", "1"), core.ErrTransportAbsent)
	assert.Empty(t, ch.Sent())
}

func TestScenarioLegacySwitch(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, ev, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.RequestDriver(ctx))
	assert.Equal(t, []channel.Message{{Name: core.CommandSwitchDriver, Value: "AV8B"}}, ch.Sent())

	ch.Deliver(core.SignalActiveDriver, "AV8B")
	assert.Equal(t, []core.DriverStatus{{ExportDriver: "AV8B"}}, ev.drivers)
	assert.Equal(t, negotiator.StateMatched, c.Snapshot().State)
}

func TestScenarioModuleAlreadyActive(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, ev, _ := newController(t, &profile.Profile{Vehicle: "AV8B", UsesExportModule: true}, ch)
	require.NoError(t, c.Start(ctx))

	ch.Deliver(core.SignalActiveModule, "core")
	require.NoError(t, c.RequestDriver(ctx))

	assert.Empty(t, ch.Sent())
	assert.Equal(t, []core.DriverStatus{{ExportDriver: "core"}, {ExportDriver: "core"}}, ev.drivers)
}

func TestScenarioLinkStale(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, ev, clk := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)
	require.NoError(t, c.Start(ctx))

	require.Eventually(t, clk.HasWaiters, time.Second, time.Millisecond)
	clk.Step(4 * time.Second)
	require.Eventually(t, func() bool { return c.Snapshot().Stale }, time.Second, time.Millisecond)
	require.Equal(t, 1, ev.linkCount())

	ch.Deliver(core.SignalAlive, "1")
	assert.False(t, c.Snapshot().Stale)
	require.Equal(t, 2, ev.linkCount())
	assert.False(t, ev.links[1].Stale)
}

func TestStartStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, ev, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)

	require.NoError(t, c.Start(ctx))
	id := c.Snapshot().SessionID
	require.NoError(t, c.Start(ctx))
	assert.Equal(t, id, c.Snapshot().SessionID)
	assert.Equal(t, 1, ch.Receivers())

	c.Stop()
	c.Stop()
	assert.Zero(t, ch.Receivers())
	assert.False(t, c.Running())
	assert.ErrorIs(t, c.RequestDriver(ctx), core.ErrTransportAbsent)

	for range 3 {
		require.NoError(t, c.Start(ctx))
		c.Stop()
	}
	require.NoError(t, c.Start(ctx))
	assert.NotEqual(t, id, c.Snapshot().SessionID)
	assert.Equal(t, 1, ch.Receivers(), "restart does not duplicate subscriptions")

	ch.Deliver(core.SignalActiveDriver, "F-16C")
	assert.Equal(t, 1, ev.driverCount(), "one delivery per event after restarts")
}

func TestNewSessionStartsUnknown(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, _, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)

	require.NoError(t, c.Start(ctx))
	ch.Deliver(core.SignalActiveDriver, "AV8B")
	c.Stop()
	require.NoError(t, c.Start(ctx))

	assert.Equal(t, negotiator.StateUnknown, c.Snapshot().State)
	assert.Equal(t, negotiator.DriverState{}, c.Snapshot().Driver)
}

func TestEndpointChangeResetsDriver(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, _, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)
	require.NoError(t, c.Start(ctx))

	ch.Deliver(core.SignalActiveDriver, "AV8B")
	ch.Deliver("HDG", "270")
	require.Equal(t, negotiator.StateMatched, c.Snapshot().State)

	ch.ChangeEndpoint("10.0.0.2:9089")
	st := c.Snapshot()
	assert.Equal(t, negotiator.StateUnknown, st.State)
	assert.Equal(t, negotiator.DriverState{}, st.Driver)
	assert.Empty(t, st.Values)
	assert.Empty(t, ch.Sent(), "endpoint change does not request a driver")
}

// leakyChannel never forgets a receiver, like a transport whose cancel raced
// with an in-flight delivery.
type leakyChannel struct {
	channel.Memory
	receivers []core.ReceiveFunc
}

func (l *leakyChannel) OnReceive(fn core.ReceiveFunc) func() {
	l.receivers = append(l.receivers, fn)
	return func() {}
}

func (l *leakyChannel) deliver(name, value string) {
	for _, fn := range l.receivers {
		fn(name, value)
	}
}

func TestLateDeliveryAfterStopIsDropped(t *testing.T) {
	ctx := context.Background()
	ch := &leakyChannel{}
	c, ev, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)

	require.NoError(t, c.Start(ctx))
	old := c.Handle()
	c.Stop()

	ch.deliver(core.SignalActiveDriver, "AV8B")
	assert.Zero(t, ev.driverCount())
	assert.Equal(t, negotiator.DriverState{}, old.Negotiator().Driver())

	require.NoError(t, c.Start(ctx))
	ch.deliver(core.SignalActiveDriver, "AV8B")
	assert.Equal(t, 1, ev.driverCount(), "only the current session applies the report")
}

func TestSubscriberMayRequestDriver(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, _, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)
	require.NoError(t, c.Start(ctx))

	var errs []error
	c.Events().OnDriverStatus(func(core.DriverStatus) {
		if len(errs) == 0 {
			errs = append(errs, c.RequestDriver(ctx))
		}
	})

	ch.Deliver(core.SignalActiveDriver, "F-16C")
	require.Len(t, errs, 1)
	assert.NoError(t, errs[0])
	assert.Equal(t, []channel.Message{{Name: core.CommandSwitchDriver, Value: "AV8B"}}, ch.Sent())
}

func TestRequestOnStart(t *testing.T) {
	ch := channel.NewMemory()
	c, err := New(ch, Config{
		Profile:          &profile.Profile{Vehicle: "FA-18C", ImpersonatedVehicleName: "F-16C"},
		KnownVehicles:    known,
		LivenessDeadline: time.Minute,
		RequestOnStart:   true,
	})
	require.NoError(t, err)
	defer c.Stop()

	require.NoError(t, c.Start(context.Background()))
	assert.Equal(t, []channel.Message{{Name: core.CommandSwitchDriver, Value: "F-16C"}}, ch.Sent())
}

func TestReloadRestartsWithNewProfile(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, _, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)
	require.NoError(t, c.Start(ctx))
	id := c.Snapshot().SessionID

	var cfgErr *core.ConfigError
	require.ErrorAs(t, c.Reload(ctx, &profile.Profile{Vehicle: "Camel"}), &cfgErr)
	assert.Equal(t, id, c.Snapshot().SessionID, "invalid profile keeps the session")

	require.NoError(t, c.Reload(ctx, &profile.Profile{Vehicle: "F-16C"}))
	assert.NotEqual(t, id, c.Snapshot().SessionID)
	assert.Equal(t, "F-16C", c.Snapshot().Vehicle)
	assert.Equal(t, 1, ch.Receivers())
}

func TestSendValue(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	c, _, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, ch)
	require.NoError(t, c.Start(ctx))

	require.NoError(t, c.SendValue(ctx, "MASTER_ARM", "1"))
	assert.Equal(t, []channel.Message{{Name: "MASTER_ARM", Value: "1"}}, ch.Sent())
}

func TestReadyCheck(t *testing.T) {
	ctx := context.Background()
	ch := channel.NewMemory()
	p := &profile.Profile{Vehicle: "AV8B", Bindings: []profile.Binding{{Name: "HDG"}}}
	c, _, _ := newController(t, p, ch)

	items := readiness.Collect(c.ReadyCheck())
	require.NotEmpty(t, items)
	assert.Equal(t, core.SeverityWarning, items[0].Severity)

	require.NoError(t, c.Start(ctx))
	ch.Deliver(core.SignalActiveDriver, "AV8B")
	ch.Deliver("HDG", "90")
	items = readiness.Collect(c.ReadyCheck())
	assert.Equal(t, core.SeverityInfo, readiness.Worst(items))
}

func TestReadyCheckWhileRequestOutstanding(t *testing.T) {
	ctx := context.Background()
	c, _, _ := newController(t, &profile.Profile{Vehicle: "AV8B"}, channel.NewMemory())
	require.NoError(t, c.Start(ctx))
	require.NoError(t, c.RequestDriver(ctx))
	require.Equal(t, negotiator.StateMismatched, c.Handle().Negotiator().State())

	items := readiness.Collect(c.ReadyCheck())
	require.NotEmpty(t, items)
	assert.Equal(t, core.SeverityWarning, items[0].Severity)
	assert.Contains(t, items[0].Message, "not reported")
	assert.Equal(t, core.SeverityWarning, readiness.Worst(items))
}

func TestHandleCloseIsNilSafe(t *testing.T) {
	var h *Handle
	assert.NotPanics(t, h.Close)
	assert.NotPanics(t, (&Handle{}).Close)
}
