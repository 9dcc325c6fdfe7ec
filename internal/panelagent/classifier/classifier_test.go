package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/panellink/internal/panelagent/channel"
	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/negotiator"
)

type touchCounter struct{ n int }

func (t *touchCounter) Touch() { t.n++ }

type observed struct {
	drivers []core.DriverStatus
	hints   []core.ProfileHint
	values  []core.Value
}

func setup(t *testing.T, reporter DriverReporter) (*Classifier, *touchCounter, *observed) {
	t.Helper()
	events := &core.Events{}
	obs := &observed{}
	events.OnDriverStatus(func(s core.DriverStatus) { obs.drivers = append(obs.drivers, s) })
	events.OnProfileHint(func(h core.ProfileHint) { obs.hints = append(obs.hints, h) })
	events.OnValue(func(v core.Value) { obs.values = append(obs.values, v) })

	touch := &touchCounter{}
	return New(touch, reporter, events, NewValueTable()), touch, obs
}

func TestDeliverRoutesSignals(t *testing.T) {
	ctx := context.Background()
	c, touch, obs := setup(t, &fakeReporter{})

	c.Deliver(ctx, core.SignalActiveVehicle, "AV8BNA")
	c.Deliver(ctx, core.SignalAlive, "1")
	c.Deliver(ctx, "ALT_BARO", "12000")

	assert.Equal(t, 3, touch.n, "every signal touches liveness")
	assert.Equal(t, []core.ProfileHint{{Tag: "AV8BNA"}}, obs.hints)
	assert.Empty(t, obs.drivers)
	assert.Equal(t, []core.Value{{Name: "ALT_BARO", Value: "12000"}}, obs.values)

	v, ok := c.values.Get("ALT_BARO")
	require.True(t, ok)
	assert.Equal(t, "12000", v)
	assert.False(t, c.values.Has(core.SignalAlive), "status signals are not panel values")
}

type fakeReporter struct {
	drivers []string
	modules []string
	drop    bool
}

func (f *fakeReporter) HandleDriverReport(_ context.Context, d string) bool {
	f.drivers = append(f.drivers, d)
	return !f.drop
}

func (f *fakeReporter) HandleModuleReport(_ context.Context, m string) bool {
	f.modules = append(f.modules, m)
	return !f.drop
}

func TestDriverReportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	rep := &fakeReporter{}
	c, _, obs := setup(t, rep)

	c.Deliver(ctx, core.SignalActiveDriver, "AV8B")
	c.Deliver(ctx, core.SignalActiveDriver, "AV8B")

	assert.Equal(t, []core.DriverStatus{{ExportDriver: "AV8B"}, {ExportDriver: "AV8B"}}, obs.drivers)
	assert.Equal(t, []string{"AV8B", "AV8B"}, rep.drivers)
	assert.Empty(t, rep.modules)
}

func TestModuleReportIsForwarded(t *testing.T) {
	ctx := context.Background()
	rep := &fakeReporter{}
	c, _, obs := setup(t, rep)

	c.Deliver(ctx, core.SignalActiveModule, "core")

	assert.Equal(t, []string{"core"}, rep.modules)
	assert.Equal(t, []core.DriverStatus{{ExportDriver: "core"}}, obs.drivers)
}

func TestDroppedReportEmitsNothing(t *testing.T) {
	ctx := context.Background()
	rep := &fakeReporter{drop: true}
	c, touch, obs := setup(t, rep)

	c.Deliver(ctx, core.SignalActiveDriver, "AV8B")
	assert.Empty(t, obs.drivers)
	assert.Equal(t, 1, touch.n)
}

func TestRepeatedDriverLeavesStateUnchanged(t *testing.T) {
	ctx := context.Background()
	live := negotiator.New(channel.NewMemory(), negotiator.Config{Vehicle: core.VehicleIdentity{Native: "AV8B"}}, nil)
	c, _, obs := setup(t, live)

	c.Deliver(ctx, core.SignalActiveDriver, "AV8B")
	first := live.Driver()
	c.Deliver(ctx, core.SignalActiveDriver, "AV8B")

	assert.Equal(t, first, live.Driver())
	assert.Equal(t, negotiator.StateMatched, live.State())
	assert.Len(t, obs.drivers, 2)
}
