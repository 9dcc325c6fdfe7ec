package classifier

import (
	"context"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/pkg/log"
)

// Toucher is told about every inbound signal.
type Toucher interface {
	Touch()
}

// DriverReporter applies driver and module reports. The bool result is false
// when the report was dropped.
type DriverReporter interface {
	HandleDriverReport(ctx context.Context, driver string) bool
	HandleModuleReport(ctx context.Context, module string) bool
}

// Classifier routes inbound named values. Status signals go to the liveness
// monitor and the negotiator and raise events; everything else is recorded
// as a panel value.
type Classifier struct {
	liveness Toucher
	reporter DriverReporter
	events   *core.Events
	values   *ValueTable
	log      log.Logger
}

// New returns a classifier. events and values must not be nil.
func New(liveness Toucher, reporter DriverReporter, events *core.Events, values *ValueTable) *Classifier {
	return &Classifier{
		liveness: liveness,
		reporter: reporter,
		events:   events,
		values:   values,
		log:      log.WithName("classifier"),
	}
}

// Deliver processes one inbound value. Duplicates are processed again and
// re-emit their events.
func (c *Classifier) Deliver(ctx context.Context, name, value string) {
	if c.liveness != nil {
		c.liveness.Touch()
	}

	switch name {
	case core.SignalAlive:
		return

	case core.SignalActiveVehicle:
		c.log.Debug("Simulator reported active vehicle", "vehicle", value)
		c.events.ProfileHint.Publish(core.ProfileHint{Tag: value})

	case core.SignalActiveDriver:
		c.report(ctx, value, false)

	case core.SignalActiveModule:
		c.report(ctx, value, true)

	default:
		c.values.Set(name, value)
		c.events.Value.Publish(core.Value{Name: name, Value: value})
	}
}

func (c *Classifier) report(ctx context.Context, driver string, module bool) {
	if c.reporter != nil {
		var applied bool
		if module {
			applied = c.reporter.HandleModuleReport(ctx, driver)
		} else {
			applied = c.reporter.HandleDriverReport(ctx, driver)
		}
		if !applied {
			return
		}
	}
	c.events.DriverStatus.Publish(core.DriverStatus{ExportDriver: driver})
}
