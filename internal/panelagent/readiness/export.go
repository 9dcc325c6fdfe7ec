package readiness

import (
	"fmt"
	"iter"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/negotiator"
	"github.com/autopeer-io/panellink/internal/panelagent/profile"
)

// ValueSource tells which simulator values have been received.
type ValueSource interface {
	Has(name string) bool
	Len() int
}

// DriverSource exposes the negotiated driver state.
type DriverSource interface {
	Driver() negotiator.DriverState
	Reported() bool
}

var _ DriverSource = (*negotiator.Negotiator)(nil)

// ExportChecker verifies that the active export script provides what the
// panel needs.
type ExportChecker struct {
	Profile *profile.Profile
	Values  ValueSource
	Driver  DriverSource
}

func (c *ExportChecker) Name() string { return "export" }

func (c *ExportChecker) ReadyCheck() iter.Seq[core.StatusReportItem] {
	return func(yield func(core.StatusReportItem) bool) {
		clean := true
		emit := func(item core.StatusReportItem) bool {
			clean = false
			return yield(item)
		}

		if c.Driver == nil || !c.Driver.Reported() {
			if !emit(core.StatusReportItem{
				Severity:    core.SeverityWarning,
				Message:     "The simulator has not reported an export driver.",
				Remediation: "Start a mission and make sure the export script is installed in the simulator.",
			}) {
				return
			}
		} else if item, ok := c.driverFinding(c.Driver.Driver()); ok {
			if !emit(item) {
				return
			}
		}

		if c.Values == nil || c.Values.Len() == 0 {
			if len(c.Profile.RequiredBindings()) > 0 && !emit(core.StatusReportItem{
				Severity: core.SeverityInfo,
				Message:  "No simulator values received yet; binding checks skipped.",
			}) {
				return
			}
		} else {
			for _, name := range c.Profile.RequiredBindings() {
				if c.Values.Has(name) {
					continue
				}
				if !emit(core.StatusReportItem{
					Severity:    core.SeverityError,
					Message:     fmt.Sprintf("Value %q used by the panel is not exported by the simulator.", name),
					Remediation: "Update the export script, or mark the binding optional in the profile.",
				}) {
					return
				}
			}
		}

		if clean {
			yield(core.StatusReportItem{Severity: core.SeverityInfo, Message: "Export configuration is complete."})
		}
	}
}

func (c *ExportChecker) driverFinding(d negotiator.DriverState) (core.StatusReportItem, bool) {
	want := c.Profile.Identity().EffectiveName()

	switch c.Profile.Strategy() {
	case core.StrategyModule:
		if !d.IsModule {
			return core.StatusReportItem{
				Severity:    core.SeverityWarning,
				Message:     fmt.Sprintf("The simulator runs the legacy driver %q but the panel uses the export module.", d.CurrentDriverName),
				Remediation: "Install the export module, or clear usesExportModule in the profile.",
			}, true
		}
	default:
		if d.IsModule {
			return core.StatusReportItem{
				Severity:    core.SeverityWarning,
				Message:     "The simulator runs the export module but the panel uses a legacy driver.",
				Remediation: "Set usesExportModule in the profile.",
			}, true
		}
		if d.CurrentDriverName != want {
			return core.StatusReportItem{
				Severity:    core.SeverityError,
				Message:     fmt.Sprintf("The simulator runs export driver %q but the panel needs %q.", d.CurrentDriverName, want),
				Remediation: "Request the driver again, or check the vehicle configured in the profile.",
			}, true
		}
	}
	return core.StatusReportItem{}, false
}
