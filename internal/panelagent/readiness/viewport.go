package readiness

import (
	"fmt"
	"iter"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/internal/panelagent/profile"
)

// ViewportChecker verifies that every simulator viewport has a usable place
// on the configured monitors.
type ViewportChecker struct {
	Viewports []profile.Viewport
	Monitors  []profile.Monitor
}

func (c *ViewportChecker) Name() string { return "viewport" }

func (c *ViewportChecker) ReadyCheck() iter.Seq[core.StatusReportItem] {
	return func(yield func(core.StatusReportItem) bool) {
		if len(c.Viewports) == 0 {
			return
		}
		if len(c.Monitors) == 0 {
			yield(core.StatusReportItem{
				Severity:    core.SeverityWarning,
				Message:     "No monitors configured; viewport placement cannot be checked.",
				Remediation: "Add the monitor layout to the profile.",
			})
			return
		}

		clean := true
		for i, vp := range c.Viewports {
			item, ok := c.check(vp)
			if ok {
				clean = false
				if !yield(item) {
					return
				}
				continue
			}
			for _, other := range c.Viewports[i+1:] {
				if !vp.Overlaps(other.Rect) {
					continue
				}
				clean = false
				if !yield(core.StatusReportItem{
					Severity:    core.SeverityWarning,
					Message:     fmt.Sprintf("Viewport %q overlaps viewport %q.", vp.Name, other.Name),
					Remediation: "Move one of the viewports so the simulator does not draw over the other.",
				}) {
					return
				}
			}
		}

		if clean {
			yield(core.StatusReportItem{
				Severity: core.SeverityInfo,
				Message:  fmt.Sprintf("%d viewport(s) correctly placed.", len(c.Viewports)),
			})
		}
	}
}

func (c *ViewportChecker) check(vp profile.Viewport) (core.StatusReportItem, bool) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return core.StatusReportItem{
			Severity:    core.SeverityError,
			Message:     fmt.Sprintf("Viewport %q has no area (%dx%d).", vp.Name, vp.Width, vp.Height),
			Remediation: "Give the viewport a positive width and height.",
		}, true
	}
	for _, m := range c.Monitors {
		if m.Contains(vp.Rect) {
			return core.StatusReportItem{}, false
		}
	}
	return core.StatusReportItem{
		Severity:    core.SeverityError,
		Message:     fmt.Sprintf("Viewport %q is not fully on any monitor.", vp.Name),
		Remediation: "Move the viewport inside one monitor; the simulator cannot span displays.",
	}, true
}
