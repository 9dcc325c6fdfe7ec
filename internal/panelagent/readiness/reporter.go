package readiness

import (
	"fmt"
	"iter"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/pkg/log"
)

// Reporter chains readiness checkers into one report.
type Reporter struct {
	checkers []core.ReadyChecker
}

// NewReporter runs checkers in the given order.
func NewReporter(checkers ...core.ReadyChecker) *Reporter {
	return &Reporter{checkers: checkers}
}

// PerformReadyCheck yields the findings of every checker in order. Nothing
// runs until the sequence is ranged over, and a checker is not started until
// the consumer has pulled every item of the one before it. A checker that
// panics contributes one error item; the next checker still runs.
func (r *Reporter) PerformReadyCheck() iter.Seq[core.StatusReportItem] {
	return func(yield func(core.StatusReportItem) bool) {
		for _, c := range r.checkers {
			if !runChecker(c, yield) {
				return
			}
		}
	}
}

func runChecker(c core.ReadyChecker, yield func(core.StatusReportItem) bool) (cont bool) {
	consumer := false
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if consumer {
			panic(r)
		}
		log.Error(fmt.Errorf("%v", r), "Readiness checker panicked", "checker", c.Name())
		cont = yield(core.StatusReportItem{
			Severity:    core.SeverityError,
			Message:     fmt.Sprintf("%s check failed: %v", c.Name(), r),
			Remediation: "Report this problem; the remaining checks were still run.",
		})
	}()

	for item := range c.ReadyCheck() {
		consumer = true
		if !yield(item) {
			return false
		}
		consumer = false
	}
	return true
}

// Collect drains seq into a slice.
func Collect(seq iter.Seq[core.StatusReportItem]) []core.StatusReportItem {
	var items []core.StatusReportItem
	for item := range seq {
		items = append(items, item)
	}
	return items
}

// Worst returns the highest severity in items, or SeverityInfo for none.
func Worst(items []core.StatusReportItem) core.Severity {
	worst := core.SeverityInfo
	for _, it := range items {
		worst = max(worst, it.Severity)
	}
	return worst
}
