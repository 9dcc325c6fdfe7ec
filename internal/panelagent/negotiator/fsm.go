package negotiator

import (
	"context"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/panellink/internal/pkg/metrics"
	fsmutil "github.com/autopeer-io/panellink/internal/pkg/util/fsm"
)

// State is the negotiation state.
type State string

const (
	// StateUnknown means no driver report has arrived since the session
	// started or the endpoint changed.
	StateUnknown State = "unknown"
	// StateMatched means the reported driver satisfies the panel.
	StateMatched State = "matched"
	// StateMismatched means a switch request is outstanding or needed.
	StateMismatched State = "mismatched"
)

var allStates = []string{string(StateUnknown), string(StateMatched), string(StateMismatched)}

const (
	// eventReportMatch: a driver/module report satisfied the panel.
	eventReportMatch = "report_match"
	// eventReportMismatch: a report named a driver the panel cannot use.
	eventReportMismatch = "report_mismatch"
	// eventRequest: a switch or activation request was sent.
	eventRequest = "request"
	// eventConfirm: RequestDriver found the current driver already correct.
	eventConfirm = "confirm"
	// eventReset: the remote endpoint changed.
	eventReset = "reset"
)

func (n *Negotiator) newStateMachine() *fsm.FSM {
	src := allStates

	events := fsm.Events{
		{Name: eventReportMatch, Src: src, Dst: string(StateMatched)},
		{Name: eventReportMismatch, Src: src, Dst: string(StateMismatched)},
		{Name: eventRequest, Src: src, Dst: string(StateMismatched)},
		{Name: eventConfirm, Src: src, Dst: string(StateMatched)},
		{Name: eventReset, Src: src, Dst: string(StateUnknown)},
	}

	callbacks := fsm.Callbacks{
		"enter_state": fsmutil.WrapEvent(n.actionEnterState),
	}

	return fsm.NewFSM(string(StateUnknown), events, callbacks)
}

func (n *Negotiator) actionEnterState(_ context.Context, e *fsm.Event) error {
	n.log.Debug("Negotiation state changed", "event", e.Event, "from", e.Src, "to", e.Dst)
	metrics.SetNegotiationState(e.Dst, allStates...)
	return nil
}

// fire runs event on the state machine. Staying in the same state is not an error.
func (n *Negotiator) fire(ctx context.Context, event string) {
	if err := fsmutil.IgnoreNoTransition(n.machine.Event(ctx, event)); err != nil {
		n.log.Error(err, "Negotiation state machine rejected event", "event", event, "state", n.machine.Current())
	}
}
