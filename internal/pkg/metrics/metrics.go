package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// LinkStale is 1 while the simulator link is stale and 0 while data flows.
	LinkStale = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "panellink_link_stale",
			Help: "Whether the simulator link is stale (1) or receiving traffic (0).",
		},
	)

	// DriverRequestsTotal counts RequestDriver outcomes.
	DriverRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panellink_driver_requests_total",
			Help: "Driver negotiation requests by command and outcome.",
		},
		[]string{"command", "outcome"}, // outcome: sent/coalesced/failed/matched
	)

	// DriverReportsTotal counts driver and module reports received from the simulator.
	DriverReportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "panellink_driver_reports_total",
			Help: "Export driver reports received, by kind and whether they matched the panel.",
		},
		[]string{"kind", "matched"},
	)

	// NegotiationState is 1 for the negotiator's current state and 0 for the others.
	NegotiationState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "panellink_negotiation_state",
			Help: "Current driver negotiation state (1 = active).",
		},
		[]string{"state"},
	)

	// SessionStartsTotal counts panel session starts.
	SessionStartsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "panellink_session_starts_total",
			Help: "Number of panel sessions started.",
		},
	)
)

func init() {
	prometheus.MustRegister(LinkStale)
	prometheus.MustRegister(DriverRequestsTotal)
	prometheus.MustRegister(DriverReportsTotal)
	prometheus.MustRegister(NegotiationState)
	prometheus.MustRegister(SessionStartsTotal)
}

// SetNegotiationState marks state as the only active negotiation state.
func SetNegotiationState(state string, all ...string) {
	for _, s := range all {
		NegotiationState.WithLabelValues(s).Set(0)
	}
	NegotiationState.WithLabelValues(state).Set(1)
}
