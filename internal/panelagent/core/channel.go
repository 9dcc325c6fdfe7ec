package core

import (
	"context"
)

// ReceiveFunc is called for every named value that arrives from the simulator.
type ReceiveFunc func(name, value string)

// Channel is the best-effort, unordered named-value transport to the
// simulator. Implementations must allow OnReceive and its cancel func to be
// called from any goroutine.
type Channel interface {
	// Send transmits a single named value. It does not wait for a reply.
	Send(ctx context.Context, name, value string) error

	// OnReceive registers fn for inbound values. The returned func removes
	// the registration; after it returns fn is not called again.
	OnReceive(fn ReceiveFunc) (cancel func())
}

// EndpointNotifier is implemented by channels that can tell when the remote
// simulator endpoint changed, e.g. after a reconnect or a new source address.
type EndpointNotifier interface {
	OnEndpointChange(fn func(remote string)) (cancel func())
}
