package mqtt

import (
	"context"
)

// MessageHandler processes one received message. Handlers for the same topic
// run sequentially in arrival order.
type MessageHandler func(ctx context.Context, topic string, payload []byte)

// Client is the subset of MQTT the agent needs; it hides the paho types.
type Client interface {
	// Start begins connecting in the background and returns immediately.
	Start(ctx context.Context) error

	Disconnect(ctx context.Context)

	Publish(ctx context.Context, topic string, qos int, retain bool, payload []byte) error

	// Subscribe registers handler for a topic filter. Subscriptions are
	// re-sent after a reconnect.
	Subscribe(ctx context.Context, topic string, qos int, handler MessageHandler) error

	Unsubscribe(ctx context.Context, topic string) error

	// AwaitConnection blocks until the client is connected or ctx ends.
	AwaitConnection(ctx context.Context) error

	IsConnected() bool
}
