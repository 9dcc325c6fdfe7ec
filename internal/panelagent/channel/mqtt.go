package channel

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	"github.com/autopeer-io/panellink/pkg/log"
	"github.com/autopeer-io/panellink/pkg/mqtt"
	"github.com/autopeer-io/panellink/pkg/mqtt/topic"
)

const qosAtMostOnce = 0

var (
	_ core.Channel          = (*MQTT)(nil)
	_ core.EndpointNotifier = (*MQTT)(nil)
)

// MQTT carries named values as one topic per name under a shared root. The
// simulator-side bridge publishes on {root}/sim/{name} and reads
// {root}/panel/{name}. Payloads are protojson-encoded StringValues.
type MQTT struct {
	client  mqtt.Client
	topics  *topic.Builder
	remote  string
	timeout time.Duration

	receive  core.Feed[core.Value]
	endpoint core.Feed[string]
}

// DialMQTT builds the client from a copy of cfg. A reconnect to the broker is reported
// as an endpoint change, since the bridge behind it may have restarted.
func DialMQTT(cfg *mqtt.ClientConfig, root string) (*MQTT, error) {
	c := *cfg
	m := &MQTT{topics: topic.NewBuilder(root), remote: c.BrokerURL}

	up := cfg.OnConnectionUp
	c.OnConnectionUp = func(reconnect bool) {
		if up != nil {
			up(reconnect)
		}
		m.connectionUp(reconnect)
	}

	client, err := mqtt.NewClient(&c)
	if err != nil {
		return nil, err
	}
	m.client = client
	m.timeout = c.ConnectTimeout
	return m, nil
}

func newMQTT(client mqtt.Client, root, remote string) *MQTT {
	return &MQTT{client: client, topics: topic.NewBuilder(root), remote: remote}
}

// Open starts the client and subscribes to every simulator value. If the
// broker is not reachable within the connect timeout the subscription is
// sent once the connection comes up.
func (m *MQTT) Open(ctx context.Context) error {
	if err := m.client.Start(ctx); err != nil {
		return fmt.Errorf("start mqtt client: %w", err)
	}

	subCtx := ctx
	if m.timeout > 0 {
		var cancel context.CancelFunc
		subCtx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}
	if err := m.client.Subscribe(subCtx, m.topics.SimWildcard(), qosAtMostOnce, m.handle); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("Broker not reachable yet, subscription deferred", "broker", m.remote, "error", err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close(ctx context.Context) {
	m.client.Disconnect(ctx)
}

func (m *MQTT) handle(_ context.Context, t string, payload []byte) {
	name, ok := m.topics.Name(topic.SegmentSim, t)
	if !ok {
		log.Debug("Ignoring message outside the simulator namespace", "topic", t)
		return
	}
	var v wrapperspb.StringValue
	if err := protojson.Unmarshal(payload, &v); err != nil {
		log.Warn("Dropping undecodable value", "topic", t, "error", err)
		return
	}
	m.receive.Publish(core.Value{Name: name, Value: v.GetValue()})
}

func (m *MQTT) connectionUp(reconnect bool) {
	if reconnect {
		m.endpoint.Publish(m.remote)
	}
}

func (m *MQTT) Send(ctx context.Context, name, value string) error {
	payload, err := protojson.Marshal(wrapperspb.String(value))
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := m.client.Publish(ctx, m.topics.Panel(name), qosAtMostOnce, false, payload); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", name, err)
	}
	return nil
}

func (m *MQTT) OnReceive(fn core.ReceiveFunc) (cancel func()) {
	return m.receive.Subscribe(func(v core.Value) { fn(v.Name, v.Value) })
}

func (m *MQTT) OnEndpointChange(fn func(remote string)) (cancel func()) {
	return m.endpoint.Subscribe(fn)
}
