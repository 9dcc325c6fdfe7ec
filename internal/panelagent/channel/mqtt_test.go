package channel

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/panellink/pkg/mqtt"
)

type published struct {
	topic   string
	payload string
}

type fakeClient struct {
	mu        sync.Mutex
	started   bool
	handlers  map[string]mqtt.MessageHandler
	published []published
	subErr    error
}

var _ mqtt.Client = (*fakeClient)(nil)

func (f *fakeClient) Start(context.Context) error { f.started = true; return nil }
func (f *fakeClient) Disconnect(context.Context)  {}
func (f *fakeClient) IsConnected() bool           { return f.started }

func (f *fakeClient) AwaitConnection(context.Context) error { return nil }

func (f *fakeClient) Publish(_ context.Context, topic string, _ int, _ bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, published{topic, string(payload)})
	return nil
}

func (f *fakeClient) Subscribe(_ context.Context, topic string, _ int, h mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.handlers == nil {
		f.handlers = make(map[string]mqtt.MessageHandler)
	}
	f.handlers[topic] = h
	return f.subErr
}

func (f *fakeClient) Unsubscribe(_ context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

func (f *fakeClient) deliver(filter, topic, payload string) {
	f.mu.Lock()
	h := f.handlers[filter]
	f.mu.Unlock()
	h(context.Background(), topic, []byte(payload))
}

func TestMQTTChannel(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{}
	m := newMQTT(client, "panellink/v1/", "tcp://broker:1883")
	require.NoError(t, m.Open(ctx))
	require.Contains(t, client.handlers, "panellink/v1/sim/+")

	rec := &received{}
	m.OnReceive(rec.value)

	client.deliver("panellink/v1/sim/+", "panellink/v1/sim/ACTIVE_MODULE", `"core"`)
	client.deliver("panellink/v1/sim/+", "panellink/v1/sim/ALIVE", `not json`)
	client.deliver("panellink/v1/sim/+", "other/sim/ALIVE", `"1"`)
	assert.Equal(t, []Message{{Name: "ACTIVE_MODULE", Value: "core"}}, rec.values)

	require.NoError(t, m.Send(ctx, "ActivateModule", "AV8B"))
	require.Len(t, client.published, 1)
	assert.Equal(t, "panellink/v1/panel/ActivateModule", client.published[0].topic)
	assert.JSONEq(t, `"AV8B"`, client.published[0].payload)
}

func TestMQTTReconnectIsEndpointChange(t *testing.T) {
	m := newMQTT(&fakeClient{}, "panellink/v1", "tcp://broker:1883")
	rec := &received{}
	m.OnEndpointChange(rec.endpoint)

	m.connectionUp(false)
	assert.Empty(t, rec.remote)
	m.connectionUp(true)
	assert.Equal(t, []string{"tcp://broker:1883"}, rec.remote)
}

func TestMQTTOpenToleratesUnreachableBroker(t *testing.T) {
	client := &fakeClient{subErr: errors.New("context deadline exceeded")}
	m := newMQTT(client, "panellink/v1", "tcp://broker:1883")
	assert.NoError(t, m.Open(context.Background()))
	assert.True(t, client.started)
}

func TestDialMQTTValidatesConfig(t *testing.T) {
	_, err := DialMQTT(&mqtt.ClientConfig{BrokerURL: "not a url"}, "panellink/v1")
	assert.Error(t, err)

	m, err := DialMQTT(&mqtt.ClientConfig{BrokerURL: "tcp://127.0.0.1:1883", ClientID: "panel"}, "panellink/v1")
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestDialMQTTLeavesCallerConfigAlone(t *testing.T) {
	var ups int
	cfg := &mqtt.ClientConfig{
		BrokerURL:      "tcp://127.0.0.1:1883",
		OnConnectionUp: func(bool) { ups++ },
	}

	m, err := DialMQTT(cfg, "panellink/v1")
	require.NoError(t, err)

	var changes int
	m.OnEndpointChange(func(string) { changes++ })

	cfg.OnConnectionUp(true)
	assert.Equal(t, 1, ups)
	assert.Zero(t, changes, "caller hook is not wrapped")
	assert.Zero(t, cfg.ConnectTimeout, "defaults are applied to the copy")
	assert.Equal(t, 5*time.Second, m.timeout)
}
