package channel

import (
	"context"
	"sync"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
)

// Message is one named value sent through a channel.
type Message struct {
	Name  string
	Value string
}

// Memory is an in-process Channel. Deliver plays the simulator side; Sent
// records what the panel transmitted. It backs tests and the offline check
// command.
type Memory struct {
	receive  core.Feed[core.Value]
	endpoint core.Feed[string]

	mu      sync.Mutex
	sent    []Message
	sendErr error
}

var (
	_ core.Channel          = (*Memory)(nil)
	_ core.EndpointNotifier = (*Memory)(nil)
)

// NewMemory returns an empty in-process channel.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Send(_ context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, Message{Name: name, Value: value})
	return nil
}

func (m *Memory) OnReceive(fn core.ReceiveFunc) (cancel func()) {
	return m.receive.Subscribe(func(v core.Value) { fn(v.Name, v.Value) })
}

func (m *Memory) OnEndpointChange(fn func(remote string)) (cancel func()) {
	return m.endpoint.Subscribe(fn)
}

// Deliver hands name=value to every receiver synchronously.
func (m *Memory) Deliver(name, value string) {
	m.receive.Publish(core.Value{Name: name, Value: value})
}

// ChangeEndpoint simulates a new simulator peer.
func (m *Memory) ChangeEndpoint(remote string) {
	m.endpoint.Publish(remote)
}

// SetSendError makes every following Send fail with err; nil restores success.
func (m *Memory) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Sent returns a copy of every message sent so far.
func (m *Memory) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}

// Receivers returns the number of registered receive callbacks.
func (m *Memory) Receivers() int {
	return m.receive.Len()
}
