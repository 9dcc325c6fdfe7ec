package options

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAddress(t *testing.T) {
	tests := []struct {
		addr    string
		wantErr bool
	}{
		{addr: "127.0.0.1:9089"},
		{addr: ":8088"},
		{addr: "localhost:1883"},
		{addr: "127.0.0.1", wantErr: true},
		{addr: "127.0.0.1:http", wantErr: true},
		{addr: "127.0.0.1:70000", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.addr, func(t *testing.T) {
			err := ValidateAddress(tt.addr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultsAreValid(t *testing.T) {
	for name, o := range map[string]IOptions{
		"session": NewSessionOptions(),
		"udp":     NewUdpOptions(),
		"mqtt":    NewMqttOptions(),
		"http":    NewHttpOptions(),
		"grpc":    NewGrpcOptions(),
	} {
		assert.Empty(t, o.Validate(), name)
	}
}

func TestSessionOptionsValidate(t *testing.T) {
	o := NewSessionOptions()
	o.Transport = "serial"
	o.ProfilePath = ""
	o.KnownVehicles = nil
	o.LivenessDeadline = 0
	o.CoalesceWindow = -time.Second

	assert.Len(t, o.Validate(), 5)
}

func TestSessionOptionsZeroCoalesceAllowed(t *testing.T) {
	o := NewSessionOptions()
	o.CoalesceWindow = 0
	assert.Empty(t, o.Validate())
}

func TestUdpOptionsEmptySimAddr(t *testing.T) {
	o := NewUdpOptions()
	o.SimAddr = ""
	assert.Empty(t, o.Validate())

	o.ListenAddr = "nowhere"
	assert.Len(t, o.Validate(), 1)
}

func TestDisabledServersSkipValidation(t *testing.T) {
	h := NewHttpOptions()
	h.Enabled = false
	h.Addr = "bad"
	assert.Empty(t, h.Validate())

	g := NewGrpcOptions()
	g.Enabled = false
	g.Addr = "bad"
	assert.Empty(t, g.Validate())

	g.Enabled = true
	g.RequestTimeout = -time.Second
	assert.Len(t, g.Validate(), 2)
}

func TestMqttOptionsValidate(t *testing.T) {
	o := NewMqttOptions()
	o.Broker = "tcp://[::1"
	assert.Len(t, o.Validate(), 1)
}

func TestAddFlags(t *testing.T) {
	session := NewSessionOptions()
	udp := NewUdpOptions()
	mqtt := NewMqttOptions()
	grpc := NewGrpcOptions()

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	session.AddFlags(fs)
	udp.AddFlags(fs)
	mqtt.AddFlags(fs)
	grpc.AddFlags(fs)

	err := fs.Parse([]string{
		"--session.transport=mqtt",
		"--session.known-vehicles=F-16C,AV8B",
		"--session.coalesce-window=0",
		"--udp.sim-addr=",
		"--mqtt.topic-root=dcs/v2",
		"--mqtt.keep-alive=15s",
		"--grpc.request-timeout=3s",
	})
	require.NoError(t, err)

	assert.Equal(t, "mqtt", session.Transport)
	assert.Equal(t, []string{"F-16C", "AV8B"}, session.KnownVehicles)
	assert.Zero(t, session.CoalesceWindow)
	assert.Empty(t, udp.SimAddr)
	assert.Equal(t, "dcs/v2", mqtt.TopicRoot)
	assert.Equal(t, 3*time.Second, grpc.RequestTimeout)

	cfg := mqtt.ToClientConfig()
	assert.Equal(t, uint16(15), cfg.KeepAlive)
	assert.Equal(t, mqtt.Broker, cfg.BrokerURL)
}
