package mqtt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicsMatch(t *testing.T) {
	tests := []struct {
		filter, topic string
		want          bool
	}{
		{"panellink/v1/sim/ALIVE", "panellink/v1/sim/ALIVE", true},
		{"panellink/v1/sim/+", "panellink/v1/sim/ACTIVE_DRIVER", true},
		{"panellink/v1/sim/+", "panellink/v1/sim/a/b", false},
		{"panellink/v1/#", "panellink/v1/sim/a/b", true},
		{"panellink/v1/sim/+", "panellink/v1/panel/SwitchDriver", false},
		{"panellink/v1/sim", "panellink/v1/sim/ALIVE", false},
	}

	for _, tt := range tests {
		t.Run(tt.filter+"~"+tt.topic, func(t *testing.T) {
			assert.Equal(t, tt.want, topicsMatch(tt.filter, tt.topic))
		})
	}
}

func TestTopicFilterStripsSharePrefix(t *testing.T) {
	assert.Equal(t, "panellink/v1/sim/+", topicFilter("$share/panels/panellink/v1/sim/+"))
	assert.Equal(t, "panellink/v1/sim/+", topicFilter("panellink/v1/sim/+"))
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(nil)
	require.Error(t, err)

	_, err = NewClient(&ClientConfig{})
	require.Error(t, err)

	c, err := NewClient(&ClientConfig{BrokerURL: "tcp://127.0.0.1:1883"})
	require.NoError(t, err)
	assert.False(t, c.IsConnected())

	pc := c.(*pahoClient)
	assert.EqualValues(t, 30, pc.cfg.KeepAlive)
	assert.NotZero(t, pc.cfg.ConnectTimeout)

	assert.ErrorIs(t, c.Publish(t.Context(), "x", 0, false, nil), errNotStarted)
}
