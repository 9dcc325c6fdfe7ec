package channel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeLine(t *testing.T) {
	line, err := encodeLine("SwitchDriver", "AV8B")
	require.NoError(t, err)
	assert.Equal(t, "SwitchDriver=AV8B\n", string(line))

	line, err = encodeLine("EQ", "a=b")
	require.NoError(t, err)
	assert.Equal(t, "EQ=a=b\n", string(line))

	for _, bad := range []string{"", "a=b", "a\nb"} {
		_, err := encodeLine(bad, "x")
		assert.ErrorIs(t, err, errBadName, bad)
	}
	_, err = encodeLine("ok", "two\nlines")
	assert.Error(t, err)
}

func TestDecodeLines(t *testing.T) {
	var got []Message
	skipped := decodeLines([]byte("ACTIVE_DRIVER=AV8B\r\n\nALIVE=\nbroken\n=nameless\nEQ=a=b"), func(n, v string) {
		got = append(got, Message{Name: n, Value: v})
	})

	assert.Equal(t, []Message{
		{Name: "ACTIVE_DRIVER", Value: "AV8B"},
		{Name: "ALIVE", Value: ""},
		{Name: "EQ", Value: "a=b"},
	}, got)
	assert.Equal(t, 2, skipped)
}
