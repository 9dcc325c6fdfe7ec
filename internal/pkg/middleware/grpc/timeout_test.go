package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnaryServerTimeoutAddsDeadline(t *testing.T) {
	intercept := UnaryServerTimeout(time.Minute)

	var got time.Time
	_, err := intercept(context.Background(), nil, nil, func(ctx context.Context, _ any) (any, error) {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		got = dl
		return nil, nil
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), got, 5*time.Second)
}

func TestUnaryServerTimeoutKeepsCallerDeadline(t *testing.T) {
	intercept := UnaryServerTimeout(time.Hour)

	want := time.Now().Add(time.Second)
	ctx, cancel := context.WithDeadline(context.Background(), want)
	defer cancel()

	_, err := intercept(ctx, nil, nil, func(ctx context.Context, _ any) (any, error) {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		assert.Equal(t, want, dl)
		return "ok", nil
	})
	require.NoError(t, err)
}

func TestUnaryServerTimeoutDefault(t *testing.T) {
	intercept := UnaryServerTimeout(0)

	_, err := intercept(context.Background(), nil, nil, func(ctx context.Context, _ any) (any, error) {
		dl, ok := ctx.Deadline()
		require.True(t, ok)
		assert.WithinDuration(t, time.Now().Add(DefaultRPCTimeout), dl, 5*time.Second)
		return nil, nil
	})
	require.NoError(t, err)
}
