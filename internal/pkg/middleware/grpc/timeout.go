package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
)

const DefaultRPCTimeout = 10 * time.Second

// UnaryServerTimeout bounds every unary handler by d unless the caller
// already set a deadline. A non-positive d falls back to DefaultRPCTimeout.
func UnaryServerTimeout(d time.Duration) grpc.UnaryServerInterceptor {
	if d <= 0 {
		d = DefaultRPCTimeout
	}
	return func(ctx context.Context, req any, _ *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, d)
			defer cancel()
		}
		return handler(ctx, req)
	}
}
