package server

import (
	"context"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/autopeer-io/panellink/internal/panelagent/core"
	mw "github.com/autopeer-io/panellink/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/panellink/pkg/log"
	"github.com/autopeer-io/panellink/pkg/options"
)

// LinkService is the health service name that follows the simulator link.
const LinkService = "panellink.SimulatorLink"

// GRPCServer serves grpc.health.v1. The empty service reports the process;
// LinkService reports whether simulator traffic is flowing.
type GRPCServer struct {
	server  *grpc.Server
	health  *health.Server
	options *options.GrpcOptions
}

func NewGRPCServer(opts *options.GrpcOptions) *GRPCServer {
	s := grpc.NewServer(grpc.UnaryInterceptor(mw.UnaryServerTimeout(opts.RequestTimeout)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(LinkService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &GRPCServer{server: s, health: hs, options: opts}
}

// SetLinkStatus maps a liveness transition onto LinkService.
func (s *GRPCServer) SetLinkStatus(st core.LinkStatus) {
	status := healthpb.HealthCheckResponse_SERVING
	if st.Stale {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus(LinkService, status)
}

// SetSessionRunning marks LinkService as serving while a session runs and
// not serving otherwise.
func (s *GRPCServer) SetSessionRunning(running bool) {
	s.SetLinkStatus(core.LinkStatus{Stale: !running})
}

// Health returns the health service for in-process checks.
func (s *GRPCServer) Health() healthpb.HealthServer {
	return s.health
}

func (s *GRPCServer) Start(ctx context.Context) error {
	lis, err := net.Listen(s.options.Network, s.options.Addr)
	if err != nil {
		return err
	}

	log.Info("Starting gRPC Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.health.Shutdown()
		s.server.GracefulStop()
		return nil
	}
}
