// Package grpc runs the operations listener. It serves the standard health
// service publicly and requires a session token for every other method.
package grpc

import (
	"context"
	"net"

	"github.com/profolio/profolio/internal/logging"
	"github.com/profolio/profolio/internal/server/guard"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCServer struct {
	address string
	guard   *guard.Guard
	health  *health.Server
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, g *guard.Guard) *GRPCServer {
	return &GRPCServer{
		address: a,
		guard:   g,
		health:  health.NewServer(),
		logger:  l.With("module", "grpc_server"),
	}
}

// Health exposes the health server so the app can flip serving status.
func (s *GRPCServer) Health() *health.Server {
	return s.health
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(s.authUnaryInterceptor),
		grpc.ChainStreamInterceptor(s.authStreamInterceptor),
	)

	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
