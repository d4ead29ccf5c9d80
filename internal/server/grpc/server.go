// Package grpc exposes the standard gRPC health service for the auth server.
// Its serving status follows the same readiness checks as the HTTP /ready
// probe.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/gophauth/internal/logging"
)

// ServiceName is the name clients pass in HealthCheckRequest.Service.
// The empty name reports the same status.
const ServiceName = "gophauth.Auth"

// ReadinessChecker reports whether the server dependencies are reachable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

type GRPCServer struct {
	address  string
	logger   logging.Logger
	checker  ReadinessChecker
	interval time.Duration
}

func NewGRPCServer(address string, l logging.Logger, checker ReadinessChecker, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &GRPCServer{
		address:  address,
		logger:   l.With("module", "grpc_server"),
		checker:  checker,
		interval: interval,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))

	hs := grpchealth.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	s.probe(ctx, hs)

	go func() {
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info(ctx, "Stopping gRPC server...")
				hs.Shutdown()
				srv.GracefulStop()
				return
			case <-t.C:
				s.probe(ctx, hs)
			}
		}
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}

func (s *GRPCServer) probe(ctx context.Context, hs *grpchealth.Server) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	st := healthpb.HealthCheckResponse_SERVING
	if err := s.checker.Ready(ctx); err != nil {
		st = healthpb.HealthCheckResponse_NOT_SERVING
		s.logger.Warn(ctx, "readiness check failed", "error", err)
	}
	hs.SetServingStatus("", st)
	hs.SetServingStatus(ServiceName, st)
}
