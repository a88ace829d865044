// Package grpc exposes the auth server over gRPC: the standard health
// service for orchestrators and a small AuthService that lets sibling
// services resolve a bearer token to its owner.
package grpc

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type GRPCServer struct {
	address  string
	timeout  time.Duration
	sessions *services.SessionService
	accounts *services.AccountService
	health   *health.Server
	logger   logging.Logger
}

// NewGRPCServer builds the server. timeout bounds each unary call on the
// server side; zero disables it.
func NewGRPCServer(a string, l logging.Logger, timeout time.Duration, sessions *services.SessionService, accounts *services.AccountService) *GRPCServer {
	return &GRPCServer{
		address:  a,
		timeout:  timeout,
		logger:   l.With("module", "grpc_server"),
		sessions: sessions,
		accounts: accounts,
		health:   health.NewServer(),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.timeoutInterceptor, s.accessTokenInterceptor))

	healthpb.RegisterHealthServer(srv, s.health)
	srv.RegisterService(&authServiceDesc, s)

	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(authServiceName, healthpb.HealthCheckResponse_SERVING)
	return srv
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is done, then reports
// NOT_SERVING to health watchers and stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
