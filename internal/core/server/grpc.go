// Package server provides the daemon's gRPC health endpoint.
//
// The daemon reports SERVING while its poll loop runs and NOT_SERVING once a
// fatal store error stops it. `ticketkeeper status` probes the endpoint in
// addition to checking the PID file.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name the daemon registers.
const ServiceName = "ticketkeeper.Daemon"

// shutdownTimeout bounds GracefulStop before forcing the server down.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages the health server lifecycle.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	listener net.Listener
}

// NewGRPCServer binds addr and registers the health service.
// The daemon starts NOT_SERVING until SetServing is called.
func NewGRPCServer(addr string) (*GRPCServer, error) {
	if addr == "" {
		return nil, fmt.Errorf("health address cannot be empty")
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &GRPCServer{
		server:   server,
		health:   healthServer,
		listener: listener,
	}, nil
}

// Addr returns the bound address.
func (s *GRPCServer) Addr() net.Addr {
	return s.listener.Addr()
}

// SetServing marks the daemon service healthy or not.
func (s *GRPCServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, status)
}

// Start serves gRPC requests. Blocks until Shutdown is called.
func (s *GRPCServer) Start() error {
	return s.server.Serve(s.listener)
}

// Shutdown gracefully stops the server with a 30-second timeout.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

// Check asks the health endpoint at addr for the daemon service status.
func Check(ctx context.Context, addr string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	defer conn.Close()

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, fmt.Errorf("health check failed: %w", err)
	}
	return resp.GetStatus(), nil
}
