package server

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc/health/grpc_health_v1"
)

func TestGRPCServer_Health(t *testing.T) {
	srv, err := NewGRPCServer("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewGRPCServer() error = %v, want nil", err)
	}
	go srv.Start()
	defer srv.Shutdown(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	addr := srv.Addr().String()

	status, err := Check(ctx, addr)
	if err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	if status != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status before SetServing = %v, want NOT_SERVING", status)
	}

	srv.SetServing(true)
	status, err = Check(ctx, addr)
	if err != nil {
		t.Fatalf("Check() error = %v, want nil", err)
	}
	if status != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", status)
	}
}

func TestNewGRPCServer_EmptyAddr(t *testing.T) {
	if _, err := NewGRPCServer(""); err == nil {
		t.Error("NewGRPCServer(\"\") error = nil, want error")
	}
}
