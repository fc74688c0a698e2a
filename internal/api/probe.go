package api

import (
	"context"
	"fmt"
	"net"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ProbeService is the health service name reported alongside the overall status.
const ProbeService = "attrition.v1.PredictionAPI"

// ProbeServer exposes the standard gRPC health protocol for orchestrator probes.
type ProbeServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
}

// NewProbeServer constructs a gRPC probe server bound to address. It reports
// NOT_SERVING until SetReady(true) is called.
func NewProbeServer(address string, opts ...grpc.ServerOption) (*ProbeServer, error) {
	lis, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", address, err)
	}

	grpc_prometheus.EnableHandlingTimeHistogram()
	serverOpts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(grpc_prometheus.UnaryServerInterceptor),
		grpc.ChainStreamInterceptor(grpc_prometheus.StreamServerInterceptor),
	}
	serverOpts = append(serverOpts, opts...)
	grpcServer := grpc.NewServer(serverOpts...)

	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	grpc_prometheus.Register(grpcServer)

	// Enable server reflection so grpcurl can discover the health service.
	reflection.Register(grpcServer)

	p := &ProbeServer{grpcServer: grpcServer, health: healthSrv, listener: lis}
	p.SetReady(false)
	return p, nil
}

// SetReady flips the reported serving status.
func (p *ProbeServer) SetReady(ready bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	p.health.SetServingStatus("", status)
	p.health.SetServingStatus(ProbeService, status)
}

// Start serves probe requests until Shutdown is invoked.
func (p *ProbeServer) Start() error {
	if p.grpcServer == nil || p.listener == nil {
		return fmt.Errorf("probe server not initialised")
	}
	return p.grpcServer.Serve(p.listener)
}

// Shutdown attempts a graceful shutdown, falling back to Stop after timeout.
func (p *ProbeServer) Shutdown(ctx context.Context) {
	if p.grpcServer == nil {
		return
	}
	p.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		p.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		p.grpcServer.Stop()
	case <-stopped:
	}
}

// Address exposes the bound listener address (useful for tests).
func (p *ProbeServer) Address() string {
	if p.listener == nil {
		return ""
	}
	return p.listener.Addr().String()
}
