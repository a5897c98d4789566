// Package healthsvc exposes a gRPC health-checking endpoint
// (grpc.health.v1.Health) so orchestration tooling can probe hislipd's
// liveness independently of any live HiSLIP session.
package healthsvc

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server wraps a gRPC server registered with the standard health service.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
}

// New creates a Server. The overall process is reported SERVING
// immediately; call SetServing(false) to flip it to NOT_SERVING (e.g.
// during graceful shutdown, before the listener closes).
func New() *Server {
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &Server{grpcServer: gs, health: hs}
}

// SetServing flips the overall process health status.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
}

// Serve starts the gRPC server on the given listener.
func (s *Server) Serve(lis net.Listener) error {
	if err := s.grpcServer.Serve(lis); err != nil {
		return fmt.Errorf("healthsvc: serve: %w", err)
	}
	return nil
}

// GracefulStop gracefully stops the server.
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
