package health

import (
	"context"
	"log/slog"

	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Server implements grpc.health.v1.Health on top of a Checker. Only the overall service ("")
// and "smartbanker" are known; Watch and List are left unimplemented.
type Server struct {
	healthpb.UnimplementedHealthServer
	checker *Checker
}

// ServiceName is the named service reported alongside the overall status.
const ServiceName = "smartbanker"

// NewServer returns a health server backed by checker.
func NewServer(checker *Checker) *Server {
	return &Server{checker: checker}
}

// Check runs the readiness probes. A failing probe is NOT_SERVING, never an RPC error.
func (s *Server) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if svc := req.GetService(); svc != "" && svc != ServiceName {
		return nil, status.Errorf(codes.NotFound, "unknown service %q", svc)
	}
	if err := s.checker.Check(ctx); err != nil {
		slog.WarnContext(ctx, "health check failed", "error", err)
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
