package server

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"smartbanker/backend/internal/health"
)

// NewGRPCServer returns a gRPC server exposing grpc.health.v1.Health backed by checker, with
// OpenTelemetry instrumentation.
func NewGRPCServer(checker *health.Checker) *grpc.Server {
	s := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthpb.RegisterHealthServer(s, health.NewServer(checker))
	return s
}
