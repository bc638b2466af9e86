package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"deliveryTracking/internal/auth"
	"deliveryTracking/internal/logger"
	"deliveryTracking/internal/tracking"
)

// NewServer builds the gRPC server exposing the tracking stream and the
// standard health service. Health checks are unary and skip authentication.
func NewServer(svc *tracking.Service, v auth.Verifier, log *logger.Logger, opts ...grpc.ServerOption) *grpc.Server {
	if svc == nil {
		panic("tracking service is required")
	}
	opts = append(opts, grpc.StreamInterceptor(auth.NewStreamAuthInterceptor(v)))
	srv := grpc.NewServer(opts...)

	RegisterTrackingServiceServer(srv, &StreamServer{Tracking: svc, Logger: log})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// Shutdown stops srv gracefully, forcing a stop when ctx expires first.
func Shutdown(ctx context.Context, srv *grpc.Server) error {
	done := make(chan struct{})
	go func() { srv.GracefulStop(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		srv.Stop()
		return ctx.Err()
	}
}
