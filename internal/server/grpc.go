package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

// MatchmakingService is the health service name reported alongside the
// server-wide status.
const MatchmakingService = "cardbattle.Matchmaking"

// AdminServer exposes gRPC health checking and reflection for operators.
type AdminServer struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}

// NewAdminServer builds the admin gRPC server. It reports NOT_SERVING until
// SetServing(true).
func NewAdminServer(logger *zap.Logger) *AdminServer {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	reflection.Register(s)

	a := &AdminServer{grpc: s, health: hs, logger: logger}
	a.SetServing(false)
	return a
}

// Serve blocks serving lis
func (a *AdminServer) Serve(lis net.Listener) error {
	return a.grpc.Serve(lis)
}

// SetServing flips the reported health status
func (a *AdminServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		st = healthpb.HealthCheckResponse_SERVING
	}
	a.health.SetServingStatus("", st)
	a.health.SetServingStatus(MatchmakingService, st)
}

// Stop marks the server unhealthy and drains in-flight calls.
func (a *AdminServer) Stop() {
	a.health.Shutdown()
	a.grpc.GracefulStop()
}

// RecoveryInterceptor turns handler panics into Internal errors.
func RecoveryInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("recovered panic in gRPC handler",
					zap.String("method", info.FullMethod),
					zap.Any("panic", r),
					zap.Stack("stack"),
				)
				err = status.Errorf(codes.Internal, "internal error")
			}
		}()
		return handler(ctx, req)
	}
}

// LoggingInterceptor logs each unary call with its duration and status code.
func LoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("gRPC call",
			zap.String("method", info.FullMethod),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", status.Code(err).String()),
		)
		return resp, err
	}
}
