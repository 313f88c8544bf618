package httpapi

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"pursekeep.org/internal/auth"
	"pursekeep.org/internal/obs"
)

const healthServicePrefix = "/grpc.health.v1.Health/"

// ReadinessChecker reports whether the backing store is usable.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// GRPCServer hosts the standard health service and the Session service
// behind the bearer token interceptor. Health is exempt; everything else
// needs a valid token.
type GRPCServer struct {
	server    *grpc.Server
	health    *health.Server
	readiness ReadinessChecker
	logger    *slog.Logger
}

// NewGRPCServer builds the server. Additional services may be registered on
// Server() before Serve is called.
func NewGRPCServer(resolver IdentityResolver, readiness ReadinessChecker, logger *slog.Logger, opts ...grpc.ServerOption) *GRPCServer {
	if logger == nil {
		logger = obs.Logger()
	}
	opts = append(opts, grpc.ChainUnaryInterceptor(UnaryAuthInterceptor(resolver, logger)))
	s := &GRPCServer{
		server:    grpc.NewServer(opts...),
		health:    health.NewServer(),
		readiness: readiness,
		logger:    logger,
	}
	healthpb.RegisterHealthServer(s.server, s.health)
	s.server.RegisterService(&sessionServiceDesc, sessionService{})
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(serviceName, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

func (s *GRPCServer) Server() *grpc.Server { return s.server }

// CheckReadiness probes the store once and publishes the result through the
// health service.
func (s *GRPCServer) CheckReadiness(ctx context.Context) bool {
	st := healthpb.HealthCheckResponse_SERVING
	if s.readiness != nil {
		if err := s.readiness.Ready(ctx); err != nil {
			s.logger.WarnContext(ctx, "grpc readiness check failed", "err", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(serviceName, st)
	return st == healthpb.HealthCheckResponse_SERVING
}

// WatchReadiness re-checks readiness every interval until ctx is done.
func (s *GRPCServer) WatchReadiness(ctx context.Context, interval time.Duration) {
	s.CheckReadiness(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckReadiness(ctx)
		}
	}
}

func (s *GRPCServer) Serve(lis net.Listener) error { return s.server.Serve(lis) }

// GracefulStop marks the service as not serving and drains connections.
func (s *GRPCServer) GracefulStop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}

// UnaryAuthInterceptor resolves "authorization: Bearer" metadata for every
// method except the health service.
func UnaryAuthInterceptor(resolver IdentityResolver, logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}
		token, err := bearerFromMetadata(ctx)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "missing bearer token")
		}
		id, err := resolver.Resolve(ctx, token)
		obs.ObserveAuth("resolve", outcome(err))
		if err != nil {
			return nil, grpcAuthError(ctx, logger, info.FullMethod, err)
		}
		ctx = auth.ContextWithIdentity(ctx, id)
		return handler(ctx, req)
	}
}

func bearerFromMetadata(ctx context.Context) (string, error) {
	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return extractBearerToken("")
	}
	return extractBearerToken(values[0])
}

func grpcAuthError(ctx context.Context, logger *slog.Logger, method string, err error) error {
	switch auth.KindOf(err) {
	case auth.KindInvalidCredentials:
		return status.Error(codes.Unauthenticated, "could not validate credentials")
	case auth.KindAccountDisabled:
		return status.Error(codes.PermissionDenied, "user account is disabled")
	case auth.KindForbidden:
		return status.Error(codes.PermissionDenied, "permission denied")
	default:
		logger.ErrorContext(ctx, "grpc auth failed", "method", method, "err", err)
		return status.Error(codes.Internal, "internal server error")
	}
}
