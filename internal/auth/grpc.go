package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"

	"scrapPickup/internal/errs"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts and verifies
// a Bearer token from incoming metadata and injects the Principal into the context.
// Methods listed in allowUnauthenticated will bypass authentication (e.g., health checks).
func NewUnaryAuthInterceptor(v Verifier, allowUnauthenticated ...string) grpc.UnaryServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		p, err := ParseFromMD(ctx, v)
		if err != nil {
			return nil, GRPCError(err)
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}

// GRPCError converts a classified error into a gRPC status error.
func GRPCError(err error) error {
	if err == nil {
		return nil
	}
	if e, ok := errs.As(err); ok {
		return status.Error(errs.GRPCCode(e.Kind), e.Message)
	}
	return status.Error(errs.GRPCCode(errs.KindInternal), "internal error")
}

// NewStreamAuthInterceptor is the streaming counterpart of NewUnaryAuthInterceptor.
func NewStreamAuthInterceptor(v Verifier, allowUnauthenticated ...string) grpc.StreamServerInterceptor {
	allow := make(map[string]struct{}, len(allowUnauthenticated))
	for _, m := range allowUnauthenticated {
		allow[strings.TrimSpace(m)] = struct{}{}
	}
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if _, ok := allow[info.FullMethod]; ok {
			return handler(srv, ss)
		}
		p, err := ParseFromMD(ss.Context(), v)
		if err != nil {
			return GRPCError(err)
		}
		return handler(srv, &principalStream{ServerStream: ss, ctx: WithPrincipal(ss.Context(), p)})
	}
}

type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *principalStream) Context() context.Context { return s.ctx }
