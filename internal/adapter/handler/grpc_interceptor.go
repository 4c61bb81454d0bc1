package handler

import (
	"context"
	"log/slog"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/core/rbac"
)

// healthServicePrefix is left open so probes work without a token.
const healthServicePrefix = "/grpc.health.v1.Health/"

func logRPCAuthFailure(logger *slog.Logger, ctx context.Context, method, reason string) {
	attrs := []any{"method", method, "reason", reason}
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		attrs = append(attrs, "peer_addr", p.Addr.String())
	}
	logger.Warn("auth failure", attrs...)
}

// UnaryAuthInterceptor authenticates every call from its authorization
// metadata, then checks the fixed permission for methods listed in
// permissions.
func UnaryAuthInterceptor(auth Authenticator, roles *rbac.Registry, permissions map[string]string, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if strings.HasPrefix(info.FullMethod, healthServicePrefix) {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		token, ok := bearerToken(header)
		if !ok {
			logRPCAuthFailure(logger, ctx, info.FullMethod, "malformed authorization metadata")
			return nil, status.Error(codes.InvalidArgument, domain.ErrInvalidCredential.Error())
		}

		id, err := auth.Authenticate(token)
		if err != nil {
			logRPCAuthFailure(logger, ctx, info.FullMethod, err.Error())
			if code := grpcCode(err); code != codes.Internal {
				return nil, status.Error(code, authMessage(code))
			}
			return nil, status.Error(codes.Internal, "internal server error")
		}

		if perm, guarded := permissions[info.FullMethod]; guarded {
			if err := roles.Authorize(&id, perm); err != nil {
				return nil, status.Error(codes.PermissionDenied, err.Error())
			}
		}

		return handler(domain.WithIdentity(ctx, id), req)
	}
}

func authMessage(code codes.Code) string {
	if code == codes.Unauthenticated {
		return domain.ErrUnauthenticated.Error()
	}
	return domain.ErrInvalidCredential.Error()
}
