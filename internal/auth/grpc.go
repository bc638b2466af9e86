package auth

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"deliveryTracking/internal/apperr"
)

type principalStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *principalStream) Context() context.Context { return s.ctx }

// NewStreamAuthInterceptor attaches the caller's Principal to every stream.
// Streams without a credential run as anonymous; a bad credential refuses the stream.
func NewStreamAuthInterceptor(v Verifier) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		tok, err := TokenFromMD(ctx)
		if err != nil {
			return status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		p, err := Authenticate(v, tok)
		if err != nil {
			return status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		return handler(srv, &principalStream{ServerStream: ss, ctx: WithPrincipal(ctx, p)})
	}
}

// RequirePrincipal ensures a principal is present in context.
func RequirePrincipal(ctx context.Context) (*Principal, error) {
	p, ok := FromContext(ctx)
	if !ok || p == nil {
		return nil, apperr.New(apperr.CodeAuthentication, "missing principal")
	}
	return p, nil
}

// RequireRole ensures the principal has one of the given roles.
func RequireRole(p *Principal, roles ...Role) error {
	if p != nil {
		for _, r := range roles {
			if p.Role == r {
				return nil
			}
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperr.Newf(apperr.CodeAuthorization, "only %s can perform this action", strings.Join(names, " or "))
}

// RequireAdmin ensures the caller in ctx is an admin.
func RequireAdmin(ctx context.Context) (*Principal, error) {
	p, err := RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}
	if err := RequireRole(p, RoleAdmin); err != nil {
		return nil, err
	}
	return p, nil
}
