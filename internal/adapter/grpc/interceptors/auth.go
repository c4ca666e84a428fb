package interceptors

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

type contextKey string

const principalKey contextKey = "principal"

// UnaryAuthInterceptor authenticates callers from the "authorization"
// (Bearer JWT) or "x-api-key" metadata. Methods listed in public may be
// called anonymously; credentials sent to them are still validated.
func UnaryAuthInterceptor(service ports.AuthService, public ...string) grpc.UnaryServerInterceptor {
	publicMethods := make(map[string]bool, len(public))
	for _, m := range public {
		publicMethods[m] = true
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		principal, err := authenticate(ctx, service)
		if err != nil {
			return nil, err
		}
		if principal == nil {
			if publicMethods[info.FullMethod] {
				return handler(ctx, req)
			}
			return nil, domain.E(domain.KindUnauthenticated, "authenticate", "missing credentials")
		}

		return handler(WithPrincipal(ctx, principal), req)
	}
}

func authenticate(ctx context.Context, service ports.AuthService) (*domain.Principal, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, nil
	}

	if keys := md.Get("x-api-key"); len(keys) > 0 && keys[0] != "" {
		return service.ValidateAPIKey(ctx, keys[0])
	}

	authHeader := md.Get("authorization")
	if len(authHeader) == 0 || authHeader[0] == "" {
		return nil, nil
	}
	scheme, token, ok := strings.Cut(authHeader[0], " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil, domain.E(domain.KindUnauthenticated, "authenticate", "invalid authorization metadata")
	}
	return service.ValidateToken(ctx, strings.TrimSpace(token))
}

// WithPrincipal attaches the authenticated caller to ctx.
func WithPrincipal(ctx context.Context, p *domain.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *domain.Principal {
	p, _ := ctx.Value(principalKey).(*domain.Principal)
	return p
}

// CallerFromContext returns the authenticated account, or the null account.
func CallerFromContext(ctx context.Context) domain.Address {
	if p := PrincipalFromContext(ctx); p != nil {
		return p.Account
	}
	return domain.ZeroAddress
}
