package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

const (
	APIKeyHeader = "X-API-Key"

	localsPrincipal = "principal"
	localsAccount   = "account"
)

// Authenticate resolves the caller from a bearer token or an API key and
// stores it in the request locals. Requests without credentials pass through
// anonymously; invalid credentials are rejected.
func Authenticate(service ports.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			principal *domain.Principal
			err       error
		)

		if key := c.Get(APIKeyHeader); key != "" {
			principal, err = service.ValidateAPIKey(c.Context(), key)
		} else if authHeader := c.Get(fiber.HeaderAuthorization); authHeader != "" {
			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
				return domain.E(domain.KindUnauthenticated, "authenticate", "invalid authorization header format")
			}
			principal, err = service.ValidateToken(c.Context(), strings.TrimSpace(token))
		} else {
			return c.Next()
		}
		if err != nil {
			return err
		}

		c.Locals(localsPrincipal, principal)
		c.Locals(localsAccount, principal.Account.Hex())
		return c.Next()
	}
}

// AuthRequired rejects requests that Authenticate did not attach a caller to.
func AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if PrincipalFrom(c) == nil {
			return domain.E(domain.KindUnauthenticated, "authenticate", "missing credentials")
		}
		return c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, or nil.
func PrincipalFrom(c *fiber.Ctx) *domain.Principal {
	p, _ := c.Locals(localsPrincipal).(*domain.Principal)
	return p
}

// Caller returns the authenticated account, or the null account.
func Caller(c *fiber.Ctx) domain.Address {
	if p := PrincipalFrom(c); p != nil {
		return p.Account
	}
	return domain.ZeroAddress
}
