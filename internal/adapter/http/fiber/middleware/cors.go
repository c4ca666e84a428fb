package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	fibercors "github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/voltx/rec-hub/pkg/config"
)

var (
	defaultAllowedMethods = []string{fiber.MethodGet, fiber.MethodPost, fiber.MethodPatch, fiber.MethodOptions}
	defaultAllowedHeaders = []string{
		fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept, fiber.HeaderAuthorization,
		fiber.HeaderXRequestID, APIKeyHeader, IdempotencyHeader,
	}
	defaultExposeHeaders = []string{fiber.HeaderContentLength, fiber.HeaderXRequestID, ReplayedHeader}
)

// NewCORS creates a CORS middleware from application config
func NewCORS(cfg config.CORSConfig) fiber.Handler {
	allowedOrigins := "*"
	if len(cfg.AllowedOrigins) > 0 {
		allowedOrigins = strings.Join(cfg.AllowedOrigins, ",")
	}

	maxAge := 86400 // 24 hours default
	if cfg.MaxAge > 0 {
		maxAge = cfg.MaxAge
	}

	return fibercors.New(fibercors.Config{
		AllowOrigins:  allowedOrigins,
		AllowMethods:  joinOr(cfg.AllowedMethods, defaultAllowedMethods),
		AllowHeaders:  joinOr(cfg.AllowedHeaders, defaultAllowedHeaders),
		ExposeHeaders: joinOr(cfg.ExposeHeaders, defaultExposeHeaders),
		// fiber refuses credentials with a wildcard origin.
		AllowCredentials: cfg.Credentials && allowedOrigins != "*",
		MaxAge:           maxAge,
	})
}

func joinOr(values, fallback []string) string {
	if len(values) == 0 {
		values = fallback
	}
	return strings.Join(values, ",")
}
