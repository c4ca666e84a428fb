package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/ports"
	"github.com/voltx/rec-hub/pkg/config"
)

// RouterConfig carries what the /api/v1 routes need.
type RouterConfig struct {
	Ledger       ports.LedgerService
	Auth         ports.AuthService
	Cache        ports.Cache
	RateLimiting config.RateLimitingConfig
	Idempotency  config.IdempotencyConfig
	Log          *zap.Logger
}

// RegisterRoutes mounts the ledger API under /api/v1. Reads are public;
// writes need a bearer token or an API key.
func RegisterRoutes(app *fiber.App, cfg RouterConfig) {
	tokens := NewTokenHandler(cfg.Ledger, cfg.Log)
	facilities := NewFacilityHandler(cfg.Ledger, cfg.Log)
	entries := NewEntryHandler(cfg.Ledger, cfg.Log)
	admin := NewAdminHandler(cfg.Ledger, cfg.Log)
	auth := NewAuthHandler(cfg.Auth, cfg.Log)

	v1 := app.Group("/api/v1", middleware.Authenticate(cfg.Auth))
	if cfg.RateLimiting.Enabled {
		v1.Use(middleware.RateLimit(cfg.RateLimiting, middleware.NewCacheStorage(cfg.Cache)))
	}
	if cfg.Idempotency.Enabled {
		v1.Use(middleware.Idempotency(cfg.Cache, cfg.Idempotency, cfg.Log))
	}

	// Public
	v1.Get("/token", tokens.Info)
	v1.Get("/facilities", facilities.List)
	v1.Get("/facilities/:id", facilities.Get)
	v1.Get("/accounts/:address", tokens.Balance)
	v1.Get("/accounts/:address/entries", entries.AccountEntries)
	v1.Get("/accounts/:address/allowances/:spender", tokens.Allowance)
	v1.Get("/entries", entries.List)
	v1.Get("/entries/:index", entries.Get)
	v1.Get("/certificates/:index", entries.Certificate)

	v1.Post("/auth/nonce", auth.Nonce)
	v1.Post("/auth/login", auth.Login)
	v1.Post("/auth/refresh", auth.Refresh)

	// Authenticated. A Group would apply the check to every /api/v1 route.
	protected := authenticatedRouter{v1, middleware.AuthRequired()}
	protected.Get("/auth/me", auth.Me)
	protected.Post("/auth/logout", auth.Logout)

	protected.Post("/facilities", facilities.Register)
	protected.Patch("/facilities/:id/status", facilities.SetStatus)
	protected.Post("/facilities/:id/toggle", facilities.Toggle)

	protected.Post("/mint", tokens.Mint)
	protected.Post("/mint/batch", tokens.BatchMint)
	protected.Post("/transfer", tokens.Transfer)
	protected.Post("/transfer-from", tokens.TransferFrom)
	protected.Post("/approve", tokens.Approve)
	protected.Post("/retire", tokens.Retire)
	protected.Post("/burn", tokens.Burn)

	protected.Post("/admin/pause", admin.Pause)
	protected.Post("/admin/unpause", admin.Unpause)
	protected.Post("/admin/ownership", admin.TransferOwnership)
}

type authenticatedRouter struct {
	router      fiber.Router
	requireAuth fiber.Handler
}

func (r authenticatedRouter) Get(path string, h fiber.Handler) {
	r.router.Get(path, r.requireAuth, h)
}

func (r authenticatedRouter) Post(path string, h fiber.Handler) {
	r.router.Post(path, r.requireAuth, h)
}

func (r authenticatedRouter) Patch(path string, h fiber.Handler) {
	r.router.Patch(path, r.requireAuth, h)
}
