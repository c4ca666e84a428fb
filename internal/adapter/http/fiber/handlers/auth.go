package handlers

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

type AuthHandler struct {
	service ports.AuthService
	log     *zap.Logger
}

func NewAuthHandler(service ports.AuthService, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		log:     log,
	}
}

type NonceRequest struct {
	Account domain.Address `json:"account"`
}

type LoginRequest struct {
	Account   domain.Address `json:"account"`
	Signature string         `json:"signature"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *AuthHandler) Nonce(c *fiber.Ctx) error {
	var req NonceRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	challenge, err := h.service.Challenge(c.Context(), req.Account)
	if err != nil {
		return err
	}
	return c.JSON(challenge)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Account == domain.ZeroAddress || req.Signature == "" {
		return domain.E(domain.KindInvalidInput, "login", "account and signature are required")
	}
	signature, err := hexutil.Decode(req.Signature)
	if err != nil {
		return domain.E(domain.KindInvalidInput, "login", "signature must be 0x-prefixed hex")
	}

	session, err := h.service.Login(c.Context(), req.Account, signature)
	if err != nil {
		h.log.Warn("Login failed", zap.String("account", req.Account.Hex()), zap.Error(err))
		return err
	}
	return c.JSON(session)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.RefreshToken == "" {
		return domain.E(domain.KindInvalidInput, "refresh", "refresh_token is required")
	}

	session, err := h.service.Refresh(c.Context(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	if err := h.service.Logout(c.Context(), middleware.PrincipalFrom(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Me returns the authenticated caller.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	return c.JSON(middleware.PrincipalFrom(c))
}
