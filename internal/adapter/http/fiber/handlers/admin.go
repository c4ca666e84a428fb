package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

type AdminHandler struct {
	service ports.LedgerService
	log     *zap.Logger
}

func NewAdminHandler(service ports.LedgerService, log *zap.Logger) *AdminHandler {
	return &AdminHandler{
		service: service,
		log:     log,
	}
}

type OwnershipRequest struct {
	NewOwner domain.Address `json:"new_owner"`
}

func (h *AdminHandler) Pause(c *fiber.Ctx) error {
	caller := middleware.Caller(c)
	if err := h.service.Pause(c.Context(), caller); err != nil {
		return err
	}
	h.log.Warn("Ledger paused", zap.String("by", caller.Hex()))
	return c.JSON(fiber.Map{"paused": true})
}

func (h *AdminHandler) Unpause(c *fiber.Ctx) error {
	caller := middleware.Caller(c)
	if err := h.service.Unpause(c.Context(), caller); err != nil {
		return err
	}
	h.log.Info("Ledger unpaused", zap.String("by", caller.Hex()))
	return c.JSON(fiber.Map{"paused": false})
}

func (h *AdminHandler) TransferOwnership(c *fiber.Ctx) error {
	var req OwnershipRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	caller := middleware.Caller(c)
	if err := h.service.TransferOwnership(c.Context(), caller, req.NewOwner); err != nil {
		return err
	}
	h.log.Warn("Ledger ownership transferred",
		zap.String("from", caller.Hex()),
		zap.String("to", req.NewOwner.Hex()),
	)
	return c.JSON(fiber.Map{"owner": req.NewOwner})
}
