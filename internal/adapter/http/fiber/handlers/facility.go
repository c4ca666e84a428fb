package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/adapter/http/fiber/middleware"
	"github.com/voltx/rec-hub/internal/domain"
	"github.com/voltx/rec-hub/internal/ports"
)

type FacilityHandler struct {
	service ports.LedgerService
	log     *zap.Logger
}

func NewFacilityHandler(service ports.LedgerService, log *zap.Logger) *FacilityHandler {
	return &FacilityHandler{
		service: service,
		log:     log,
	}
}

type FacilityStatusRequest struct {
	Active *bool `json:"active"`
}

// List returns every facility in registration order. ?ids=true returns only
// the identifiers.
func (h *FacilityHandler) List(c *fiber.Ctx) error {
	if c.QueryBool("ids") {
		return c.JSON(fiber.Map{
			"ids":   h.service.ListFacilityIDs(c.Context()),
			"count": h.service.FacilityCount(c.Context()),
		})
	}
	facilities := h.service.ListFacilities(c.Context())
	return c.JSON(fiber.Map{
		"facilities": facilities,
		"count":      len(facilities),
	})
}

func (h *FacilityHandler) Get(c *fiber.Ctx) error {
	facility, err := h.service.GetFacility(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(facility)
}

func (h *FacilityHandler) Register(c *fiber.Ctx) error {
	var req domain.RegisterFacilityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}

	facility, err := h.service.RegisterFacility(c.Context(), middleware.Caller(c), req)
	if err != nil {
		h.log.Warn("Facility registration rejected", zap.String("facility_id", req.ID), zap.Error(err))
		return err
	}

	h.log.Info("Facility registered",
		zap.String("facility_id", facility.ID),
		zap.String("energy_type", string(facility.EnergyType)),
	)
	return c.Status(fiber.StatusCreated).JSON(facility)
}

func (h *FacilityHandler) SetStatus(c *fiber.Ctx) error {
	var req FacilityStatusRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Active == nil {
		return domain.E(domain.KindInvalidInput, "set facility status", "active is required")
	}

	facility, err := h.service.SetFacilityActive(c.Context(), middleware.Caller(c), c.Params("id"), *req.Active)
	if err != nil {
		return err
	}
	return c.JSON(facility)
}

func (h *FacilityHandler) Toggle(c *fiber.Ctx) error {
	facility, err := h.service.ToggleFacilityStatus(c.Context(), middleware.Caller(c), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(facility)
}
