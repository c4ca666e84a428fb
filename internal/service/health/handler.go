package health

import (
	"github.com/gofiber/fiber/v2"
)

type FiberHandler struct {
	service *Service
}

func NewFiberHandler(service *Service) *FiberHandler {
	return &FiberHandler{service: service}
}

// RegisterRoutes mounts liveness on /health/live, /livez and /healthz and
// readiness on /health/ready and /readyz.
func (h *FiberHandler) RegisterRoutes(app *fiber.App) {
	for _, path := range []string{"/health", "/health/live", "/healthz", "/livez"} {
		app.Get(path, h.Live)
	}
	for _, path := range []string{"/health/ready", "/readyz"} {
		app.Get(path, h.Ready)
	}
}

func (h *FiberHandler) Live(c *fiber.Ctx) error {
	return c.JSON(h.service.Health(c.Context()))
}

// Ready answers 503 while a critical dependency is down so load balancers
// stop routing writes to this instance.
func (h *FiberHandler) Ready(c *fiber.Ctx) error {
	resp := h.service.Ready(c.Context())
	if !resp.Ready {
		c.Status(fiber.StatusServiceUnavailable)
	}
	return c.JSON(resp)
}
