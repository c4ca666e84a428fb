package middleware

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/voltx/rec-hub/internal/observability/telemetry"
)

// Metrics counts requests by route pattern, method and final status.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = StatusForError(err)
		}
		route := c.Route().Path
		if route == "" {
			route = "unmatched"
		}
		telemetry.HTTPRequestsTotal.WithLabelValues(route, c.Method(), strconv.Itoa(status)).Inc()
		return err
	}
}
