package middleware

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/voltx/rec-hub/internal/domain"
)

// StatusForKind maps a ledger error kind to the HTTP status returned for it.
func StatusForKind(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthenticated:
		return fiber.StatusUnauthorized
	case domain.KindUnauthorized:
		return fiber.StatusForbidden
	case domain.KindInvalidInput, domain.KindInvalidRecipient, domain.KindInvalidAmount:
		return fiber.StatusBadRequest
	case domain.KindUnknownFacility, domain.KindUnknownEntry:
		return fiber.StatusNotFound
	case domain.KindDuplicateFacility:
		return fiber.StatusConflict
	case domain.KindInsufficientBalance, domain.KindInsufficientAllowance,
		domain.KindFacilityInactive, domain.KindMissingReason, domain.KindArithmeticOverflow:
		return fiber.StatusUnprocessableEntity
	case domain.KindSystemPaused:
		return fiber.StatusLocked
	default:
		return fiber.StatusInternalServerError
	}
}

// StatusForError returns the status ErrorHandler will answer err with.
func StatusForError(err error) int {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return StatusForKind(domain.KindOf(err))
}

func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := StatusForError(err)
		body := fiber.Map{"error": err.Error()}
		if kind := domain.KindOf(err); kind != "" {
			body["kind"] = kind
		}

		if code >= fiber.StatusInternalServerError {
			log.Error("Internal Server Error",
				zap.Error(err),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
			)
			if domain.KindOf(err) == "" {
				body["error"] = "internal server error"
			}
		}

		return c.Status(code).JSON(body)
	}
}
