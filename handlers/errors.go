// handlers/errors.go
package handlers

import (
	"errors"

	"habit-progression-engine/services"

	"github.com/gofiber/fiber/v2"
)

// statusFor maps service sentinels onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrDuplicateCompletion):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrInsufficientBalance),
		errors.Is(err, services.ErrInvalidAmount),
		errors.Is(err, services.ErrInvalidInput),
		errors.Is(err, services.ErrNegativeXP):
		return fiber.StatusBadRequest
	case errors.Is(err, services.ErrNotAuthorized):
		return fiber.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, services.ErrRaidClosed),
		errors.Is(err, services.ErrDungeonInactive),
		errors.Is(err, services.ErrAlreadyMember):
		return fiber.StatusConflict
	case errors.Is(err, services.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func respondError(c *fiber.Ctx, err error, msg string) error {
	return c.Status(statusFor(err)).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid JSON",
		"cause": err.Error(),
	})
}

// respondCompletion answers 409 when the window was already used.
func respondCompletion(c *fiber.Ctx, res *services.CompletionResult, body interface{}) error {
	if res.AlreadyDone {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error":             services.ErrDuplicateCompletion.Error(),
			"already_completed": true,
			"window":            res.Window,
		})
	}
	return c.JSON(body)
}
