package handler

import (
	"errors"
	"log/slog"

	"github.com/arturoeanton/go-english-tutor/internal/port"
	"github.com/arturoeanton/go-english-tutor/internal/sanitize"
	"github.com/gofiber/fiber/v3"
)

// errorStatus maps domain errors to HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, port.ErrEmptyInput), errors.Is(err, port.ErrUnsafeInput), errors.Is(err, port.ErrInvalidDocument),
		errors.Is(err, port.ErrInvalidRecord):
		return fiber.StatusBadRequest
	case errors.Is(err, port.ErrSessionNotFound), errors.Is(err, port.ErrRoleNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, port.ErrGeneration):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Rejected input also carries the
// learner-facing warning.
func respondError(c fiber.Ctx, err error) error {
	status := errorStatus(err)
	body := fiber.Map{"error": err.Error()}

	var inputErr *sanitize.InputError
	if errors.As(err, &inputErr) {
		body["warning"] = inputErr.Warning
	}
	if status == fiber.StatusInternalServerError {
		slog.Error("request failed", "path", c.Path(), "error", err)
	}
	return c.Status(status).JSON(body)
}

func badRequest(c fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}
