package api

import (
	"errors"

	"github.com/gofiber/fiber/v3"

	"makosite/internal/apperr"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"error":  message,
	})
}

// jsonFailure maps a core error to its HTTP status.
func jsonFailure(c fiber.Ctx, err error) error {
	status, message := errorStatus(err)
	return jsonError(c, status, message)
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrForbidden):
		return fiber.StatusForbidden, "admin access required"
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound, "link not found"
	case errors.Is(err, apperr.ErrInvalid):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, apperr.ErrRemoteRejected):
		return fiber.StatusBadGateway, "the link store rejected the request"
	case errors.Is(err, apperr.ErrTransient):
		return fiber.StatusServiceUnavailable, "the link store is unreachable, try again"
	default:
		return fiber.StatusInternalServerError, "internal error"
	}
}
