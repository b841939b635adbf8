package api

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"makosite/internal/apperr"
	"makosite/internal/contact"
)

// ContactHandler accepts contact-form submissions and exposes the fallback
// queue to admins.
type ContactHandler struct {
	queue         *contact.Queue
	fallbackEmail string
	logger        *zap.Logger
}

// NewContactHandler creates a new contact handler.
func NewContactHandler(queue *contact.Queue, fallbackEmail string, logger *zap.Logger) *ContactHandler {
	return &ContactHandler{queue: queue, fallbackEmail: fallbackEmail, logger: logger}
}

// Submit forwards a message. A message that could not be delivered but was
// queued answers 202 with status "queued".
func (h *ContactHandler) Submit(c fiber.Ctx) error {
	var p contact.Payload
	if err := json.Unmarshal(c.Body(), &p); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	ack, err := h.queue.Submit(c.Context(), p)
	if err == nil {
		return jsonSuccess(c, ack)
	}

	var queued *contact.QueuedError
	switch {
	case errors.As(err, &queued):
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
			"status": "queued",
			"data": fiber.Map{
				"id":            queued.Message.ID,
				"timestamp":     queued.Message.Timestamp,
				"fallbackEmail": h.fallbackEmail,
			},
		})
	case errors.Is(err, apperr.ErrInvalid):
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	default:
		h.logger.Error("contact message lost", zap.Error(err))
		msg := "your message could not be sent"
		if h.fallbackEmail != "" {
			msg += ", please email " + h.fallbackEmail
		}
		return jsonError(c, fiber.StatusServiceUnavailable, msg)
	}
}

// ListQueued returns the queued messages, oldest first.
func (h *ContactHandler) ListQueued(c fiber.Ctx) error {
	msgs, err := h.queue.ListQueued(c.Context())
	if err != nil {
		h.logger.Error("failed to read contact queue", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to read queue")
	}
	if msgs == nil {
		msgs = []contact.QueuedMessage{}
	}
	return jsonSuccess(c, msgs)
}

// ClearQueued empties the queue.
func (h *ContactHandler) ClearQueued(c fiber.Ctx) error {
	if err := h.queue.ClearQueued(c.Context()); err != nil {
		h.logger.Error("failed to clear contact queue", zap.Error(err))
		return jsonError(c, fiber.StatusInternalServerError, "failed to clear queue")
	}
	return jsonSuccess(c, nil)
}

// Health reports whether the contact endpoint is reachable.
func (h *ContactHandler) Health(c fiber.Ctx) error {
	return jsonSuccess(c, fiber.Map{"reachable": h.queue.HealthCheck(c.Context())})
}
