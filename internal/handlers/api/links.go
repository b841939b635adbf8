package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"makosite/internal/directory"
	"makosite/internal/middleware"
	"makosite/internal/models"
)

// LinkHandler serves the link directory. Each request works on the cache
// of the signed-in identity.
type LinkHandler struct {
	pool   *directory.Pool
	logger *zap.Logger
}

// NewLinkHandler creates a new API link handler.
func NewLinkHandler(pool *directory.Pool, logger *zap.Logger) *LinkHandler {
	return &LinkHandler{pool: pool, logger: logger}
}

func (h *LinkHandler) cache(c fiber.Ctx) *directory.Cache {
	return h.pool.For(middleware.CurrentUser(c))
}

// List refreshes the directory and returns it. When the store cannot be
// reached the last known links are returned with "stale": true.
func (h *LinkHandler) List(c fiber.Ctx) error {
	cache := h.cache(c)
	if err := cache.Refresh(c.Context()); err != nil {
		h.logger.Warn("serving stale links", zap.Error(err))
		return c.JSON(fiber.Map{
			"status": "ok",
			"data":   nonNil(cache.Links()),
			"stale":  true,
		})
	}
	return jsonSuccess(c, nonNil(cache.Links()))
}

// Create adds a link.
func (h *LinkHandler) Create(c fiber.Ctx) error {
	var in models.LinkInput
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	link, err := h.cache(c).Create(c.Context(), in)
	if err != nil {
		return jsonFailure(c, err)
	}
	c.Status(fiber.StatusCreated)
	return jsonSuccess(c, link)
}

// Update applies a partial update to a link.
func (h *LinkHandler) Update(c fiber.Ctx) error {
	var patch models.LinkPatch
	if err := json.Unmarshal(c.Body(), &patch); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "invalid request body")
	}

	link, err := h.cache(c).Update(c.Context(), c.Params("id"), patch)
	if err != nil {
		return jsonFailure(c, err)
	}
	return jsonSuccess(c, link)
}

// SetActive shows or hides a link.
func (h *LinkHandler) SetActive(c fiber.Ctx) error {
	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.IsActive == nil {
		return jsonError(c, fiber.StatusBadRequest, "isActive is required")
	}

	link, err := h.cache(c).ToggleActive(c.Context(), c.Params("id"), *body.IsActive)
	if err != nil {
		return jsonFailure(c, err)
	}
	return jsonSuccess(c, link)
}

// Delete removes a link.
func (h *LinkHandler) Delete(c fiber.Ctx) error {
	id := c.Params("id")
	if err := h.cache(c).Delete(c.Context(), id); err != nil {
		return jsonFailure(c, err)
	}
	return jsonSuccess(c, fiber.Map{"id": id})
}

// nonNil keeps an empty directory encoded as [] rather than null.
func nonNil(links []models.Link) []models.Link {
	if links == nil {
		return []models.Link{}
	}
	return links
}
