package api

import (
	"bufio"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"

	"makosite/internal/models"
)

// keepAlive is how often an idle stream sends a comment line.
const keepAlive = 15 * time.Second

// Stream sends the directory as server-sent events: one "links" event now
// and another after every change.
func (h *LinkHandler) Stream(c fiber.Ctx) error {
	cache := h.cache(c)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		updates, stop := cache.Watch()
		defer stop()

		ticker := time.NewTicker(keepAlive)
		defer ticker.Stop()

		if err := writeEvents(w, updates, ticker.C); err != nil {
			h.logger.Debug("link stream closed", zap.Error(err))
		}
	})
}

// writeEvents copies snapshots to w until updates is closed or a write fails.
func writeEvents(w *bufio.Writer, updates <-chan []models.Link, ping <-chan time.Time) error {
	for {
		select {
		case links, ok := <-updates:
			if !ok {
				return nil
			}
			data, err := json.Marshal(nonNil(links))
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "event: links\ndata: %s\n\n", data); err != nil {
				return err
			}
		case <-ping:
			if _, err := w.WriteString(": ping\n\n"); err != nil {
				return err
			}
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
