package server

import (
	"context"

	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"makosite/internal/contact"
	"makosite/internal/directory"
	"makosite/internal/handlers"
	"makosite/internal/handlers/api"
	"makosite/internal/middleware"
)

// Deps are the services the routes are served from.
type Deps struct {
	Pool     *directory.Pool
	Queue    *contact.Queue
	Database handlers.Pinger
}

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(ctx context.Context, deps Deps) error {
	probeHandler := handlers.NewProbeHandler(deps.Database)
	linkHandler := api.NewLinkHandler(deps.Pool, s.Logger)
	contactHandler := api.NewContactHandler(deps.Queue, s.Cfg.ContactFallbackEmail, s.Logger)

	// Probes and metrics
	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Auth routes. Without OIDC the site is read-only.
	if s.Cfg.IsOIDCEnabled() {
		authHandler, err := handlers.NewAuthHandler(ctx, s.Cfg, deps.Pool, s.Logger)
		if err != nil {
			return err
		}
		s.App.Get("/auth/login", authHandler.Login)
		s.App.Get("/auth/callback", authHandler.Callback)
		s.App.Get("/auth/logout", authHandler.Logout)
	} else {
		s.Logger.Warn("OIDC is not configured, link editing is disabled")
	}

	apiGroup := s.App.Group("/api")

	// Link directory. Mutations check the role themselves so the JSON
	// error matches the cache's answer.
	apiGroup.Get("/links", linkHandler.List)
	apiGroup.Get("/links/stream", linkHandler.Stream)
	apiGroup.Post("/links", linkHandler.Create)
	apiGroup.Put("/links/:id", linkHandler.Update)
	apiGroup.Post("/links/:id/active", linkHandler.SetActive)
	apiGroup.Delete("/links/:id", linkHandler.Delete)

	// Contact form
	apiGroup.Post("/contact", contactHandler.Submit)
	apiGroup.Get("/contact/health", contactHandler.Health)
	apiGroup.Get("/contact/queue", middleware.RequireAdmin, contactHandler.ListQueued)
	apiGroup.Delete("/contact/queue", middleware.RequireAdmin, contactHandler.ClearQueued)

	return nil
}
