// Package api exposes the stored market data over HTTP for the visualization layer.
package api

import (
	"cryptoetl/internal/crypto/query"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// New builds the read-only fiber app.
func New(service *query.Service, logger *zap.Logger) *fiber.App {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := fiber.New(fiber.Config{
		AppName:               "cryptoetl",
		DisableStartupMessage: true,
	})
	SetupRoutes(app, service, logger)
	return app
}

// SetupRoutes configures all API routes
func SetupRoutes(app *fiber.App, service *query.Service, logger *zap.Logger) {
	h := &AssetHandler{Service: service, Logger: logger}

	v1 := app.Group("/api").Group("/v1")
	v1.Get("/health", h.Health)

	assets := v1.Group("/assets")
	assets.Get("/", h.ListAssets)
	assets.Get("/:id", h.GetAsset)
	assets.Get("/:id/history", h.GetHistory)
}
