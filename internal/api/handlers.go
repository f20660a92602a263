package api

import (
	"errors"

	"cryptoetl/internal/crypto/market"
	"cryptoetl/internal/crypto/query"
	"cryptoetl/pkg/storage/sqlstore"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 100

type AssetHandler struct {
	Service *query.Service
	Logger  *zap.Logger
}

// Health reports store row counts; 503 when the store cannot be read.
func (h *AssetHandler) Health(c *fiber.Ctx) error {
	stats, err := h.Service.Stats(c.Context())
	if err != nil {
		h.Logger.Warn("health check failed", zap.Error(err))
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unavailable",
		})
	}
	return c.JSON(fiber.Map{
		"status":       "ok",
		"assets":       stats.Assets,
		"observations": stats.Observations,
	})
}

// ListAssets serves the current-state projection.
// Query params: order_by, dir, limit, tier.
func (h *AssetHandler) ListAssets(c *fiber.Ctx) error {
	q := sqlstore.ListQuery{
		OrderBy:   c.Query("order_by"),
		Direction: c.Query("dir"),
		Limit:     c.QueryInt("limit", 0),
		Tier:      market.Tier(c.Query("tier")),
	}
	if _, err := q.Normalize(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	views, err := h.Service.Assets(c.Context(), q)
	if err != nil {
		h.Logger.Error("failed to list assets", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch assets",
		})
	}
	return c.JSON(views)
}

func (h *AssetHandler) GetAsset(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid asset id"})
	}

	rec, err := h.Service.Asset(c.Context(), int64(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "asset not found"})
	}
	if err != nil {
		h.Logger.Error("failed to fetch asset", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch asset",
		})
	}
	return c.JSON(rec)
}

// GetHistory serves the price observations of one asset, newest first.
func (h *AssetHandler) GetHistory(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid asset id"})
	}
	limit := c.QueryInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	rows, err := h.Service.History(c.Context(), int64(id), limit)
	if err != nil {
		h.Logger.Error("failed to fetch history", zap.Int("id", id), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch price history",
		})
	}
	return c.JSON(rows)
}
