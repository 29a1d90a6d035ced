package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"dropshop/internal/domain"
	applog "dropshop/internal/log"
	"dropshop/internal/repos"
	"dropshop/internal/services"
)

type AnalyticsHandler struct {
	Drops *services.DropService
	Sales *repos.SalesRepo
	Auto  *services.AutoDropController
}

// GET /api/admin/analytics
func (h *AnalyticsHandler) Current(c *fiber.Ctx) error {
	snap, ok := h.Drops.CurrentAnalytics()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no active drop"})
	}
	return c.JSON(snap)
}

// GET /api/admin/history?limit=
func (h *AnalyticsHandler) History(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	return c.JSON(h.Drops.History(limit))
}

// GET /api/admin/predictions
func (h *AnalyticsHandler) Predictions(c *fiber.Ctx) error {
	sales, err := h.Sales.ListSince(time.Now().Add(-30 * time.Minute))
	if err != nil {
		applog.Error(c, "predictions.sales.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load sales"})
	}
	return c.JSON(services.ComputePredictions(h.Drops.Remaining(), sales, time.Now()))
}

// GET /api/admin/autodrop
func (h *AnalyticsHandler) AutoDropConfig(c *fiber.Ctx) error {
	return c.JSON(h.Auto.Config())
}

// PUT /api/admin/autodrop
func (h *AnalyticsHandler) SetAutoDropConfig(c *fiber.Ctx) error {
	var cfg domain.AutoDropConfig
	if err := c.BodyParser(&cfg); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if cfg.StartVelocity < 0 || cfg.StayAliveVelocity < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "velocities must be >= 0"})
	}
	h.Auto.SetConfig(cfg)
	applog.Audit(c, "admin.autodrop.config", map[string]any{"enabled": cfg.Enabled})
	return c.JSON(h.Auto.Config())
}
