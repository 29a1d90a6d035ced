package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"dropshop/internal/domain"
	applog "dropshop/internal/log"
	"dropshop/internal/repos"
	"dropshop/internal/services"
	"dropshop/internal/validate"
)

type DropHandler struct {
	Drops *services.DropService
	Prods *repos.ProductRepo
}

// GET /api/drop
func (h *DropHandler) Current(c *fiber.Ctx) error {
	d := h.Drops.Current()
	if d == nil {
		return c.JSON(fiber.Map{"drop": nil})
	}
	return c.JSON(fiber.Map{"drop": d, "remaining": h.Drops.Remaining()})
}

// GET /api/drop/remaining
func (h *DropHandler) Remaining(c *fiber.Ctx) error {
	return c.JSON(h.Drops.Remaining())
}

type createDropRequest struct {
	StartAt         string              `json:"startAt"` // "now" or RFC3339
	DurationMinutes int                 `json:"durationMinutes"`
	Quantities      domain.QuantitySpec `json:"quantities"`
}

// POST /api/admin/drop. Replaces any existing drop, live or not.
func (h *DropHandler) Create(c *fiber.Ctx) error {
	var req createDropRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	var startAt time.Time
	if req.StartAt != "" && req.StartAt != "now" {
		t, err := time.Parse(time.RFC3339, req.StartAt)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "startAt must be \"now\" or RFC3339"})
		}
		startAt = t
	}

	ids, err := h.Prods.ListIDs()
	if err != nil {
		applog.Error(c, "drop.create.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load catalog"})
	}
	quantities := req.Quantities.Resolve(ids)
	if req.DurationMinutes < 1 {
		req.DurationMinutes = 1
	}

	d := h.Drops.CreateDrop(domain.DropManual, startAt,
		time.Duration(req.DurationMinutes)*time.Minute, quantities)
	applog.Audit(c, "admin.drop.create", map[string]any{"drop_id": d.ID, "starts_at": d.StartsAt})
	return c.JSON(d)
}

// POST /api/admin/drop/live
func (h *DropHandler) GoLive(c *fiber.Ctx) error {
	if !h.Drops.GoLiveNow() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no scheduled drop"})
	}
	applog.Audit(c, "admin.drop.live", nil)
	return c.JSON(fiber.Map{"drop": h.Drops.Current()})
}

// POST /api/admin/drop/end
func (h *DropHandler) End(c *fiber.Ctx) error {
	if !h.Drops.EndCurrentDrop() {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no active drop"})
	}
	applog.Audit(c, "admin.drop.end", nil)
	return c.JSON(fiber.Map{"ok": true})
}

type setInventoryRequest struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// POST /api/admin/inventory. Absolute quantity while live.
func (h *DropHandler) SetInventory(c *fiber.Ctx) error {
	var req setInventoryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	id, ok := validate.ID(req.ProductID)
	if !ok || req.Qty < 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid input"})
	}
	if !h.Drops.SetLiveInventory(id, req.Qty) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no drop is live"})
	}
	applog.Audit(c, "admin.inventory.set", map[string]any{"product": id, "qty": req.Qty})
	return c.JSON(h.Drops.Remaining())
}

// POST /api/admin/inventory/add. Per-product delta while live.
func (h *DropHandler) AddInventory(c *fiber.Ctx) error {
	var req struct {
		Delta map[string]int `json:"delta"`
	}
	if err := c.BodyParser(&req); err != nil || len(req.Delta) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if !h.Drops.AddInventoryToLive(req.Delta) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no drop is live"})
	}
	applog.Audit(c, "admin.inventory.add", map[string]any{"delta": req.Delta})
	return c.JSON(h.Drops.Remaining())
}

// POST /api/admin/drop/window. Guarantees minutes of remaining visibility.
func (h *DropHandler) EnsureWindow(c *fiber.Ctx) error {
	var req struct {
		Minutes int `json:"minutes"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if req.Minutes < 1 {
		req.Minutes = 1
	}
	if !h.Drops.EnsureWindow(time.Duration(req.Minutes) * time.Minute) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no drop is live"})
	}
	return c.JSON(fiber.Map{"drop": h.Drops.Current()})
}
