package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	applog "dropshop/internal/log"
	"dropshop/internal/services"
	"dropshop/internal/validate"
)

type VaultHandler struct {
	Vault  *services.VaultService
	Window time.Duration // recency window for save eligibility
}

type saveRequest struct {
	ProductID string `json:"productId"`
	Email     string `json:"email"`
	UserID    string `json:"userId"`
	Name      string `json:"name"`
}

// POST /api/vault/save. Eligibility (recently live, not purchasable) is
// enforced here at the boundary, before the engine counts the save.
func (h *VaultHandler) Save(c *fiber.Ctx) error {
	var req saveRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	id, ok := validate.ID(req.ProductID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	email, ok := validate.Email(req.Email)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "enter a valid email"})
	}
	name, ok := validate.Name(req.Name)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "name too long"})
	}

	window := h.Window
	if ms := c.QueryInt("windowMs"); ms > 0 {
		window = time.Duration(ms) * time.Millisecond
	}
	if !h.Vault.Eligible(id, window) {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "product is not vault-eligible right now"})
	}

	res := h.Vault.AddSave(id, email, req.UserID, name)
	applog.Info(c, "vault.save", map[string]any{
		"product": id, "count": res.Count, "triggered": res.ReleaseTriggered,
	})
	return c.JSON(res)
}

// GET /api/vault/ready?windowMs=
func (h *VaultHandler) Ready(c *fiber.Ctx) error {
	window := h.Window
	if ms := c.QueryInt("windowMs"); ms > 0 {
		window = time.Duration(ms) * time.Millisecond
	}
	prods, err := h.Vault.ReadyProducts(window)
	if err != nil {
		applog.Error(c, "vault.ready.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load products"})
	}
	return c.JSON(prods)
}

// GET /api/admin/vault
func (h *VaultHandler) Snapshot(c *fiber.Ctx) error {
	return c.JSON(h.Vault.Snapshot())
}
