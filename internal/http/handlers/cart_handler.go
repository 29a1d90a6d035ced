package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	applog "dropshop/internal/log"
	"dropshop/internal/services"
	"dropshop/internal/validate"
)

type CartHandler struct {
	Cart *services.CartService
}

func (h *CartHandler) ensureSID(c *fiber.Ctx) string {
	sid := c.Cookies("sid")
	if sid == "" {
		sid = uuid.NewString()
		c.Cookie(&fiber.Cookie{Name: "sid", Value: sid, Path: "/", HTTPOnly: true})
	}
	return sid
}

// GET /api/cart
func (h *CartHandler) View(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	cv, err := h.Cart.View(sid)
	if err != nil {
		applog.Error(c, "cart.view.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load cart"})
	}
	return c.JSON(cv)
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Qty       int    `json:"qty"`
}

// POST /api/cart
func (h *CartHandler) Add(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	var req cartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	id, ok := validate.ID(req.ProductID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	if req.Qty < 1 {
		req.Qty = 1
	}

	if err := h.Cart.Add(sid, id, req.Qty); err != nil {
		switch {
		case errors.Is(err, services.ErrDropNotLive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "no drop is live"})
		case errors.Is(err, services.ErrInsufficientStock):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "not enough stock"})
		default:
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	cv, err := h.Cart.View(sid)
	if err != nil {
		applog.Error(c, "cart.view.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load cart"})
	}
	return c.JSON(cv)
}

// POST /api/cart/remove
func (h *CartHandler) Remove(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	var req cartItemRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	id, ok := validate.ID(req.ProductID)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing productId"})
	}
	if req.Qty < 1 {
		req.Qty = 1
	}
	h.Cart.Remove(sid, id, req.Qty)
	cv, err := h.Cart.View(sid)
	if err != nil {
		applog.Error(c, "cart.view.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load cart"})
	}
	return c.JSON(cv)
}

// POST /api/checkout. Totals are recomputed server-side; the client
// never supplies an amount.
func (h *CartHandler) Checkout(c *fiber.Ctx) error {
	sid := h.ensureSID(c)
	cv, err := h.Cart.Checkout(sid)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDropNotLive):
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "drop has ended"})
		case errors.Is(err, services.ErrCartEmpty):
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cart empty"})
		default:
			applog.Error(c, "cart.checkout.fail", err, nil)
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
		}
	}
	applog.Audit(c, "cart.checkout", map[string]any{"total_cents": cv.TotalCents})
	return c.JSON(cv)
}
