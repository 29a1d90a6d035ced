package handlers

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	applog "dropshop/internal/log"
	"dropshop/internal/repos"
	"dropshop/internal/services"
	"dropshop/internal/validate"
)

type CatalogHandler struct {
	Prods *repos.ProductRepo
	Drops *services.DropService
}

// GET /api/catalog
func (h *CatalogHandler) List(c *fiber.Ctx) error {
	prods, err := h.Prods.List()
	if err != nil {
		applog.Error(c, "catalog.list.fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load catalog"})
	}
	return c.JSON(prods)
}

// GET /api/catalog/:id. Counts a view against the active drop.
func (h *CatalogHandler) Get(c *fiber.Ctx) error {
	id, ok := validate.ID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid product id"})
	}
	p, err := h.Prods.Get(id)
	if err != nil {
		if err == sql.ErrNoRows {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
		}
		applog.Error(c, "catalog.get.fail", err, map[string]any{"product": id})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "could not load product"})
	}
	h.Drops.RecordView(id)
	return c.JSON(p)
}
