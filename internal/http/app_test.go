package handlers_test

import (
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"dropshop/internal/config"
	"dropshop/internal/events"
	"dropshop/internal/http/handlers"
	"dropshop/internal/repos"
	"dropshop/internal/services"
)

const testAdminToken = "test-admin-token"

// newTestApp wires the API the same way main does, minus rate limiters
// and background loops.
func newTestApp(t *testing.T) (*fiber.App, *handlers.Deps) {
	t.Helper()
	cfg := config.Config{
		DBDSN:                ":memory:",
		AdminToken:           testAdminToken,
		CartTTL:              5 * time.Minute,
		VaultThreshold:       5,
		VaultMinDuration:     120 * time.Minute,
		VaultMaxDuration:     180 * time.Minute,
		VaultStockMultiplier: 1,
		VaultReadyWindow:     4 * time.Hour,
		DropHistoryCap:       20,
	}
	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	deps := handlers.NewDeps(db, cfg, events.NewBus(), services.LogMailer{})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
		},
	})
	app.Use(requestid.New())

	app.Get("/api/catalog", deps.CatalogHandler.List)
	app.Get("/api/catalog/:id", deps.CatalogHandler.Get)
	app.Get("/api/drop", deps.DropHandler.Current)
	app.Get("/api/drop/remaining", deps.DropHandler.Remaining)
	app.Get("/api/drop/events", deps.EventsHandler.Stream)

	app.Get("/api/cart", deps.CartHandler.View)
	app.Post("/api/cart", deps.CartHandler.Add)
	app.Post("/api/cart/remove", deps.CartHandler.Remove)
	app.Post("/api/checkout", deps.CartHandler.Checkout)

	app.Post("/api/vault/save", deps.VaultHandler.Save)
	app.Get("/api/vault/ready", deps.VaultHandler.Ready)

	admin := app.Group("/api/admin", handlers.RequireAdmin(handlers.HashAdminToken(cfg.AdminToken)))
	admin.Post("/drop", deps.DropHandler.Create)
	admin.Post("/drop/live", deps.DropHandler.GoLive)
	admin.Post("/drop/end", deps.DropHandler.End)
	admin.Post("/drop/window", deps.DropHandler.EnsureWindow)
	admin.Post("/inventory", deps.DropHandler.SetInventory)
	admin.Post("/inventory/add", deps.DropHandler.AddInventory)
	admin.Get("/analytics", deps.AnalyticsHandler.Current)
	admin.Get("/history", deps.AnalyticsHandler.History)
	admin.Get("/predictions", deps.AnalyticsHandler.Predictions)
	admin.Get("/vault", deps.VaultHandler.Snapshot)
	admin.Get("/autodrop", deps.AnalyticsHandler.AutoDropConfig)
	admin.Put("/autodrop", deps.AnalyticsHandler.SetAutoDropConfig)

	return app, deps
}
