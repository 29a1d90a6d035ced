package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	"dropshop/internal/config"
	"dropshop/internal/events"
	"dropshop/internal/http/handlers"
	applog "dropshop/internal/log"
	"dropshop/internal/repos"
	"dropshop/internal/services"
)

func main() {
	cfg := config.Load()

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Printf("[warn] could not open log file %s: %v", cfg.LogFile, err)
		} else {
			mw := io.MultiWriter(os.Stdout, f)
			log.SetOutput(mw)
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		log.Fatal(err)
	}

	bus := events.NewBus()
	deps := handlers.NewDeps(db, cfg, bus, services.LogMailer{})

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "something went wrong"})
		},
	})
	app.Server().MaxRequestBodySize = 1 << 20 // 1 MiB

	// ---------- Middlewares ----------
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(helmet.New())
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/api/drop/events" // stream, one long request
		},
	}))

	// ---------- Public API ----------
	app.Get("/api/catalog", deps.CatalogHandler.List)
	app.Get("/api/catalog/:id", deps.CatalogHandler.Get)
	app.Get("/api/drop", deps.DropHandler.Current)
	app.Get("/api/drop/remaining", deps.DropHandler.Remaining)
	app.Get("/api/drop/events", deps.EventsHandler.Stream)

	cartLimiter := limiter.New(limiter.Config{
		Max:        30,
		Expiration: 30 * time.Second,
		LimitReached: func(c *fiber.Ctx) error {
			applog.Security(c, "rate.cart.hit", nil)
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
		},
	})
	app.Get("/api/cart", deps.CartHandler.View)
	app.Post("/api/cart", cartLimiter, deps.CartHandler.Add)
	app.Post("/api/cart/remove", cartLimiter, deps.CartHandler.Remove)
	app.Post("/api/checkout", cartLimiter, deps.CartHandler.Checkout)

	app.Post("/api/vault/save", limiter.New(limiter.Config{Max: 10, Expiration: time.Minute}), deps.VaultHandler.Save)
	app.Get("/api/vault/ready", deps.VaultHandler.Ready)

	// ---------- Admin API ----------
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

	// Health & 404
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})

	// ---------- Background loops ----------
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go deps.Cart.RunSweeper(ctx, cfg.CartSweepEvery)
	go deps.Auto.Run(ctx, cfg.AutoDropEvery)
	go func() {
		<-ctx.Done()
		_ = app.Shutdown()
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
