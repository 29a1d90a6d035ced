package handlers

import (
	"github.com/jmoiron/sqlx"

	"dropshop/internal/config"
	"dropshop/internal/domain"
	"dropshop/internal/events"
	"dropshop/internal/repos"
	"dropshop/internal/services"
)

type Deps struct {
	CatalogHandler   *CatalogHandler
	DropHandler      *DropHandler
	CartHandler      *CartHandler
	VaultHandler     *VaultHandler
	AnalyticsHandler *AnalyticsHandler
	EventsHandler    *EventsHandler

	Drops *services.DropService
	Cart  *services.CartService
	Vault *services.VaultService
	Auto  *services.AutoDropController
}

func NewDeps(db *sqlx.DB, cfg config.Config, bus *events.Bus, mailer services.Mailer) *Deps {
	prodRepo := repos.NewProductRepo(db)
	salesRepo := repos.NewSalesRepo(db)

	dropSvc := services.NewDropService(bus, salesRepo, cfg.DropHistoryCap)
	cartSvc := services.NewCartService(dropSvc, prodRepo, salesRepo, cfg.CartTTL)
	vaultSvc := services.NewVaultService(dropSvc, prodRepo, mailer, bus, services.VaultConfig{
		Threshold:       cfg.VaultThreshold,
		MinDuration:     cfg.VaultMinDuration,
		MaxDuration:     cfg.VaultMaxDuration,
		StockMultiplier: cfg.VaultStockMultiplier,
	})
	autoCtl := services.NewAutoDropController(dropSvc, prodRepo, salesRepo, domain.AutoDropConfig{
		Enabled:              cfg.AutoDropEnabled,
		StartVelocity:        cfg.AutoDropStartVelocity,
		StayAliveVelocity:    cfg.AutoDropStayVelocity,
		DefaultDurationMin:   cfg.AutoDropDurationMin,
		DefaultQtyPerProduct: cfg.AutoDropQty,
	})

	return &Deps{
		CatalogHandler:   &CatalogHandler{Prods: prodRepo, Drops: dropSvc},
		DropHandler:      &DropHandler{Drops: dropSvc, Prods: prodRepo},
		CartHandler:      &CartHandler{Cart: cartSvc},
		VaultHandler:     &VaultHandler{Vault: vaultSvc, Window: cfg.VaultReadyWindow},
		AnalyticsHandler: &AnalyticsHandler{Drops: dropSvc, Sales: salesRepo, Auto: autoCtl},
		EventsHandler:    &EventsHandler{Bus: bus, Drops: dropSvc},

		Drops: dropSvc,
		Cart:  cartSvc,
		Vault: vaultSvc,
		Auto:  autoCtl,
	}
}
