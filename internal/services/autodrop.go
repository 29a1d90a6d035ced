package services

import (
	"context"
	"sync"
	"time"

	"dropshop/internal/domain"
	applog "dropshop/internal/log"
	"dropshop/internal/repos"
)

// AutoDropController starts and stops drops from sales velocity. Distinct
// start and stay-alive thresholds give the loop hysteresis so it cannot
// flap between launching and ending.
type AutoDropController struct {
	mu  sync.Mutex
	cfg domain.AutoDropConfig

	Drops *DropService
	Prods *repos.ProductRepo
	Sales *repos.SalesRepo

	now func() time.Time
}

func NewAutoDropController(drops *DropService, prods *repos.ProductRepo, sales *repos.SalesRepo, cfg domain.AutoDropConfig) *AutoDropController {
	if cfg.DefaultDurationMin < 1 {
		cfg.DefaultDurationMin = 60
	}
	if cfg.DefaultQtyPerProduct < 1 {
		cfg.DefaultQtyPerProduct = 25
	}
	return &AutoDropController{Drops: drops, Prods: prods, Sales: sales, cfg: cfg, now: time.Now}
}

// SetNow overrides the clock; tests only.
func (a *AutoDropController) SetNow(now func() time.Time) { a.now = now }

func (a *AutoDropController) Config() domain.AutoDropConfig {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

func (a *AutoDropController) SetConfig(cfg domain.AutoDropConfig) {
	if cfg.DefaultDurationMin < 1 {
		cfg.DefaultDurationMin = 60
	}
	if cfg.DefaultQtyPerProduct < 1 {
		cfg.DefaultQtyPerProduct = 25
	}
	a.mu.Lock()
	a.cfg = cfg
	a.mu.Unlock()
	applog.Event("autodrop.config", map[string]any{"enabled": cfg.Enabled, "start": cfg.StartVelocity, "stay": cfg.StayAliveVelocity})
}

// EvaluateOnce runs a single heuristic cycle: with no active drop, any
// tracked product running at or above the start threshold launches one;
// with a live drop, every tracked product falling below the stay-alive
// threshold ends it.
func (a *AutoDropController) EvaluateOnce() {
	cfg := a.Config()
	if !cfg.Enabled {
		return
	}

	tracked := cfg.ProductIDs
	if len(tracked) == 0 {
		ids, err := a.Prods.ListIDs()
		if err != nil {
			applog.EventError("autodrop.catalog.fail", err, nil)
			return
		}
		tracked = ids
	}
	if len(tracked) == 0 {
		return
	}

	now := a.now()
	sales, err := a.Sales.ListSince(now.Add(-longWindow))
	if err != nil {
		applog.EventError("autodrop.sales.fail", err, nil)
		return
	}
	velocity := map[string]float64{}
	for _, p := range ComputePredictions(a.Drops.Remaining(), sales, now) {
		velocity[p.ProductID] = p.Velocity10m
	}

	d := a.Drops.Current()
	if d == nil {
		for _, id := range tracked {
			if velocity[id] >= cfg.StartVelocity && cfg.StartVelocity > 0 {
				quantities := map[string]int{}
				for _, t := range tracked {
					quantities[t] = cfg.DefaultQtyPerProduct
				}
				drop := a.Drops.CreateDrop(domain.DropManual, time.Time{},
					time.Duration(cfg.DefaultDurationMin)*time.Minute, quantities)
				applog.Event("autodrop.start", map[string]any{"drop_id": drop.ID, "hot_product": id, "velocity": velocity[id]})
				return
			}
		}
		return
	}

	if d.Status != domain.DropLive {
		return
	}
	for _, id := range tracked {
		if velocity[id] >= cfg.StayAliveVelocity {
			return
		}
	}
	if a.Drops.EndCurrentDrop() {
		applog.Event("autodrop.stop", map[string]any{"drop_id": d.ID})
	}
}

// Run evaluates on a fixed interval until the context is cancelled.
func (a *AutoDropController) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.EvaluateOnce()
		}
	}
}
