package services_test

import (
	"testing"
	"time"

	"dropshop/internal/domain"
	"dropshop/internal/events"
	"dropshop/internal/repos"
	"dropshop/internal/services"
)

func newAutoFixture(t *testing.T, cfg domain.AutoDropConfig) (*services.AutoDropController, *services.DropService, *repos.SalesRepo) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sales := repos.NewSalesRepo(db)
	drops := services.NewDropService(events.NewBus(), sales, 20)
	auto := services.NewAutoDropController(drops, repos.NewProductRepo(db), sales, cfg)
	return auto, drops, sales
}

func TestAutoDropDisabledDoesNothing(t *testing.T) {
	auto, drops, sales := newAutoFixture(t, domain.AutoDropConfig{Enabled: false, StartVelocity: 1})
	if err := sales.RecordSale("tee-black", 10, 3500, "", time.Now()); err != nil {
		t.Fatal(err)
	}
	auto.EvaluateOnce()
	if drops.Current() != nil {
		t.Fatal("disabled controller must not launch drops")
	}
}

func TestAutoDropLaunchesOnHotVelocity(t *testing.T) {
	auto, drops, sales := newAutoFixture(t, domain.AutoDropConfig{
		Enabled:              true,
		StartVelocity:        10,
		StayAliveVelocity:    1,
		DefaultDurationMin:   45,
		DefaultQtyPerProduct: 7,
		ProductIDs:           []string{"tee-black", "hood-ash"},
	})
	// 5 sold in the last 10 minutes is 30/hour, above the start threshold.
	if err := sales.RecordSale("tee-black", 5, 3500, "", time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	auto.EvaluateOnce()
	d := drops.Current()
	if d == nil || d.Status != domain.DropLive {
		t.Fatalf("hot velocity must launch a live drop, got %+v", d)
	}
	rem := drops.Remaining()
	if rem["tee-black"] != 7 || rem["hood-ash"] != 7 {
		t.Fatalf("every tracked product gets the default quantity: %+v", rem)
	}

	// A second cycle while the drop is live must not stack another drop.
	auto.EvaluateOnce()
	if cur := drops.Current(); cur == nil || cur.ID != d.ID {
		t.Fatalf("live drop replaced by second cycle: %+v", cur)
	}
}

func TestAutoDropEndsColdDrop(t *testing.T) {
	auto, drops, _ := newAutoFixture(t, domain.AutoDropConfig{
		Enabled:           true,
		StartVelocity:     1000,
		StayAliveVelocity: 5,
		ProductIDs:        []string{"tee-black"},
	})
	drops.CreateDrop(domain.DropManual, time.Time{}, time.Hour, map[string]int{"tee-black": 10})

	// No recent sales at all: every tracked product is below stay-alive.
	auto.EvaluateOnce()
	if drops.Current() != nil {
		t.Fatal("cold drop should have been ended")
	}
	if len(drops.History(5)) != 1 {
		t.Fatal("ended drop must land in history")
	}
}

func TestAutoDropKeepsWarmDropAlive(t *testing.T) {
	auto, drops, sales := newAutoFixture(t, domain.AutoDropConfig{
		Enabled:           true,
		StartVelocity:     1000,
		StayAliveVelocity: 5,
		ProductIDs:        []string{"tee-black"},
	})
	d := drops.CreateDrop(domain.DropManual, time.Time{}, time.Hour, map[string]int{"tee-black": 10})
	// 2 sold in the last 10 minutes is 12/hour, above stay-alive.
	if err := sales.RecordSale("tee-black", 2, 3500, d.ID, time.Now().Add(-time.Minute)); err != nil {
		t.Fatal(err)
	}

	auto.EvaluateOnce()
	if cur := drops.Current(); cur == nil || cur.ID != d.ID {
		t.Fatalf("warm drop must stay live, got %+v", cur)
	}
}
