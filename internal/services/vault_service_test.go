package services_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"dropshop/internal/domain"
	"dropshop/internal/events"
	"dropshop/internal/repos"
	"dropshop/internal/services"
)

type captureMailer struct {
	mu   sync.Mutex
	sent []string
}

func (m *captureMailer) SendVaultReleaseEmail(email, name, productID string, release domain.VaultRelease) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, email)
	return nil
}

func (m *captureMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func newVaultFixture(t *testing.T) (*services.VaultService, *services.DropService, *captureMailer) {
	t.Helper()
	db, err := repos.OpenDB(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	bus := events.NewBus()
	drops := services.NewDropService(bus, repos.NewSalesRepo(db), 20)
	mailer := &captureMailer{}
	vault := services.NewVaultService(drops, repos.NewProductRepo(db), mailer, bus, services.VaultConfig{
		Threshold:       5,
		MinDuration:     120 * time.Minute,
		MaxDuration:     180 * time.Minute,
		StockMultiplier: 1,
	})
	return vault, drops, mailer
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal(msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestAddSaveDeduplicatesByNormalizedEmail(t *testing.T) {
	vault, _, _ := newVaultFixture(t)

	res := vault.AddSave("tee-black", "Fan@Example.COM ", "", "Fan")
	if !res.Added || res.Count != 1 {
		t.Fatalf("first save: %+v", res)
	}
	res = vault.AddSave("tee-black", "fan@example.com", "", "Fan")
	if !res.AlreadySaved || res.Added || res.Count != 1 {
		t.Fatalf("repeat save must be an idempotent no-op: %+v", res)
	}
	if res.ReleaseTriggered {
		t.Fatal("repeat save must not trigger")
	}
}

func TestThresholdTriggersLiveVaultDrop(t *testing.T) {
	vault, drops, mailer := newVaultFixture(t)

	for i := 1; i <= 4; i++ {
		res := vault.AddSave("tee-black", fmt.Sprintf("fan%d@example.com", i), "", "")
		if res.ReleaseTriggered {
			t.Fatalf("save %d must not trigger", i)
		}
		if res.Count != i || res.Threshold != 5 {
			t.Fatalf("save %d: %+v", i, res)
		}
	}

	res := vault.AddSave("tee-black", "fan5@example.com", "", "")
	if !res.ReleaseTriggered {
		t.Fatalf("fifth distinct save must trigger: %+v", res)
	}

	d := drops.Current()
	if d == nil || d.Code != domain.DropVault || d.Status != domain.DropLive {
		t.Fatalf("want a live VAULT drop, got %+v", d)
	}
	if got := drops.Remaining()["tee-black"]; got < 5 {
		t.Fatalf("restock must be at least the threshold, got %d", got)
	}

	snap := vault.Snapshot()["tee-black"]
	if snap.ActiveRelease == nil || snap.ActiveRelease.Status != domain.ReleaseLive {
		t.Fatalf("want a live active release, got %+v", snap.ActiveRelease)
	}
	if dm := snap.ActiveRelease.DurationMinutes; dm < 120 || dm > 180 {
		t.Fatalf("duration outside [120,180]: %d", dm)
	}
	if snap.ActiveRelease.DropID != d.ID {
		t.Fatalf("release not tied to drop: %+v", snap.ActiveRelease)
	}
	if snap.SaverCount != 0 {
		t.Fatalf("saver list must be cleared after release, got %d", snap.SaverCount)
	}

	waitFor(t, func() bool { return mailer.count() == 5 }, "savers not notified")
	waitFor(t, func() bool {
		return len(vault.Snapshot()["tee-black"].ActiveRelease.NotifiedEmails) == 5
	}, "notified emails not recorded")
}

func TestTriggerTopsUpLiveDropAndEnsuresWindow(t *testing.T) {
	vault, drops, _ := newVaultFixture(t)
	drops.CreateDrop(domain.DropManual, time.Time{}, 5*time.Minute, map[string]int{"hood-ash": 1})

	for i := 1; i <= 5; i++ {
		vault.AddSave("tee-black", fmt.Sprintf("fan%d@example.com", i), "", "")
	}

	d := drops.Current()
	if d == nil || d.Code != domain.DropManual {
		t.Fatalf("the manual drop must stay current, got %+v", d)
	}
	if got := drops.Remaining()["tee-black"]; got < 5 {
		t.Fatalf("live drop not topped up: %d", got)
	}
	// ensureWindow must have stretched the short 5-minute drop to the
	// release's promised duration.
	if until := time.Until(d.EndsAt); until < 119*time.Minute {
		t.Fatalf("window not ensured, %s left", until)
	}
}

func TestTriggerOnScheduledDropWaitsForActivation(t *testing.T) {
	vault, drops, _ := newVaultFixture(t)
	drops.CreateDrop(domain.DropManual, time.Now().Add(time.Hour), 30*time.Minute, map[string]int{"hood-ash": 2})

	var res services.AddSaveResult
	for i := 1; i <= 5; i++ {
		res = vault.AddSave("tee-black", fmt.Sprintf("fan%d@example.com", i), "", "")
	}
	if !res.ReleaseTriggered || !res.PendingRelease {
		t.Fatalf("want a pending release on scheduled drop: %+v", res)
	}
	if got := drops.Remaining()["tee-black"]; got != 0 {
		t.Fatalf("inventory must stay untouched until activation, got %d", got)
	}
	snap := vault.Snapshot()["tee-black"]
	if snap.PendingRelease == nil {
		t.Fatal("pending release missing from snapshot")
	}

	// Activation applies the pending release at that moment.
	if !drops.GoLiveNow() {
		t.Fatal("goLiveNow failed")
	}
	if got := drops.Remaining()["tee-black"]; got < 5 {
		t.Fatalf("pending release not applied on activation: %d", got)
	}
	snap = vault.Snapshot()["tee-black"]
	if snap.PendingRelease != nil {
		t.Fatal("pending release should be consumed")
	}
	if snap.ActiveRelease == nil || snap.ActiveRelease.Status != domain.ReleaseLive {
		t.Fatalf("release should be live after activation: %+v", snap.ActiveRelease)
	}
}

func TestReleaseCompletesWhenDropEnds(t *testing.T) {
	vault, drops, _ := newVaultFixture(t)

	for i := 1; i <= 5; i++ {
		vault.AddSave("tee-black", fmt.Sprintf("fan%d@example.com", i), "", "")
	}
	if drops.Current() == nil {
		t.Fatal("trigger should have created a drop")
	}
	drops.EndCurrentDrop()

	snap := vault.Snapshot()["tee-black"]
	if snap.ActiveRelease != nil {
		t.Fatalf("no release should be active after drop end: %+v", snap.ActiveRelease)
	}
	if len(snap.Releases) != 1 || snap.Releases[0].Status != domain.ReleaseCompleted {
		t.Fatalf("release should be completed: %+v", snap.Releases)
	}
}

func TestEligibilityGate(t *testing.T) {
	vault, drops, _ := newVaultFixture(t)

	// Never seen live: not eligible.
	if vault.Eligible("tee-black", 4*time.Hour) {
		t.Fatal("unseen product must not be eligible")
	}

	drops.CreateDrop(domain.DropManual, time.Time{}, 10*time.Minute, map[string]int{"tee-black": 2})
	// Purchasable right now: not eligible.
	if vault.Eligible("tee-black", 4*time.Hour) {
		t.Fatal("purchasable product must not be eligible")
	}

	// Sold out while live: eligible.
	drops.Reserve("tee-black", 2)
	if !vault.Eligible("tee-black", 4*time.Hour) {
		t.Fatal("sold-out product should be eligible")
	}

	// Drop over: still eligible inside the recency window.
	drops.EndCurrentDrop()
	if !vault.Eligible("tee-black", 4*time.Hour) {
		t.Fatal("recently live product should be eligible")
	}
	if vault.Eligible("tee-black", time.Nanosecond) {
		t.Fatal("window elapsed, must not be eligible")
	}

	ready, err := vault.ReadyProducts(4 * time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, p := range ready {
		if p.ID == "tee-black" {
			found = true
		}
	}
	if !found {
		t.Fatalf("tee-black should be vault-ready: %+v", ready)
	}
}
