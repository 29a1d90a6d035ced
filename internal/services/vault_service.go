package services

import (
	"math"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"dropshop/internal/domain"
	"dropshop/internal/events"
	applog "dropshop/internal/log"
	"dropshop/internal/repos"
)

// VaultConfig tunes the threshold-triggered release subsystem.
type VaultConfig struct {
	Threshold       int
	MinDuration     time.Duration
	MaxDuration     time.Duration
	StockMultiplier float64
}

// AddSaveResult is the outcome of one save attempt.
type AddSaveResult struct {
	Added            bool `json:"added"`
	AlreadySaved     bool `json:"alreadySaved"`
	Count            int  `json:"count"`
	Threshold        int  `json:"threshold"`
	ReleaseTriggered bool `json:"releaseTriggered"`
	PendingRelease   bool `json:"pendingRelease"`
}

// VaultService tracks per-product save interest and, once the threshold
// accumulates, triggers a time-boxed restock through the drop engine.
// Eligibility (recently live, not currently purchasable) is the caller's
// job; this engine only counts and triggers.
type VaultService struct {
	mu      sync.Mutex
	records map[string]*domain.VaultRecord

	Drops  *DropService
	Prods  *repos.ProductRepo
	mailer Mailer

	cfg     VaultConfig
	now     func() time.Time
	randInt func(n int) int
}

func NewVaultService(drops *DropService, prods *repos.ProductRepo, mailer Mailer, bus *events.Bus, cfg VaultConfig) *VaultService {
	if cfg.Threshold < 1 {
		cfg.Threshold = 1
	}
	if cfg.MinDuration <= 0 {
		cfg.MinDuration = 120 * time.Minute
	}
	if cfg.MaxDuration < cfg.MinDuration {
		cfg.MaxDuration = cfg.MinDuration
	}
	if cfg.StockMultiplier <= 0 {
		cfg.StockMultiplier = 1
	}
	v := &VaultService{
		records: map[string]*domain.VaultRecord{},
		Drops:   drops,
		Prods:   prods,
		mailer:  mailer,
		cfg:     cfg,
		now:     time.Now,
		randInt: rand.Intn,
	}
	// Pending releases apply when the drop they waited on goes live;
	// live releases complete when their drop ends.
	bus.Subscribe(events.TopicDrop, func(payload any) {
		ev, ok := payload.(events.DropEvent)
		if !ok {
			return
		}
		switch ev.Type {
		case events.DropActivated:
			v.applyPendingReleases()
		case events.DropEnded:
			v.completeReleases(ev.DropID)
		}
	})
	return v
}

// SetNow and SetRand override clock/randomness; tests only.
func (v *VaultService) SetNow(now func() time.Time) { v.now = now }
func (v *VaultService) SetRand(r func(n int) int)   { v.randInt = r }

// AddSave records interest, deduplicated by normalized email. The
// threshold save triggers a release dispatched by current drop status.
func (v *VaultService) AddSave(productID, email, userID, name string) AddSaveResult {
	email = strings.ToLower(strings.TrimSpace(email))

	v.mu.Lock()
	rec := v.recordLocked(productID)
	for _, s := range rec.Savers {
		if s.Email == email {
			res := AddSaveResult{AlreadySaved: true, Count: len(rec.Savers), Threshold: v.cfg.Threshold,
				PendingRelease: rec.PendingRelease != nil}
			v.mu.Unlock()
			return res
		}
	}
	rec.Savers = append(rec.Savers, domain.Saver{Email: email, UserID: userID, Name: name, SavedAt: v.now()})
	count := len(rec.Savers)
	res := AddSaveResult{Added: true, Count: count, Threshold: v.cfg.Threshold}

	if count < v.cfg.Threshold || rec.PendingRelease != nil {
		res.PendingRelease = rec.PendingRelease != nil
		v.mu.Unlock()
		return res
	}

	release := v.newReleaseLocked(count)
	res.ReleaseTriggered = true

	d := v.Drops.Current()
	if d != nil && d.Status == domain.DropScheduled {
		// Inventory untouched until the scheduled drop activates.
		release.Status = domain.ReleasePending
		rec.PendingRelease = &release
		rec.Releases = append(rec.Releases, release)
		res.PendingRelease = true
		v.mu.Unlock()
		applog.Event("vault.release.pending", map[string]any{"product": productID, "release_id": release.ID})
		return res
	}

	// Going live now: clear the saver list before dispatching so repeat
	// saves start a fresh count, and snapshot it for notification.
	savers := rec.Savers
	rec.Savers = nil
	release.Status = domain.ReleaseLive
	rec.Releases = append(rec.Releases, release)
	v.mu.Unlock()

	v.dispatchLive(productID, release, savers, d == nil)
	return res
}

// newReleaseLocked builds a release with a uniform random duration in
// [min, max] and restockQty = ceil(max(count, threshold) * multiplier),
// never below 1.
func (v *VaultService) newReleaseLocked(saveCount int) domain.VaultRelease {
	minMin := int(v.cfg.MinDuration / time.Minute)
	maxMin := int(v.cfg.MaxDuration / time.Minute)
	dur := minMin
	if maxMin > minMin {
		dur = minMin + v.randInt(maxMin-minMin+1)
	}
	base := saveCount
	if base < v.cfg.Threshold {
		base = v.cfg.Threshold
	}
	qty := int(math.Ceil(float64(base) * v.cfg.StockMultiplier))
	if qty < 1 {
		qty = 1
	}
	return domain.VaultRelease{
		ID:              uuid.NewString(),
		RestockQty:      qty,
		DurationMinutes: dur,
		TriggeredAt:     v.now(),
		NotifiedEmails:  []string{},
		Status:          domain.ReleasePending,
	}
}

// dispatchLive puts a triggered release on sale immediately: a fresh VAULT
// drop when none is active, otherwise a top-up plus a window guarantee on
// the live drop.
func (v *VaultService) dispatchLive(productID string, release domain.VaultRelease, savers []domain.Saver, freshDrop bool) {
	dur := time.Duration(release.DurationMinutes) * time.Minute
	var d domain.Drop
	if freshDrop {
		d = v.Drops.CreateDrop(domain.DropVault, time.Time{}, dur, map[string]int{productID: release.RestockQty})
	} else {
		if !v.Drops.AddInventoryToLive(map[string]int{productID: release.RestockQty}) {
			// The live drop ended between trigger and dispatch; fall
			// back to a fresh vault drop so the release keeps its word.
			d = v.Drops.CreateDrop(domain.DropVault, time.Time{}, dur, map[string]int{productID: release.RestockQty})
		} else {
			v.Drops.EnsureWindow(dur)
			if cur := v.Drops.Current(); cur != nil {
				d = *cur
			}
		}
	}

	v.mu.Lock()
	rec := v.recordLocked(productID)
	for i := range rec.Releases {
		if rec.Releases[i].ID == release.ID {
			rec.Releases[i].DropID = d.ID
			starts, ends := d.StartsAt, d.EndsAt
			rec.Releases[i].StartsAt = &starts
			rec.Releases[i].EndsAt = &ends
			rec.Releases[i].Status = domain.ReleaseLive
		}
	}
	v.mu.Unlock()

	applog.Event("vault.release.trigger", map[string]any{
		"product": productID, "release_id": release.ID, "qty": release.RestockQty,
		"duration_min": release.DurationMinutes, "drop_id": d.ID,
	})
	go v.notify(productID, release.ID, savers)
}

// applyPendingReleases fires every pending release the moment its drop
// goes live.
func (v *VaultService) applyPendingReleases() {
	type pending struct {
		productID string
		release   domain.VaultRelease
		savers    []domain.Saver
	}
	v.mu.Lock()
	var todo []pending
	for id, rec := range v.records {
		if rec.PendingRelease == nil {
			continue
		}
		todo = append(todo, pending{productID: id, release: *rec.PendingRelease, savers: rec.Savers})
		rec.Savers = nil
		rec.PendingRelease = nil
	}
	v.mu.Unlock()

	for _, p := range todo {
		v.dispatchLive(p.productID, p.release, p.savers, false)
	}
}

// completeReleases marks live releases tied to the ended drop completed.
func (v *VaultService) completeReleases(dropID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, rec := range v.records {
		for i := range rec.Releases {
			r := &rec.Releases[i]
			if r.Status == domain.ReleaseLive && r.DropID == dropID {
				r.Status = domain.ReleaseCompleted
				applog.Event("vault.release.complete", map[string]any{"product": id, "release_id": r.ID})
			}
		}
	}
}

// notify sends one email per saver and records the successes on the
// release. Send failures never roll anything back.
func (v *VaultService) notify(productID, releaseID string, savers []domain.Saver) {
	var sent []string
	for _, s := range savers {
		release := v.releaseByID(productID, releaseID)
		if err := v.mailer.SendVaultReleaseEmail(s.Email, s.Name, productID, release); err != nil {
			applog.EventError("vault.notify.fail", err, map[string]any{"to": s.Email, "product": productID})
			continue
		}
		sent = append(sent, s.Email)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	rec := v.recordLocked(productID)
	for i := range rec.Releases {
		if rec.Releases[i].ID == releaseID {
			rec.Releases[i].NotifiedEmails = append(rec.Releases[i].NotifiedEmails, sent...)
		}
	}
}

func (v *VaultService) releaseByID(productID, releaseID string) domain.VaultRelease {
	v.mu.Lock()
	defer v.mu.Unlock()
	rec := v.recordLocked(productID)
	for _, r := range rec.Releases {
		if r.ID == releaseID {
			return r
		}
	}
	return domain.VaultRelease{ID: releaseID}
}

// VaultEntry is one product's snapshot row.
type VaultEntry struct {
	SaverCount     int                   `json:"saverCount"`
	Savers         []domain.Saver        `json:"savers"`
	Releases       []domain.VaultRelease `json:"releases"`
	ActiveRelease  *domain.VaultRelease  `json:"activeRelease,omitempty"`
	PendingRelease *domain.VaultRelease  `json:"pendingRelease,omitempty"`
}

// Snapshot returns the full vault state keyed by product id.
func (v *VaultService) Snapshot() map[string]VaultEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[string]VaultEntry, len(v.records))
	for id, rec := range v.records {
		e := VaultEntry{
			SaverCount: len(rec.Savers),
			Savers:     append([]domain.Saver{}, rec.Savers...),
			Releases:   append([]domain.VaultRelease{}, rec.Releases...),
		}
		for i := len(e.Releases) - 1; i >= 0; i-- {
			if e.Releases[i].Status == domain.ReleaseLive {
				r := e.Releases[i]
				e.ActiveRelease = &r
				break
			}
		}
		if rec.PendingRelease != nil {
			r := *rec.PendingRelease
			e.PendingRelease = &r
		}
		out[id] = e
	}
	return out
}

// ReadyProducts lists products eligible for saving: recently live within
// the window but not currently purchasable.
func (v *VaultService) ReadyProducts(window time.Duration) ([]domain.Product, error) {
	prods, err := v.Prods.List()
	if err != nil {
		return nil, err
	}
	now := v.now()
	out := []domain.Product{}
	for _, p := range prods {
		seen, ok := v.Drops.LastSeenLive(p.ID)
		if !ok || now.Sub(seen) > window {
			continue
		}
		if v.Drops.Purchasable(p.ID) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Eligible reports whether one product passes the same recency gate used
// by ReadyProducts. Called at the save boundary.
func (v *VaultService) Eligible(productID string, window time.Duration) bool {
	seen, ok := v.Drops.LastSeenLive(productID)
	if !ok || v.now().Sub(seen) > window {
		return false
	}
	return !v.Drops.Purchasable(productID)
}

func (v *VaultService) recordLocked(productID string) *domain.VaultRecord {
	rec, ok := v.records[productID]
	if !ok {
		rec = &domain.VaultRecord{}
		v.records[productID] = rec
	}
	return rec
}
