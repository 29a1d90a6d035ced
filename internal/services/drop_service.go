package services

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"dropshop/internal/domain"
	"dropshop/internal/events"
	applog "dropshop/internal/log"
	"dropshop/internal/repos"
)

// DropService owns the single active drop, its stock maps and its
// start/end timers. Every state-changing call is serialized under one
// mutex, which is what keeps "check remaining >= qty, then decrement"
// safe. Bus events are published after the lock is released so a
// subscriber may call back into the service.
type DropService struct {
	mu  sync.Mutex
	bus *events.Bus

	sales *repos.SalesRepo

	historyCap int
	now        func() time.Time

	current        *domain.Drop
	remaining      map[string]int
	plannedInitial map[string]int
	views          map[string]int
	lastSeenLive   map[string]time.Time
	history        []domain.DropAnalytics

	startTimer *time.Timer
	endTimer   *time.Timer
}

func NewDropService(bus *events.Bus, sales *repos.SalesRepo, historyCap int) *DropService {
	if historyCap < 1 {
		historyCap = 1
	}
	return &DropService{
		bus:            bus,
		sales:          sales,
		historyCap:     historyCap,
		now:            time.Now,
		remaining:      map[string]int{},
		plannedInitial: map[string]int{},
		views:          map[string]int{},
		lastSeenLive:   map[string]time.Time{},
	}
}

// SetNow overrides the clock; tests only.
func (s *DropService) SetNow(now func() time.Time) { s.now = now }

// CreateDrop replaces any existing drop and cancels its timers. A zero or
// past startAt means "now": the drop activates before CreateDrop returns.
// Duration clamps to one minute; negative quantities clamp to zero.
// There is no guard against overwriting a live drop; this is the admin
// override path.
func (s *DropService) CreateDrop(code domain.DropCode, startAt time.Time, duration time.Duration, quantities map[string]int) domain.Drop {
	if duration < time.Minute {
		duration = time.Minute
	}

	s.mu.Lock()
	now := s.now()
	s.cancelTimersLocked()

	immediate := startAt.IsZero() || !startAt.After(now)
	if immediate {
		startAt = now
	}

	d := &domain.Drop{
		ID:       uuid.NewString(),
		Code:     code,
		StartsAt: startAt,
		EndsAt:   startAt.Add(duration),
		Status:   domain.DropScheduled,
	}
	s.current = d
	s.remaining = map[string]int{}
	s.views = map[string]int{}
	s.plannedInitial = map[string]int{}
	for id, q := range quantities {
		if q < 0 {
			q = 0
		}
		s.plannedInitial[id] = q
	}

	var emit []func()
	if immediate {
		emit = s.activateLocked(d.ID)
	} else {
		dropID := d.ID
		s.startTimer = time.AfterFunc(startAt.Sub(now), func() { s.fireActivate(dropID) })
	}
	out := *d
	s.mu.Unlock()

	s.bus.Publish(events.TopicDrop, events.DropEvent{Type: events.DropCreated, DropID: out.ID})
	for _, fn := range emit {
		fn()
	}
	applog.Event("drop.create", map[string]any{
		"drop_id": out.ID, "code": string(out.Code), "immediate": immediate,
		"starts_at": out.StartsAt, "ends_at": out.EndsAt,
	})
	return out
}

func (s *DropService) fireActivate(dropID string) {
	s.mu.Lock()
	emit := s.activateLocked(dropID)
	s.mu.Unlock()
	for _, fn := range emit {
		fn()
	}
}

// activateLocked copies plannedInitial into remaining, stamps last-seen-live
// for stocked products and arms the end timer. Returns the event emits to
// run once the lock is dropped. A stale drop id makes this a no-op.
func (s *DropService) activateLocked(dropID string) []func() {
	d := s.current
	if d == nil || d.ID != dropID || d.Status != domain.DropScheduled {
		return nil
	}
	now := s.now()
	d.Status = domain.DropLive

	s.remaining = map[string]int{}
	for id, q := range s.plannedInitial {
		s.remaining[id] = q
		if q > 0 {
			s.lastSeenLive[id] = now
		}
	}

	if s.endTimer != nil {
		s.endTimer.Stop()
	}
	s.endTimer = time.AfterFunc(d.EndsAt.Sub(now), func() { s.fireEnd(dropID) })

	inv := s.inventoryEventLocked()
	id := d.ID
	return []func(){
		func() { s.bus.Publish(events.TopicInventory, inv) },
		func() { s.bus.Publish(events.TopicDrop, events.DropEvent{Type: events.DropActivated, DropID: id}) },
		func() { applog.Event("drop.activate", map[string]any{"drop_id": id}) },
	}
}

func (s *DropService) fireEnd(dropID string) {
	s.mu.Lock()
	emit := s.endLocked(dropID)
	s.mu.Unlock()
	for _, fn := range emit {
		fn()
	}
}

// GoLiveNow activates a scheduled drop immediately and pulls its window
// forward so the full duration still applies. Returns false when there is
// no scheduled drop.
func (s *DropService) GoLiveNow() bool {
	s.mu.Lock()
	d := s.current
	if d == nil || d.Status != domain.DropScheduled {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	window := d.EndsAt.Sub(d.StartsAt)
	d.StartsAt = now
	d.EndsAt = now.Add(window)
	s.cancelStartTimerLocked()
	emit := s.activateLocked(d.ID)
	s.mu.Unlock()
	for _, fn := range emit {
		fn()
	}
	return true
}

// EndCurrentDrop ends the live or scheduled drop now. Returns false when
// there is nothing to end.
func (s *DropService) EndCurrentDrop() bool {
	s.mu.Lock()
	d := s.current
	if d == nil || d.Status == domain.DropEnded {
		s.mu.Unlock()
		return false
	}
	emit := s.endLocked(d.ID)
	s.mu.Unlock()
	for _, fn := range emit {
		fn()
	}
	return true
}

// endLocked archives an analytics snapshot into bounded history, resets
// working state to empty and emits a zeroed inventory snapshot. Terminal:
// a replacement drop is a new entity.
func (s *DropService) endLocked(dropID string) []func() {
	d := s.current
	if d == nil || d.ID != dropID || d.Status == domain.DropEnded {
		return nil
	}
	d.Status = domain.DropEnded
	s.cancelTimersLocked()

	snap := s.analyticsLocked(*d)
	s.history = append(s.history, snap)
	if len(s.history) > s.historyCap {
		s.history = s.history[len(s.history)-s.historyCap:]
	}

	s.remaining = map[string]int{}
	s.views = map[string]int{}
	s.plannedInitial = map[string]int{}

	inv := s.inventoryEventLocked()
	id := d.ID
	return []func(){
		func() { s.bus.Publish(events.TopicInventory, inv) },
		func() { s.bus.Publish(events.TopicDrop, events.DropEvent{Type: events.DropEnded, DropID: id}) },
		func() {
			applog.Event("drop.end", map[string]any{"drop_id": id, "sold": snap.SoldQty, "revenue_cents": snap.RevenueCents})
		},
	}
}

// Reserve decrements remaining stock if the drop is live and enough stock
// exists. Two reservations can never interleave into negative stock; a
// failed reservation is a normal false.
func (s *DropService) Reserve(productID string, qty int) bool {
	if qty <= 0 {
		return false
	}
	s.mu.Lock()
	d := s.current
	if d == nil || d.Status != domain.DropLive || s.remaining[productID] < qty {
		s.mu.Unlock()
		return false
	}
	s.remaining[productID] -= qty
	inv := s.inventoryEventLocked()
	s.mu.Unlock()

	s.bus.Publish(events.TopicInventory, inv)
	return true
}

// Release returns stock to the pool. Always succeeds, even with no active
// drop: an expired hold after drop end is simply an idempotent top-up.
func (s *DropService) Release(productID string, qty int) {
	if qty <= 0 {
		return
	}
	s.mu.Lock()
	s.remaining[productID] += qty
	inv := s.inventoryEventLocked()
	s.mu.Unlock()

	s.bus.Publish(events.TopicInventory, inv)
}

// SetLiveInventory sets an absolute remaining quantity while live. An
// increase over plannedInitial raises the baseline so sell-through stays
// meaningful. Returns false when no drop is live.
func (s *DropService) SetLiveInventory(productID string, qty int) bool {
	if qty < 0 {
		qty = 0
	}
	s.mu.Lock()
	d := s.current
	if d == nil || d.Status != domain.DropLive {
		s.mu.Unlock()
		return false
	}
	prev := s.remaining[productID]
	s.remaining[productID] = qty
	if delta := qty - prev; delta > 0 {
		s.plannedInitial[productID] += delta
	}
	if qty > 0 {
		s.lastSeenLive[productID] = s.now()
	}
	dropID := d.ID
	inv := s.inventoryEventLocked()
	s.mu.Unlock()

	s.bus.Publish(events.TopicInventory, inv)
	applog.Event("drop.inventory.set", map[string]any{"drop_id": dropID, "product": productID, "qty": qty})
	return true
}

// AddInventoryToLive tops up remaining (and plannedInitial) while live.
// Returns false when no drop is live.
func (s *DropService) AddInventoryToLive(delta map[string]int) bool {
	s.mu.Lock()
	d := s.current
	if d == nil || d.Status != domain.DropLive {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	for id, q := range delta {
		if q <= 0 {
			continue
		}
		s.remaining[id] += q
		s.plannedInitial[id] += q
		s.lastSeenLive[id] = now
	}
	dropID := d.ID
	inv := s.inventoryEventLocked()
	s.mu.Unlock()

	s.bus.Publish(events.TopicInventory, inv)
	applog.Event("drop.inventory.add", map[string]any{"drop_id": dropID, "delta": delta})
	return true
}

// EnsureWindow extends endsAt so at least min of visible time remains,
// rescheduling the end timer. No-op when the drop is not live or already
// has a longer window.
func (s *DropService) EnsureWindow(min time.Duration) bool {
	if min < time.Minute {
		min = time.Minute
	}
	s.mu.Lock()
	d := s.current
	if d == nil || d.Status != domain.DropLive {
		s.mu.Unlock()
		return false
	}
	now := s.now()
	want := now.Add(min)
	if d.EndsAt.Before(want) {
		d.EndsAt = want
		if s.endTimer != nil {
			s.endTimer.Stop()
		}
		dropID := d.ID
		s.endTimer = time.AfterFunc(min, func() { s.fireEnd(dropID) })
	}
	s.mu.Unlock()
	return true
}

// RecordView counts a product detail view for the active drop.
func (s *DropService) RecordView(productID string) {
	s.mu.Lock()
	if s.current != nil && s.current.Status != domain.DropEnded {
		s.views[productID]++
	}
	s.mu.Unlock()
}

// Current returns a copy of the active drop, or nil when none exists or
// the last one ended.
func (s *DropService) Current() *domain.Drop {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Status == domain.DropEnded {
		return nil
	}
	out := *s.current
	return &out
}

// Remaining returns a copy of the live remaining map.
func (s *DropService) Remaining() map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyInts(s.remaining)
}

// LastSeenLive reports when a product last had purchasable stock.
func (s *DropService) LastSeenLive(productID string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastSeenLive[productID]
	return t, ok
}

// Purchasable reports whether the product can be reserved right now.
func (s *DropService) Purchasable(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current != nil && s.current.Status == domain.DropLive && s.remaining[productID] > 0
}

// CurrentAnalytics builds analytics for the active drop, recomputed on
// every call. ok is false when no drop is active.
func (s *DropService) CurrentAnalytics() (domain.DropAnalytics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.Status == domain.DropEnded {
		return domain.DropAnalytics{}, false
	}
	return s.analyticsLocked(*s.current), true
}

// History returns archived drop snapshots, newest first.
func (s *DropService) History(limit int) []domain.DropAnalytics {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.history)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]domain.DropAnalytics, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.history[i])
	}
	return out
}

func (s *DropService) analyticsLocked(d domain.Drop) domain.DropAnalytics {
	var sales []domain.Sale
	if s.sales != nil {
		sales, _ = s.sales.ListByDrop(d.ID)
	}
	return BuildDropAnalytics(d, copyInts(s.plannedInitial), copyInts(s.remaining), copyInts(s.views), sales)
}

func (s *DropService) inventoryEventLocked() events.InventoryEvent {
	ev := events.InventoryEvent{Remaining: copyInts(s.remaining)}
	if s.current != nil {
		ev.DropID = s.current.ID
		ev.Live = s.current.Status == domain.DropLive
	}
	return ev
}

func (s *DropService) cancelStartTimerLocked() {
	if s.startTimer != nil {
		s.startTimer.Stop()
		s.startTimer = nil
	}
}

func (s *DropService) cancelTimersLocked() {
	s.cancelStartTimerLocked()
	if s.endTimer != nil {
		s.endTimer.Stop()
		s.endTimer = nil
	}
}

func copyInts(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
