package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"dropshop/internal/domain"
	applog "dropshop/internal/log"
	"dropshop/internal/repos"
)

var (
	ErrDropNotLive       = errors.New("no drop is live")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrCartEmpty         = errors.New("cart empty")
)

// CartService is the session reservation ledger: per-session holds backed
// by real reservations against the live drop. A hold is a soft lock with a
// TTL; expiry releases the stock back exactly once.
type CartService struct {
	mu    sync.Mutex
	holds map[string]map[string]domain.CartHold // session -> product -> hold

	Drops *DropService
	Prods *repos.ProductRepo
	Sales *repos.SalesRepo

	ttl time.Duration
	now func() time.Time
}

func NewCartService(drops *DropService, prods *repos.ProductRepo, sales *repos.SalesRepo, ttl time.Duration) *CartService {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CartService{
		holds: map[string]map[string]domain.CartHold{},
		Drops: drops,
		Prods: prods,
		Sales: sales,
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetNow overrides the clock; tests only.
func (s *CartService) SetNow(now func() time.Time) { s.now = now }

// Add reserves qty against the live drop and merges it into the session's
// hold. A successful merge resets the whole hold's TTL clock, not just the
// new units.
func (s *CartService) Add(sessionID, productID string, qty int) error {
	if qty < 1 {
		qty = 1
	}
	if _, err := s.Prods.Get(productID); err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("unknown product %s", productID)
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeSessionLocked(sessionID)

	if s.Drops.Current() == nil {
		return ErrDropNotLive
	}
	if !s.Drops.Reserve(productID, qty) {
		if d := s.Drops.Current(); d == nil || d.Status != domain.DropLive {
			return ErrDropNotLive
		}
		return ErrInsufficientStock
	}

	if s.holds[sessionID] == nil {
		s.holds[sessionID] = map[string]domain.CartHold{}
	}
	h := s.holds[sessionID][productID]
	h.Qty += qty
	h.ReservedAt = s.now()
	s.holds[sessionID][productID] = h
	return nil
}

// Remove releases min(held, qty) back to the drop and drops the entry when
// fully removed.
func (s *CartService) Remove(sessionID, productID string, qty int) {
	if qty < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeSessionLocked(sessionID)

	h, ok := s.holds[sessionID][productID]
	if !ok {
		return
	}
	if qty > h.Qty {
		qty = h.Qty
	}
	s.Drops.Release(productID, qty)
	h.Qty -= qty
	if h.Qty == 0 {
		delete(s.holds[sessionID], productID)
	} else {
		s.holds[sessionID][productID] = h
	}
}

type CartLine struct {
	ProductID  string `json:"productId"`
	Title      string `json:"title"`
	Qty        int    `json:"qty"`
	PriceCents int64  `json:"priceCents"`
	Subtotal   int64  `json:"subtotalCents"`
}

type CartView struct {
	Lines      []CartLine `json:"lines"`
	TotalCents int64      `json:"totalCents"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
}

// View prices the session's holds from the current catalog.
func (s *CartService) View(sessionID string) (CartView, error) {
	s.mu.Lock()
	s.purgeSessionLocked(sessionID)
	holds := make(map[string]domain.CartHold, len(s.holds[sessionID]))
	for id, h := range s.holds[sessionID] {
		holds[id] = h
	}
	s.mu.Unlock()

	out := CartView{Lines: []CartLine{}}
	for id, h := range holds {
		p, err := s.Prods.Get(id)
		if err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return CartView{}, err
		}
		line := CartLine{
			ProductID:  id,
			Title:      p.Title,
			Qty:        h.Qty,
			PriceCents: p.PriceCents,
			Subtotal:   p.PriceCents * int64(h.Qty),
		}
		out.Lines = append(out.Lines, line)
		out.TotalCents += line.Subtotal
		exp := h.ReservedAt.Add(s.ttl)
		if out.ExpiresAt == nil || exp.Before(*out.ExpiresAt) {
			out.ExpiresAt = &exp
		}
	}
	return out, nil
}

// Checkout re-validates the drop is still live, reprices every line from
// the catalog (client-submitted amounts are never trusted), records the
// sales and clears the holds. A vanished line item aborts the whole
// checkout.
func (s *CartService) Checkout(sessionID string) (CartView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeSessionLocked(sessionID)

	d := s.Drops.Current()
	if d == nil || d.Status != domain.DropLive {
		return CartView{}, ErrDropNotLive
	}
	holds := s.holds[sessionID]
	if len(holds) == 0 {
		return CartView{}, ErrCartEmpty
	}

	out := CartView{Lines: []CartLine{}}
	for id, h := range holds {
		p, err := s.Prods.Get(id)
		if err != nil {
			if err == sql.ErrNoRows {
				return CartView{}, fmt.Errorf("item %s is no longer available", id)
			}
			return CartView{}, err
		}
		if !p.Enabled {
			return CartView{}, fmt.Errorf("item %s is no longer available", id)
		}
		line := CartLine{ProductID: id, Title: p.Title, Qty: h.Qty, PriceCents: p.PriceCents, Subtotal: p.PriceCents * int64(h.Qty)}
		out.Lines = append(out.Lines, line)
		out.TotalCents += line.Subtotal
	}

	now := s.now()
	for _, line := range out.Lines {
		if err := s.Sales.RecordSale(line.ProductID, line.Qty, line.PriceCents, d.ID, now); err != nil {
			return CartView{}, err
		}
	}
	delete(s.holds, sessionID)
	applog.Event("cart.checkout", map[string]any{"session": sessionID, "drop_id": d.ID, "total_cents": out.TotalCents})
	return out, nil
}

// purgeSessionLocked releases any expired hold in one session. Each hold
// is removed before its stock is released, so expiry can never release
// twice.
func (s *CartService) purgeSessionLocked(sessionID string) {
	now := s.now()
	for id, h := range s.holds[sessionID] {
		if now.Sub(h.ReservedAt) >= s.ttl {
			delete(s.holds[sessionID], id)
			s.Drops.Release(id, h.Qty)
		}
	}
	if len(s.holds[sessionID]) == 0 {
		delete(s.holds, sessionID)
	}
}

// PurgeExpired sweeps every session once.
func (s *CartService) PurgeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid := range s.holds {
		s.purgeSessionLocked(sid)
	}
}

// RunSweeper purges expired holds across all sessions on a fixed interval
// until the context is cancelled.
func (s *CartService) RunSweeper(ctx context.Context, every time.Duration) {
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
			s.PurgeExpired()
		}
	}
}
