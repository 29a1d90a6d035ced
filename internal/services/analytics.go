package services

import (
	"sort"

	"dropshop/internal/domain"
)

// BuildDropAnalytics derives per-product and aggregate sold/remaining/
// revenue/sell-through from drop snapshots plus the sales ledger filtered
// by drop id. Purely derived: recomputing it is always safe.
func BuildDropAnalytics(d domain.Drop, plannedInitial, remaining, views map[string]int, sales []domain.Sale) domain.DropAnalytics {
	type tally struct {
		sold    int
		revenue int64
	}
	sold := map[string]tally{}
	for _, s := range sales {
		t := sold[s.ProductID]
		t.sold += s.Qty
		t.revenue += s.LineTotalCents
		sold[s.ProductID] = t
	}

	ids := map[string]struct{}{}
	for id := range plannedInitial {
		ids[id] = struct{}{}
	}
	for id := range remaining {
		ids[id] = struct{}{}
	}
	for id := range sold {
		ids[id] = struct{}{}
	}
	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	out := domain.DropAnalytics{Drop: d, Products: make([]domain.ProductAnalytics, 0, len(ordered))}
	for _, id := range ordered {
		t := sold[id]
		pa := domain.ProductAnalytics{
			ProductID:    id,
			InitialQty:   plannedInitial[id],
			RemainingQty: remaining[id],
			SoldQty:      t.sold,
			Views:        views[id],
			RevenueCents: t.revenue,
			SellThrough:  sellThrough(t.sold, plannedInitial[id]),
		}
		out.Products = append(out.Products, pa)
		out.InitialQty += pa.InitialQty
		out.RemainingQty += pa.RemainingQty
		out.SoldQty += pa.SoldQty
		out.Views += pa.Views
		out.RevenueCents += pa.RevenueCents
	}
	out.SellThrough = sellThrough(out.SoldQty, out.InitialQty)
	return out
}

// sellThrough is min(1, sold/initial); a sale against a zero baseline
// counts as fully sold through.
func sellThrough(sold, initial int) float64 {
	if initial <= 0 {
		if sold > 0 {
			return 1
		}
		return 0
	}
	st := float64(sold) / float64(initial)
	if st > 1 {
		return 1
	}
	return st
}
