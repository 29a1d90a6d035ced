package services

import (
	"sort"
	"time"

	"dropshop/internal/domain"
)

const (
	shortWindow = 10 * time.Minute
	longWindow  = 30 * time.Minute
)

// ComputePredictions is a pure function of (remaining stock, sales
// history, now). Sold units in the trailing 10- and 30-minute windows
// convert to hourly rates; the projected sell-out is now + remaining/rate.
// A zero rate yields no ETA; zero remaining with a nonzero rate yields the
// minimal positive ETA (now), never an infinite or missing one.
func ComputePredictions(remaining map[string]int, sales []domain.Sale, now time.Time) []domain.ProductPrediction {
	short := map[string]int{}
	long := map[string]int{}
	ids := map[string]struct{}{}
	for id := range remaining {
		ids[id] = struct{}{}
	}
	for _, s := range sales {
		age := now.Sub(s.TS)
		if age < 0 || age > longWindow {
			continue
		}
		long[s.ProductID] += s.Qty
		if age <= shortWindow {
			short[s.ProductID] += s.Qty
		}
		ids[s.ProductID] = struct{}{}
	}

	ordered := make([]string, 0, len(ids))
	for id := range ids {
		ordered = append(ordered, id)
	}
	sort.Strings(ordered)

	out := make([]domain.ProductPrediction, 0, len(ordered))
	for _, id := range ordered {
		p := domain.ProductPrediction{
			ProductID:   id,
			Remaining:   remaining[id],
			Velocity10m: hourly(short[id], shortWindow),
			Velocity30m: hourly(long[id], longWindow),
		}
		p.SellOutAt10m = projectETA(p.Remaining, p.Velocity10m, now)
		p.SellOutAt30m = projectETA(p.Remaining, p.Velocity30m, now)
		out = append(out, p)
	}
	return out
}

func hourly(sold int, window time.Duration) float64 {
	if sold <= 0 {
		return 0
	}
	return float64(sold) * float64(time.Hour) / float64(window)
}

func projectETA(remaining int, velocity float64, now time.Time) *time.Time {
	if velocity <= 0 {
		return nil
	}
	eta := now.Add(time.Duration(float64(remaining) / velocity * float64(time.Hour)))
	return &eta
}
