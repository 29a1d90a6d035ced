package repos

import (
	"time"

	"github.com/jmoiron/sqlx"

	"dropshop/internal/domain"
)

// SalesRepo is the append-only sales ledger. The drop engine only ever
// reads it back filtered by drop id or trailing window.
type SalesRepo struct{ db *sqlx.DB }

func NewSalesRepo(db *sqlx.DB) *SalesRepo { return &SalesRepo{db: db} }

func (r *SalesRepo) RecordSale(productID string, qty int, priceCents int64, dropID string, ts time.Time) error {
	_, err := r.db.Exec(`
		INSERT INTO sales(product_id, qty, price_cents, line_total_cents, drop_id, ts)
		VALUES (?, ?, ?, ?, ?, ?)
	`, productID, qty, priceCents, priceCents*int64(qty), dropID, ts.UTC().Format(time.RFC3339Nano))
	return err
}

// ListSales returns the most recent sales, newest first.
func (r *SalesRepo) ListSales(limit int) ([]domain.Sale, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []saleRow
	err := r.db.Select(&rows, `
		SELECT id, product_id, qty, price_cents, line_total_cents, drop_id, ts
		FROM sales ORDER BY id DESC LIMIT ?
	`, limit)
	return decodeSales(rows), err
}

// ListByDrop returns every sale recorded against one drop.
func (r *SalesRepo) ListByDrop(dropID string) ([]domain.Sale, error) {
	var rows []saleRow
	err := r.db.Select(&rows, `
		SELECT id, product_id, qty, price_cents, line_total_cents, drop_id, ts
		FROM sales WHERE drop_id = ? ORDER BY id
	`, dropID)
	return decodeSales(rows), err
}

// ListSince returns sales at or after the cutoff, oldest first.
func (r *SalesRepo) ListSince(cutoff time.Time) ([]domain.Sale, error) {
	var rows []saleRow
	err := r.db.Select(&rows, `
		SELECT id, product_id, qty, price_cents, line_total_cents, drop_id, ts
		FROM sales WHERE ts >= ? ORDER BY id
	`, cutoff.UTC().Format(time.RFC3339Nano))
	return decodeSales(rows), err
}

type saleRow struct {
	ID             int64  `db:"id"`
	ProductID      string `db:"product_id"`
	Qty            int    `db:"qty"`
	PriceCents     int64  `db:"price_cents"`
	LineTotalCents int64  `db:"line_total_cents"`
	DropID         string `db:"drop_id"`
	TS             string `db:"ts"`
}

func decodeSales(rows []saleRow) []domain.Sale {
	out := make([]domain.Sale, 0, len(rows))
	for _, r := range rows {
		ts, _ := time.Parse(time.RFC3339Nano, r.TS)
		out = append(out, domain.Sale{
			ID:             r.ID,
			ProductID:      r.ProductID,
			Qty:            r.Qty,
			PriceCents:     r.PriceCents,
			LineTotalCents: r.LineTotalCents,
			DropID:         r.DropID,
			TS:             ts,
		})
	}
	return out
}
