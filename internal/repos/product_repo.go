package repos

import (
	"encoding/json"

	"github.com/jmoiron/sqlx"

	"dropshop/internal/domain"
)

type ProductRepo struct{ db *sqlx.DB }

func NewProductRepo(db *sqlx.DB) *ProductRepo { return &ProductRepo{db: db} }

// List returns enabled products ordered by title.
func (r *ProductRepo) List() ([]domain.Product, error) {
	var rows []domain.Product
	err := r.db.Select(&rows, `
		SELECT id, title, price_cents, COALESCE(image_url,'') AS image_url, enabled, tags_json
		FROM products
		WHERE enabled = 1
		ORDER BY title
	`)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		decodeTags(&rows[i])
	}
	return rows, nil
}

// ListIDs returns the ids of every enabled product.
func (r *ProductRepo) ListIDs() ([]string, error) {
	var ids []string
	err := r.db.Select(&ids, `SELECT id FROM products WHERE enabled = 1 ORDER BY id`)
	return ids, err
}

// Get returns one product by id. sql.ErrNoRows maps to not-found upstream.
func (r *ProductRepo) Get(id string) (domain.Product, error) {
	var p domain.Product
	err := r.db.Get(&p, `
		SELECT id, title, price_cents, COALESCE(image_url,'') AS image_url, enabled, tags_json
		FROM products WHERE id = ?
	`, id)
	if err != nil {
		return domain.Product{}, err
	}
	decodeTags(&p)
	return p, nil
}

func decodeTags(p *domain.Product) {
	p.Tags = []string{}
	if p.TagsJSON != "" {
		_ = json.Unmarshal([]byte(p.TagsJSON), &p.Tags)
	}
}
