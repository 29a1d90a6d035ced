package repos

import (
	"log"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func OpenDB(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	// Seed baseline catalog if DB is empty
	if err := seedIfEmpty(db); err != nil {
		return nil, err
	}

	return db, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
PRAGMA foreign_keys = ON;

-- Catalog
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  title TEXT NOT NULL,
  price_cents INTEGER NOT NULL CHECK (price_cents >= 0),
  image_url TEXT,
  enabled INTEGER NOT NULL DEFAULT 1,
  tags_json TEXT NOT NULL DEFAULT '[]',
  created_at TEXT DEFAULT CURRENT_TIMESTAMP,
  updated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_products_enabled ON products(enabled);
CREATE INDEX IF NOT EXISTS idx_products_title   ON products(LOWER(title));

-- Sales ledger (append-only)
CREATE TABLE IF NOT EXISTS sales(
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  product_id TEXT NOT NULL REFERENCES products(id),
  qty INTEGER NOT NULL CHECK (qty >= 1),
  price_cents INTEGER NOT NULL,
  line_total_cents INTEGER NOT NULL,
  drop_id TEXT NOT NULL DEFAULT '',
  ts TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sales_drop ON sales(drop_id);
CREATE INDEX IF NOT EXISTS idx_sales_ts   ON sales(ts);
CREATE INDEX IF NOT EXISTS idx_sales_product ON sales(product_id);
`
	_, err := db.Exec(schema)
	return err
}

func seedIfEmpty(db *sqlx.DB) error {
	var n int
	if err := db.Get(&n, `SELECT COUNT(*) FROM products`); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	log.Println("[seed] inserting demo catalog")

	tx := db.MustBegin()
	tx.MustExec(`INSERT INTO products(id,title,price_cents,image_url,enabled,tags_json) VALUES
	  ('tee-black','Logo Tee (Black)',3500,'products/tee-black/main.jpg',1,'["tee","core"]'),
	  ('tee-bone','Logo Tee (Bone)',3500,'products/tee-bone/main.jpg',1,'["tee","core"]'),
	  ('hood-ash','Heavyweight Hoodie (Ash)',9500,'products/hood-ash/main.jpg',1,'["hoodie"]'),
	  ('cap-olive','Snapback Cap (Olive)',4200,'products/cap-olive/main.jpg',1,'["cap"]'),
	  ('crew-navy','Crewneck (Navy)',7800,'products/crew-navy/main.jpg',0,'["crew","archive"]')`)

	return tx.Commit()
}
