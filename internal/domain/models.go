package domain

import "time"

type Product struct {
	ID         string `db:"id" json:"id"`
	Title      string `db:"title" json:"title"`
	PriceCents int64  `db:"price_cents" json:"priceCents"`
	ImageURL   string `db:"image_url" json:"imageUrl,omitempty"`
	Enabled    bool   `db:"enabled" json:"enabled"`
	TagsJSON   string `db:"tags_json" json:"-"`

	Tags []string `db:"-" json:"tags"`
}

type DropCode string

const (
	DropManual DropCode = "MANUAL"
	DropVault  DropCode = "VAULT"
)

type DropStatus string

const (
	DropScheduled DropStatus = "scheduled"
	DropLive      DropStatus = "live"
	DropEnded     DropStatus = "ended"
)

// Drop is a time-boxed sales event. At most one non-ended Drop exists at a
// time; creating a new one discards the prior drop and its timers.
type Drop struct {
	ID       string     `json:"id"`
	Code     DropCode   `json:"code"`
	StartsAt time.Time  `json:"startsAt"`
	EndsAt   time.Time  `json:"endsAt"`
	Status   DropStatus `json:"status"`
}

// CartHold is a soft TTL-bounded claim on reserved stock for one session.
type CartHold struct {
	Qty        int       `json:"qty"`
	ReservedAt time.Time `json:"reservedAt"`
}

// Sale is one row of the sales ledger.
type Sale struct {
	ID             int64     `db:"id" json:"id"`
	ProductID      string    `db:"product_id" json:"productId"`
	Qty            int       `db:"qty" json:"qty"`
	PriceCents     int64     `db:"price_cents" json:"priceCents"`
	LineTotalCents int64     `db:"line_total_cents" json:"lineTotalCents"`
	DropID         string    `db:"drop_id" json:"dropId"`
	TS             time.Time `db:"ts" json:"ts"`
}

type Saver struct {
	Email   string    `json:"email"` // normalized: trimmed + lower-cased
	UserID  string    `json:"userId,omitempty"`
	Name    string    `json:"name,omitempty"`
	SavedAt time.Time `json:"savedAt"`
}

type ReleaseStatus string

const (
	ReleasePending   ReleaseStatus = "pending"
	ReleaseLive      ReleaseStatus = "live"
	ReleaseCompleted ReleaseStatus = "completed"
)

type VaultRelease struct {
	ID              string        `json:"id"`
	RestockQty      int           `json:"restockQty"`
	DurationMinutes int           `json:"durationMinutes"`
	TriggeredAt     time.Time     `json:"triggeredAt"`
	DropID          string        `json:"dropId,omitempty"`
	StartsAt        *time.Time    `json:"startsAt,omitempty"`
	EndsAt          *time.Time    `json:"endsAt,omitempty"`
	NotifiedEmails  []string      `json:"notifiedEmails"`
	Status          ReleaseStatus `json:"status"`
}

// VaultRecord accumulates save interest for one product.
type VaultRecord struct {
	Savers         []Saver        `json:"savers"`
	Releases       []VaultRelease `json:"releases"`
	PendingRelease *VaultRelease  `json:"pendingRelease,omitempty"`
}

type ProductAnalytics struct {
	ProductID    string  `json:"productId"`
	InitialQty   int     `json:"initialQty"`
	RemainingQty int     `json:"remainingQty"`
	SoldQty      int     `json:"soldQty"`
	Views        int     `json:"views"`
	RevenueCents int64   `json:"revenueCents"`
	SellThrough  float64 `json:"sellThrough"`
}

// DropAnalytics is derived reporting state, never a source of truth.
type DropAnalytics struct {
	Drop         Drop               `json:"drop"`
	Products     []ProductAnalytics `json:"products"`
	InitialQty   int                `json:"initialQty"`
	RemainingQty int                `json:"remainingQty"`
	SoldQty      int                `json:"soldQty"`
	Views        int                `json:"views"`
	RevenueCents int64              `json:"revenueCents"`
	SellThrough  float64            `json:"sellThrough"`
}

type AutoDropConfig struct {
	Enabled              bool     `json:"enabled"`
	StartVelocity        float64  `json:"startVelocity"`     // units/hour to launch
	StayAliveVelocity    float64  `json:"stayAliveVelocity"` // units/hour to keep live
	DefaultDurationMin   int      `json:"defaultDurationMinutes"`
	DefaultQtyPerProduct int      `json:"defaultQtyPerProduct"`
	ProductIDs           []string `json:"productIds,omitempty"` // empty = full catalog
}

// ProductPrediction is the velocity/ETA projection for one product.
type ProductPrediction struct {
	ProductID    string     `json:"productId"`
	Remaining    int        `json:"remaining"`
	Velocity10m  float64    `json:"velocity10m"` // units/hour from trailing 10 min
	Velocity30m  float64    `json:"velocity30m"` // units/hour from trailing 30 min
	SellOutAt10m *time.Time `json:"sellOutAt10m,omitempty"`
	SellOutAt30m *time.Time `json:"sellOutAt30m,omitempty"`
}
