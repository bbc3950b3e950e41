package models

import "time"

// Store is an independently operated stall/branch with its own catalog and orders.
type Store struct {
	ID             int64     `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	IsActive       bool      `json:"is_active"`
	PaymentEnabled bool      `json:"payment_enabled"`
	Timezone       string    `json:"timezone"` // IANA name, e.g. Asia/Taipei
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Location resolves the store's timezone, falling back to UTC when the
// stored name does not load.
func (s *Store) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Category groups products within a single store. The (store, slug) pair is
// unique; the same slug may repeat across stores.
type Category struct {
	ID        int64     `json:"id"`
	StoreID   int64     `json:"store_id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	SortOrder int       `json:"sort_order"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product is a sellable menu item. Price is in the smallest currency unit.
// CategoryID is nullable: a product without one is "uncategorized".
type Product struct {
	ID            int64     `json:"id"`
	StoreID       int64     `json:"store_id"`
	CategoryID    *int64    `json:"category_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	FlavorOptions string    `json:"flavor_options"`
	Price         int64     `json:"price"`
	Stock         int       `json:"stock"`
	IsActive      bool      `json:"is_active"`
	IsSoldOut     bool      `json:"is_sold_out"` // derived, never persisted
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Category *Category `json:"category,omitempty"`
}

// ComputeSoldOut refreshes the derived IsSoldOut flag.
func (p *Product) ComputeSoldOut() {
	p.IsSoldOut = !p.IsActive || p.Stock <= 0
}
