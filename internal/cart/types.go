// Package cart holds the authenticated and guest shopping cart state, the
// merge and reconciliation rules between them, and the session-bound store
// that the API serves from.
package cart

import (
	"github.com/shopspring/decimal"
)

// Item is one cart line. A line is identified by its product and variant
// pair; quantity is the only mutable field callers change after adding.
type Item struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId"`
	Quantity  int             `json:"quantity"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl,omitempty"`
	Color     string          `json:"color,omitempty"`
	Size      string          `json:"size,omitempty"`
}

// Key identifies the line within a cart.
func (i Item) Key() string {
	return i.ProductID + "::" + i.VariantID
}

// Valid reports whether the line is structurally usable.
func (i Item) Valid() bool {
	return i.ProductID != "" && i.VariantID != "" && i.Quantity > 0
}

// Snapshot is the read-only view handed to subscribers and API responses.
type Snapshot struct {
	Items         []Item `json:"items"`
	Count         int    `json:"count"`
	TotalQuantity int    `json:"totalQuantity"`
}

func snapshotOf(items []Item) Snapshot {
	copied := make([]Item, len(items))
	copy(copied, items)
	total := 0
	for _, item := range copied {
		total += item.Quantity
	}
	return Snapshot{
		Items:         copied,
		Count:         len(copied),
		TotalQuantity: total,
	}
}
