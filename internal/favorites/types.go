// Package favorites holds the liked-products list for guest and
// authenticated sessions. It mirrors the cart's merge and sync machinery
// with set semantics: an item is either favorited or not, there are no
// quantities to resolve.
package favorites

import (
	"github.com/shopspring/decimal"
)

// Item is one favorited product. VariantID, Name, Price and ImageURL are
// display metadata; membership is decided by product alone.
type Item struct {
	ProductID string          `json:"productId"`
	VariantID string          `json:"variantId,omitempty"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl,omitempty"`
}

// Key identifies the favorite within the list. A product can be favorited
// at most once, whatever variant the shopper was looking at.
func (i Item) Key() string {
	return i.ProductID
}

// Valid reports whether the favorite is structurally usable.
func (i Item) Valid() bool {
	return i.ProductID != ""
}

// Snapshot is the read-only view handed to subscribers and API responses.
type Snapshot struct {
	Items []Item `json:"items"`
	Count int    `json:"count"`
}

func snapshotOf(items []Item) Snapshot {
	copied := make([]Item, len(items))
	copy(copied, items)
	return Snapshot{Items: copied, Count: len(copied)}
}
