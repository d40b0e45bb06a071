// Package checkout revalidates the cart against the live catalog and opens
// a payment session. Everything here is strict: an item that cannot be
// verified is never charged.
package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/pranshlabs/storefront-backend/pkg/types"
)

// LineItem is one purchasable line as the client submitted it. The claimed
// price is re-checked server side before any money moves.
type LineItem struct {
	ProductID string          `json:"productId" validate:"required"`
	VariantID string          `json:"variantId" validate:"required"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name" validate:"required"`
	Price     decimal.Decimal `json:"price" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
}

// Request is a full checkout submission. Origin may come from the payload
// or from the Origin header; the controller fills it in either way.
type Request struct {
	Items    []LineItem            `json:"items" validate:"required,min=1,dive"`
	Shipping types.ShippingDetails `json:"shippingDetails" validate:"required"`
	Origin   string                `json:"origin" validate:"omitempty,url"`
}

// SessionResult is returned on success; the client redirects to the
// processor using the session ID.
type SessionResult struct {
	SessionID string `json:"sessionId"`
	OrderID   string `json:"orderId"`
}

// cents converts a decimal dollar amount to integer cents, rounding to the
// nearest cent first so float artifacts in client payloads cannot shift the
// comparison.
func cents(amount decimal.Decimal) int64 {
	return amount.Round(2).Mul(decimal.NewFromInt(100)).IntPart()
}
