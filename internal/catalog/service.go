// Package catalog answers one question for the rest of the service: is this
// cart line still sellable? It fronts the content store and applies the
// stock rules in two strictness levels.
package catalog

import (
	"context"
	"fmt"

	"github.com/pranshlabs/storefront-backend/internal/cart"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
	"github.com/pranshlabs/storefront-backend/pkg/sanity"
)

// Source is the content store surface the gate reads from. *sanity.Client
// satisfies it.
type Source interface {
	ProductWithVariant(ctx context.Context, productID, variantID string) (*sanity.Product, error)
	VariantByID(ctx context.Context, variantID string) (*sanity.Variant, error)
	BatchLookup(ctx context.Context, productIDs, variantIDs []string) (*sanity.BatchCatalog, error)
	ListProducts(ctx context.Context, offset, limit int) ([]sanity.Product, error)
	ProductByID(ctx context.Context, productID string) (*sanity.Product, error)
}

// ServiceParams groups dependencies for the catalog service.
type ServiceParams struct {
	Source Source
	Logger *logger.Logger
}

// Service exposes catalog reads and the cart validation gate.
//
// Validation never returns an error: strictness decides what an unreachable
// content store means. Non-strict validation (browsing) fails open so a
// flaky CMS never empties carts; strict validation (checkout) fails closed
// so nothing unverifiable is ever charged.
type Service interface {
	ValidateItem(ctx context.Context, item cart.Item, strict bool) bool
	ValidateItems(ctx context.Context, items []cart.Item, strict bool) []cart.Item
	ListProducts(ctx context.Context, offset, limit int) ([]sanity.Product, error)
	GetProduct(ctx context.Context, productID string) (*sanity.Product, error)
}

type service struct {
	source Source
	logg   *logger.Logger
}

// NewService builds a catalog service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Source == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog source is required")
	}
	return &service{
		source: params.Source,
		logg:   params.Logger,
	}, nil
}

// ValidateItem checks one cart line against the live catalog.
func (s *service) ValidateItem(ctx context.Context, item cart.Item, strict bool) bool {
	if !item.Valid() {
		return false
	}

	product, err := s.source.ProductWithVariant(ctx, item.ProductID, item.VariantID)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("catalog lookup failed for %s: %v", item.Key(), err))
		return !strict
	}
	if product == nil || product.Variant == nil {
		return false
	}

	return stockAllows(product.Variant.Stock, item.Quantity, strict)
}

// ValidateItems filters a line list down to the sellable ones. One batched
// lookup covers the whole list; only a structural failure of the batch call
// falls back to per-item validation.
func (s *service) ValidateItems(ctx context.Context, items []cart.Item, strict bool) []cart.Item {
	if len(items) == 0 {
		return []cart.Item{}
	}

	productIDs := make([]string, 0, len(items))
	variantIDs := make([]string, 0, len(items))
	seenProducts := map[string]struct{}{}
	for _, item := range items {
		if _, ok := seenProducts[item.ProductID]; !ok {
			seenProducts[item.ProductID] = struct{}{}
			productIDs = append(productIDs, item.ProductID)
		}
		variantIDs = append(variantIDs, item.VariantID)
	}

	batch, err := s.source.BatchLookup(ctx, productIDs, variantIDs)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("batched catalog lookup failed, validating per item: %v", err))
		return s.validateOneByOne(ctx, items, strict)
	}

	products := map[string]struct{}{}
	for _, product := range batch.Products {
		products[product.ID] = struct{}{}
	}
	variants := map[string]sanity.Variant{}
	for _, variant := range batch.Variants {
		variants[variant.ID] = variant
	}

	valid := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if !item.Valid() {
			continue
		}
		if _, ok := products[item.ProductID]; !ok {
			continue
		}
		variant, ok := variants[item.VariantID]
		if !ok {
			continue
		}
		if variant.ProductID != "" && variant.ProductID != item.ProductID {
			continue
		}
		if !stockAllows(variant.Stock, item.Quantity, strict) {
			continue
		}
		valid = append(valid, item)
	}
	return valid
}

func (s *service) validateOneByOne(ctx context.Context, items []cart.Item, strict bool) []cart.Item {
	valid := make([]cart.Item, 0, len(items))
	for _, item := range items {
		if s.ValidateItem(ctx, item, strict) {
			valid = append(valid, item)
		}
	}
	return valid
}

// ListProducts passes a catalog window through to the content store.
func (s *service) ListProducts(ctx context.Context, offset, limit int) ([]sanity.Product, error) {
	products, err := s.source.ListProducts(ctx, offset, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing products")
	}
	return products, nil
}

// GetProduct loads one product with its variants.
func (s *service) GetProduct(ctx context.Context, productID string) (*sanity.Product, error) {
	if productID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
	}
	product, err := s.source.ProductByID(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "loading product")
	}
	if product == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

// stockAllows applies the two stock rules. Absent stock counts as zero.
func stockAllows(stock *int, requested int, strict bool) bool {
	available := 0
	if stock != nil {
		available = *stock
	}
	if strict {
		return available >= requested
	}
	return available > 0
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, msg)
}
