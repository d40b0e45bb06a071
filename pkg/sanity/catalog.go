package sanity

import (
	"context"
	"encoding/json"
	"fmt"
)

// NamedRef is a dereferenced color/size document carrying only its name.
type NamedRef struct {
	Name string `json:"name"`
}

// Variant is a purchasable product variation. Stock is a pointer because
// the content store may omit it; an absent stock field fails validation
// the same way zero stock does.
type Variant struct {
	ID        string    `json:"_id"`
	SKU       string    `json:"sku"`
	Price     float64   `json:"price"`
	Stock     *int      `json:"stock"`
	ProductID string    `json:"productId,omitempty"`
	Color     *NamedRef `json:"color,omitempty"`
	Size      *NamedRef `json:"size,omitempty"`
}

// Product is a catalog entry with its variants projected inline.
type Product struct {
	ID       string    `json:"_id"`
	Name     string    `json:"name"`
	Variant  *Variant  `json:"variant,omitempty"`
	Variants []Variant `json:"variants,omitempty"`
}

// BatchCatalog is the result shape of the batched lookup used by
// multi-item validation.
type BatchCatalog struct {
	Products []Product `json:"products"`
	Variants []Variant `json:"variants"`
}

const productWithVariantQuery = `*[_type == "product" && _id == $productId][0]{
  _id,
  name,
  "variant": *[_type == "variant" && references(^._id) && _id == $variantId][0]{
    _id,
    sku,
    price,
    stock,
    "color": color->{ name },
    "size": size->{ name }
  }
}`

// ProductWithVariant fetches a product and the referenced variant in one
// round trip. A nil product with a nil error means the product does not
// exist; an existing product with a nil Variant means the variant does not.
func (c *Client) ProductWithVariant(ctx context.Context, productID, variantID string) (*Product, error) {
	raw, err := c.Query(ctx, productWithVariantQuery, map[string]any{
		"productId": productID,
		"variantId": variantID,
	})
	if err != nil {
		return nil, err
	}
	return decodeProduct(raw)
}

const variantByIDQuery = `*[_type == "variant" && _id == $variantId][0]{
  _id,
  sku,
  price,
  stock,
  "productId": *[_type == "product" && references(^._id)][0]._id,
  "color": color->{ name },
  "size": size->{ name }
}`

// VariantByID is the fallback lookup used when a variant is not reachable
// through its expected product. The back-reference reports which product
// the variant actually belongs to.
func (c *Client) VariantByID(ctx context.Context, variantID string) (*Variant, error) {
	raw, err := c.Query(ctx, variantByIDQuery, map[string]any{"variantId": variantID})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var variant Variant
	if err := json.Unmarshal(raw, &variant); err != nil {
		return nil, fmt.Errorf("decoding variant: %w", err)
	}
	if variant.ID == "" {
		return nil, nil
	}
	return &variant, nil
}

const batchCatalogQuery = `{
  "products": *[_type == "product" && _id in $productIds]{
    _id,
    name
  },
  "variants": *[_type == "variant" && _id in $variantIds]{
    _id,
    stock,
    "productId": *[_type == "product" && references(^._id)][0]._id
  }
}`

// BatchLookup fetches every referenced product and variant in a single
// round trip, for validating whole item lists.
func (c *Client) BatchLookup(ctx context.Context, productIDs, variantIDs []string) (*BatchCatalog, error) {
	raw, err := c.Query(ctx, batchCatalogQuery, map[string]any{
		"productIds": productIDs,
		"variantIds": variantIDs,
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, fmt.Errorf("batch lookup returned no document")
	}
	var catalog BatchCatalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		return nil, fmt.Errorf("decoding batch catalog: %w", err)
	}
	return &catalog, nil
}

const listProductsQuery = `*[_type == "product"] | order(name asc) [$offset...$end]{
  _id,
  name,
  "variants": *[_type == "variant" && references(^._id)]{
    _id,
    sku,
    price,
    stock,
    "color": color->{ name },
    "size": size->{ name }
  }
}`

// ListProducts returns a window of the catalog for the browse endpoints.
func (c *Client) ListProducts(ctx context.Context, offset, limit int) ([]Product, error) {
	if limit <= 0 {
		limit = 24
	}
	if offset < 0 {
		offset = 0
	}
	raw, err := c.Query(ctx, listProductsQuery, map[string]any{
		"offset": offset,
		"end":    offset + limit,
	})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return []Product{}, nil
	}
	var products []Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("decoding product list: %w", err)
	}
	return products, nil
}

// ProductByID returns a single product with all its variants, or nil when
// the product does not exist.
func (c *Client) ProductByID(ctx context.Context, productID string) (*Product, error) {
	const query = `*[_type == "product" && _id == $productId][0]{
  _id,
  name,
  "variants": *[_type == "variant" && references(^._id)]{
    _id,
    sku,
    price,
    stock,
    "color": color->{ name },
    "size": size->{ name }
  }
}`
	raw, err := c.Query(ctx, query, map[string]any{"productId": productID})
	if err != nil {
		return nil, err
	}
	return decodeProduct(raw)
}

func decodeProduct(raw json.RawMessage) (*Product, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var product Product
	if err := json.Unmarshal(raw, &product); err != nil {
		return nil, fmt.Errorf("decoding product: %w", err)
	}
	if product.ID == "" {
		return nil, nil
	}
	return &product, nil
}
