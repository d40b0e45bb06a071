package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pranshlabs/storefront-backend/pkg/config"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
	"github.com/pranshlabs/storefront-backend/pkg/metrics"
	"github.com/pranshlabs/storefront-backend/pkg/sanity"
	stripeclient "github.com/pranshlabs/storefront-backend/pkg/stripe"
)

// Catalog is the content store surface checkout verifies against.
// *sanity.Client satisfies it.
type Catalog interface {
	ProductWithVariant(ctx context.Context, productID, variantID string) (*sanity.Product, error)
	VariantByID(ctx context.Context, variantID string) (*sanity.Variant, error)
}

// Payments opens the processor session. *stripe.Client satisfies it; tests
// substitute a stub.
type Payments interface {
	CreateCheckoutSession(ctx context.Context, input stripeclient.SessionInput) (string, error)
}

// ServiceParams groups dependencies for the checkout service.
type ServiceParams struct {
	Catalog  Catalog
	Payments Payments
	Config   config.CheckoutConfig
	Stripe   config.StripeConfig
	Logger   *logger.Logger
	Metrics  *metrics.CheckoutMetrics
}

// Service turns a validated cart into a payment session.
type Service interface {
	CreateSession(ctx context.Context, req Request) (*SessionResult, error)
}

type service struct {
	catalog   Catalog
	payments  Payments
	cfg       config.CheckoutConfig
	stripeCfg config.StripeConfig
	logg      *logger.Logger
	metrics   *metrics.CheckoutMetrics
}

// NewService builds a checkout service. Payments may be nil when the
// processor is not configured; CreateSession then reports it unavailable.
func NewService(params ServiceParams) (Service, error) {
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "catalog is required")
	}
	if params.Config.ShippingFlatCents <= 0 {
		params.Config.ShippingFlatCents = 1500
	}
	if params.Config.PriceToleranceCents < 0 {
		params.Config.PriceToleranceCents = 0
	}
	return &service{
		catalog:   params.Catalog,
		payments:  params.Payments,
		cfg:       params.Config,
		stripeCfg: params.Stripe,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// CreateSession verifies every line against the live catalog and opens a
// card payment session. Any line that fails verification aborts the whole
// request; there is no partial charge.
func (s *service) CreateSession(ctx context.Context, req Request) (*SessionResult, error) {
	started := time.Now()
	result, err := s.createSession(ctx, req)
	s.observe(err, time.Since(started))
	return result, err
}

func (s *service) createSession(ctx context.Context, req Request) (*SessionResult, error) {
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeProcessorUnavailable, "payment processor is not configured")
	}
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidItem, "checkout requires at least one item")
	}

	lineItems := make([]stripeclient.SessionLineItem, 0, len(req.Items))
	summary := make([]string, 0, len(req.Items))
	itemCount := 0

	for _, item := range req.Items {
		verified, err := s.verifyLine(ctx, item)
		if err != nil {
			return nil, err
		}
		lineItems = append(lineItems, verified)
		summary = append(summary, fmt.Sprintf("%dx %s", item.Quantity, item.Name))
		itemCount += item.Quantity
	}

	orderID := uuid.NewString()
	origin := strings.TrimRight(req.Origin, "/")

	sessionID, err := s.payments.CreateCheckoutSession(ctx, stripeclient.SessionInput{
		LineItems:         lineItems,
		Shipping:          shippingFrom(req),
		ShippingFlatCents: s.cfg.ShippingFlatCents,
		SuccessURL:        origin + s.stripeCfg.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:         origin + s.stripeCfg.CancelURL,
		Metadata: map[string]string{
			"orderId":      orderID,
			"itemCount":    fmt.Sprintf("%d", itemCount),
			"orderSummary": strings.Join(summary, ", "),
		},
	})
	if err != nil {
		s.warn(ctx, fmt.Sprintf("payment session creation failed: %v", err))
		return nil, pkgerrors.Wrap(pkgerrors.CodeProcessorError, err, "creating payment session")
	}

	return &SessionResult{SessionID: sessionID, OrderID: orderID}, nil
}

// verifyLine confirms the line exists, the claimed price matches the
// catalog within tolerance, and stock covers the quantity. The server
// price, not the claimed one, is what gets charged.
func (s *service) verifyLine(ctx context.Context, item LineItem) (stripeclient.SessionLineItem, error) {
	var none stripeclient.SessionLineItem

	if item.ProductID == "" || item.VariantID == "" || item.Quantity <= 0 {
		return none, pkgerrors.New(pkgerrors.CodeInvalidItem, fmt.Sprintf("item %q is malformed", item.Name))
	}

	variant, err := s.lookupVariant(ctx, item)
	if err != nil {
		return none, err
	}
	if variant == nil {
		return none, pkgerrors.New(pkgerrors.CodeInvalidItem, fmt.Sprintf("item %q is no longer available", item.Name))
	}

	serverPrice := decimal.NewFromFloat(variant.Price)
	diff := cents(serverPrice) - cents(item.Price)
	if diff < 0 {
		diff = -diff
	}
	if diff > s.cfg.PriceToleranceCents {
		return none, pkgerrors.New(pkgerrors.CodePriceMismatch,
			fmt.Sprintf("price for %q changed, refresh your cart", item.Name))
	}

	stock := 0
	if variant.Stock != nil {
		stock = *variant.Stock
	}
	if stock < item.Quantity {
		return none, pkgerrors.New(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("only %d of %q left in stock", stock, item.Name))
	}

	return stripeclient.SessionLineItem{
		Name:            item.Name,
		UnitAmountCents: cents(serverPrice),
		Quantity:        int64(item.Quantity),
	}, nil
}

// lookupVariant loads the variant through its product, falling back to a
// direct variant lookup that also confirms the product linkage.
func (s *service) lookupVariant(ctx context.Context, item LineItem) (*sanity.Variant, error) {
	product, err := s.catalog.ProductWithVariant(ctx, item.ProductID, item.VariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verifying item against catalog")
	}
	if product != nil && product.Variant != nil {
		return product.Variant, nil
	}

	variant, err := s.catalog.VariantByID(ctx, item.VariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "verifying item against catalog")
	}
	if variant == nil {
		return nil, nil
	}
	if variant.ProductID != "" && variant.ProductID != item.ProductID {
		return nil, nil
	}
	return variant, nil
}

func shippingFrom(req Request) *stripeclient.SessionShipping {
	return &stripeclient.SessionShipping{
		Name:        req.Shipping.FullName(),
		Phone:       req.Shipping.Phone,
		Email:       req.Shipping.Email,
		Line1:       req.Shipping.AddressLine1,
		Line2:       req.Shipping.AddressLine2,
		City:        req.Shipping.City,
		State:       req.Shipping.State,
		PostalCode:  req.Shipping.PostalCode,
		CountryCode: countryCode(req.Shipping.Country),
	}
}

func (s *service) observe(err error, elapsed time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		if typed := pkgerrors.As(err); typed != nil {
			outcome = strings.ToLower(string(typed.Code()))
		}
	}
	s.metrics.Observe(outcome, elapsed)
}

func (s *service) warn(ctx context.Context, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, msg)
}
