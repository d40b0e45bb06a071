package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pranshlabs/storefront-backend/api/responses"
	"github.com/pranshlabs/storefront-backend/api/validators"
	"github.com/pranshlabs/storefront-backend/internal/cart"
	"github.com/pranshlabs/storefront-backend/internal/catalog"
	"github.com/pranshlabs/storefront-backend/internal/session"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

type cartItemPayload struct {
	ProductID string          `json:"productId" validate:"required"`
	VariantID string          `json:"variantId" validate:"required"`
	Quantity  int             `json:"quantity" validate:"required,gt=0"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
	Color     string          `json:"color"`
	Size      string          `json:"size"`
}

func (p cartItemPayload) toItem() cart.Item {
	return cart.Item{
		ProductID: p.ProductID,
		VariantID: p.VariantID,
		Quantity:  p.Quantity,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
		Color:     p.Color,
		Size:      p.Size,
	}
}

type updateQuantityPayload struct {
	ProductID string `json:"productId" validate:"required"`
	VariantID string `json:"variantId" validate:"required"`
	Quantity  int    `json:"quantity"`
}

// CartGet returns the session's cart snapshot.
func CartGet(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.Cart.Snapshot())
	}
}

// CartAdd validates the item against the live catalog and puts it in the
// cart. Browsing-time validation is lenient: any stock at all passes.
func CartAdd(manager *session.Manager, catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload cartItemPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		item := payload.toItem()
		if !catalogSvc.ValidateItem(ctx, item, false) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInvalidItem, "item is not available"))
			return
		}

		if !sess.Cart.Add(ctx, item) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "item is malformed"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sess.Cart.Snapshot())
	}
}

// CartUpdateQuantity sets a line's quantity; zero or less removes it.
func CartUpdateQuantity(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload updateQuantityPayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !sess.Cart.UpdateQuantity(ctx, payload.ProductID, payload.VariantID, payload.Quantity) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found"))
			return
		}
		responses.WriteSuccess(w, sess.Cart.Snapshot())
	}
}

// CartRemove drops one line.
func CartRemove(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		productID := chi.URLParam(r, "productId")
		variantID := chi.URLParam(r, "variantId")
		if productID == "" || variantID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product and variant ids are required"))
			return
		}

		sess.Cart.Remove(ctx, productID, variantID)
		responses.WriteSuccess(w, sess.Cart.Snapshot())
	}
}

// CartClear empties the cart.
func CartClear(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sess.Cart.Clear(ctx)
		responses.WriteSuccess(w, sess.Cart.Snapshot())
	}
}

// CartSync forces a reconciliation run outside the periodic schedule.
func CartSync(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := sess.Cart.Sync(ctx); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cart sync failed"))
			return
		}
		responses.WriteSuccess(w, sess.Cart.Snapshot())
	}
}

type cartValidationResult struct {
	Cart    cart.Snapshot `json:"cart"`
	Removed []cart.Item   `json:"removed"`
}

// CartValidate strictly revalidates every line, evicts the ones that no
// longer pass and persists the pruned cart. The response names what was
// removed so the client can tell the shopper.
func CartValidate(manager *session.Manager, catalogSvc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		items := sess.Cart.Items()
		valid := catalogSvc.ValidateItems(ctx, items, true)

		validKeys := make(map[string]struct{}, len(valid))
		for _, item := range valid {
			validKeys[item.Key()] = struct{}{}
		}
		removed := make([]cart.Item, 0)
		for _, item := range items {
			if _, ok := validKeys[item.Key()]; !ok {
				removed = append(removed, item)
			}
		}

		if len(removed) > 0 {
			sess.Cart.Replace(ctx, valid)
		}

		responses.WriteSuccess(w, cartValidationResult{
			Cart:    sess.Cart.Snapshot(),
			Removed: removed,
		})
	}
}
