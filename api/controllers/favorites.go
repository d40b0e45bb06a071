package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/pranshlabs/storefront-backend/api/responses"
	"github.com/pranshlabs/storefront-backend/api/validators"
	"github.com/pranshlabs/storefront-backend/internal/favorites"
	"github.com/pranshlabs/storefront-backend/internal/session"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

type favoritePayload struct {
	ProductID string          `json:"productId" validate:"required"`
	VariantID string          `json:"variantId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
}

func (p favoritePayload) toItem() favorites.Item {
	return favorites.Item{
		ProductID: p.ProductID,
		VariantID: p.VariantID,
		Name:      p.Name,
		Price:     p.Price,
		ImageURL:  p.ImageURL,
	}
}

// FavoritesGet returns the session's favorites snapshot.
func FavoritesGet(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, sess.Favorites.Snapshot())
	}
}

// FavoritesAdd marks a product as a favorite. Adding one that is already
// favorited is a no-op, not an error.
func FavoritesAdd(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		var payload favoritePayload
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if !sess.Favorites.Add(ctx, payload.toItem()) {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "favorite is malformed"))
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sess.Favorites.Snapshot())
	}
}

type toggleResult struct {
	Favorited bool               `json:"favorited"`
	Favorites favorites.Snapshot `json:"favorites"`
}

// togglePayload carries optional display metadata; the product id comes
// from the URL.
type togglePayload struct {
	VariantID string          `json:"variantId"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
}

// FavoritesToggle flips a product's favorite state and reports the new one.
func FavoritesToggle(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		productID := chi.URLParam(r, "productId")
		if productID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}

		var payload togglePayload
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}

		favorited := sess.Favorites.Toggle(ctx, favorites.Item{
			ProductID: productID,
			VariantID: payload.VariantID,
			Name:      payload.Name,
			Price:     payload.Price,
			ImageURL:  payload.ImageURL,
		})
		responses.WriteSuccess(w, toggleResult{
			Favorited: favorited,
			Favorites: sess.Favorites.Snapshot(),
		})
	}
}

// FavoritesRemove drops one favorite.
func FavoritesRemove(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		productID := chi.URLParam(r, "productId")
		if productID == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "product id is required"))
			return
		}
		sess.Favorites.Remove(ctx, productID)
		responses.WriteSuccess(w, sess.Favorites.Snapshot())
	}
}

// FavoritesClear empties the favorites list.
func FavoritesClear(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sess.Favorites.Clear(ctx)
		responses.WriteSuccess(w, sess.Favorites.Snapshot())
	}
}
