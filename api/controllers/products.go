package controllers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pranshlabs/storefront-backend/api/responses"
	"github.com/pranshlabs/storefront-backend/internal/catalog"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

const (
	defaultProductLimit = 20
	maxProductLimit     = 100
)

// ProductsList returns a window of the catalog.
func ProductsList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		offset := queryInt(r, "offset", 0)
		limit := queryInt(r, "limit", defaultProductLimit)
		if offset < 0 || limit <= 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "offset and limit must be non-negative"))
			return
		}
		if limit > maxProductLimit {
			limit = maxProductLimit
		}

		products, err := svc.ListProducts(ctx, offset, limit)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, products)
	}
}

// ProductGet returns one product with its variants.
func ProductGet(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		product, err := svc.GetProduct(ctx, chi.URLParam(r, "productId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return value
}
