package controllers

import (
	"net/http"
	"strings"

	"github.com/pranshlabs/storefront-backend/api/responses"
	"github.com/pranshlabs/storefront-backend/api/validators"
	"github.com/pranshlabs/storefront-backend/internal/checkout"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

// CheckoutCreate opens a payment session for the submitted cart. The redirect
// origin may come from the payload or the Origin header.
func CheckoutCreate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeProcessorUnavailable, "checkout is not configured"))
			return
		}

		var req checkout.Request
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if req.Origin == "" {
			req.Origin = strings.TrimSpace(r.Header.Get("Origin"))
		}

		result, err := svc.CreateSession(ctx, req)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
