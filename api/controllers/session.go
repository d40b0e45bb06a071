package controllers

import (
	"net/http"

	"github.com/pranshlabs/storefront-backend/api/responses"
	"github.com/pranshlabs/storefront-backend/internal/session"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

type sessionState struct {
	DeviceID      string `json:"deviceId"`
	Authenticated bool   `json:"authenticated"`
	ProfileID     int64  `json:"profileId,omitempty"`
}

// SessionLogin binds the device session to the authenticated profile,
// merging guest state into the profile's server state.
func SessionLogin(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, id, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if !id.Authenticated || id.ProfileID <= 0 {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
			return
		}

		if err := sess.Login(ctx, id.ProfileID); err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "login merge failed"))
			return
		}

		responses.WriteSuccess(w, sessionState{
			DeviceID:      sess.DeviceID,
			Authenticated: true,
			ProfileID:     id.ProfileID,
		})
	}
}

// SessionLogout unbinds the session and restores the guest baseline.
func SessionLogout(manager *session.Manager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		sess, _, err := resolveSession(ctx, manager)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		sess.Logout(ctx)
		responses.WriteSuccess(w, sessionState{
			DeviceID:      sess.DeviceID,
			Authenticated: false,
		})
	}
}
