package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/pranshlabs/storefront-backend/api/responses"
	"github.com/pranshlabs/storefront-backend/internal/session"
	pkgauth "github.com/pranshlabs/storefront-backend/pkg/auth"
	"github.com/pranshlabs/storefront-backend/pkg/config"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

const deviceIDHeader = "X-Device-Id"

// Identity resolves who the request acts as. Every request gets a device
// identity; a valid bearer token upgrades it to a profile identity. A token
// that is present but invalid is rejected rather than silently downgraded.
func Identity(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			deviceID := strings.TrimSpace(r.Header.Get(deviceIDHeader))
			if deviceID == "" {
				deviceID = uuid.NewString()
			}
			w.Header().Set(deviceIDHeader, deviceID)

			id := session.Identity{DeviceID: deviceID}

			if raw := strings.TrimSpace(r.Header.Get("Authorization")); raw != "" {
				token := raw
				if strings.HasPrefix(strings.ToLower(token), "bearer ") {
					token = strings.TrimSpace(token[7:])
				}
				claims, err := pkgauth.ParseAccessToken(cfg, token)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
					return
				}
				id.Authenticated = true
				id.ProfileID = claims.ProfileID
			}

			ctx := session.WithIdentity(r.Context(), id)
			if logg != nil {
				ctx = logg.WithDeviceID(ctx, deviceID)
				if id.Authenticated {
					ctx = logg.WithProfileID(ctx, id.ProfileID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests whose identity is not bound to a profile.
func RequireAuth(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := session.FromContext(r.Context())
			if !ok || !id.Authenticated {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
