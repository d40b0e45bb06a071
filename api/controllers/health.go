package controllers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/multierr"

	"github.com/pranshlabs/storefront-backend/api/responses"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

const readinessTimeout = 5 * time.Second

// Pinger is any dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps names the dependencies readiness checks. Nil entries are
// skipped so partial deployments still report on what they run.
type HealthDeps struct {
	Postgres Pinger
	Redis    Pinger
	Catalog  Pinger
}

// HealthLive reports that the process is up.
func HealthLive() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "ok"})
	}
}

// HealthReady pings every wired dependency and fails if any is down.
func HealthReady(deps HealthDeps, logg *logger.Logger) http.HandlerFunc {
	checks := []struct {
		name   string
		pinger Pinger
	}{
		{"postgres", deps.Postgres},
		{"redis", deps.Redis},
		{"catalog", deps.Catalog},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		status := map[string]string{}
		var failure error
		for _, check := range checks {
			if check.pinger == nil {
				continue
			}
			if err := check.pinger.Ping(ctx); err != nil {
				status[check.name] = "down"
				failure = multierr.Append(failure, err)
				continue
			}
			status[check.name] = "ok"
		}

		if failure != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, failure, "dependency unavailable").WithDetails(status))
			return
		}
		responses.WriteSuccess(w, status)
	}
}
