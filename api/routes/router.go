package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pranshlabs/storefront-backend/api/controllers"
	"github.com/pranshlabs/storefront-backend/api/middleware"
	"github.com/pranshlabs/storefront-backend/internal/catalog"
	checkoutsvc "github.com/pranshlabs/storefront-backend/internal/checkout"
	"github.com/pranshlabs/storefront-backend/internal/session"
	"github.com/pranshlabs/storefront-backend/pkg/config"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

// RouterParams bundles everything the HTTP surface depends on.
type RouterParams struct {
	Config  *config.Config
	Logger  *logger.Logger
	Manager *session.Manager

	CatalogService  catalog.Service
	CheckoutService checkoutsvc.Service

	Health controllers.HealthDeps

	// Gatherer serves /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	cfg := params.Config
	logg := params.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(params.Health, logg))
	})

	if params.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.JWT, logg))

		r.Route("/products", func(r chi.Router) {
			r.Get("/", controllers.ProductsList(params.CatalogService, logg))
			r.Get("/{productId}", controllers.ProductGet(params.CatalogService, logg))
		})

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", controllers.CartGet(params.Manager, logg))
			r.Post("/items", controllers.CartAdd(params.Manager, params.CatalogService, logg))
			r.Patch("/items", controllers.CartUpdateQuantity(params.Manager, logg))
			r.Delete("/items/{productId}/{variantId}", controllers.CartRemove(params.Manager, logg))
			r.Delete("/", controllers.CartClear(params.Manager, logg))
			r.Post("/sync", controllers.CartSync(params.Manager, logg))
			r.Post("/validate", controllers.CartValidate(params.Manager, params.CatalogService, logg))
		})

		r.Route("/favorites", func(r chi.Router) {
			r.Get("/", controllers.FavoritesGet(params.Manager, logg))
			r.Post("/", controllers.FavoritesAdd(params.Manager, logg))
			r.Post("/{productId}/toggle", controllers.FavoritesToggle(params.Manager, logg))
			r.Delete("/{productId}", controllers.FavoritesRemove(params.Manager, logg))
			r.Delete("/", controllers.FavoritesClear(params.Manager, logg))
		})

		r.Post("/checkout", controllers.CheckoutCreate(params.CheckoutService, logg))

		r.Route("/session", func(r chi.Router) {
			r.With(middleware.RequireAuth(logg)).Post("/login", controllers.SessionLogin(params.Manager, logg))
			r.Post("/logout", controllers.SessionLogout(params.Manager, logg))
		})
	})

	return r
}
