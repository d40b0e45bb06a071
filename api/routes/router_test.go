package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pranshlabs/storefront-backend/api/controllers"
	"github.com/pranshlabs/storefront-backend/internal/cart"
	"github.com/pranshlabs/storefront-backend/internal/checkout"
	"github.com/pranshlabs/storefront-backend/internal/favorites"
	"github.com/pranshlabs/storefront-backend/internal/session"
	pkgauth "github.com/pranshlabs/storefront-backend/pkg/auth"
	"github.com/pranshlabs/storefront-backend/pkg/config"
	"github.com/pranshlabs/storefront-backend/pkg/sanity"
)

type stubCatalogService struct{}

func (stubCatalogService) ValidateItem(context.Context, cart.Item, bool) bool {
	return true
}

func (stubCatalogService) ValidateItems(_ context.Context, items []cart.Item, _ bool) []cart.Item {
	return items
}

func (stubCatalogService) ListProducts(context.Context, int, int) ([]sanity.Product, error) {
	return []sanity.Product{}, nil
}

func (stubCatalogService) GetProduct(context.Context, string) (*sanity.Product, error) {
	return &sanity.Product{ID: "p1"}, nil
}

type stubCheckoutService struct{}

func (stubCheckoutService) CreateSession(context.Context, checkout.Request) (*checkout.SessionResult, error) {
	return &checkout.SessionResult{SessionID: "cs_test_123"}, nil
}

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type nullCartRemote struct{}

func (nullCartRemote) FetchAll(context.Context, int64) ([]cart.Item, error) {
	return nil, nil
}

func (nullCartRemote) Upsert(context.Context, int64, cart.Item) error {
	return nil
}

func (nullCartRemote) Remove(context.Context, int64, string, string) error {
	return nil
}

func (nullCartRemote) ClearAll(context.Context, int64) error {
	return nil
}

func (nullCartRemote) ReconcileBatch(context.Context, int64, []cart.Item) error {
	return nil
}

type nullCartGuest struct{}

func (nullCartGuest) Load(context.Context, string) []cart.Item {
	return nil
}

func (nullCartGuest) Save(context.Context, string, []cart.Item) {}

func (nullCartGuest) Purge(context.Context, string) {}

func (nullCartGuest) PurgeIfExpired(context.Context, string) bool {
	return false
}

type nullFavRemote struct{}

func (nullFavRemote) FetchAll(context.Context, int64) ([]favorites.Item, error) {
	return nil, nil
}

func (nullFavRemote) Add(context.Context, int64, favorites.Item) error {
	return nil
}

func (nullFavRemote) Remove(context.Context, int64, string) error {
	return nil
}

func (nullFavRemote) ClearAll(context.Context, int64) error {
	return nil
}

func (nullFavRemote) ReconcileBatch(context.Context, int64, []favorites.Item) error {
	return nil
}

type nullFavGuest struct{}

func (nullFavGuest) Load(context.Context, string) []favorites.Item {
	return nil
}

func (nullFavGuest) Save(context.Context, string, []favorites.Item) {}

func (nullFavGuest) Purge(context.Context, string) {}

func (nullFavGuest) PurgeIfExpired(context.Context, string) bool {
	return false
}

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	manager, err := session.NewManager(session.ManagerParams{
		CartRemote:      nullCartRemote{},
		CartGuest:       nullCartGuest{},
		FavoritesRemote: nullFavRemote{},
		FavoritesGuest:  nullFavGuest{},
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	t.Cleanup(manager.Close)

	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT.Secret = "router-test-secret"

	return NewRouter(RouterParams{
		Config:          cfg,
		Manager:         manager,
		CatalogService:  stubCatalogService{},
		CheckoutService: stubCheckoutService{},
		Health:          controllers.HealthDeps{Postgres: stubPinger{}},
	})
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := testRouter(t)

	for _, path := range []string{"/health/live", "/health/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)

		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestRouterMintsDeviceID(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if resp.Header().Get("X-Device-Id") == "" {
		t.Fatal("expected a minted device id header")
	}
}

func TestRouterEchoesDeviceID(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/favorites", nil)
	req.Header.Set("X-Device-Id", "device-7")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Device-Id"); got != "device-7" {
		t.Fatalf("expected echoed device id, got %q", got)
	}
}

func TestRouterRejectsInvalidToken(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterLoginRequiresAuth(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", nil)
	req.Header.Set("X-Device-Id", "device-7")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterLoginWithToken(t *testing.T) {
	router := testRouter(t)

	cfg := config.JWTConfig{Secret: "router-test-secret"}
	token, err := pkgauth.IssueAccessToken(cfg, 42, 0)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/login", nil)
	req.Header.Set("X-Device-Id", "device-7")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"profileId":42`) {
		t.Fatalf("expected profile id in response, got %s", resp.Body.String())
	}
}

func TestRouterProductsRoute(t *testing.T) {
	router := testRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}
