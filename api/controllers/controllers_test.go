package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pranshlabs/storefront-backend/internal/cart"
	"github.com/pranshlabs/storefront-backend/internal/favorites"
	"github.com/pranshlabs/storefront-backend/internal/session"
)

type memCartRemote struct {
	items map[int64][]cart.Item
}

func newMemCartRemote() *memCartRemote {
	return &memCartRemote{items: map[int64][]cart.Item{}}
}

func (m *memCartRemote) FetchAll(_ context.Context, profileID int64) ([]cart.Item, error) {
	return append([]cart.Item{}, m.items[profileID]...), nil
}

func (m *memCartRemote) Upsert(_ context.Context, profileID int64, item cart.Item) error {
	for i, existing := range m.items[profileID] {
		if existing.Key() == item.Key() {
			m.items[profileID][i] = item
			return nil
		}
	}
	m.items[profileID] = append(m.items[profileID], item)
	return nil
}

func (m *memCartRemote) Remove(_ context.Context, profileID int64, productID, variantID string) error {
	kept := m.items[profileID][:0]
	for _, existing := range m.items[profileID] {
		if existing.ProductID != productID || existing.VariantID != variantID {
			kept = append(kept, existing)
		}
	}
	m.items[profileID] = kept
	return nil
}

func (m *memCartRemote) ClearAll(_ context.Context, profileID int64) error {
	delete(m.items, profileID)
	return nil
}

func (m *memCartRemote) ReconcileBatch(_ context.Context, profileID int64, desired []cart.Item) error {
	m.items[profileID] = append([]cart.Item{}, desired...)
	return nil
}

type memCartGuest struct {
	saved map[string][]cart.Item
}

func newMemCartGuest() *memCartGuest {
	return &memCartGuest{saved: map[string][]cart.Item{}}
}

func (m *memCartGuest) Load(_ context.Context, deviceID string) []cart.Item {
	return append([]cart.Item{}, m.saved[deviceID]...)
}

func (m *memCartGuest) Save(_ context.Context, deviceID string, items []cart.Item) {
	m.saved[deviceID] = append([]cart.Item{}, items...)
}

func (m *memCartGuest) Purge(_ context.Context, deviceID string) {
	delete(m.saved, deviceID)
}

func (m *memCartGuest) PurgeIfExpired(context.Context, string) bool {
	return false
}

type memFavRemote struct {
	items map[int64][]favorites.Item
}

func newMemFavRemote() *memFavRemote {
	return &memFavRemote{items: map[int64][]favorites.Item{}}
}

func (m *memFavRemote) FetchAll(_ context.Context, profileID int64) ([]favorites.Item, error) {
	return append([]favorites.Item{}, m.items[profileID]...), nil
}

func (m *memFavRemote) Add(_ context.Context, profileID int64, item favorites.Item) error {
	for _, existing := range m.items[profileID] {
		if existing.Key() == item.Key() {
			return nil
		}
	}
	m.items[profileID] = append(m.items[profileID], item)
	return nil
}

func (m *memFavRemote) Remove(_ context.Context, profileID int64, productID string) error {
	kept := m.items[profileID][:0]
	for _, existing := range m.items[profileID] {
		if existing.ProductID != productID {
			kept = append(kept, existing)
		}
	}
	m.items[profileID] = kept
	return nil
}

func (m *memFavRemote) ClearAll(_ context.Context, profileID int64) error {
	delete(m.items, profileID)
	return nil
}

func (m *memFavRemote) ReconcileBatch(_ context.Context, profileID int64, desired []favorites.Item) error {
	m.items[profileID] = append([]favorites.Item{}, desired...)
	return nil
}

type memFavGuest struct {
	saved map[string][]favorites.Item
}

func newMemFavGuest() *memFavGuest {
	return &memFavGuest{saved: map[string][]favorites.Item{}}
}

func (m *memFavGuest) Load(_ context.Context, deviceID string) []favorites.Item {
	return append([]favorites.Item{}, m.saved[deviceID]...)
}

func (m *memFavGuest) Save(_ context.Context, deviceID string, items []favorites.Item) {
	m.saved[deviceID] = append([]favorites.Item{}, items...)
}

func (m *memFavGuest) Purge(_ context.Context, deviceID string) {
	delete(m.saved, deviceID)
}

func (m *memFavGuest) PurgeIfExpired(context.Context, string) bool {
	return false
}

func newTestManager(t *testing.T) *session.Manager {
	t.Helper()
	manager, err := session.NewManager(session.ManagerParams{
		CartRemote:      newMemCartRemote(),
		CartGuest:       newMemCartGuest(),
		FavoritesRemote: newMemFavRemote(),
		FavoritesGuest:  newMemFavGuest(),
	})
	if err != nil {
		t.Fatalf("create manager: %v", err)
	}
	t.Cleanup(manager.Close)
	return manager
}

func withIdentity(req *http.Request, id session.Identity) *http.Request {
	return req.WithContext(session.WithIdentity(req.Context(), id))
}

func deviceRequest(req *http.Request, deviceID string) *http.Request {
	return withIdentity(req, session.Identity{DeviceID: deviceID})
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	envelope := struct {
		Data json.RawMessage `json:"data"`
	}{}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
