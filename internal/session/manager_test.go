package session

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pranshlabs/storefront-backend/internal/cart"
	"github.com/pranshlabs/storefront-backend/internal/favorites"
)

type memCartRemote struct {
	mu    sync.Mutex
	lines map[int64][]cart.Item
}

func (m *memCartRemote) FetchAll(_ context.Context, profileID int64) ([]cart.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cart.Item{}, m.lines[profileID]...), nil
}
func (m *memCartRemote) Upsert(context.Context, int64, cart.Item) error { return nil }

func (m *memCartRemote) Remove(context.Context, int64, string, string) error { return nil }

func (m *memCartRemote) ClearAll(context.Context, int64) error { return nil }

func (m *memCartRemote) ReconcileBatch(_ context.Context, profileID int64, desired []cart.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lines == nil {
		m.lines = map[int64][]cart.Item{}
	}
	m.lines[profileID] = append([]cart.Item{}, desired...)
	return nil
}

type memCartGuest struct {
	mu    sync.Mutex
	items map[string][]cart.Item
}

func (m *memCartGuest) Load(_ context.Context, deviceID string) []cart.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]cart.Item{}, m.items[deviceID]...)
}
func (m *memCartGuest) Save(_ context.Context, deviceID string, items []cart.Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string][]cart.Item{}
	}
	m.items[deviceID] = append([]cart.Item{}, items...)
}
func (m *memCartGuest) Purge(_ context.Context, deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, deviceID)
}
func (m *memCartGuest) PurgeIfExpired(context.Context, string) bool { return false }

type memFavRemote struct{}

func (memFavRemote) FetchAll(context.Context, int64) ([]favorites.Item, error) { return nil, nil }

func (memFavRemote) Add(context.Context, int64, favorites.Item) error { return nil }

func (memFavRemote) Remove(context.Context, int64, string) error { return nil }

func (memFavRemote) ClearAll(context.Context, int64) error { return nil }

func (memFavRemote) ReconcileBatch(context.Context, int64, []favorites.Item) error { return nil }

type memFavGuest struct{}

func (memFavGuest) Load(context.Context, string) []favorites.Item { return nil }

func (memFavGuest) Save(context.Context, string, []favorites.Item) {}

func (memFavGuest) Purge(context.Context, string) {}

func (memFavGuest) PurgeIfExpired(context.Context, string) bool { return false }

func newManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(ManagerParams{
		CartRemote:      &memCartRemote{},
		CartGuest:       &memCartGuest{},
		FavoritesRemote: memFavRemote{},
		FavoritesGuest:  memFavGuest{},
	})
	require.NoError(t, err)
	t.Cleanup(manager.Close)
	return manager
}

func TestSessionIsCreatedOncePerDevice(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	first, err := manager.Session(ctx, "device-1")
	require.NoError(t, err)
	second, err := manager.Session(ctx, "device-1")
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, manager.Len())

	_, err = manager.Session(ctx, "device-2")
	require.NoError(t, err)
	assert.Equal(t, 2, manager.Len())
}

func TestSessionRequiresDeviceID(t *testing.T) {
	manager := newManager(t)

	_, err := manager.Session(context.Background(), "")
	require.Error(t, err)
}

func TestLoginIsIdempotentPerProfile(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	sess, err := manager.Session(ctx, "device-1")
	require.NoError(t, err)

	require.NoError(t, sess.Login(ctx, 7))
	require.NoError(t, sess.Login(ctx, 7))

	assert.True(t, sess.Cart.Authenticated())
	assert.True(t, sess.Favorites.Authenticated())
}

func TestLogoutUnbindsBothStores(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	sess, err := manager.Session(ctx, "device-1")
	require.NoError(t, err)

	require.NoError(t, sess.Login(ctx, 7))
	sess.Logout(ctx)

	assert.False(t, sess.Cart.Authenticated())
	assert.False(t, sess.Favorites.Authenticated())
}

func TestEvictDropsTheSession(t *testing.T) {
	manager := newManager(t)
	ctx := context.Background()

	first, err := manager.Session(ctx, "device-1")
	require.NoError(t, err)

	manager.Evict("device-1")
	assert.Equal(t, 0, manager.Len())

	second, err := manager.Session(ctx, "device-1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}
