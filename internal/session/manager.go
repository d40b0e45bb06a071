package session

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/pranshlabs/storefront-backend/internal/cart"
	"github.com/pranshlabs/storefront-backend/internal/favorites"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
	"github.com/pranshlabs/storefront-backend/pkg/logger"
	"github.com/pranshlabs/storefront-backend/pkg/metrics"
)

// ManagerParams groups the dependencies shared by every session.
type ManagerParams struct {
	CartRemote      cart.RemoteStore
	CartGuest       cart.GuestStore
	FavoritesRemote favorites.RemoteStore
	FavoritesGuest  favorites.GuestStore

	// CartValidate gates merged cart lines against the catalog at login.
	// Nil skips the gate.
	CartValidate func(ctx context.Context, items []cart.Item) []cart.Item

	Logger  *logger.Logger
	Metrics *metrics.SyncMetrics

	CartSyncInterval      time.Duration
	FavoritesSyncInterval time.Duration
}

// Session bundles the cart and favorites stores bound to one device. Its
// mutex serializes login/logout transitions, which the stores themselves
// deliberately do not.
type Session struct {
	DeviceID  string
	Cart      *cart.Store
	Favorites *favorites.Store

	mu        sync.Mutex
	profileID int64
}

// Login binds both stores to the profile. Each store merges its guest state
// independently; a failure in one does not roll back the other.
func (s *Session) Login(ctx context.Context, profileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.profileID == profileID && s.Cart.Authenticated() {
		return nil
	}

	err := multierr.Combine(
		s.Cart.Login(ctx, profileID),
		s.Favorites.Login(ctx, profileID),
	)
	if err == nil {
		s.profileID = profileID
	}
	return err
}

// Logout unbinds both stores and re-establishes the guest baseline.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Cart.Logout(ctx)
	s.Favorites.Logout(ctx)
	s.profileID = 0
}

// Close stops both background sync loops.
func (s *Session) Close() {
	s.Cart.Close()
	s.Favorites.Close()
}

// Manager is the registry of live sessions keyed by device ID. Sessions are
// created lazily on first use and survive until evicted or the manager
// shuts down.
type Manager struct {
	params ManagerParams

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager validates the wiring and returns an empty registry.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.CartRemote == nil || params.CartGuest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart stores are required")
	}
	if params.FavoritesRemote == nil || params.FavoritesGuest == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "favorites stores are required")
	}
	return &Manager{
		params:   params,
		sessions: map[string]*Session{},
	}, nil
}

// Session returns the device's session, creating and hydrating it on first
// access.
func (m *Manager) Session(ctx context.Context, deviceID string) (*Session, error) {
	if deviceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "device id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[deviceID]; ok {
		return existing, nil
	}

	cartStore, err := cart.NewStore(ctx, cart.StoreParams{
		DeviceID:     deviceID,
		Remote:       m.params.CartRemote,
		Guest:        m.params.CartGuest,
		Validate:     m.params.CartValidate,
		Logger:       m.params.Logger,
		Metrics:      m.params.Metrics,
		SyncInterval: m.params.CartSyncInterval,
	})
	if err != nil {
		return nil, err
	}

	favStore, err := favorites.NewStore(ctx, favorites.StoreParams{
		DeviceID:     deviceID,
		Remote:       m.params.FavoritesRemote,
		Guest:        m.params.FavoritesGuest,
		Logger:       m.params.Logger,
		Metrics:      m.params.Metrics,
		SyncInterval: m.params.FavoritesSyncInterval,
	})
	if err != nil {
		cartStore.Close()
		return nil, err
	}

	created := &Session{
		DeviceID:  deviceID,
		Cart:      cartStore,
		Favorites: favStore,
	}
	m.sessions[deviceID] = created
	return created, nil
}

// Evict closes and removes the device's session, if present.
func (m *Manager) Evict(deviceID string) {
	m.mu.Lock()
	existing, ok := m.sessions[deviceID]
	delete(m.sessions, deviceID)
	m.mu.Unlock()

	if ok {
		existing.Close()
	}
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close shuts down every live session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.sessions = map[string]*Session{}
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
