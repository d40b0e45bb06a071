package favorites

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pranshlabs/storefront-backend/pkg/logger"
	"github.com/pranshlabs/storefront-backend/pkg/metrics"
)

const metricKind = "favorites"

// RemoteStore is the persistence surface for authenticated sessions.
// *Repository satisfies it.
type RemoteStore interface {
	FetchAll(ctx context.Context, profileID int64) ([]Item, error)
	Add(ctx context.Context, profileID int64, item Item) error
	Remove(ctx context.Context, profileID int64, productID string) error
	ClearAll(ctx context.Context, profileID int64) error
	ReconcileBatch(ctx context.Context, profileID int64, desired []Item) error
}

// GuestStore is the device-keyed persistence surface for anonymous
// sessions. *localstore.Adapter[Item] satisfies it.
type GuestStore interface {
	Load(ctx context.Context, deviceID string) []Item
	Save(ctx context.Context, deviceID string, items []Item)
	Purge(ctx context.Context, deviceID string)
	PurgeIfExpired(ctx context.Context, deviceID string) bool
}

// StoreParams groups dependencies for a session-bound favorites store.
type StoreParams struct {
	DeviceID     string
	Remote       RemoteStore
	Guest        GuestStore
	Logger       *logger.Logger
	Metrics      *metrics.SyncMetrics
	SyncInterval time.Duration
}

// Store is the mutable favorites list for one browsing session. The same
// locking and lifecycle rules as the cart store apply.
type Store struct {
	deviceID     string
	remote       RemoteStore
	guest        GuestStore
	logg         *logger.Logger
	syncMetrics  *metrics.SyncMetrics
	syncInterval time.Duration

	mu            sync.Mutex
	items         []Item
	authenticated bool
	profileID     int64
	fingerprint   string
	lastErr       error

	subsMu  sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int

	cancelSync context.CancelFunc
	syncDone   chan struct{}
}

// NewStore builds a guest store for the device and hydrates it from guest
// storage, purging first if the activity window has lapsed.
func NewStore(ctx context.Context, params StoreParams) (*Store, error) {
	if params.DeviceID == "" {
		return nil, fmt.Errorf("favorites store: device id is required")
	}
	if params.Remote == nil {
		return nil, fmt.Errorf("favorites store: remote store is required")
	}
	if params.Guest == nil {
		return nil, fmt.Errorf("favorites store: guest store is required")
	}
	if params.SyncInterval <= 0 {
		params.SyncInterval = time.Minute
	}

	s := &Store{
		deviceID:     params.DeviceID,
		remote:       params.Remote,
		guest:        params.Guest,
		logg:         params.Logger,
		syncMetrics:  params.Metrics,
		syncInterval: params.SyncInterval,
		subs:         map[int]func(Snapshot){},
	}

	s.guest.PurgeIfExpired(ctx, s.deviceID)
	s.items = s.guest.Load(ctx, s.deviceID)
	return s, nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return snapshotOf(s.items)
}

// Items returns a copy of the current favorites.
func (s *Store) Items() []Item {
	return s.Snapshot().Items
}

// Contains reports whether the product is favorited.
func (s *Store) Contains(productID string) bool {
	key := Item{ProductID: productID}.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.items {
		if item.Key() == key {
			return true
		}
	}
	return false
}

// Err returns the last persistence failure, if any. Reading clears it.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.lastErr
	s.lastErr = nil
	return err
}

// Authenticated reports whether the store is bound to a profile.
func (s *Store) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// Subscribe registers a callback invoked synchronously with a snapshot after
// every committed mutation. The returned func unregisters it.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *Store) notify(snap Snapshot) {
	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Add favorites the item. Favoriting something twice is a silent no-op.
// Returns false only when the item is structurally unusable.
func (s *Store) Add(ctx context.Context, item Item) bool {
	if !item.Valid() {
		return false
	}

	s.mu.Lock()
	for _, existing := range s.items {
		if existing.Key() == item.Key() {
			s.mu.Unlock()
			return true
		}
	}
	s.items = append(s.items, item)
	snap := snapshotOf(s.items)
	s.writeThroughLocked(ctx, item, false)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Remove unfavorites the product. Removing an absent favorite succeeds.
func (s *Store) Remove(ctx context.Context, productID string) bool {
	target := Item{ProductID: productID}

	s.mu.Lock()
	kept := s.items[:0]
	for _, item := range s.items {
		if item.Key() != target.Key() {
			kept = append(kept, item)
		}
	}
	s.items = kept
	snap := snapshotOf(s.items)
	s.writeThroughLocked(ctx, target, true)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Toggle flips the item's membership and reports whether it is favorited
// afterwards.
func (s *Store) Toggle(ctx context.Context, item Item) bool {
	if s.Contains(item.ProductID) {
		s.Remove(ctx, item.ProductID)
		return false
	}
	return s.Add(ctx, item)
}

// Clear empties the list.
func (s *Store) Clear(ctx context.Context) bool {
	s.mu.Lock()
	s.items = []Item{}
	snap := snapshotOf(s.items)
	if s.authenticated {
		if err := s.remote.ClearAll(ctx, s.profileID); err != nil {
			s.recordFailureLocked(ctx, fmt.Errorf("clearing account favorites: %w", err))
		} else {
			s.fingerprint = Fingerprint(s.items)
		}
	} else {
		s.guest.Save(ctx, s.deviceID, s.items)
	}
	s.mu.Unlock()

	s.notify(snap)
	return true
}

func (s *Store) writeThroughLocked(ctx context.Context, item Item, removal bool) {
	if !s.authenticated {
		s.guest.Save(ctx, s.deviceID, s.items)
		return
	}

	var err error
	if removal {
		err = s.remote.Remove(ctx, s.profileID, item.ProductID)
	} else {
		err = s.remote.Add(ctx, s.profileID, item)
	}
	if err != nil {
		s.recordFailureLocked(ctx, fmt.Errorf("writing favorite: %w", err))
		return
	}
	s.fingerprint = Fingerprint(s.items)
}

// Login unions the guest favorites into the account list, persists the
// result, purges guest storage and starts the periodic sync loop.
func (s *Store) Login(ctx context.Context, profileID int64) error {
	s.stopSyncLoop()

	remote, err := s.remote.FetchAll(ctx, profileID)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("loading account favorites failed, merging onto empty base: %v", err))
		remote = []Item{}
	}

	s.mu.Lock()
	merged := Merge(remote, s.items)
	s.items = merged
	s.authenticated = true
	s.profileID = profileID
	s.fingerprint = ""
	snap := snapshotOf(s.items)
	s.mu.Unlock()

	s.notify(snap)

	if err := s.remote.ReconcileBatch(ctx, profileID, merged); err != nil {
		s.mu.Lock()
		s.recordFailureLocked(ctx, fmt.Errorf("persisting merged favorites: %w", err))
		s.mu.Unlock()
	} else {
		s.mu.Lock()
		s.fingerprint = Fingerprint(merged)
		s.mu.Unlock()
	}

	s.guest.Purge(ctx, s.deviceID)
	s.startSyncLoop()
	return nil
}

// Logout stops the sync loop, drops the profile binding and persists the
// current list as the device's new guest baseline.
func (s *Store) Logout(ctx context.Context) {
	s.stopSyncLoop()

	s.mu.Lock()
	s.authenticated = false
	s.profileID = 0
	s.fingerprint = ""
	items := make([]Item, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	s.guest.Save(ctx, s.deviceID, items)
}

// Sync flushes in-memory state to the session's backing store, with the
// same fingerprint short-circuit and retry semantics as the cart.
func (s *Store) Sync(ctx context.Context) error {
	s.mu.Lock()
	authenticated := s.authenticated
	profileID := s.profileID
	lastFingerprint := s.fingerprint
	items := make([]Item, len(s.items))
	copy(items, s.items)
	s.mu.Unlock()

	if !authenticated {
		s.guest.Save(ctx, s.deviceID, items)
		return nil
	}

	current := Fingerprint(items)
	if current == lastFingerprint {
		s.syncMetrics.IncSkipped(metricKind)
		return nil
	}

	started := time.Now()
	err := s.remote.ReconcileBatch(ctx, profileID, items)
	s.syncMetrics.ObserveDuration(metricKind, time.Since(started))
	if err != nil {
		s.syncMetrics.IncFailure(metricKind)
		s.mu.Lock()
		s.recordFailureLocked(ctx, fmt.Errorf("syncing favorites: %w", err))
		s.mu.Unlock()
		return err
	}

	s.syncMetrics.IncSuccess(metricKind)
	s.mu.Lock()
	s.fingerprint = current
	s.mu.Unlock()
	return nil
}

func (s *Store) startSyncLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancelSync = cancel
	s.syncDone = done

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sync(ctx); err != nil {
					s.warn(ctx, fmt.Sprintf("periodic favorites sync failed: %v", err))
				}
			}
		}
	}()
}

func (s *Store) stopSyncLoop() {
	if s.cancelSync == nil {
		return
	}
	s.cancelSync()
	<-s.syncDone
	s.cancelSync = nil
	s.syncDone = nil
}

// Close stops the background sync loop. Safe to call on a guest store.
func (s *Store) Close() {
	s.stopSyncLoop()
}

func (s *Store) recordFailureLocked(ctx context.Context, err error) {
	s.lastErr = err
	s.warn(ctx, err.Error())
}

func (s *Store) warn(ctx context.Context, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(ctx, msg)
}
