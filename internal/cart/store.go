package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pranshlabs/storefront-backend/pkg/logger"
	"github.com/pranshlabs/storefront-backend/pkg/metrics"
)

const metricKind = "cart"

// RemoteStore is the persistence surface the store writes through to for
// authenticated sessions. *Repository satisfies it.
type RemoteStore interface {
	FetchAll(ctx context.Context, profileID int64) ([]Item, error)
	Upsert(ctx context.Context, profileID int64, item Item) error
	Remove(ctx context.Context, profileID int64, productID, variantID string) error
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

// StoreParams groups dependencies for a session-bound store.
type StoreParams struct {
	DeviceID string
	Remote   RemoteStore
	Guest    GuestStore

	// Validate prunes lines against the catalog before the merged cart is
	// committed at login. Nil skips the gate.
	Validate func(ctx context.Context, items []Item) []Item

	Logger       *logger.Logger
	Metrics      *metrics.SyncMetrics
	SyncInterval time.Duration
}

// Store is the mutable cart for one browsing session. Request handlers and
// the periodic sync goroutine share it, so a mutex guards the line list.
// Login/Logout transitions are not internally serialized against each other;
// the session registry calls them one at a time.
type Store struct {
	deviceID     string
	remote       RemoteStore
	guest        GuestStore
	validate     func(ctx context.Context, items []Item) []Item
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
		return nil, fmt.Errorf("cart store: device id is required")
	}
	if params.Remote == nil {
		return nil, fmt.Errorf("cart store: remote store is required")
	}
	if params.Guest == nil {
		return nil, fmt.Errorf("cart store: guest store is required")
	}
	if params.SyncInterval <= 0 {
		params.SyncInterval = time.Minute
	}

	s := &Store{
		deviceID:     params.DeviceID,
		remote:       params.Remote,
		guest:        params.Guest,
		validate:     params.Validate,
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

// Items returns a copy of the current lines.
func (s *Store) Items() []Item {
	return s.Snapshot().Items
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items) == 0
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

// Add puts a line in the cart, folding quantity into an existing line with
// the same key. Returns false only when the line is structurally unusable.
func (s *Store) Add(ctx context.Context, item Item) bool {
	if !item.Valid() {
		return false
	}

	s.mu.Lock()
	found := false
	for i := range s.items {
		if s.items[i].Key() == item.Key() {
			s.items[i].Quantity += item.Quantity
			item = s.items[i]
			found = true
			break
		}
	}
	if !found {
		s.items = append(s.items, item)
	}
	snap := snapshotOf(s.items)
	s.writeThroughLocked(ctx, item, false)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// UpdateQuantity sets the line's quantity. A quantity of zero or less
// removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID, variantID string, quantity int) bool {
	if quantity <= 0 {
		return s.Remove(ctx, productID, variantID)
	}

	key := Item{ProductID: productID, VariantID: variantID}.Key()

	s.mu.Lock()
	var updated *Item
	for i := range s.items {
		if s.items[i].Key() == key {
			s.items[i].Quantity = quantity
			updated = &s.items[i]
			break
		}
	}
	if updated == nil {
		s.mu.Unlock()
		return false
	}
	snap := snapshotOf(s.items)
	s.writeThroughLocked(ctx, *updated, false)
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// Remove drops the line. Removing an absent line succeeds.
func (s *Store) Remove(ctx context.Context, productID, variantID string) bool {
	target := Item{ProductID: productID, VariantID: variantID}

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

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) bool {
	s.mu.Lock()
	s.items = []Item{}
	snap := snapshotOf(s.items)
	if s.authenticated {
		if err := s.remote.ClearAll(ctx, s.profileID); err != nil {
			s.recordFailureLocked(ctx, fmt.Errorf("clearing account cart: %w", err))
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

// Replace swaps the whole line list, used when validation prunes the cart.
func (s *Store) Replace(ctx context.Context, items []Item) {
	if items == nil {
		items = []Item{}
	}

	s.mu.Lock()
	s.items = make([]Item, len(items))
	copy(s.items, items)
	snap := snapshotOf(s.items)
	if s.authenticated {
		if err := s.remote.ReconcileBatch(ctx, s.profileID, s.items); err != nil {
			s.recordFailureLocked(ctx, fmt.Errorf("replacing account cart: %w", err))
		} else {
			s.fingerprint = Fingerprint(s.items)
		}
	} else {
		s.guest.Save(ctx, s.deviceID, s.items)
	}
	s.mu.Unlock()

	s.notify(snap)
}

// writeThroughLocked persists one mutation behind the in-memory commit.
// Guest sessions rewrite the device payload; authenticated sessions issue a
// single-line write and advance the fingerprint only when it lands.
func (s *Store) writeThroughLocked(ctx context.Context, item Item, removal bool) {
	if !s.authenticated {
		s.guest.Save(ctx, s.deviceID, s.items)
		return
	}

	var err error
	if removal {
		err = s.remote.Remove(ctx, s.profileID, item.ProductID, item.VariantID)
	} else {
		err = s.remote.Upsert(ctx, s.profileID, item)
	}
	if err != nil {
		s.recordFailureLocked(ctx, fmt.Errorf("writing cart line: %w", err))
		return
	}
	s.fingerprint = Fingerprint(s.items)
}

// Login binds the store to a profile: the account cart is loaded, the guest
// lines are merged into it, the merged list is validated against the catalog,
// the surviving lines are written back, guest storage is purged and the
// periodic sync loop starts. A failed remote load degrades to an empty base
// so the guest cart survives.
func (s *Store) Login(ctx context.Context, profileID int64) error {
	s.stopSyncLoop()

	remote, err := s.remote.FetchAll(ctx, profileID)
	if err != nil {
		s.warn(ctx, fmt.Sprintf("loading account cart failed, merging onto empty base: %v", err))
		remote = []Item{}
	}

	s.mu.Lock()
	local := make([]Item, len(s.items))
	copy(local, s.items)
	s.mu.Unlock()

	// Validation is a catalog round trip, so it runs outside the lock.
	merged := Merge(remote, local)
	if s.validate != nil {
		merged = s.validate(ctx, merged)
	}

	s.mu.Lock()
	s.items = merged
	s.authenticated = true
	s.profileID = profileID
	s.fingerprint = ""
	snap := snapshotOf(s.items)
	s.mu.Unlock()

	s.notify(snap)

	if err := s.remote.ReconcileBatch(ctx, profileID, merged); err != nil {
		s.mu.Lock()
		s.recordFailureLocked(ctx, fmt.Errorf("persisting merged cart: %w", err))
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
// current lines as the device's new guest baseline.
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

// Sync flushes in-memory state to the session's backing store. For guest
// sessions that is a guest-storage rewrite. For authenticated sessions the
// fingerprint short-circuits no-op runs; a failed reconcile keeps the old
// fingerprint so the next trigger retries.
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
		s.recordFailureLocked(ctx, fmt.Errorf("syncing cart: %w", err))
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
					s.warn(ctx, fmt.Sprintf("periodic cart sync failed: %v", err))
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
