package cart

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRemote struct {
	mu             sync.Mutex
	lines          map[int64]map[string]Item
	fetchErr       error
	upsertErr      error
	reconcileErr   error
	reconcileCalls int
}

func newStubRemote() *stubRemote {
	return &stubRemote{lines: map[int64]map[string]Item{}}
}

func (s *stubRemote) bucket(profileID int64) map[string]Item {
	if s.lines[profileID] == nil {
		s.lines[profileID] = map[string]Item{}
	}
	return s.lines[profileID]
}

func (s *stubRemote) FetchAll(_ context.Context, profileID int64) ([]Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	items := make([]Item, 0, len(s.bucket(profileID)))
	for _, item := range s.bucket(profileID) {
		items = append(items, item)
	}
	return items, nil
}

func (s *stubRemote) Upsert(_ context.Context, profileID int64, item Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return s.upsertErr
	}
	s.bucket(profileID)[item.Key()] = item
	return nil
}

func (s *stubRemote) Remove(_ context.Context, profileID int64, productID, variantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.bucket(profileID), Item{ProductID: productID, VariantID: variantID}.Key())
	return nil
}

func (s *stubRemote) ClearAll(_ context.Context, profileID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[profileID] = map[string]Item{}
	return nil
}

func (s *stubRemote) ReconcileBatch(_ context.Context, profileID int64, desired []Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcileCalls++
	if s.reconcileErr != nil {
		return s.reconcileErr
	}
	bucket := map[string]Item{}
	for _, item := range desired {
		bucket[item.Key()] = item
	}
	s.lines[profileID] = bucket
	return nil
}

func (s *stubRemote) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconcileCalls
}

type stubGuest struct {
	mu      sync.Mutex
	items   []Item
	expired bool
	purged  bool
	saves   int
}

func (s *stubGuest) Load(_ context.Context, _ string) []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]Item, len(s.items))
	copy(copied, s.items)
	return copied
}

func (s *stubGuest) Save(_ context.Context, _ string, items []Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make([]Item, len(items))
	copy(s.items, items)
	s.saves++
}

func (s *stubGuest) Purge(_ context.Context, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.purged = true
}

func (s *stubGuest) PurgeIfExpired(ctx context.Context, deviceID string) bool {
	if !s.expired {
		return false
	}
	s.Purge(ctx, deviceID)
	return true
}

func newTestStore(t *testing.T, remote RemoteStore, guest GuestStore) *Store {
	t.Helper()
	store, err := NewStore(context.Background(), StoreParams{
		DeviceID:     "device-1",
		Remote:       remote,
		Guest:        guest,
		SyncInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func TestGuestMutationsWriteThroughToGuestStorage(t *testing.T) {
	guest := &stubGuest{}
	store := newTestStore(t, newStubRemote(), guest)
	ctx := context.Background()

	assert.True(t, store.Add(ctx, line("p1", "v1", 2)))
	assert.True(t, store.UpdateQuantity(ctx, "p1", "v1", 5))

	saved := guest.Load(ctx, "device-1")
	require.Len(t, saved, 1)
	assert.Equal(t, 5, saved[0].Quantity)
}

func TestAddFoldsQuantityIntoExistingLine(t *testing.T) {
	store := newTestStore(t, newStubRemote(), &stubGuest{})
	ctx := context.Background()

	store.Add(ctx, line("p1", "v1", 2))
	store.Add(ctx, line("p1", "v1", 3))

	snap := store.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assert.Equal(t, 5, snap.TotalQuantity)
}

func TestAddRejectsUnusableLines(t *testing.T) {
	store := newTestStore(t, newStubRemote(), &stubGuest{})
	ctx := context.Background()

	assert.False(t, store.Add(ctx, Item{ProductID: "", VariantID: "v1", Quantity: 1}))
	assert.False(t, store.Add(ctx, line("p1", "v1", 0)))
	assert.True(t, store.IsEmpty())
}

func TestUpdateQuantityZeroOrNegativeRemovesLine(t *testing.T) {
	store := newTestStore(t, newStubRemote(), &stubGuest{})
	ctx := context.Background()

	store.Add(ctx, line("p1", "v1", 2))
	store.Add(ctx, line("p2", "v1", 2))

	assert.True(t, store.UpdateQuantity(ctx, "p1", "v1", 0))
	assert.True(t, store.UpdateQuantity(ctx, "p2", "v1", -3))
	assert.True(t, store.IsEmpty())
}

func TestNewStoreHydratesFromGuestStorage(t *testing.T) {
	guest := &stubGuest{items: []Item{line("p1", "v1", 2)}}
	store := newTestStore(t, newStubRemote(), guest)

	snap := store.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "p1", snap.Items[0].ProductID)
}

func TestNewStorePurgesExpiredGuestState(t *testing.T) {
	guest := &stubGuest{items: []Item{line("p1", "v1", 2)}, expired: true}
	store := newTestStore(t, newStubRemote(), guest)

	assert.True(t, store.IsEmpty())
	assert.True(t, guest.purged)
}

func TestLoginMergesGuestCartIntoAccount(t *testing.T) {
	remote := newStubRemote()
	ctx := context.Background()
	require.NoError(t, remote.Upsert(ctx, 7, line("p1", "v1", 2)))
	require.NoError(t, remote.Upsert(ctx, 7, line("p2", "v1", 1)))

	guest := &stubGuest{items: []Item{line("p1", "v1", 5), line("p3", "v1", 1)}}
	store := newTestStore(t, remote, guest)

	require.NoError(t, store.Login(ctx, 7))

	snap := store.Snapshot()
	byKey := map[string]Item{}
	for _, item := range snap.Items {
		byKey[item.Key()] = item
	}
	assert.Equal(t, 5, byKey["p1::v1"].Quantity, "larger guest quantity wins")
	assert.Equal(t, 1, byKey["p2::v1"].Quantity)
	assert.Equal(t, 1, byKey["p3::v1"].Quantity, "guest-only line appended")

	assert.True(t, guest.purged, "guest storage purged after merge")
	assert.True(t, store.Authenticated())

	persisted, err := remote.FetchAll(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, persisted, 3)
}

func TestLoginDropsUnsellableLinesBeforeCommit(t *testing.T) {
	remote := newStubRemote()
	ctx := context.Background()
	require.NoError(t, remote.Upsert(ctx, 7, line("dead", "v1", 1)))

	guest := &stubGuest{items: []Item{line("p1", "v1", 2)}}
	store, err := NewStore(ctx, StoreParams{
		DeviceID: "device-1",
		Remote:   remote,
		Guest:    guest,
		Validate: func(_ context.Context, items []Item) []Item {
			kept := make([]Item, 0, len(items))
			for _, item := range items {
				if item.ProductID != "dead" {
					kept = append(kept, item)
				}
			}
			return kept
		},
		SyncInterval: time.Hour,
	})
	require.NoError(t, err)
	t.Cleanup(store.Close)

	require.NoError(t, store.Login(ctx, 7))

	snap := store.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "p1", snap.Items[0].ProductID)

	persisted, err := remote.FetchAll(ctx, 7)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, "p1", persisted[0].ProductID, "pruned line must not reach the account cart")
}

func TestLoginSurvivesRemoteFetchFailure(t *testing.T) {
	remote := newStubRemote()
	remote.fetchErr = errors.New("db down")

	guest := &stubGuest{items: []Item{line("p1", "v1", 2)}}
	store := newTestStore(t, remote, guest)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, 7))

	snap := store.Snapshot()
	require.Equal(t, 1, snap.Count)
	assert.Equal(t, "p1", snap.Items[0].ProductID)
}

func TestSyncSkipsWhenFingerprintUnchanged(t *testing.T) {
	remote := newStubRemote()
	store := newTestStore(t, remote, &stubGuest{})
	ctx := context.Background()

	store.Add(ctx, line("p1", "v1", 2))
	require.NoError(t, store.Login(ctx, 7))
	callsAfterLogin := remote.calls()

	require.NoError(t, store.Sync(ctx))
	assert.Equal(t, callsAfterLogin, remote.calls(), "unchanged cart must not reconcile")

	// a landed write-through advances the fingerprint, so the next
	// periodic run stays a no-op as well
	store.Add(ctx, line("p2", "v1", 1))
	require.NoError(t, store.Sync(ctx))
	assert.Equal(t, callsAfterLogin, remote.calls())

	persisted, err := remote.FetchAll(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, persisted, 2, "write-through already persisted the new line")
}

func TestSyncRepairsAfterFailedWriteThrough(t *testing.T) {
	remote := newStubRemote()
	store := newTestStore(t, remote, &stubGuest{})
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, 7))
	callsAfterLogin := remote.calls()

	remote.mu.Lock()
	remote.upsertErr = errors.New("write refused")
	remote.mu.Unlock()

	assert.True(t, store.Add(ctx, line("p1", "v1", 2)), "mutation commits in memory despite write failure")
	assert.Error(t, store.Err())

	remote.mu.Lock()
	remote.upsertErr = nil
	remote.mu.Unlock()

	require.NoError(t, store.Sync(ctx))
	assert.Greater(t, remote.calls(), callsAfterLogin, "stale fingerprint must force a reconcile")

	persisted, err := remote.FetchAll(ctx, 7)
	require.NoError(t, err)
	require.Len(t, persisted, 1)
	assert.Equal(t, 2, persisted[0].Quantity)
}

func TestSyncFailureKeepsFingerprintForRetry(t *testing.T) {
	remote := newStubRemote()
	store := newTestStore(t, remote, &stubGuest{})
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, 7))

	store.Add(ctx, line("p1", "v1", 2))
	remote.mu.Lock()
	remote.reconcileErr = errors.New("write refused")
	remote.mu.Unlock()

	require.Error(t, store.Sync(ctx))
	assert.Error(t, store.Err())

	remote.mu.Lock()
	remote.reconcileErr = nil
	remote.mu.Unlock()

	require.NoError(t, store.Sync(ctx), "failed sync must retry on the next trigger")

	persisted, err := remote.FetchAll(ctx, 7)
	require.NoError(t, err)
	assert.Len(t, persisted, 1)
}

func TestLogoutPersistsGuestBaseline(t *testing.T) {
	remote := newStubRemote()
	guest := &stubGuest{}
	store := newTestStore(t, remote, guest)
	ctx := context.Background()

	require.NoError(t, store.Login(ctx, 7))
	store.Add(ctx, line("p1", "v1", 2))

	store.Logout(ctx)

	assert.False(t, store.Authenticated())
	saved := guest.Load(ctx, "device-1")
	require.Len(t, saved, 1)
	assert.Equal(t, "p1", saved[0].ProductID)
}

func TestSubscribersSeeEveryCommittedMutation(t *testing.T) {
	store := newTestStore(t, newStubRemote(), &stubGuest{})
	ctx := context.Background()

	var snaps []Snapshot
	unsubscribe := store.Subscribe(func(snap Snapshot) {
		snaps = append(snaps, snap)
	})

	store.Add(ctx, line("p1", "v1", 2))
	store.UpdateQuantity(ctx, "p1", "v1", 4)
	store.Remove(ctx, "p1", "v1")

	require.Len(t, snaps, 3)
	assert.Equal(t, 2, snaps[0].TotalQuantity)
	assert.Equal(t, 4, snaps[1].TotalQuantity)
	assert.Equal(t, 0, snaps[2].Count)

	unsubscribe()
	store.Add(ctx, line("p2", "v1", 1))
	assert.Len(t, snaps, 3, "unsubscribed callback must not fire")
}
