// Package localstore persists guest (unauthenticated) cart and favorites
// state in a device-keyed key/value store. Guest state is best effort: every
// operation degrades to an empty result instead of returning an error, so a
// flaky store never blocks browsing or checkout.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/pranshlabs/storefront-backend/pkg/logger"
)

// KV is the narrow key/value surface the adapter needs. Satisfied by
// pkg/redis.Client.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// KeyFunc builds the namespaced storage key for a device.
type KeyFunc func(deviceID string) string

// Config wires an adapter for one state kind (cart or favorites).
type Config[T any] struct {
	Kind   string
	Expiry time.Duration

	StateKey     KeyFunc
	TimestampKey KeyFunc

	// ValidEntry filters decoded entries. Nil keeps everything.
	ValidEntry func(T) bool

	KV     KV
	Logger *logger.Logger

	// Now is swappable for tests. Nil uses time.Now.
	Now func() time.Time
}

// Adapter reads and writes one device-scoped list of T.
type Adapter[T any] struct {
	cfg Config[T]
}

// New validates the wiring and returns an adapter.
func New[T any](cfg Config[T]) (*Adapter[T], error) {
	if cfg.KV == nil {
		return nil, fmt.Errorf("localstore: kv is required")
	}
	if cfg.Kind == "" {
		return nil, fmt.Errorf("localstore: kind is required")
	}
	if cfg.StateKey == nil || cfg.TimestampKey == nil {
		return nil, fmt.Errorf("localstore: key funcs are required")
	}
	if cfg.Expiry <= 0 {
		return nil, fmt.Errorf("localstore: expiry must be positive")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Adapter[T]{cfg: cfg}, nil
}

// Load returns the stored list for a device. A missing key, an unreadable
// payload, or a store failure all come back as an empty slice. Entries that
// fail to decode individually, or that the entry filter rejects, are dropped
// while the rest of the list survives. Reading existing state counts as
// activity, so Load refreshes the timestamp the same way Save does.
func (a *Adapter[T]) Load(ctx context.Context, deviceID string) []T {
	if deviceID == "" {
		return []T{}
	}

	raw, ok, err := a.cfg.KV.Get(ctx, a.cfg.StateKey(deviceID))
	if err != nil {
		a.warn(ctx, fmt.Sprintf("loading %s state failed: %v", a.cfg.Kind, err))
		return []T{}
	}
	if !ok || raw == "" {
		return []T{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		a.warn(ctx, fmt.Sprintf("discarding unreadable %s payload: %v", a.cfg.Kind, err))
		return []T{}
	}

	items := make([]T, 0, len(entries))
	for _, entry := range entries {
		var item T
		if err := json.Unmarshal(entry, &item); err != nil {
			a.warn(ctx, fmt.Sprintf("dropping malformed %s entry: %v", a.cfg.Kind, err))
			continue
		}
		if a.cfg.ValidEntry != nil && !a.cfg.ValidEntry(item) {
			continue
		}
		items = append(items, item)
	}
	a.Touch(ctx, deviceID)
	return items
}

// Save replaces the stored list and stamps the activity timestamp. Failures
// are logged and swallowed.
func (a *Adapter[T]) Save(ctx context.Context, deviceID string, items []T) {
	if deviceID == "" {
		return
	}
	if items == nil {
		items = []T{}
	}

	payload, err := json.Marshal(items)
	if err != nil {
		a.warn(ctx, fmt.Sprintf("encoding %s state failed: %v", a.cfg.Kind, err))
		return
	}

	ttl := a.cfg.Expiry
	if err := a.cfg.KV.Set(ctx, a.cfg.StateKey(deviceID), string(payload), ttl); err != nil {
		a.warn(ctx, fmt.Sprintf("saving %s state failed: %v", a.cfg.Kind, err))
		return
	}
	a.Touch(ctx, deviceID)
}

// Touch records the current time as the device's last activity.
func (a *Adapter[T]) Touch(ctx context.Context, deviceID string) {
	if deviceID == "" {
		return
	}
	stamp := strconv.FormatInt(a.cfg.Now().UnixMilli(), 10)
	if err := a.cfg.KV.Set(ctx, a.cfg.TimestampKey(deviceID), stamp, a.cfg.Expiry); err != nil {
		a.warn(ctx, fmt.Sprintf("stamping %s activity failed: %v", a.cfg.Kind, err))
	}
}

// LastActivity reads the stored activity timestamp. The second return is
// false when no timestamp exists or it cannot be parsed.
func (a *Adapter[T]) LastActivity(ctx context.Context, deviceID string) (time.Time, bool) {
	if deviceID == "" {
		return time.Time{}, false
	}
	raw, ok, err := a.cfg.KV.Get(ctx, a.cfg.TimestampKey(deviceID))
	if err != nil || !ok {
		return time.Time{}, false
	}
	millis, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(millis), true
}

// HasExpired reports whether the device's state is older than the expiry
// window. State with no timestamp is treated as fresh so a lost stamp never
// destroys a live list.
func (a *Adapter[T]) HasExpired(ctx context.Context, deviceID string) bool {
	last, ok := a.LastActivity(ctx, deviceID)
	if !ok {
		return false
	}
	return a.cfg.Now().Sub(last) > a.cfg.Expiry
}

// Purge removes the device's state and its activity timestamp.
func (a *Adapter[T]) Purge(ctx context.Context, deviceID string) {
	if deviceID == "" {
		return
	}
	err := a.cfg.KV.Del(ctx, a.cfg.StateKey(deviceID), a.cfg.TimestampKey(deviceID))
	if err != nil {
		a.warn(ctx, fmt.Sprintf("purging %s state failed: %v", a.cfg.Kind, err))
	}
}

// PurgeIfExpired purges only when the window has lapsed and reports whether
// it did.
func (a *Adapter[T]) PurgeIfExpired(ctx context.Context, deviceID string) bool {
	if !a.HasExpired(ctx, deviceID) {
		return false
	}
	a.Purge(ctx, deviceID)
	return true
}

func (a *Adapter[T]) warn(ctx context.Context, msg string) {
	if a.cfg.Logger == nil {
		return
	}
	a.cfg.Logger.Warn(ctx, msg)
}
