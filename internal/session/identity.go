// Package session tracks who a request acts as: an authenticated profile or
// an anonymous device. It also owns the registry of live per-device state
// stores.
package session

import "context"

// Identity describes the actor behind a request. DeviceID is always present
// (the client mints one per browser); ProfileID is set only after login.
type Identity struct {
	Authenticated bool
	ProfileID     int64
	DeviceID      string
}

type identityKey struct{}

// WithIdentity attaches the resolved identity to the request context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity attached by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
