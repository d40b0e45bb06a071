package controllers

import (
	"context"

	"github.com/pranshlabs/storefront-backend/internal/session"
	pkgerrors "github.com/pranshlabs/storefront-backend/pkg/errors"
)

// resolveSession loads the caller's device session from the registry.
func resolveSession(ctx context.Context, manager *session.Manager) (*session.Session, session.Identity, error) {
	id, ok := session.FromContext(ctx)
	if !ok || id.DeviceID == "" {
		return nil, session.Identity{}, pkgerrors.New(pkgerrors.CodeValidation, "device identity missing")
	}
	sess, err := manager.Session(ctx, id.DeviceID)
	if err != nil {
		return nil, session.Identity{}, err
	}
	return sess, id, nil
}
