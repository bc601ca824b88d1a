// Package session checks whether an access token's session is still live.
// Sessions are created and revoked by the auth platform; this service only
// reads them.
package session

import (
	"context"
	"errors"
	"strings"
)

type sessionLookup interface {
	SessionActive(ctx context.Context, accessID string) (bool, error)
}

// AccessSessionChecker exposes the read-only surface needed by middleware.
type AccessSessionChecker interface {
	HasSession(ctx context.Context, accessID string) (bool, error)
}

type Checker struct {
	store sessionLookup
}

func NewChecker(store sessionLookup) (*Checker, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	return &Checker{store: store}, nil
}

// HasSession reports whether accessID is registered. Blank ids never are.
func (c *Checker) HasSession(ctx context.Context, accessID string) (bool, error) {
	if strings.TrimSpace(accessID) == "" {
		return false, nil
	}
	return c.store.SessionActive(ctx, accessID)
}
