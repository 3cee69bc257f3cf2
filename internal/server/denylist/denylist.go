// Package denylist records revoked session token ids until the tokens would
// have expired on their own.
package denylist

import (
	"context"
	"time"
)

// Denylist is consulted on every session token validation.
type Denylist interface {
	// Add revokes jti until the given instant. Entries whose instant has
	// already passed are not stored.
	Add(ctx context.Context, jti string, until time.Time) error
	Contains(ctx context.Context, jti string) (bool, error)
}
