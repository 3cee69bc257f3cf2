// Package refreshtokens declares the server-side repository contract for
// refresh token digests.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/containeer/internal/server/models"
)

// Repository stores refresh token digests. The opaque token itself never
// reaches the database.
type Repository interface {
	// Create stores a digest for userID that stops being accepted at expires.
	Create(ctx context.Context, userID int64, hash []byte, expires time.Time) error

	// Find looks up a digest and returns its metadata, or common.ErrorNotFound.
	Find(ctx context.Context, hash []byte) (*models.RefreshToken, error)

	// Delete consumes a digest. Only one caller can consume a given digest;
	// the rest get common.ErrorNotFound.
	Delete(ctx context.Context, hash []byte) error
}
