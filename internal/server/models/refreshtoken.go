package models

import "time"

// RefreshToken is a stored refresh credential. Only the digest of the opaque
// token is persisted.
type RefreshToken struct {
	ID        int64
	UserID    int64
	TokenHash []byte
	Expires   time.Time
	CreatedAt time.Time
}
