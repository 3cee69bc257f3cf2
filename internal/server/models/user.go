// Package models defines server-side data models persisted in the database.
package models

import "time"

// User is a local account reconciled from an external identity.
type User struct {
	ID        int64
	Email     string
	GoogleID  string
	IsActive  bool
	IsAdmin   bool
	CreatedAt time.Time
}
