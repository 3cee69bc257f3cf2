package models

import "time"

// File describes a stored object owned by a user. The bytes live in object
// storage under StorageKey; the row exists only while the object does.
type File struct {
	ID int64
	// Filename is the user-supplied name, used for display only.
	Filename string
	// StorageKey is the opaque, server-generated object key.
	StorageKey string
	OwnerID    int64
	CreatedAt  time.Time
}
