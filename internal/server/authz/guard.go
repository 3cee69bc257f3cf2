// Package authz holds the owner-or-admin access policy.
package authz

import (
	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/server/models"
)

// Check allows the caller to act on a resource it owns, or on any resource
// when it is an admin. Everything else, including a nil caller, is
// common.ErrForbidden.
func Check(caller *models.User, resourceOwnerID int64) error {
	if caller == nil {
		return common.ErrForbidden
	}
	if caller.ID == resourceOwnerID || caller.IsAdmin {
		return nil
	}
	return common.ErrForbidden
}

// RequireAdmin allows admins only.
func RequireAdmin(caller *models.User) error {
	if caller == nil || !caller.IsAdmin {
		return common.ErrForbidden
	}
	return nil
}
