package users

import (
	"context"

	"github.com/dmitrijs2005/containeer/internal/server/models"
)

type Repository interface {
	// CreateIfAbsent inserts a user for googleID. It returns
	// common.ErrorAlreadyExists when a row for googleID already exists and
	// common.ErrEmailTaken when another identity owns the email.
	CreateIfAbsent(ctx context.Context, user *models.User) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
	GetByGoogleID(ctx context.Context, googleID string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
}
