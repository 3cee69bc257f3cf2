// Package directory reconciles verified identities into local user records
// and persists file records and refresh token digests. Every call runs on a
// scoped dbx.DBTX handle under a bounded timeout.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/dbx"
	"github.com/dmitrijs2005/containeer/internal/logging"
	"github.com/dmitrijs2005/containeer/internal/server/models"
	"github.com/dmitrijs2005/containeer/internal/server/repositories/repomanager"
)

// maxCreateAttempts bounds the insert/re-read loop in GetOrCreate.
const maxCreateAttempts = 3

// Directory is the persistence capability used by the workflows.
type Directory struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	timeout     time.Duration
	logger      logging.Logger
}

func New(db *sql.DB, m repomanager.RepositoryManager, timeout time.Duration, logger logging.Logger) *Directory {
	return &Directory{
		db:          db,
		repomanager: m,
		timeout:     timeout,
		logger:      logger.With("module", "directory"),
	}
}

func (d *Directory) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d.timeout)
}

// GetOrCreate returns the user bound to subjectID, creating an active
// non-admin user with the given email when none exists. Concurrent callers
// for the same subject converge on one row: the loser of the insert race
// re-reads the winner. An email owned by a different subject yields
// common.ErrEmailTaken.
func (d *Directory) GetOrCreate(ctx context.Context, subjectID, email string) (*models.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	repo := d.repomanager.Users(d.db)

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		u, err := repo.GetByGoogleID(ctx, subjectID)
		if err == nil {
			return u, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("lookup user: %w", err)
		}

		u, err = repo.CreateIfAbsent(ctx, &models.User{Email: email, GoogleID: subjectID, IsActive: true})
		switch {
		case err == nil:
			d.logger.Info(ctx, "user created", "user_id", u.ID)
			return u, nil
		case errors.Is(err, common.ErrorAlreadyExists):
			d.logger.Debug(ctx, "concurrent user creation, re-reading", "attempt", attempt)
			continue
		case errors.Is(err, common.ErrEmailTaken):
			return nil, err
		default:
			return nil, fmt.Errorf("create user: %w", err)
		}
	}
	return nil, fmt.Errorf("create user: gave up after %d attempts: %w", maxCreateAttempts, common.ErrorInternal)
}

// FindByEmail returns the user with the given email or common.ErrorNotFound.
func (d *Directory) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.repomanager.Users(d.db).GetByEmail(ctx, email)
}

// ListAll returns every user ordered by id.
func (d *Directory) ListAll(ctx context.Context) ([]*models.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.repomanager.Users(d.db).List(ctx)
}

func (d *Directory) CreateFile(ctx context.Context, file *models.File) (*models.File, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.repomanager.Files(d.db).Create(ctx, file)
}

// GetFile returns the file record or common.ErrorNotFound.
func (d *Directory) GetFile(ctx context.Context, id int64) (*models.File, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.repomanager.Files(d.db).GetByID(ctx, id)
}

func (d *Directory) DeleteFile(ctx context.Context, id int64) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.repomanager.Files(d.db).Delete(ctx, id)
}

// StoreRefreshToken persists the digest of a freshly issued refresh token.
func (d *Directory) StoreRefreshToken(ctx context.Context, userID int64, hash []byte, expires time.Time) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	return d.repomanager.RefreshTokens(d.db).Create(ctx, userID, hash, expires)
}

// RotateRefreshToken consumes oldHash and stores newHash for the same user in
// one transaction, returning that user. An unknown or already consumed digest
// yields common.ErrorUnauthorized; one past its expiry at now yields
// common.ErrRefreshTokenExpired.
func (d *Directory) RotateRefreshToken(ctx context.Context, oldHash, newHash []byte, now, expires time.Time) (*models.User, error) {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()

	var user *models.User
	err := dbx.WithTx(ctx, d.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		tokens := d.repomanager.RefreshTokens(tx)

		rt, err := tokens.Find(ctx, oldHash)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("find refresh token: %w", err)
		}
		if !now.Before(rt.Expires) {
			return common.ErrRefreshTokenExpired
		}
		if err := tokens.Delete(ctx, oldHash); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return common.ErrorUnauthorized
			}
			return fmt.Errorf("consume refresh token: %w", err)
		}

		user, err = d.repomanager.Users(tx).GetByID(ctx, rt.UserID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if err := tokens.Create(ctx, rt.UserID, newHash, expires); err != nil {
			return fmt.Errorf("store refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// RevokeRefreshToken drops a digest. Unknown digests are ignored.
func (d *Directory) RevokeRefreshToken(ctx context.Context, hash []byte) error {
	ctx, cancel := d.withTimeout(ctx)
	defer cancel()
	if err := d.repomanager.RefreshTokens(d.db).Delete(ctx, hash); err != nil && !errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return nil
}
