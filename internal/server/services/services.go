// Package services sequences the login and file workflows over the identity
// verifier, session issuer, directory and broker.
package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/containeer/internal/server/auth"
	"github.com/dmitrijs2005/containeer/internal/server/identity"
	"github.com/dmitrijs2005/containeer/internal/server/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/dmitrijs2005/containeer/internal/server/services")

type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*identity.Claims, error)
}

type SessionIssuer interface {
	Issue(email string, ttl time.Duration) (string, error)
	Validate(ctx context.Context, token string) (*auth.Claims, error)
	Revoke(ctx context.Context, c *auth.Claims) error
}

type UserDirectory interface {
	GetOrCreate(ctx context.Context, subjectID, email string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	ListAll(ctx context.Context) ([]*models.User, error)
	StoreRefreshToken(ctx context.Context, userID int64, hash []byte, expires time.Time) error
	RotateRefreshToken(ctx context.Context, oldHash, newHash []byte, now, expires time.Time) (*models.User, error)
	RevokeRefreshToken(ctx context.Context, hash []byte) error
}

type FileDirectory interface {
	CreateFile(ctx context.Context, file *models.File) (*models.File, error)
	GetFile(ctx context.Context, id int64) (*models.File, error)
	DeleteFile(ctx context.Context, id int64) error
}

type ResourceBroker interface {
	Store(ctx context.Context, data []byte, filename string) (string, error)
	IssueReadGrant(ctx context.Context, storageKey string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, storageKey string) error
}

// Principal is an authenticated caller: the validated session claims and the
// user they resolve to.
type Principal struct {
	User   *models.User
	Claims *auth.Claims
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
