package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/logging"
	"github.com/dmitrijs2005/containeer/internal/server/authz"
	"github.com/dmitrijs2005/containeer/internal/server/config"
	"github.com/dmitrijs2005/containeer/internal/server/metrics"
	"github.com/dmitrijs2005/containeer/internal/server/models"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/blake2b"
)

// refreshTokenBytes is the entropy of an opaque refresh token.
const refreshTokenBytes = 32

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// UserService provides the session lifecycle:
//   - Login: exchange a Google ID token for a TokenPair
//   - Refresh: rotate a refresh token
//   - Logout: revoke the presented credential
//   - Authenticate: resolve a bearer credential to a Principal
type UserService struct {
	verifier   IdentityVerifier
	issuer     SessionIssuer
	directory  UserDirectory
	logger     logging.Logger
	metrics    *metrics.Metrics
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewUserService wires a UserService. m may be nil.
func NewUserService(v IdentityVerifier, iss SessionIssuer, d UserDirectory, cfg *config.Config, logger logging.Logger, m *metrics.Metrics) *UserService {
	return &UserService{
		verifier:   v,
		issuer:     iss,
		directory:  d,
		logger:     logger.With("module", "users"),
		metrics:    m,
		accessTTL:  cfg.AccessTokenValidityDuration,
		refreshTTL: cfg.RefreshTokenValidityDuration,
		now:        time.Now,
	}
}

// Login verifies idToken, reconciles the user and mints a TokenPair.
func (s *UserService) Login(ctx context.Context, idToken string) (pair *TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "UserService.Login")
	defer func() { endSpan(span, err) }()
	defer func() { s.metrics.ObserveLogin(loginOutcome(err)) }()

	claims, err := s.verifier.Verify(ctx, idToken)
	if err != nil {
		s.logger.Info(ctx, "identity token rejected", "error", err)
		return nil, err
	}

	user, err := s.directory.GetOrCreate(ctx, claims.Subject, claims.Email)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int64("user.id", user.ID))

	if !user.IsActive {
		return nil, common.ErrAccountInactive
	}
	return s.issuePair(ctx, user)
}

// Refresh consumes refreshToken and returns a new TokenPair. A token can be
// used once; replaying it yields common.ErrorUnauthorized.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (pair *TokenPair, err error) {
	ctx, span := tracer.Start(ctx, "UserService.Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil, common.ErrorUnauthorized
	}

	next, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token: %v", common.ErrorInternal, err)
	}

	now := s.now()
	user, err := s.directory.RotateRefreshToken(ctx, hashRefreshToken(refreshToken), hashRefreshToken(next), now, now.Add(s.refreshTTL))
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, common.ErrAccountInactive
	}

	access, err := s.issuer.Issue(user.Email, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: access token: %v", common.ErrorInternal, err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: next, ExpiresIn: s.accessTTL}, nil
}

// Logout revokes the caller's access token and, when given, its refresh
// token.
func (s *UserService) Logout(ctx context.Context, p *Principal, refreshToken string) (err error) {
	ctx, span := tracer.Start(ctx, "UserService.Logout")
	defer func() { endSpan(span, err) }()

	if err := s.issuer.Revoke(ctx, p.Claims); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	if refreshToken != "" {
		if err := s.directory.RevokeRefreshToken(ctx, hashRefreshToken(refreshToken)); err != nil {
			return fmt.Errorf("revoke refresh token: %w", err)
		}
	}
	s.logger.Info(ctx, "user logged out", "user_id", p.User.ID)
	return nil
}

// Authenticate validates a bearer credential and loads its user. Users that
// no longer exist are unauthorized; deactivated ones get
// common.ErrAccountInactive even with an unexpired credential.
func (s *UserService) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := s.issuer.Validate(ctx, token)
	if err != nil {
		return nil, err
	}

	user, err := s.directory.FindByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorUnauthorized
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return nil, common.ErrAccountInactive
	}
	return &Principal{User: user, Claims: claims}, nil
}

// ListUsers returns every user to an admin caller.
func (s *UserService) ListUsers(ctx context.Context, caller *models.User) (users []*models.User, err error) {
	ctx, span := tracer.Start(ctx, "UserService.ListUsers")
	defer func() { endSpan(span, err) }()

	if err := authz.RequireAdmin(caller); err != nil {
		return nil, err
	}
	return s.directory.ListAll(ctx)
}

func (s *UserService) issuePair(ctx context.Context, user *models.User) (*TokenPair, error) {
	access, err := s.issuer.Issue(user.Email, s.accessTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: access token: %v", common.ErrorInternal, err)
	}
	refresh, err := common.MakeRandHexString(refreshTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token: %v", common.ErrorInternal, err)
	}
	if err := s.directory.StoreRefreshToken(ctx, user.ID, hashRefreshToken(refresh), s.now().Add(s.refreshTTL)); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: s.accessTTL}, nil
}

func hashRefreshToken(token string) []byte {
	sum := blake2b.Sum256([]byte(token))
	return sum[:]
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, common.ErrUntrustedIssuer):
		return "untrusted_issuer"
	case errors.Is(err, common.ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, common.ErrAccountInactive):
		return "inactive"
	case errors.Is(err, common.ErrEmailTaken):
		return "email_taken"
	default:
		return "error"
	}
}
