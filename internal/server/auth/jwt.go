// Package auth mints and validates the HMAC-signed session tokens handed out
// after login.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/containeer/internal/common"
	"github.com/dmitrijs2005/containeer/internal/server/denylist"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims are the validated contents of a session token.
type Claims struct {
	Email     string
	ID        string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// sessionClaims carries the exact expiry in nanoseconds next to the
// whole-second exp, which is rounded up so it never ends the session early.
type sessionClaims struct {
	jwt.RegisteredClaims
	ExpiresAtNano int64 `json:"exp_ns,omitempty"`
}

type Issuer struct {
	secret     []byte
	method     jwt.SigningMethod
	defaultTTL time.Duration
	denylist   denylist.Denylist
	now        func() time.Time
}

// NewIssuer builds an Issuer for one of HS256, HS384 or HS512. now may be nil
// to use the wall clock.
func NewIssuer(secret []byte, algorithm string, defaultTTL time.Duration, dl denylist.Denylist, now func() time.Time) (*Issuer, error) {
	var method jwt.SigningMethod
	switch algorithm {
	case "HS256":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported signing algorithm %q", algorithm)
	}
	if len(secret) == 0 {
		return nil, errors.New("empty signing secret")
	}
	if now == nil {
		now = time.Now
	}
	if dl == nil {
		dl = denylist.NewMemory(now)
	}
	return &Issuer{secret: secret, method: method, defaultTTL: defaultTTL, denylist: dl, now: now}, nil
}

// DefaultTTL is the lifetime used when Issue is called with ttl <= 0.
func (i *Issuer) DefaultTTL() time.Duration { return i.defaultTTL }

// Issue mints a token for email valid for ttl, or for the default lifetime
// when ttl <= 0.
func (i *Issuer) Issue(email string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.defaultTTL
	}
	now := i.now()
	expires := now.Add(ttl)
	token := jwt.NewWithClaims(i.method, sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ExpiresAt: jwt.NewNumericDate(expires.Add(time.Second - time.Nanosecond)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
		ExpiresAtNano: expires.UnixNano(),
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Validate checks signature, algorithm and expiry, then the denylist. A token
// issued at T with lifetime d is valid for every instant before T+d.
func (i *Issuer) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	sc := &sessionClaims{}

	_, err := jwt.ParseWithClaims(tokenString, sc, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{i.method.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, mapParseError(err)
	}
	rc := &sc.RegisteredClaims
	if rc.Subject == "" || rc.ID == "" || rc.ExpiresAt == nil || sc.ExpiresAtNano == 0 {
		return nil, common.ErrMalformedToken
	}
	expires := time.Unix(0, sc.ExpiresAtNano)
	if !i.now().Before(expires) {
		return nil, common.ErrTokenExpired
	}

	revoked, err := i.denylist.Contains(ctx, rc.ID)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, common.ErrTokenRevoked
	}

	c := &Claims{Email: rc.Subject, ID: rc.ID, ExpiresAt: expires}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	return c, nil
}

// Revoke denylists the token for the rest of its lifetime.
func (i *Issuer) Revoke(ctx context.Context, c *Claims) error {
	return i.denylist.Add(ctx, c.ID, c.ExpiresAt)
}

func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return common.ErrMalformedToken
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	default:
		return common.ErrMalformedToken
	}
}
