// Package identity verifies Google ID tokens presented at login.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/dmitrijs2005/containeer/internal/common"
)

// GoogleJWKSURL is where Google publishes its ID token signing keys.
const GoogleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"

// trustedIssuers are the issuer strings Google puts in its ID tokens.
var trustedIssuers = map[string]struct{}{
	"accounts.google.com":         {},
	"https://accounts.google.com": {},
}

// Claims is the verified subset of an ID token.
type Claims struct {
	Subject string
	Email   string
	Issuer  string
}

type Verifier struct {
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
}

// NewVerifier builds a Verifier over keySet. now may be nil to use the wall
// clock. The issuer is checked against the allow-set after verification since
// Google uses two spellings of it.
func NewVerifier(keySet oidc.KeySet, clientID string, now func() time.Time, timeout time.Duration) *Verifier {
	cfg := &oidc.Config{
		ClientID:        clientID,
		SkipIssuerCheck: true,
		Now:             now,
	}
	return &Verifier{
		verifier: oidc.NewVerifier("", keySet, cfg),
		timeout:  timeout,
	}
}

// NewRemoteVerifier fetches and caches the signing keys from jwksURL.
// ctx bounds the lifetime of background key refreshes.
func NewRemoteVerifier(ctx context.Context, jwksURL, clientID string, timeout time.Duration) *Verifier {
	if jwksURL == "" {
		jwksURL = GoogleJWKSURL
	}
	return NewVerifier(oidc.NewRemoteKeySet(ctx, jwksURL), clientID, nil, timeout)
}

// Verify checks the signature, expiry and audience of rawToken, then its
// issuer. It fails with common.ErrUntrustedIssuer when an otherwise valid
// token comes from an issuer outside the allow-set, and with
// common.ErrInvalidToken on everything else.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if _, ok := trustedIssuers[tok.Issuer]; !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUntrustedIssuer, tok.Issuer)
	}

	var extra struct {
		Email string `json:"email"`
	}
	if err := tok.Claims(&extra); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if tok.Subject == "" || extra.Email == "" {
		return nil, fmt.Errorf("%w: missing subject or email", common.ErrInvalidToken)
	}

	return &Claims{Subject: tok.Subject, Email: extra.Email, Issuer: tok.Issuer}, nil
}
