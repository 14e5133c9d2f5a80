package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"     // secure random number generation
	"encoding/base64" // refresh tokens travel as base64 text
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"
)

// refreshTokenBytes is the amount of randomness in a refresh token (256 bits).
const refreshTokenBytes = 32

var (
	// ErrSigningKeyMissing is returned by NewTokenIssuer when no secret is configured.
	ErrSigningKeyMissing = errors.New("token signing key is not configured")
	// ErrInvalidAccessToken is the only error VerifyAccess reports.  The
	// wrapped cause is for internal logs and must not reach a client.
	ErrInvalidAccessToken = errors.New("invalid access token")
)

// AccessClaims is the claim-set carried by an access token.  Subject holds
// the user id, ID holds the unique token id (jti).
type AccessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// AccessToken represents a signed JWT access token along with its expiry.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived opaque token used to obtain new
// access tokens.  It has no structure; it is purely a lookup key.
type RefreshToken struct {
	Raw string    // raw token string returned to the client
	Exp time.Time // UTC expiration time
}

// TokenIssuer mints HS256 access tokens and random refresh tokens.
type TokenIssuer struct {
	secret     []byte
	issuer     string
	audience   string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// IssuerOption customizes a TokenIssuer.
type IssuerOption func(*TokenIssuer)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *TokenIssuer) { i.now = now }
}

// NewTokenIssuer builds an issuer.  A missing secret is a startup error, not
// a per-request one.
func NewTokenIssuer(secret, issuer, audience string, accessTTL, refreshTTL time.Duration, opts ...IssuerOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, ErrSigningKeyMissing
	}
	i := &TokenIssuer{
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// Now returns the issuer's current time.
func (i *TokenIssuer) Now() time.Time { return i.now() }

// RefreshTTL returns the lifetime given to refresh tokens.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess builds and signs an HS256 JWT for a user.  The JWT carries
// sub, email, jti, iss, aud, iat and exp.
func (i *TokenIssuer) IssueAccess(userID uint64, email string) (AccessToken, error) {
	now := i.now()
	exp := now.Add(i.accessTTL)
	claims := AccessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprint(userID),
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: claims.ExpiresAt.Time}, nil
}

// IssueRefresh returns 256 bits of secure randomness as base64 text along
// with the expiry the caller must persist next to it.
func (i *TokenIssuer) IssueRefresh() (RefreshToken, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: base64.StdEncoding.EncodeToString(buf),
		Exp: i.now().Add(i.refreshTTL),
	}, nil
}

// VerifyAccess checks signature, algorithm, issuer, audience and expiry with
// zero leeway.  A token whose exp equals the current second is expired.
// Every failure is reported as ErrInvalidAccessToken.
func (i *TokenIssuer) VerifyAccess(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.issuer),
		jwt.WithAudience(i.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidAccessToken, err)
	}
	if !tok.Valid || claims.Subject == "" {
		return nil, ErrInvalidAccessToken
	}
	return claims, nil
}
