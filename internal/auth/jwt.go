// Package auth turns a GitHub login into a coderover session credential and
// checks that credential on every request.
//
// CREDENTIAL LIFECYCLE:
//  1. /auth/github/login redirects to GitHub (oauth.go)
//  2. GitHub calls back; the code is exchanged for an Identity + provider token
//  3. service.AuthService builds Claims from the Identity and asks Codec to sign them
//  4. The signed JWT goes back to the browser in the access_token cookie (cookie.go)
//  5. OptionalAuth and Authenticate (middleware.go) verify the cookie and put a
//     Principal in the request context
//
// The credential is self-contained: any process holding the same secret can
// verify it, and nothing about it is stored server-side.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sakif/coderover/internal/apperror"
)

// Issuer is written into and required on every credential.
const Issuer = "coderover"

// Claims is the credential payload.
//
// Roles are stored exactly as the identity provider reported them. The
// ROLE_ prefix is added only when the filter builds a Principal, never here.
type Claims struct {
	Name    string   `json:"name,omitempty"`
	Email   string   `json:"email,omitempty"`
	Roles   []string `json:"roles"`
	Picture string   `json:"picture,omitempty"`
	jwt.RegisteredClaims
}

// Codec signs and verifies Claims with an HMAC-SHA256 key.
//
// The key is fixed at construction and only read afterwards, so a single
// Codec is safe to share across goroutines.
type Codec struct {
	key []byte
	now func() time.Time
}

// CodecOption customises a Codec.
type CodecOption func(*Codec)

// WithClock replaces time.Now. Tests use it to move across the expiry edge.
func WithClock(now func() time.Time) CodecOption {
	return func(c *Codec) { c.now = now }
}

// NewCodec derives the signing key from secret.
func NewCodec(secret string, opts ...CodecOption) (*Codec, error) {
	if len(secret) < 16 {
		return nil, errors.New("auth: JWT secret must be at least 16 characters")
	}
	c := &Codec{key: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Sign stamps issued-at and expiry (now + ttl) onto a copy of claims and
// returns the compact JWS.
func (c *Codec) Sign(claims Claims, ttl time.Duration) (string, error) {
	if claims.Subject == "" {
		return "", errors.New("auth: claims subject must not be empty")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("auth: credential ttl must be positive, got %s", ttl)
	}

	now := c.now()
	claims.Issuer = Issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	if claims.Roles == nil {
		claims.Roles = []string{}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, issuer and expiry and returns the embedded claims.
//
// Failures come back as *apperror.AppError:
//   - apperror.ErrCredentialExpired when now >= exp
//   - apperror.ErrCredentialInvalid for bad signatures, unparseable input,
//     wrong algorithm or issuer, and tokens without a subject
//
// A Codec without a key (the zero value) fails with a plain error instead:
// that is a server fault, not a bad credential.
//
// Verify never extends or refreshes the expiry.
func (c *Codec) Verify(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			if len(c.key) == 0 {
				return nil, jwt.ErrInvalidKey
			}
			return c.key, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrInvalidKey), errors.Is(err, jwt.ErrHashUnavailable):
			return nil, fmt.Errorf("auth: verifying credential: %w", err)
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperror.CredentialExpired()
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, apperror.CredentialInvalid("malformed token")
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, apperror.CredentialInvalid("signature invalid")
		default:
			return nil, apperror.CredentialInvalid(err.Error())
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperror.CredentialInvalid("unexpected claims")
	}
	if claims.Subject == "" {
		return nil, apperror.CredentialInvalid("token has no subject")
	}
	return claims, nil
}
