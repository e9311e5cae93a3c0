// Package auth signs and verifies Profolio session tokens.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/profolio/profolio/internal/common"
)

// DefaultValidity is the session token lifetime when none is configured.
const DefaultValidity = 7 * 24 * time.Hour

// Identity is the verified principal carried by a token. It is never stored.
type Identity struct {
	UserID string
	Email  string
}

// Claims is the token payload: the registered claims plus uid and email.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// Issuer signs and verifies HS256 tokens with a single shared secret.
type Issuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

// NewIssuer returns an Issuer. A non-positive validity means DefaultValidity.
func NewIssuer(secret []byte, validity time.Duration) *Issuer {
	if validity <= 0 {
		validity = DefaultValidity
	}
	s := make([]byte, len(secret))
	copy(s, secret)
	return &Issuer{secret: s, validity: validity, now: time.Now}
}

// Validity returns the lifetime given to newly signed tokens.
func (i *Issuer) Validity() time.Duration {
	return i.validity
}

// Sign returns a compact JWT for id, expiring after the issuer's validity.
func (i *Issuer) Sign(id Identity) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		UserID: id.UserID,
		Email:  id.Email,
	})

	tokenString, err := token.SignedString(i.secret)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// Verify returns the identity in token, or nil and false if the token is
// malformed, signed with another key or algorithm, or expired.
func (i *Issuer) Verify(token string) (*Identity, bool) {
	id, err := i.VerifyDetailed(token)
	if err != nil {
		return nil, false
	}
	return id, true
}

// VerifyDetailed is Verify with the reason kept: common.ErrTokenExpired for
// an expired but otherwise valid token, common.ErrInvalidToken for the rest.
func (i *Issuer) VerifyDetailed(token string) (*Identity, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}

	if !parsed.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}

	return &Identity{UserID: claims.UserID, Email: claims.Email}, nil
}
