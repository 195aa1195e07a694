// Package auth verifies bearer tokens issued by the external identity
// provider and exposes the authenticated actor id. This service never
// issues credentials of its own (Sign exists for tests and tooling).
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type Claims struct {
	ActorID string `json:"actor_id"`

	jwt.RegisteredClaims
}

// Actor resolves the opaque actor identifier: the custom claim when
// present, else the token subject.
func (c Claims) Actor() string {
	if c.ActorID != "" {
		return c.ActorID
	}
	return c.Subject
}

type Tokens struct {
	Secret   []byte
	TokenTTL time.Duration
}

func (t Tokens) Sign(claims Claims) (string, time.Time, error) {
	now := time.Now().UTC()
	if claims.IssuedAt == nil {
		claims.IssuedAt = jwt.NewNumericDate(now)
	}
	var expiresAt time.Time
	if claims.ExpiresAt == nil {
		expiresAt = now.Add(t.TokenTTL)
		claims.ExpiresAt = jwt.NewNumericDate(expiresAt)
	} else {
		expiresAt = claims.ExpiresAt.Time
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

func (t Tokens) Verify(token string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(tok *jwt.Token) (any, error) {
		if tok.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return t.Secret, nil
	})
	if err != nil {
		return Claims{}, err
	}
	c, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	return *c, nil
}
