// Package statetoken signs the OAuth state parameter so the callback leg can
// verify it issued the redirect.
package statetoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var ErrInvalidState = errors.New("invalid state token")

type Claims struct {
	Platform string `json:"platform"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	ttl    time.Duration
}

func NewIssuer(secret string) *Issuer {
	return &Issuer{
		secret: []byte(secret),
		ttl:    10 * time.Minute,
	}
}

// Issue returns a signed state token bound to platform. Each token carries a
// unique id, so replays of one callback URL are distinguishable upstream.
func (i *Issuer) Issue(platform string) (string, error) {
	now := time.Now()
	claims := &Claims{
		Platform: platform,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Verify checks signature and expiry and that the token was issued for
// platform.
func (i *Issuer) Verify(tokenStr, platform string) error {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidState
		}
		return i.secret, nil
	})
	if err != nil {
		return ErrInvalidState
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Platform != platform {
		return ErrInvalidState
	}
	return nil
}
