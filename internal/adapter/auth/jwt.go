// Package auth holds the credential primitives behind the authentication
// gate: HS256 JWT tokens carrying the caller's id and role, and bcrypt
// password hashes.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/rl1809/bookshelf/internal/core/domain"
	"github.com/rl1809/bookshelf/internal/port"
)

// MinSecretLength is the shortest HS256 secret accepted.
const MinSecretLength = 32

var (
	ErrSecretTooShort = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	ErrExpiredToken   = errors.New("token expired")
	ErrMissingClaim   = errors.New("missing required claim")
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

var _ port.TokenIssuer = (*JWTIssuer)(nil)

func NewJWTIssuer(secret []byte, ttl time.Duration) (*JWTIssuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &JWTIssuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

func (j *JWTIssuer) TTL() time.Duration {
	return j.ttl
}

func (j *JWTIssuer) Issue(id domain.Identity) (string, error) {
	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	})
	return token.SignedString(j.secret)
}

func (j *JWTIssuer) Verify(tokenString string) (domain.Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Identity{}, ErrExpiredToken
		}
		return domain.Identity{}, err
	}

	if c.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if c.Role == "" {
		return domain.Identity{}, fmt.Errorf("%w: role", ErrMissingClaim)
	}
	return domain.Identity{ID: c.Subject, Role: c.Role}, nil
}
