package port

import (
	"time"

	"github.com/rl1809/bookshelf/internal/core/domain"
)

type TokenIssuer interface {
	Issue(id domain.Identity) (string, error)

	// Verify checks signature and expiry and returns the embedded identity
	Verify(token string) (domain.Identity, error)

	TTL() time.Duration
}

type PasswordHasher interface {
	Hash(password string) (string, error)

	// Compare reports whether password matches hash
	Compare(hash, password string) bool
}
