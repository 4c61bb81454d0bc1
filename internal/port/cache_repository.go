package port

import "context"

type CacheRepository interface {
	// Lock blocks until the named lock is held or ctx is done. The returned
	// func releases it.
	Lock(ctx context.Context, key string) (unlock func(), err error)

	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// ClearIdempotency forgets a key so a failed request can be retried
	ClearIdempotency(ctx context.Context, key string) error
}
