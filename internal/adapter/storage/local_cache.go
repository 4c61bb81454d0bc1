package storage

import (
	"context"
	"sync"
	"time"

	"github.com/rl1809/bookshelf/internal/port"
)

// LocalCache is the single-process CacheRepository used when Redis is
// disabled: keyed mutexes plus an in-memory idempotency set.
type LocalCache struct {
	mu             sync.Mutex
	locks          map[string]*keyLock
	idempotency    map[string]time.Time
	idempotencyTTL time.Duration
	now            func() time.Time
}

type keyLock struct {
	ch   chan struct{}
	refs int
}

var _ port.CacheRepository = (*LocalCache)(nil)

func NewLocalCache(idempotencyTTL time.Duration) *LocalCache {
	return &LocalCache{
		locks:          make(map[string]*keyLock),
		idempotency:    make(map[string]time.Time),
		idempotencyTTL: idempotencyTTL,
		now:            time.Now,
	}
}

func (c *LocalCache) Lock(ctx context.Context, key string) (func(), error) {
	c.mu.Lock()
	l, ok := c.locks[key]
	if !ok {
		l = &keyLock{ch: make(chan struct{}, 1)}
		c.locks[key] = l
	}
	l.refs++
	c.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
	case <-ctx.Done():
		c.release(key, l, false)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { c.release(key, l, true) })
	}, nil
}

func (c *LocalCache) release(key string, l *keyLock, held bool) {
	if held {
		<-l.ch
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(c.locks, key)
	}
}

func (c *LocalCache) SetIdempotency(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if exp, ok := c.idempotency[key]; ok && now.Before(exp) {
		return false, nil
	}
	c.idempotency[key] = now.Add(c.idempotencyTTL)

	// opportunistic sweep keeps the map from growing without bound
	if len(c.idempotency) > 1024 {
		for k, exp := range c.idempotency {
			if !now.Before(exp) {
				delete(c.idempotency, k)
			}
		}
	}
	return true, nil
}

func (c *LocalCache) ClearIdempotency(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.idempotency, key)
	return nil
}
