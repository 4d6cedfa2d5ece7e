package provision

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker provides best-effort per-identity mutual exclusion around wallet
// creation. It only reduces duplicate backend calls; the store's conditional
// write remains the correctness guarantee, so lock loss is never fatal.
type Locker interface {
	// TryLock attempts to take the named lock without blocking. On success it
	// returns a release func and true.
	TryLock(ctx context.Context, key string) (func(), bool)
}

const lockPrefix = "provision:lock:"

type redisLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisLocker builds a Locker on redis SETNX with a TTL guarding against
// stranded locks. Redis outages fail open: provisioning proceeds and relies
// on the store-level conditional write.
func NewRedisLocker(client *redis.Client, ttl time.Duration) Locker {
	return &redisLocker{client: client, ttl: ttl}
}

func (l *redisLocker) TryLock(ctx context.Context, key string) (func(), bool) {
	token := uuid.NewString()
	full := lockPrefix + key

	ok, err := l.client.SetNX(ctx, full, token, l.ttl).Result()
	if err != nil {
		return func() {}, true // fail open
	}
	if !ok {
		return nil, false
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Only delete our own lock; an expired lock may have been re-taken.
		if v, err := l.client.Get(ctx, full).Result(); err == nil && v == token {
			l.client.Del(ctx, full)
		}
	}
	return release, true
}

type localLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker builds an in-process Locker for tests and single-instance
// dev deployments without redis.
func NewLocalLocker() Locker {
	return &localLocker{held: make(map[string]struct{})}
}

func (l *localLocker) TryLock(_ context.Context, key string) (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, taken := l.held[key]; taken {
		return nil, false
	}
	l.held[key] = struct{}{}
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
	}, true
}
