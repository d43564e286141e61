package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RedisLease serializes configuration writes across processes using a
// short-lived SETNX lock per tenant key. The TTL bounds how long a crashed
// holder can block other writers.
type RedisLease struct {
	client *Client
	ttl    time.Duration
}

func NewRedisLease(client *Client, ttl time.Duration) *RedisLease {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLease{client: client, ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context, key string) (func(), error) {
	lockKey := "lease:" + key
	token := uuid.New().String()

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lease %s: %w", key, err)
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		// Only delete the lock if we still hold it; an expired lease may
		// already belong to another writer.
		if current, err := l.client.GetString(ctx, lockKey); err == nil && current == token {
			l.client.Delete(ctx, lockKey)
		}
	}
	return release, nil
}

// LocalLease is the in-process fallback used when no Redis is configured.
// It only serializes writers within one process, which matches the
// single-instance dev setup.
type LocalLease struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLease() *LocalLease {
	return &LocalLease{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLease) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	lock, ok := l.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[key] = lock
	}
	l.mu.Unlock()

	lock.Lock()
	return lock.Unlock, nil
}
