package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const defaultLeaseTTL = 30 * time.Minute

// Locker hands out per-job leases so two cron replicas never run the same job
// at once, while different jobs may still run on different replicas.
type Locker interface {
	// TryLock returns a nil Lease when another replica holds the job.
	TryLock(ctx context.Context, job string) (Lease, error)
}

// Lease is held for the duration of one job run.
type Lease interface {
	Unlock(ctx context.Context) error
}

type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, expected string) (bool, error)
	LockKey(name string) string
}

// RedisLocker stores each lease as a random token under lock:<scope>:<job>.
// The TTL caps how long a crashed replica can block a job.
type RedisLocker struct {
	store leaseStore
	scope string
	ttl   time.Duration
}

func NewRedisLocker(store leaseStore, scope string, ttl time.Duration) (*RedisLocker, error) {
	if store == nil {
		return nil, errors.New("redis client required for cron leases")
	}
	if scope == "" {
		return nil, errors.New("lease scope is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaseTTL
	}
	return &RedisLocker{store: store, scope: scope, ttl: ttl}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, job string) (Lease, error) {
	if job == "" {
		return nil, errors.New("job name is required")
	}
	key := l.store.LockKey(l.scope + ":" + job)
	token := uuid.NewString()
	ok, err := l.store.SetNX(ctx, key, token, l.ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if !ok {
		return nil, nil
	}
	return &redisLease{store: l.store, key: key, token: token}, nil
}

type redisLease struct {
	store leaseStore
	key   string
	token string
}

// Unlock is a no-op once the lease has expired and been taken by someone else.
func (l *redisLease) Unlock(ctx context.Context) error {
	if _, err := l.store.CompareAndDelete(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	return nil
}
