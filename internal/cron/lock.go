package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	lockScope      = "cron"
	defaultLockEnv = "local"
	defaultLockTTL = 2 * time.Hour
)

// Lock makes sure a single cron worker replica runs a cycle.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// lockStore is the slice of the Redis client the cycle lock needs. Release
// goes through the token-checked script so an expired lock taken over by
// another replica is never deleted.
type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLock holds one key per environment so staging and production workers
// sharing a Redis never block each other.
type RedisLock struct {
	store    lockStore
	key      string
	ttl      time.Duration
	token    string
	newToken func() string
}

func NewRedisLock(store lockStore, env string, ttl time.Duration) (*RedisLock, error) {
	if store == nil {
		return nil, errors.New("redis client required for lock")
	}
	env = strings.ToLower(strings.TrimSpace(env))
	if env == "" {
		env = defaultLockEnv
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{
		store:    store,
		key:      store.LockKey(lockScope, env),
		ttl:      ttl,
		newToken: uuid.NewString,
	}, nil
}

// Key is the Redis key guarding the cycle.
func (l *RedisLock) Key() string { return l.key }

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := l.newToken()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Release(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	if _, err := l.store.ReleaseLock(ctx, l.key, l.token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	l.token = ""
	return nil
}
