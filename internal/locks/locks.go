package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bintrack-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
	"github.com/angelmondragon/bintrack-backend/pkg/logger"
)

const (
	ScopeBin       = "bin"
	ScopeWorkOrder = "wo"
)

// Locker serialises mutations on a single aggregate across processes.
type Locker interface {
	WithLock(ctx context.Context, scope, id string, fn func(context.Context) error) error
}

type store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	LockKey(scope, id string) string
}

// RedisLocker implements Locker with SETNX plus a token-checked release.
type RedisLocker struct {
	store      store
	logg       *logger.Logger
	ttl        time.Duration
	wait       time.Duration
	retryDelay time.Duration
	newToken   func() string
}

func NewRedisLocker(s store, cfg config.LocksConfig, logg *logger.Logger) (*RedisLocker, error) {
	if s == nil {
		return nil, errors.New("lock store required")
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("lock ttl must be positive")
	}
	retry := cfg.RetryDelay
	if retry <= 0 {
		retry = 50 * time.Millisecond
	}
	return &RedisLocker{
		store:      s,
		logg:       logg,
		ttl:        cfg.TTL,
		wait:       cfg.Wait,
		retryDelay: retry,
		newToken:   uuid.NewString,
	}, nil
}

func (l *RedisLocker) WithLock(ctx context.Context, scope, id string, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock callback required")
	}
	key := l.store.LockKey(scope, id)
	token := l.newToken()

	if err := l.acquire(ctx, key, token); err != nil {
		return err
	}
	defer func() {
		// Use a detached context so a cancelled request still frees the key.
		releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if _, err := l.store.ReleaseLock(releaseCtx, key, token); err != nil && l.logg != nil {
			l.logg.Error(l.logg.WithField(ctx, "lock_key", key), "release lock failed", err)
		}
	}()

	return fn(ctx)
}

func (l *RedisLocker) acquire(ctx context.Context, key, token string) error {
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.store.SetNX(ctx, key, token, l.ttl)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire lock")
		}
		if ok {
			return nil
		}
		if !time.Now().Before(deadline) {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("%s is busy, retry shortly", key))
		}
		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// NoopLocker runs fn inline. It backs single-process setups such as sqlite dev.
type NoopLocker struct{}

func (NoopLocker) WithLock(ctx context.Context, _ string, _ string, fn func(context.Context) error) error {
	return fn(ctx)
}
