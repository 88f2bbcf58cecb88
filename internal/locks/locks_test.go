package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bintrack-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/bintrack-backend/pkg/errors"
)

type stubStore struct {
	held     map[string]string
	releases int
	setErr   error
}

func newStubStore() *stubStore {
	return &stubStore{held: map[string]string{}}
}

func (s *stubStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if s.setErr != nil {
		return false, s.setErr
	}
	if _, ok := s.held[key]; ok {
		return false, nil
	}
	s.held[key] = value.(string)
	return true, nil
}

func (s *stubStore) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	s.releases++
	if s.held[key] != token {
		return false, nil
	}
	delete(s.held, key)
	return true, nil
}

func (s *stubStore) LockKey(scope, id string) string {
	return "bt:lock:" + scope + ":" + id
}

func testLocksConfig() config.LocksConfig {
	return config.LocksConfig{TTL: time.Second, Wait: 20 * time.Millisecond, RetryDelay: 5 * time.Millisecond}
}

func TestWithLockRunsAndReleases(t *testing.T) {
	store := newStubStore()
	locker, err := NewRedisLocker(store, testLocksConfig(), nil)
	require.NoError(t, err)

	called := false
	err = locker.WithLock(context.Background(), ScopeBin, "B-001", func(context.Context) error {
		called = true
		require.Contains(t, store.held, "bt:lock:bin:B-001")
		return nil
	})
	require.NoError(t, err)
	require.True(t, called)
	require.Empty(t, store.held)
	require.Equal(t, 1, store.releases)
}

func TestWithLockReleasesOnCallbackError(t *testing.T) {
	store := newStubStore()
	locker, err := NewRedisLocker(store, testLocksConfig(), nil)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = locker.WithLock(context.Background(), ScopeBin, "B-001", func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.held)
}

func TestWithLockTimesOutAsConflict(t *testing.T) {
	store := newStubStore()
	store.held["bt:lock:wo:J1"] = "someone-else"
	locker, err := NewRedisLocker(store, testLocksConfig(), nil)
	require.NoError(t, err)

	called := false
	err = locker.WithLock(context.Background(), ScopeWorkOrder, "J1", func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	require.False(t, called)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Equal(t, "someone-else", store.held["bt:lock:wo:J1"])
}

func TestWithLockStoreFailureIsDependency(t *testing.T) {
	store := newStubStore()
	store.setErr = errors.New("redis down")
	locker, err := NewRedisLocker(store, testLocksConfig(), nil)
	require.NoError(t, err)

	err = locker.WithLock(context.Background(), ScopeBin, "B-001", func(context.Context) error { return nil })
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestNewRedisLockerValidates(t *testing.T) {
	_, err := NewRedisLocker(nil, testLocksConfig(), nil)
	require.Error(t, err)

	_, err = NewRedisLocker(newStubStore(), config.LocksConfig{}, nil)
	require.Error(t, err)
}
