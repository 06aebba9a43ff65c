package cron

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryLockStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryLockStore() *memoryLockStore {
	return &memoryLockStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryLockStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	m.ttls[key] = ttl
	return true, nil
}

func (m *memoryLockStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryLockStore) DeleteIfEqual(_ context.Context, key, want string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[key] != want {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryLockStore()
	first, err := NewRedisLock(store, "coffeeshop:cron:lock", 0)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "coffeeshop:cron:lock", 0)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, defaultLockTTL, store.ttls["coffeeshop:cron:lock"])

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(context.Background()))
	_, err = store.Get(context.Background(), "coffeeshop:cron:lock")
	require.NoError(t, err, "a worker that never acquired must not release")

	require.NoError(t, first.Release(context.Background()))
	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockLeavesTakenOverLease(t *testing.T) {
	store := newMemoryLockStore()
	lock, err := NewRedisLock(store, "k", time.Minute)
	require.NoError(t, err)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	store.values["k"] = "someone-else"
	require.NoError(t, lock.Release(context.Background()))
	assert.Equal(t, "someone-else", store.values["k"])
}

func TestRedisLockRequiresStoreAndKey(t *testing.T) {
	_, err := NewRedisLock(nil, "k", time.Minute)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryLockStore(), "", time.Minute)
	assert.Error(t, err)
}

type brokenLockStore struct{ *memoryLockStore }

func (brokenLockStore) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return false, errors.New("connection refused")
}

func TestRedisLockSurfacesStoreErrors(t *testing.T) {
	lock, err := NewRedisLock(brokenLockStore{newMemoryLockStore()}, "k", time.Minute)
	require.NoError(t, err)
	_, err = lock.Acquire(context.Background())
	assert.ErrorContains(t, err, "connection refused")
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()
	ok, _ := lock.Acquire(context.Background())
	assert.True(t, ok)
	ok, _ = lock.Acquire(context.Background())
	assert.False(t, ok)
	require.NoError(t, lock.Release(context.Background()))
	ok, _ = lock.Acquire(context.Background())
	assert.True(t, ok)
}
