package cache_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/fileparser/pkg/cache"
	"github.com/yeisme/fileparser/pkg/internal/storage/kv"
)

type testStats struct {
	TotalFiles int64            `json:"total_files"`
	Types      map[string]int64 `json:"file_types"`
}

func newStore(t *testing.T) kv.KVStore {
	t.Helper()

	store, err := kv.NewMemoryKV(context.Background(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestGetMissing(t *testing.T) {
	c := cache.NewCache(newStore(t))

	_, err := cache.Get[testStats](context.Background(), c, "missing")
	assert.ErrorIs(t, err, kv.ErrNotFound)
}

func TestSetGetUsesPrefix(t *testing.T) {
	store := newStore(t)
	c := cache.NewCache(store, cache.WithPrefix("t:"))
	ctx := context.Background()

	want := testStats{TotalFiles: 3, Types: map[string]int64{"csv": 2, "pdf": 1}}
	require.NoError(t, cache.Set(ctx, c, "stats:1", want, time.Minute))

	got, err := cache.Get[testStats](ctx, c, "stats:1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	ok, err := store.Exists(ctx, "t:stats:1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetOrSet(t *testing.T) {
	c := cache.NewCache(newStore(t))
	ctx := context.Background()

	calls := 0
	getter := func() (testStats, error) {
		calls++

		return testStats{TotalFiles: int64(calls)}, nil
	}

	first, err := cache.GetOrSet(ctx, c, "k", getter, 0)
	require.NoError(t, err)

	second, err := cache.GetOrSet(ctx, c, "k", getter, 0)
	require.NoError(t, err)

	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)

	require.NoError(t, c.Delete(ctx, "k"))

	third, err := cache.GetOrSet(ctx, c, "k", getter, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), third.TotalFiles)
}

func TestGetOrSetGetterError(t *testing.T) {
	c := cache.NewCache(newStore(t))
	boom := errors.New("getter error")

	_, err := cache.GetOrSet(context.Background(), c, "k", func() (int, error) { return 0, boom }, 0)
	assert.ErrorIs(t, err, boom)

	ok, err := c.Exists(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteMissingIsNotError(t *testing.T) {
	c := cache.NewCache(newStore(t))

	assert.NoError(t, c.Delete(context.Background(), "a", "b"))
}

func TestDisabledAlwaysCallsGetter(t *testing.T) {
	c := cache.NewCache(newStore(t), cache.WithDisabled(true))
	ctx := context.Background()

	calls := 0
	for range 3 {
		_, err := cache.GetOrSet(ctx, c, "k", func() (int, error) { calls++; return calls, nil }, 0)
		require.NoError(t, err)
	}

	assert.Equal(t, 3, calls)
}

func TestClearOnlyOwnPrefix(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()
	c := cache.NewCache(store, cache.WithPrefix("fp:cache:"))

	for i := range 3 {
		require.NoError(t, cache.Set(ctx, c, fmt.Sprintf("stats:%d", i), i, 0))
	}

	require.NoError(t, store.Set(ctx, "other", []byte("x"), 0))
	require.NoError(t, c.Clear(ctx))

	keys, err := store.Keys(ctx, "*")
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, keys)
}
