package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"motium/internal/domain/company"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestCached_LoadsOnce(t *testing.T) {
	ctx := context.Background()
	c := NewCache(0, 0)
	calls := 0
	load := func() ([]string, error) {
		calls++
		return []string{"a"}, nil
	}

	for i := 0; i < 3; i++ {
		v, err := cached(ctx, c, cacheLinks, load)
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, v)
	}
	assert.Equal(t, 1, calls)
}

func TestCached_ErrorNotStored(t *testing.T) {
	ctx := context.Background()
	c := NewCache(10, time.Minute)
	_, err := cached(ctx, c, cacheLicenses, func() (int, error) { return 0, errors.New("offline") })
	require.Error(t, err)
	assert.Zero(t, c.Len())
}

func TestCache_InvalidatePrefix(t *testing.T) {
	ctx := context.Background()
	c := NewCache(10, time.Minute)
	c.Set(cacheProAccount, 1)
	c.Set(cacheLinks, 2)
	c.Set(cacheServerStatus, 3)

	c.Invalidate(ctx, companyPrefix)
	assert.Equal(t, 1, c.Len())

	calls := 0
	v, err := cached(ctx, c, cacheServerStatus, func() (int, error) { calls++; return 0, nil })
	require.NoError(t, err)
	assert.Equal(t, 3, v)
	assert.Zero(t, calls)

	c.Purge(ctx)
	assert.Zero(t, c.Len())
}

func TestCache_Expires(t *testing.T) {
	ctx := context.Background()
	c := NewCache(10, 20*time.Millisecond)
	c.Set(cacheLinks, "x")

	assert.Eventually(t, func() bool {
		calls := 0
		_, _ = cached(ctx, c, cacheLinks, func() (string, error) { calls++; return "y", nil })
		return calls == 1
	}, time.Second, 10*time.Millisecond)
}

func TestCached_TypeMismatchReloads(t *testing.T) {
	ctx := context.Background()
	c := NewCache(10, time.Minute)
	c.Set(cacheLinks, "string")

	v, err := cached(ctx, c, cacheLinks, func() (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestCached_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStorage(t, QueueConfig{})
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	newCache := func() *Cache {
		c := NewCache(10, time.Minute).WithStore(store, slog.Default())
		c.now = func() time.Time { return now }
		return c
	}

	first := newCache()
	links, err := cached(ctx, first, cacheLinks, func() ([]company.Link, error) {
		return []company.Link{{ID: 7, Status: "active"}}, nil
	})
	require.NoError(t, err)
	require.Len(t, links, 1)

	// новый процесс: память пуста, значение берется из базы
	second := newCache()
	calls := 0
	loadLinks := func() ([]company.Link, error) {
		calls++
		return nil, nil
	}
	links, err = cached(ctx, second, cacheLinks, loadLinks)
	require.NoError(t, err)
	assert.Zero(t, calls)
	require.Len(t, links, 1)
	assert.Equal(t, 7, links[0].ID)

	t.Run("expired", func(t *testing.T) {
		now = now.Add(2 * time.Minute)
		_, err := cached(ctx, newCache(), cacheLinks, loadLinks)
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("invalidated", func(t *testing.T) {
		c := newCache()
		_, err := cached(ctx, c, cacheLicenses, func() ([]company.License, error) {
			return []company.License{{ID: 1}}, nil
		})
		require.NoError(t, err)

		c.Invalidate(ctx, companyPrefix)

		_, ok, err := store.GetCached(ctx, cacheLicenses, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("reset", func(t *testing.T) {
		require.NoError(t, store.PutCached(ctx, cacheServerStatus, []byte(`{}`), now.Add(time.Hour)))
		require.NoError(t, store.Reset(ctx))

		_, ok, err := store.GetCached(ctx, cacheServerStatus, now)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
