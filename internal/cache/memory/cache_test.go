package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/verdant/internal/cache/memory"
	"github.com/davidbz/verdant/internal/domain"
)

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("should round-trip a value within the TTL", func(t *testing.T) {
		c := memory.NewCache()

		require.NoError(t, c.Set(ctx, "k", []byte("artifact"), time.Minute))

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("artifact"), got)
	})

	t.Run("should miss for an unknown key", func(t *testing.T) {
		c := memory.NewCache()

		_, err := c.Get(ctx, "missing")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should miss after the TTL elapses", func(t *testing.T) {
		c := memory.NewCache()

		require.NoError(t, c.Set(ctx, "k", []byte("v"), 5*time.Millisecond))
		time.Sleep(10 * time.Millisecond)

		_, err := c.Get(ctx, "k")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})

	t.Run("should overwrite a prior entry", func(t *testing.T) {
		c := memory.NewCache()

		require.NoError(t, c.Set(ctx, "k", []byte("old"), time.Minute))
		require.NoError(t, c.Set(ctx, "k", []byte("new"), time.Minute))

		got, err := c.Get(ctx, "k")
		require.NoError(t, err)
		require.Equal(t, []byte("new"), got)
	})

	t.Run("should miss after an explicit delete", func(t *testing.T) {
		c := memory.NewCache()

		require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))
		require.NoError(t, c.Delete(ctx, "k"))

		_, err := c.Get(ctx, "k")
		require.ErrorIs(t, err, domain.ErrCacheMiss)
	})
}
