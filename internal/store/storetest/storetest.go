// Package storetest holds the behaviour every store.Store backend must share.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vnykmshr/invcache-go/internal/store"
)

// Run exercises s against the store contract
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("absent slot", func(t *testing.T) {
		value, ok, err := s.Get(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, value)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "app_cache", `{"cache":[]}`))

		value, ok, err := s.Get(ctx, "app_cache")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, `{"cache":[]}`, value)
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "app_cache", "first"))
		require.NoError(t, s.Set(ctx, "app_cache", "second"))

		value, _, err := s.Get(ctx, "app_cache")
		require.NoError(t, err)
		assert.Equal(t, "second", value)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "gone", "x"))
		require.NoError(t, s.Delete(ctx, "gone"))
		require.NoError(t, s.Delete(ctx, "gone"))

		_, ok, err := s.Get(ctx, "gone")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("slots are independent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "a", "1"))
		require.NoError(t, s.Set(ctx, "b", "2"))
		require.NoError(t, s.Delete(ctx, "a"))

		value, ok, err := s.Get(ctx, "b")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "2", value)
	})
}
