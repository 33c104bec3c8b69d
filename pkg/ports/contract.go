package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/weft/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHistoryStoreContract runs a suite of tests to verify that a HistoryStore
// implementation adheres to the defined interface contract.
func RunHistoryStoreContract(t *testing.T, store HistoryStore) {
	ctx := context.Background()
	base := uint64(time.Now().UnixNano())
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	entries := []domain.HistoryEntry{
		{Message: "query", Step: "awaiting-reply", At: at},
		{Message: "reply", Step: "", At: at.Add(time.Second)},
	}

	t.Run("Save and Load", func(t *testing.T) {
		id := domain.ChainID{ID: base, External: true}

		require.NoError(t, store.Save(ctx, id, entries), "Save should not return error")

		loaded, err := store.Load(ctx, id)
		require.NoError(t, err, "Load should not return error")
		require.Len(t, loaded, 2)
		assert.Equal(t, "query", loaded[0].Message)
		assert.Equal(t, "awaiting-reply", loaded[0].Step)
		assert.True(t, at.Equal(loaded[0].At))
		assert.Equal(t, "", loaded[1].Step)
	})

	t.Run("Internal and external are distinct", func(t *testing.T) {
		ext := domain.ChainID{ID: base + 1, External: true}
		require.NoError(t, store.Save(ctx, ext, entries))

		_, err := store.Load(ctx, domain.ChainID{ID: base + 1})
		assert.ErrorIs(t, err, domain.ErrHistoryNotFound)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, domain.ChainID{ID: base + 2})
		assert.ErrorIs(t, err, domain.ErrHistoryNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		id := domain.ChainID{ID: base + 3}
		require.NoError(t, store.Save(ctx, id, entries))

		require.NoError(t, store.Delete(ctx, id), "Delete should not return error")

		_, err := store.Load(ctx, id)
		assert.ErrorIs(t, err, domain.ErrHistoryNotFound, "Load after Delete should return ErrHistoryNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := domain.ChainID{ID: base + 4}
		id2 := domain.ChainID{ID: base + 5, External: true}
		require.NoError(t, store.Save(ctx, id1, entries))
		require.NoError(t, store.Save(ctx, id2, entries))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}
