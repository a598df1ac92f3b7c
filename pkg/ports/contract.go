package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunDocumentStoreContract runs a suite of tests to verify that a DocumentStore
// implementation adheres to the defined interface contract.
func RunDocumentStoreContract(t *testing.T, store DocumentStore) {
	ctx := context.Background()
	key := "contract/doc-" + time.Now().Format("20060102150405")

	t.Run("Write and Read", func(t *testing.T) {
		graph := []byte(`{"format":"tapestry/graph"}`)
		require.NoError(t, store.Write(ctx, key, SectionGraph, graph), "Write should not return error")

		got, err := store.Read(ctx, key, SectionGraph)
		require.NoError(t, err, "Read should not return error")
		assert.Equal(t, graph, got)
	})

	t.Run("Sections Are Independent", func(t *testing.T) {
		_, err := store.Read(ctx, key, SectionLayout)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound, "layout was never written")

		layout := []byte("format: tapestry/layout\n")
		require.NoError(t, store.Write(ctx, key, SectionLayout, layout))

		got, err := store.Read(ctx, key, SectionLayout)
		require.NoError(t, err)
		assert.Equal(t, layout, got)

		graph, err := store.Read(ctx, key, SectionGraph)
		require.NoError(t, err)
		assert.Equal(t, []byte(`{"format":"tapestry/graph"}`), graph)
	})

	t.Run("Overwrite", func(t *testing.T) {
		require.NoError(t, store.Write(ctx, key, SectionGraph, []byte("v2")))
		got, err := store.Read(ctx, key, SectionGraph)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), got)
	})

	t.Run("Read Non-Existent", func(t *testing.T) {
		_, err := store.Read(ctx, key+"-missing", SectionGraph)
		assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
	})

	t.Run("Returned Data Is A Copy", func(t *testing.T) {
		got, err := store.Read(ctx, key, SectionGraph)
		require.NoError(t, err)
		got[0] = 'X'

		again, err := store.Read(ctx, key, SectionGraph)
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), again)
	})

	t.Run("Concurrent Writes", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NoError(t, store.Write(ctx, key, SectionGraph, []byte("concurrent")))
			}()
		}
		wg.Wait()

		got, err := store.Read(ctx, key, SectionGraph)
		require.NoError(t, err)
		assert.Equal(t, []byte("concurrent"), got)
	})

	t.Run("List", func(t *testing.T) {
		other := key + "-2"
		require.NoError(t, store.Write(ctx, other, SectionGraph, []byte("x")))
		defer func() { _ = store.Delete(ctx, other) }()

		keys, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, keys, key)
		assert.Contains(t, keys, other)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Delete(ctx, key), "Delete should not return error")

		for _, section := range Sections {
			_, err := store.Read(ctx, key, section)
			assert.ErrorIs(t, err, domain.ErrDocumentNotFound, "Read after Delete should return ErrDocumentNotFound")
		}
		assert.NoError(t, store.Delete(ctx, key), "deleting twice is fine")
	})
}
