package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdir/docdir/pkg/domain"
)

func TestStore_CompactDropsSupersededRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store := Open(path)
	defer store.Close()

	require.NoError(t, store.Insert(domain.Document{"_id": "u1", "name": "Alice"}))
	for i := 0; i < 20; i++ {
		_, err := store.Update(context.Background(),
			domain.Document{"_id": "u1"},
			domain.Document{"age": i},
			false)
		require.NoError(t, err)
	}
	require.NoError(t, store.WaitReady(context.Background()))

	before, err := os.Stat(path)
	require.NoError(t, err)

	require.NoError(t, store.Compact(context.Background()))

	after, err := os.Stat(path)
	require.NoError(t, err)
	assert.Less(t, after.Size(), before.Size())

	// Live document survives with its final state
	docs, err := store.Find(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, float64(19), toFloat(docs[0]["age"]))
}

func toFloat(v interface{}) float64 {
	f, _ := toFloat64(v)
	return f
}

func TestStore_WritesAfterCompactPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.json")
	store := Open(path)

	require.NoError(t, store.Insert(domain.Document{"name": "Alice"}))
	require.NoError(t, store.Compact(context.Background()))
	require.NoError(t, store.Insert(domain.Document{"name": "Bob"}))
	require.NoError(t, store.Close())

	reopened := Open(path)
	defer reopened.Close()

	count, err := reopened.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestStore_CompactEmptyStore(t *testing.T) {
	store := Open(filepath.Join(t.TempDir(), "empty.json"))
	defer store.Close()

	require.NoError(t, store.Compact(context.Background()))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestStore_CompactManyDocuments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bulk.json")
	store := Open(path)

	for i := 0; i < 100; i++ {
		require.NoError(t, store.Insert(domain.Document{"n": i, "name": fmt.Sprintf("doc-%d", i)}))
	}
	_, err := store.Remove(context.Background(), domain.Document{"n": 50})
	require.NoError(t, err)
	require.NoError(t, store.Compact(context.Background()))
	require.NoError(t, store.Close())

	reopened := Open(path)
	defer reopened.Close()

	count, err := reopened.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(99), count)
}
