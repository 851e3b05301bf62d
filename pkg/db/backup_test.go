package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docdir/docdir/pkg/domain"
)

func TestDB_BackupRestoreRoundTrip(t *testing.T) {
	d := openDB(t, t.TempDir())
	require.NoError(t, d.Connect(context.Background()))

	cats := d.Collection("cats")
	dogs := d.Collection("dogs")
	require.NoError(t, cats.Insert(domain.Document{"name": "Mia", "age": 3}))
	require.NoError(t, cats.Insert(domain.Document{"name": "Tom", "age": 5}))
	require.NoError(t, dogs.Insert(domain.Document{"name": "Rex"}))
	require.NoError(t, cats.WaitReady(context.Background()))
	require.NoError(t, dogs.WaitReady(context.Background()))

	snapshot := filepath.Join(t.TempDir(), "backup.ddir")
	require.NoError(t, d.Backup(context.Background(), snapshot))

	info, err := os.Stat(snapshot)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	// Restore into a fresh database
	restored := openDB(t, t.TempDir())
	require.NoError(t, restored.Connect(context.Background()))
	require.NoError(t, restored.Restore(context.Background(), snapshot))

	docs, err := restored.Collection("cats").Find(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = restored.Collection("dogs").Find(context.Background(), domain.Document{"name": "Rex"})
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	stats := pollStats(t, restored, func(s *domain.Stats) bool {
		return s.Collections == 2 && s.Objects == 3
	})
	assert.Greater(t, stats.FileSize, int64(0))
}

func TestDB_RestorePreservesDocumentIDs(t *testing.T) {
	d := openDB(t, t.TempDir())
	require.NoError(t, d.Connect(context.Background()))

	doc := domain.Document{"name": "Mia"}
	require.NoError(t, d.Collection("cats").Insert(doc))
	require.NoError(t, d.Collection("cats").WaitReady(context.Background()))
	id := doc.ID()
	require.NotEmpty(t, id)

	snapshot := filepath.Join(t.TempDir(), "backup.ddir")
	require.NoError(t, d.Backup(context.Background(), snapshot))

	restored := openDB(t, t.TempDir())
	require.NoError(t, restored.Restore(context.Background(), snapshot))

	docs, err := restored.Collection("cats").Find(context.Background(), domain.Document{"_id": id})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDB_BackupEmptyDatabase(t *testing.T) {
	d := openDB(t, t.TempDir())
	require.NoError(t, d.Connect(context.Background()))

	snapshot := filepath.Join(t.TempDir(), "backup.ddir")
	require.NoError(t, d.Backup(context.Background(), snapshot))

	restored := openDB(t, t.TempDir())
	require.NoError(t, restored.Restore(context.Background(), snapshot))
	assert.Empty(t, restored.ListCollections())
}

func TestDB_RestoreRejectsBadHeader(t *testing.T) {
	d := openDB(t, t.TempDir())

	bogus := filepath.Join(t.TempDir(), "bogus.ddir")
	require.NoError(t, os.WriteFile(bogus, []byte("not a snapshot"), 0644))

	err := d.Restore(context.Background(), bogus)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid snapshot format")
}
