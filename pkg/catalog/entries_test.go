package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmcp718/tc-manager-sub000/pkg/types"
)

func TestUpsertEntriesRefreshesWithoutTouchingCacheState(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	e := seedEntry(t, store, "/mnt/space/a.bin", "/mnt/space", false, 100)
	require.NoError(t, store.MarkEntryCached(ctx, e.Path, 100, "job-1"))

	e.Size = 200
	e.ModifiedAt = e.ModifiedAt.Add(5 * time.Second)
	_, err := store.UpsertEntries(ctx, []*types.Entry{e}, "sess-2")
	require.NoError(t, err)

	got, err := store.GetEntry(ctx, e.Path)
	require.NoError(t, err)
	assert.Equal(t, int64(200), got.Size)
	assert.Equal(t, "sess-2", got.LastSeenSessionID)
	assert.True(t, got.Cached, "re-index must not clear cache state")
	assert.Equal(t, "job-1", got.CacheJobID)
	require.NotNil(t, got.CachedAt)
}

func TestBatchNeedsIndexing(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Millisecond)
	known := seedEntry(t, store, "/mnt/space/known.bin", "/mnt/space", false, 100)
	known.ModifiedAt = base
	_, err := store.UpsertEntries(ctx, []*types.Entry{known}, "seed")
	require.NoError(t, err)

	tests := []struct {
		name   string
		path   string
		mtime  time.Time
		size   int64
		needed bool
	}{
		{"unchanged", "/mnt/space/known.bin", base, 100, false},
		{"mtime within tolerance", "/mnt/space/known.bin", base.Add(500 * time.Millisecond), 100, false},
		{"mtime at tolerance boundary", "/mnt/space/known.bin", base.Add(1000 * time.Millisecond), 100, false},
		{"mtime beyond tolerance", "/mnt/space/known.bin", base.Add(1500 * time.Millisecond), 100, true},
		{"catalog newer than filesystem", "/mnt/space/known.bin", base.Add(-5 * time.Second), 100, false},
		{"size changed", "/mnt/space/known.bin", base, 150, true},
		{"unknown path", "/mnt/space/new.bin", base, 10, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observed := []*types.Entry{{
				Path:       tt.path,
				ParentPath: "/mnt/space",
				Name:       "x",
				ModifiedAt: tt.mtime,
				Size:       tt.size,
			}}
			needed, err := store.BatchNeedsIndexing(ctx, observed)
			require.NoError(t, err)
			if tt.needed {
				require.Len(t, needed, 1)
				assert.Equal(t, tt.path, needed[0].Path)
			} else {
				assert.Empty(t, needed)
			}
		})
	}
}

func TestFindChildrenOrdersDirectoriesFirst(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seedEntry(t, store, "/mnt/space/proj/z-dir", "/mnt/space/proj", true, 0)
	seedEntry(t, store, "/mnt/space/proj/a-file.bin", "/mnt/space/proj", false, 1)
	seedEntry(t, store, "/mnt/space/proj/b-dir", "/mnt/space/proj", true, 0)
	seedEntry(t, store, "/mnt/space/proj/c.txt", "/mnt/space/proj", false, 2)

	children, err := store.FindChildren(ctx, "/mnt/space/proj")
	require.NoError(t, err)
	require.Len(t, children, 4)

	var names []string
	for _, c := range children {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"b-dir", "z-dir", "a-file.bin", "c.txt"}, names)
}

func TestFindFilesRecursively(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	seedEntry(t, store, "/mnt/space/root", "/mnt/space", true, 0)
	seedEntry(t, store, "/mnt/space/root/file1.bin", "/mnt/space/root", false, 10)
	seedEntry(t, store, "/mnt/space/root/sub", "/mnt/space/root", true, 0)
	seedEntry(t, store, "/mnt/space/root/sub/file2.bin", "/mnt/space/root/sub", false, 20)
	seedEntry(t, store, "/mnt/space/root/sub/deep", "/mnt/space/root/sub", true, 0)
	seedEntry(t, store, "/mnt/space/root/sub/deep/file3.bin", "/mnt/space/root/sub/deep", false, 30)

	files, err := store.FindFilesRecursively(ctx, "/mnt/space/root")
	require.NoError(t, err)
	require.Len(t, files, 3)

	var paths []string
	for _, f := range files {
		paths = append(paths, f.Path)
		assert.False(t, f.IsDirectory)
	}
	assert.Equal(t, []string{
		"/mnt/space/root/file1.bin",
		"/mnt/space/root/sub/deep/file3.bin",
		"/mnt/space/root/sub/file2.bin",
	}, paths)
}

func TestMarkEntryCachedBackfillsMissingRow(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Warm finished before the indexer ever saw the path
	require.NoError(t, store.MarkEntryCached(ctx, "/mnt/space/hot.bin", 4096, "job-7"))

	got, err := store.GetEntry(ctx, "/mnt/space/hot.bin")
	require.NoError(t, err)
	assert.True(t, got.Cached)
	assert.Equal(t, "job-7", got.CacheJobID)
	assert.Equal(t, int64(4096), got.Size)
	require.NotNil(t, got.CachedAt)
}

func TestGetEntryNotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.GetEntry(context.Background(), "/mnt/space/absent")
	assert.ErrorIs(t, err, types.ErrEntryNotFound)
}
