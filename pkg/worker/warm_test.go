package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWarmReadsPrefixOfLargeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "large.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 64*1024), 0o644))

	wm := NewWarmer(4096, 0)
	size, err := wm.Warm(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, int64(64*1024), size, "reported size is the full file, not the prefix")
}

func TestWarmSmallFiles(t *testing.T) {
	tests := []struct {
		name string
		size int
	}{
		{name: "smaller than prefix", size: 100},
		{name: "exactly prefix sized", size: 4096},
		{name: "empty", size: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "f.bin")
			require.NoError(t, os.WriteFile(path, make([]byte, tt.size), 0o644))

			wm := NewWarmer(4096, 0)
			size, err := wm.Warm(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, int64(tt.size), size)
		})
	}
}

func TestWarmMissingFile(t *testing.T) {
	wm := NewWarmer(0, 0)
	_, err := wm.Warm(context.Background(), filepath.Join(t.TempDir(), "nope.bin"))
	assert.Error(t, err)
}

func TestWarmRejectsDirectory(t *testing.T) {
	wm := NewWarmer(0, 0)
	_, err := wm.Warm(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "directory")
}
