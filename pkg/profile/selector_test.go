package profile

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func repeatPaths(pattern string, n int) []string {
	paths := make([]string, n)
	for i := range paths {
		paths[i] = fmt.Sprintf(pattern, i)
	}
	return paths
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{
			name:  "empty set",
			paths: nil,
			want:  NameGeneral,
		},
		{
			name:  "exr sequence",
			paths: repeatPaths("/mnt/space/shots/sq010/frame.%04d.exr", 500),
			want:  NameImageSequences,
		},
		{
			name:  "uppercase extensions count toward dominance",
			paths: repeatPaths("/mnt/space/shots/sq010/FRAME.%04d.EXR", 500),
			want:  NameImageSequences,
		},
		{
			name:  "sequence below count threshold",
			paths: repeatPaths("/mnt/space/shots/frame.%04d.exr", 50),
			want:  NameGeneral,
		},
		{
			name: "dominance below eighty percent falls through to videos",
			paths: append(
				repeatPaths("/mnt/space/shots/frame.%04d.exr", 150),
				repeatPaths("/mnt/space/edit/cut%d.mov", 60)...),
			want: NameLargeVideos,
		},
		{
			name:  "single video wins over stills",
			paths: []string{"/mnt/space/edit/final.mov", "/mnt/space/edit/poster.jpg"},
			want:  NameLargeVideos,
		},
		{
			name:  "proxy stills",
			paths: []string{"/mnt/space/proxies/a.jpg", "/mnt/space/proxies/b.png"},
			want:  NameProxyMedia,
		},
		{
			name:  "many short paths",
			paths: repeatPaths("/m/a/f%d.dat", 200),
			want:  NameSmallFiles,
		},
		{
			name:  "many long paths stay general",
			paths: repeatPaths("/mnt/space/projects/client/show/episode/scene/take/render/passes/beauty/composite-%08d-full-quality-final.dat", 200),
			want:  NameGeneral,
		},
		{
			name:  "small mixed set",
			paths: []string{"/mnt/space/docs/report.pdf", "/mnt/space/docs/notes.txt"},
			want:  NameGeneral,
		},
	}

	s := NewSelector(0)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Select(tt.paths))
		})
	}
}

func TestSelectIsDeterministic(t *testing.T) {
	s := NewSelector(time.Second)
	paths := append(
		repeatPaths("/mnt/space/a/f%d.tif", 90),
		repeatPaths("/mnt/space/b/f%d.tiff", 90)...)

	first := s.Select(paths)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, s.Select(paths))
	}
}

func TestSelectBudgetFallsBackToDefault(t *testing.T) {
	// A budget this small cannot survive the first deadline checkpoint
	s := NewSelector(time.Nanosecond)
	paths := repeatPaths("/mnt/space/shots/frame.%04d.exr", 20000)

	assert.Equal(t, NameGeneral, s.Select(paths))
}
