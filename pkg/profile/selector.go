package profile

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dmcp718/tc-manager-sub000/pkg/log"
)

// Profile names the selector may return. They match the seeded catalog
// profiles; resolution to concrete pool parameters happens in the
// coordinator.
const (
	NameGeneral        = "general"
	NameImageSequences = "image-sequences"
	NameLargeVideos    = "large-videos"
	NameProxyMedia     = "proxy-media"
	NameSmallFiles     = "small-files"
)

const (
	// sequenceCountThreshold is the minimum file count before a set can
	// classify as an image sequence or a small-file batch.
	sequenceCountThreshold = 100

	// sequenceDominance is the share of paths the dominant extension must
	// reach for the image-sequence rule.
	sequenceDominance = 0.8

	// smallFilesMeanPathLen: batches of many short paths are treated as
	// small-asset sets.
	smallFilesMeanPathLen = 100

	// budgetCheckStride bounds how often the deadline is consulted while
	// scanning very large path sets.
	budgetCheckStride = 4096

	defaultBudget = 500 * time.Millisecond
)

var (
	sequenceExts = map[string]bool{".tif": true, ".tiff": true, ".dpx": true, ".exr": true}
	videoExts    = map[string]bool{".mov": true, ".mp4": true, ".mxf": true, ".avi": true, ".mkv": true}
	proxyExts    = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
)

// Selector classifies a file set into an execution profile name. It is a
// pure function of the input paths: the same set always yields the same
// name. Classification runs under a time budget; if the budget is exceeded
// the selector falls back to the default profile rather than delay job
// creation.
type Selector struct {
	budget time.Duration
	logger zerolog.Logger
}

// NewSelector creates a selector with the given time budget. A
// non-positive budget selects the 500 ms default.
func NewSelector(budget time.Duration) *Selector {
	if budget <= 0 {
		budget = defaultBudget
	}
	return &Selector{
		budget: budget,
		logger: log.WithComponent("profile-selector"),
	}
}

// Select returns the profile name for a file set.
//
// Rules, first match wins:
//  1. Large sets dominated by sequence frames (tif/tiff/dpx/exr) are
//     image-sequences.
//  2. Any video container extension makes the set large-videos.
//  3. Any proxy still extension makes the set proxy-media.
//  4. Large sets of short paths are small-files.
//  5. Everything else is general.
func (s *Selector) Select(paths []string) string {
	if len(paths) == 0 {
		return NameGeneral
	}
	start := time.Now()

	extCounts := make(map[string]int)
	var (
		hasVideo     bool
		hasProxy     bool
		totalPathLen int
	)
	for i, p := range paths {
		if i%budgetCheckStride == budgetCheckStride-1 && time.Since(start) > s.budget {
			s.logger.Warn().
				Int("paths", len(paths)).
				Dur("budget", s.budget).
				Msg("Profile classification budget exceeded, using default")
			return NameGeneral
		}
		ext := strings.ToLower(filepath.Ext(p))
		extCounts[ext]++
		if videoExts[ext] {
			hasVideo = true
		}
		if proxyExts[ext] {
			hasProxy = true
		}
		totalPathLen += len(p)
	}

	count := len(paths)
	if count > sequenceCountThreshold {
		if ext, n := dominantExt(extCounts); sequenceExts[ext] &&
			float64(n) >= sequenceDominance*float64(count) {
			return NameImageSequences
		}
	}
	if hasVideo {
		return NameLargeVideos
	}
	if hasProxy {
		return NameProxyMedia
	}
	if count > sequenceCountThreshold && totalPathLen/count < smallFilesMeanPathLen {
		return NameSmallFiles
	}
	return NameGeneral
}

// dominantExt returns the most frequent extension and its count. Ties break
// lexicographically so classification stays deterministic.
func dominantExt(counts map[string]int) (string, int) {
	var (
		best  string
		bestN int
	)
	for ext, n := range counts {
		if n > bestN || (n == bestN && ext < best) {
			best, bestN = ext, n
		}
	}
	return best, bestN
}
