package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmcp718/tc-manager-sub000/pkg/metrics"
)

const (
	defaultWarmReadBytes = 4096
	defaultReadTimeout   = 10 * time.Second
)

// Warmer performs the read that forces the downstream cache to materialize
// a file. The read is deliberately minimal: a bounded prefix, or the whole
// file when it is smaller than the bound. The warm is idempotent; reading
// an already-cached file is harmless.
type Warmer struct {
	readBytes int64
	timeout   time.Duration
}

// NewWarmer creates a warmer. Non-positive arguments select the defaults
// of 4096 bytes and 10 seconds.
func NewWarmer(readBytes int64, timeout time.Duration) *Warmer {
	if readBytes <= 0 {
		readBytes = defaultWarmReadBytes
	}
	if timeout <= 0 {
		timeout = defaultReadTimeout
	}
	return &Warmer{readBytes: readBytes, timeout: timeout}
}

type warmResult struct {
	size int64
	err  error
}

// Warm reads a bounded prefix of path and returns the file's full size.
// The read is raced against the configured timeout; file I/O cannot be
// interrupted, so a hung read is abandoned to its goroutine and the item
// fails with a timeout error.
func (wm *Warmer) Warm(ctx context.Context, path string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, wm.timeout)
	defer cancel()

	resCh := make(chan warmResult, 1)
	go func() {
		resCh <- wm.read(path)
	}()

	select {
	case res := <-resCh:
		return res.size, res.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return 0, fmt.Errorf("warm read of %s timed out after %s", path, wm.timeout)
		}
		return 0, fmt.Errorf("warm read of %s cancelled: %w", path, ctx.Err())
	}
}

func (wm *Warmer) read(path string) warmResult {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.WarmReadDuration)

	f, err := os.Open(path)
	if err != nil {
		return warmResult{err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return warmResult{err: err}
	}
	if info.IsDir() {
		return warmResult{err: fmt.Errorf("%s is a directory", path)}
	}

	n := wm.readBytes
	if info.Size() < n {
		n = info.Size()
	}
	if n > 0 {
		buf := make([]byte, n)
		if _, err := io.ReadFull(f, buf); err != nil {
			return warmResult{err: fmt.Errorf("failed to read %s: %w", path, err)}
		}
		metrics.WarmBytesReadTotal.Add(float64(n))
	}
	return warmResult{size: info.Size()}
}
