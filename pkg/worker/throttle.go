package worker

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	progressItemThreshold = 100
	progressMinInterval   = 2 * time.Second
)

// progressThrottle bounds file-progress event volume per job: an event
// goes out after every 100 settled items, or when the per-job rate limiter
// has a token, whichever comes first.
type progressThrottle struct {
	mu   sync.Mutex
	jobs map[string]*progressState
}

type progressState struct {
	limiter *rate.Limiter
	pending int
}

func newProgressThrottle() *progressThrottle {
	return &progressThrottle{jobs: make(map[string]*progressState)}
}

func (p *progressThrottle) should(jobID string, items int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	st := p.jobs[jobID]
	if st == nil {
		st = &progressState{limiter: rate.NewLimiter(rate.Every(progressMinInterval), 1)}
		p.jobs[jobID] = st
	}
	st.pending += items
	if st.pending >= progressItemThreshold || st.limiter.Allow() {
		st.pending = 0
		return true
	}
	return false
}

// drop forgets a finalized job's throttle state
func (p *progressThrottle) drop(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.jobs, jobID)
}
