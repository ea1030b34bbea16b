package regional

import (
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// ProgressFunc receives phase progress updates. It is optional everywhere it
// appears; a nil ProgressFunc disables reporting. Callbacks may arrive from
// multiple goroutines.
type ProgressFunc func(phase string, done, total int)

// progressEmitsPerSecond caps how often a tracker invokes its callback, so a
// terminal-bound callback is not flooded by fast phases.
const progressEmitsPerSecond = 20

// tracker counts completed work units for one phase and forwards throttled
// updates to a ProgressFunc. The final update (done == total) is always
// delivered.
type tracker struct {
	phase string
	total int
	fn    ProgressFunc
	done  atomic.Int64
	lim   *rate.Limiter
	mu    sync.Mutex
}

func newTracker(phase string, total int, fn ProgressFunc) *tracker {
	if fn == nil {
		return nil
	}
	return &tracker{
		phase: phase,
		total: total,
		fn:    fn,
		lim:   rate.NewLimiter(rate.Limit(progressEmitsPerSecond), 1),
	}
}

// step records one completed unit.
func (t *tracker) step() {
	if t == nil {
		return
	}
	done := int(t.done.Add(1))
	if done < t.total && !t.lim.Allow() {
		return
	}
	t.mu.Lock()
	t.fn(t.phase, done, t.total)
	t.mu.Unlock()
}
