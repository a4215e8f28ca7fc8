package schedule

import (
	"sync"
	"time"

	"github.com/jonwraymond/healthops/health"
)

// executionState is the scheduler-owned mutable state for one check. It is
// mutated only by the goroutine completing that check's cycle step; the
// mutex exists for the read-only snapshot queries.
type executionState struct {
	mu         sync.Mutex
	lastResult *health.Result
	lastRun    time.Time
	nextDue    time.Time
	history    *ring
}

func newExecutionState(firstDue time.Time, cfg health.Config) *executionState {
	return &executionState{
		nextDue: firstDue,
		history: newRing(cfg.HistoryRetentionCount, cfg.HistoryRetentionPeriod),
	}
}

func (st *executionState) record(res health.Result, ranAt, nextDue time.Time) {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.lastResult = &res
	st.lastRun = ranAt
	st.nextDue = nextDue
	st.history.push(res)
}

func (st *executionState) latest() (health.Result, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.lastResult == nil {
		return health.Result{}, false
	}
	return *st.lastResult, true
}

func (st *executionState) due(at time.Time) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return !st.nextDue.After(at)
}

func (st *executionState) snapshot(now time.Time) []health.Result {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.history.snapshot(now)
}

// ring is a bounded per-check result history. Oldest entries are evicted
// first, by count on push and by age on read.
type ring struct {
	buf    []health.Result
	start  int
	count  int
	maxAge time.Duration
}

func newRing(capacity int, maxAge time.Duration) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{buf: make([]health.Result, capacity), maxAge: maxAge}
}

func (r *ring) push(res health.Result) {
	idx := (r.start + r.count) % len(r.buf)
	r.buf[idx] = res
	if r.count < len(r.buf) {
		r.count++
	} else {
		r.start = (r.start + 1) % len(r.buf)
	}
}

// snapshot returns retained results oldest first, dropping entries older
// than the retention period.
func (r *ring) snapshot(now time.Time) []health.Result {
	out := make([]health.Result, 0, r.count)
	for i := 0; i < r.count; i++ {
		res := r.buf[(r.start+i)%len(r.buf)]
		if r.maxAge > 0 && now.Sub(res.Timestamp) > r.maxAge {
			continue
		}
		out = append(out, res)
	}
	return out
}
