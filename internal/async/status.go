// Package async provides the background indexing supervisor for imagevault.
package async

import (
	"sync"
	"time"
)

// State represents the supervisor lifecycle state.
type State string

const (
	// StateIdle indicates no indexing run is active.
	StateIdle State = "idle"
	// StateIndexing indicates a run is in progress.
	StateIndexing State = "indexing"
)

// Snapshot is an immutable view of the current run's progress.
type Snapshot struct {
	State          State   `json:"state"`
	Discovered     int64   `json:"discovered"`
	Indexed        int64   `json:"indexed"`
	Skipped        int64   `json:"skipped"`
	Failed         int64   `json:"failed"`
	Progress       float64 `json:"progress"`
	ElapsedSeconds int     `json:"elapsed_seconds"`
	ErrorMessage   string  `json:"error_message,omitempty"`
}

// tracker accumulates per-run counters. The discovered count comes from the
// crawler and is pushed in by the drain loop rather than read directly, so a
// snapshot never races the pipeline.
type tracker struct {
	mu sync.RWMutex

	state        State
	discovered   int64
	indexed      int64
	skipped      int64
	failed       int64
	startTime    time.Time
	errorMessage string
}

func newTracker() *tracker {
	return &tracker{state: StateIdle}
}

func (t *tracker) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateIndexing
	t.discovered = 0
	t.indexed = 0
	t.skipped = 0
	t.failed = 0
	t.startTime = time.Now()
	t.errorMessage = ""
}

func (t *tracker) finish() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state = StateIdle
}

func (t *tracker) setDiscovered(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.discovered = n
}

func (t *tracker) addIndexed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.indexed++
}

func (t *tracker) addSkipped() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.skipped++
}

func (t *tracker) addFailed() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failed++
}

func (t *tracker) setError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.errorMessage = message
}

// snapshot returns an immutable copy of the tracker state. Progress is the
// settled fraction of discovered work, clamped so it never divides by zero
// or exceeds 1 while discovery is still running ahead of the counters.
func (t *tracker) snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var progress float64
	if t.discovered > 0 {
		progress = float64(t.indexed+t.skipped+t.failed) / float64(t.discovered)
		if progress > 1 {
			progress = 1
		}
	}

	var elapsed int
	if !t.startTime.IsZero() {
		elapsed = int(time.Since(t.startTime).Seconds())
	}

	return Snapshot{
		State:          t.state,
		Discovered:     t.discovered,
		Indexed:        t.indexed,
		Skipped:        t.skipped,
		Failed:         t.failed,
		Progress:       progress,
		ElapsedSeconds: elapsed,
		ErrorMessage:   t.errorMessage,
	}
}
