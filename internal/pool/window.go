package pool

import (
	"sync"
	"time"
)

// Outcome is one finished transfer as reported by a worker. Workers only
// ever append to the window; the controller reads it.
type Outcome struct {
	Err      bool
	Timeout  bool
	Bytes    int64
	Duration time.Duration
}

// Window is a fixed-size rolling record of recent transfer outcomes.
type Window struct {
	mu       sync.Mutex
	outcomes []Outcome
	next     int
	filled   bool
}

// NewWindow creates a window holding the last size outcomes.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{outcomes: make([]Outcome, size)}
}

// Add records one outcome, evicting the oldest when full.
func (w *Window) Add(o Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.outcomes[w.next] = o
	w.next++
	if w.next == len(w.outcomes) {
		w.next = 0
		w.filled = true
	}
}

// Snapshot summarizes the current window contents.
func (w *Window) Snapshot() Sample {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.next
	if w.filled {
		n = len(w.outcomes)
	}

	s := Sample{Outcomes: n}
	if n == 0 {
		return s
	}

	var errs int
	var bytes int64
	var dur time.Duration
	for i := 0; i < n; i++ {
		o := w.outcomes[i]
		if o.Err {
			errs++
		}
		if o.Timeout {
			s.Timeouts++
		}
		bytes += o.Bytes
		dur += o.Duration
	}
	s.ErrorRate = float64(errs) / float64(n)
	if dur > 0 {
		// Bytes per second of active transfer time, i.e. per-worker
		// throughput regardless of how many workers produced the window.
		s.Throughput = float64(bytes) / dur.Seconds()
	}
	return s
}
