package filter

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Debouncer drops repeated signals for the same key inside a time window
type Debouncer struct {
	mu     sync.Mutex
	clock  clock.Clock
	window time.Duration
	seen   map[string]*debounceEntry
}

type debounceEntry struct {
	accepted   time.Time // last accepted signal; the window runs from here
	suppressed int
}

// DebounceResult holds the result of a debounce check
type DebounceResult struct {
	Allow      bool          // Whether the signal should be processed
	Suppressed int           // Signals dropped since the last accepted one
	SinceLast  time.Duration // Time since the last accepted signal (0 on first)
}

// NewDebouncer creates a debouncer. window<=0 allows every signal.
func NewDebouncer(clk clock.Clock, window time.Duration) *Debouncer {
	if clk == nil {
		clk = clock.New()
	}
	return &Debouncer{
		clock:  clk,
		window: window,
		seen:   make(map[string]*debounceEntry),
	}
}

// Check reports whether a signal for key falls outside the window of the
// previously accepted one. Dropped signals do not extend the window.
func (d *Debouncer) Check(key string) DebounceResult {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	e, ok := d.seen[key]
	if !ok {
		d.seen[key] = &debounceEntry{accepted: now}
		return DebounceResult{Allow: true}
	}

	since := now.Sub(e.accepted)
	if d.window > 0 && since < d.window {
		e.suppressed++
		return DebounceResult{Allow: false, Suppressed: e.suppressed, SinceLast: since}
	}

	e.accepted = now
	e.suppressed = 0
	return DebounceResult{Allow: true, SinceLast: since}
}

// Reset clears all debounce state
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = make(map[string]*debounceEntry)
}
