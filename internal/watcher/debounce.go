package watcher

import (
	"sync"
	"time"
)

// settling is one path waiting for its events to stop.
type settling struct {
	timer *time.Timer
	gen   uint64
}

// Debouncer fires once per path after a quiet period. Saving a spreadsheet
// produces a Create and a burst of Writes; only the last one counts.
// After Close, Add does nothing and no further callbacks start.
type Debouncer struct {
	delay  time.Duration
	settle func(path string)

	mu     sync.Mutex
	paths  map[string]*settling
	gen    uint64
	closed bool
}

// NewDebouncer returns a Debouncer that calls settle(path) once path has seen
// no Add for delay. settle runs on its own goroutine and may be nil.
func NewDebouncer(delay time.Duration, settle func(path string)) *Debouncer {
	return &Debouncer{
		delay:  delay,
		settle: settle,
		paths:  make(map[string]*settling),
	}
}

// Add records an event for path and restarts its quiet period.
func (d *Debouncer) Add(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}

	if s, ok := d.paths[path]; ok {
		s.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.paths[path] = &settling{
		gen:   gen,
		timer: time.AfterFunc(d.delay, func() { d.fire(path, gen) }),
	}
}

func (d *Debouncer) fire(path string, gen uint64) {
	d.mu.Lock()
	s, ok := d.paths[path]
	if d.closed || !ok || s.gen != gen {
		// Superseded by a later Add, cancelled, or closed.
		d.mu.Unlock()
		return
	}
	delete(d.paths, path)
	d.mu.Unlock()

	if d.settle != nil {
		d.settle(path)
	}
}

// Cancel forgets path if it is still settling.
func (d *Debouncer) Cancel(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.paths[path]; ok {
		s.timer.Stop()
		delete(d.paths, path)
	}
}

// Close drops every settling path and ignores later Adds.
func (d *Debouncer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for path, s := range d.paths {
		s.timer.Stop()
		delete(d.paths, path)
	}
}

// Len returns how many paths are settling.
func (d *Debouncer) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.paths)
}

// Pending reports whether path is settling.
func (d *Debouncer) Pending(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.paths[path]
	return ok
}

// Delay returns the quiet period.
func (d *Debouncer) Delay() time.Duration {
	return d.delay
}
