package capture

import "sync"

// Deduper decides whether a frame repeats the last analyzed one.
// Seen must not change state; Commit records f as the new reference.
type Deduper interface {
	Seen(f *Frame) bool
	Commit(f *Frame)
	Reset()
}

// ExactMatch treats a frame as a repeat when it is the same pointer or
// carries identical bytes.
type ExactMatch struct {
	mu   sync.Mutex
	last *Frame
}

func NewExactMatch() *ExactMatch {
	return &ExactMatch{}
}

func (d *ExactMatch) Seen(f *Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last.Same(f)
}

func (d *ExactMatch) Commit(f *Frame) {
	d.mu.Lock()
	d.last = f
	d.mu.Unlock()
}

func (d *ExactMatch) Reset() {
	d.mu.Lock()
	d.last = nil
	d.mu.Unlock()
}
