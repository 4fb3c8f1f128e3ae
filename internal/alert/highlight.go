package alert

import (
	"sync"
	"time"
)

// DefaultHighlight is how long the visual alert stays on.
const DefaultHighlight = 3 * time.Second

// Highlight is a visual alert marker that clears itself after a fixed time.
// Triggering again while active restarts the countdown.
type Highlight struct {
	dur time.Duration

	mu       sync.Mutex
	active   bool
	timer    *time.Timer
	gen      uint64
	onChange func(bool)
}

func NewHighlight(d time.Duration) *Highlight {
	if d <= 0 {
		d = DefaultHighlight
	}
	return &Highlight{dur: d}
}

// OnChange registers fn to be called whenever the highlight turns on or off.
func (h *Highlight) OnChange(fn func(bool)) {
	h.mu.Lock()
	h.onChange = fn
	h.mu.Unlock()
}

// Trigger turns the highlight on.
func (h *Highlight) Trigger() {
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.gen++
	gen := h.gen
	wasActive := h.active
	h.active = true
	h.timer = time.AfterFunc(h.dur, func() { h.clear(gen) })
	fn := h.onChange
	h.mu.Unlock()

	if !wasActive && fn != nil {
		fn(true)
	}
}

// clear turns the highlight off unless it was re-triggered since gen.
func (h *Highlight) clear(gen uint64) {
	h.mu.Lock()
	if gen != h.gen || !h.active {
		h.mu.Unlock()
		return
	}
	h.active = false
	h.timer = nil
	fn := h.onChange
	h.mu.Unlock()

	if fn != nil {
		fn(false)
	}
}

// Active reports whether the highlight is showing.
func (h *Highlight) Active() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

// Stop clears the highlight immediately.
func (h *Highlight) Stop() {
	h.mu.Lock()
	if h.timer != nil {
		h.timer.Stop()
	}
	h.gen++
	gen := h.gen
	h.mu.Unlock()
	h.clear(gen)
}
