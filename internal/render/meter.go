package render

import (
	"sync"
	"time"
)

// DefaultMeterWindow is how many samples the meter averages.
const DefaultMeterWindow = 20

// Meter reports throughput as the mean of the last N instantaneous rates.
type Meter struct {
	window int
	now    func() time.Time

	mu      sync.Mutex
	last    time.Time
	samples []float64
	count   uint64
}

// NewMeter creates a meter. A non-positive window uses DefaultMeterWindow.
func NewMeter(window int) *Meter {
	if window <= 0 {
		window = DefaultMeterWindow
	}
	return &Meter{window: window, now: time.Now}
}

// Tick records one rendered frame and returns the current average.
// The first tick only sets the reference time and returns 0.
func (m *Meter) Tick() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.count++
	if !m.last.IsZero() {
		if delta := now.Sub(m.last).Seconds(); delta > 0 {
			m.samples = append(m.samples, 1/delta)
			if len(m.samples) > m.window {
				m.samples = m.samples[len(m.samples)-m.window:]
			}
		}
	}
	m.last = now
	return m.avg()
}

// FPS returns the current average without recording a frame.
func (m *Meter) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.avg()
}

// Count returns how many frames have been recorded.
func (m *Meter) Count() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Reset forgets all samples.
func (m *Meter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = time.Time{}
	m.samples = nil
	m.count = 0
}

func (m *Meter) avg() float64 {
	if len(m.samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range m.samples {
		sum += s
	}
	return sum / float64(len(m.samples))
}
