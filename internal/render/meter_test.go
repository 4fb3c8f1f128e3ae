package render

import (
	"math"
	"testing"
	"time"
)

func fakeClock(step time.Duration) func() time.Time {
	now := time.Unix(0, 0)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestMeter_Average(t *testing.T) {
	m := NewMeter(20)
	m.now = fakeClock(100 * time.Millisecond)

	if got := m.Tick(); got != 0 {
		t.Errorf("first Tick() = %f, want 0", got)
	}
	for i := 0; i < 5; i++ {
		m.Tick()
	}
	if got := m.FPS(); math.Abs(got-10) > 1e-9 {
		t.Errorf("FPS() = %f, want 10", got)
	}
	if got := m.Count(); got != 6 {
		t.Errorf("Count() = %d, want 6", got)
	}
}

func TestMeter_Window(t *testing.T) {
	m := NewMeter(3)
	step := 500 * time.Millisecond
	now := time.Unix(0, 0)
	m.now = func() time.Time {
		now = now.Add(step)
		return now
	}

	m.Tick()
	m.Tick() // 2 fps
	m.Tick() // 2 fps
	step = 100 * time.Millisecond
	m.Tick() // 10 fps
	m.Tick() // 10 fps
	m.Tick() // 10 fps, the 2 fps samples are out of the window

	if got := m.FPS(); math.Abs(got-10) > 1e-9 {
		t.Errorf("FPS() = %f, want 10", got)
	}
	if len(m.samples) != 3 {
		t.Errorf("len(samples) = %d, want 3", len(m.samples))
	}
}

func TestMeter_Reset(t *testing.T) {
	m := NewMeter(0)
	m.now = fakeClock(time.Second)
	m.Tick()
	m.Tick()

	m.Reset()
	if m.FPS() != 0 || m.Count() != 0 {
		t.Errorf("after Reset FPS=%f Count=%d, want 0,0", m.FPS(), m.Count())
	}
	if m.window != DefaultMeterWindow {
		t.Errorf("window = %d, want %d", m.window, DefaultMeterWindow)
	}
}
