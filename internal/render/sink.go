package render

import (
	"fmt"
	"sync"
	"time"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/logger"
)

// Alert describes one HIGH classification.
type Alert struct {
	Source     string         `json:"source"`
	Severity   Severity       `json:"severity"`
	Score      float64        `json:"score"`
	Indicators []string       `json:"indicators"`
	Timestamp  string         `json:"timestamp,omitempty"`
	At         time.Time      `json:"at"`
	Frame      *capture.Frame `json:"-"`
}

// Notifier receives alerts. Implementations must not block the caller.
type Notifier interface {
	Notify(a Alert)
}

// Highlighter reports whether the visual alert marker is showing.
type Highlighter interface {
	Active() bool
}

// Status is a snapshot of what a sink currently displays.
type Status struct {
	Name       string    `json:"name"`
	State      string    `json:"state"`
	Severity   Severity  `json:"severity"`
	Score      float64   `json:"score"`
	Indicators []string  `json:"indicators"`
	Boxes      int       `json:"boxes"`
	FPS        float64   `json:"fps"`
	Rendered   uint64    `json:"rendered"`
	Highlight  bool      `json:"highlight"`
	Message    string    `json:"message"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SinkOptions configures a Sink. Every field is optional.
type SinkOptions struct {
	// Source names the origin of alerts, e.g. "monitoring".
	Source string
	// Threshold is the HIGH score threshold; 0 uses DefaultHighThreshold.
	Threshold float64
	Overlay   *Overlay
	Notifier  Notifier
	Highlight Highlighter
	Meter     *Meter
}

// Sink is the terminal stage of a controller: it classifies results, draws
// them, raises alerts and keeps the status line. Render never fails.
type Sink struct {
	name string
	opts SinkOptions

	mu        sync.Mutex
	status    Status
	frame     *capture.Frame
	listeners []func(Status)
}

// NewSink creates a sink named name.
func NewSink(name string, opts SinkOptions) *Sink {
	if opts.Meter == nil {
		opts.Meter = NewMeter(DefaultMeterWindow)
	}
	if opts.Source == "" {
		opts.Source = name
	}
	return &Sink{
		name:   name,
		opts:   opts,
		status: Status{Name: name, State: "idle", Message: "Idle"},
	}
}

// Name returns the sink name.
func (s *Sink) Name() string { return s.name }

// Render displays one analysis outcome for frame f.
func (s *Sink) Render(f *capture.Frame, res analysis.Result) {
	if res.Failed() {
		logger.Warn("Render", "%s: analysis failed: %s", s.name, res.Error)
		s.update(func(st *Status) {
			st.Message = "Error: " + res.Error
		}, nil)
		return
	}

	sev := ClassifyAt(res.Score, res.Indicators, s.opts.Threshold)
	fps := s.opts.Meter.Tick()

	if sev == High && s.opts.Notifier != nil {
		s.opts.Notifier.Notify(Alert{
			Source:     s.opts.Source,
			Severity:   sev,
			Score:      res.Score,
			Indicators: res.Indicators,
			Timestamp:  res.Timestamp,
			At:         time.Now(),
			Frame:      f,
		})
	}

	highlight := s.highlighted()

	var drawn *capture.Frame
	if f != nil {
		drawn = f
		if s.opts.Overlay != nil {
			out, err := s.opts.Overlay.Draw(f, res, highlight)
			if err != nil {
				logger.Debug("Render", "%s: overlay: %v", s.name, err)
			} else {
				drawn = out
			}
		}
	}

	s.update(func(st *Status) {
		st.Severity = sev
		st.Score = res.Score
		st.Indicators = res.Indicators
		st.Boxes = len(res.Boxes)
		st.FPS = fps
		st.Rendered = s.opts.Meter.Count()
		st.Highlight = highlight
		st.Message = message(sev, res, fps, st.Rendered)
	}, drawn)
}

func message(sev Severity, res analysis.Result, fps float64, rendered uint64) string {
	switch {
	case sev == High:
		return fmt.Sprintf("RISK DETECTED - Score: %.3f", res.Score)
	case sev == Moderate:
		return fmt.Sprintf("Moderate risk - Score: %.3f", res.Score)
	case len(res.Boxes) > 0:
		return fmt.Sprintf("Boxes: %d | Avg FPS: %.2f", len(res.Boxes), fps)
	case res.Score > 0 || res.Timestamp != "":
		return "No risk detected"
	default:
		return fmt.Sprintf("Frames: %d | Avg FPS: %.2f", rendered, fps)
	}
}

// SetState records the controller state shown on the status line.
func (s *Sink) SetState(state string) {
	s.update(func(st *Status) { st.State = state }, nil)
}

// SetMessage replaces the status message.
func (s *Sink) SetMessage(msg string) {
	s.update(func(st *Status) { st.Message = msg }, nil)
}

// Refresh re-publishes the current status to listeners. The highlight
// flag is recomputed.
func (s *Sink) Refresh() {
	s.update(func(*Status) {}, nil)
}

// Reset clears results and throughput, keeping the name and state.
func (s *Sink) Reset() {
	s.opts.Meter.Reset()
	s.mu.Lock()
	s.status = Status{Name: s.name, State: s.status.State, Message: s.status.Message, UpdatedAt: time.Now()}
	s.frame = nil
	s.mu.Unlock()
}

// Status returns the current snapshot.
func (s *Sink) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.Highlight = s.highlighted()
	return st
}

// Frame returns the latest displayed frame, or nil.
func (s *Sink) Frame() *capture.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame
}

// OnUpdate registers fn to be called with every new snapshot.
func (s *Sink) OnUpdate(fn func(Status)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Sink) highlighted() bool {
	return s.opts.Highlight != nil && s.opts.Highlight.Active()
}

func (s *Sink) update(change func(*Status), frame *capture.Frame) {
	s.mu.Lock()
	change(&s.status)
	s.status.UpdatedAt = time.Now()
	if frame != nil {
		s.frame = frame
	}
	st := s.status
	st.Highlight = s.highlighted()
	listeners := append([]func(Status){}, s.listeners...)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
