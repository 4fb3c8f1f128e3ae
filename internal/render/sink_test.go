package render

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
)

type recordingNotifier struct {
	mu     sync.Mutex
	alerts []Alert
}

func (n *recordingNotifier) Notify(a Alert) {
	n.mu.Lock()
	n.alerts = append(n.alerts, a)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type fixedHighlight bool

func (h fixedHighlight) Active() bool { return bool(h) }

func TestSink_RenderFailedResult(t *testing.T) {
	n := &recordingNotifier{}
	s := NewSink("scan", SinkOptions{Notifier: n})

	// Score and indicators next to an error must never be read
	s.Render(&capture.Frame{Data: []byte("x")}, analysis.Result{
		Error:      "x",
		Score:      0.99,
		Indicators: []string{"knife"},
		Boxes:      []analysis.Box{{Box: [4]float64{0, 0, 1, 1}}},
	})

	st := s.Status()
	if st.Message != "Error: x" {
		t.Errorf("Message = %q, want %q", st.Message, "Error: x")
	}
	if st.Severity != Low || st.Score != 0 || st.Boxes != 0 || st.Indicators != nil {
		t.Errorf("failed result leaked into status: %+v", st)
	}
	if n.count() != 0 {
		t.Errorf("alerts = %d, want 0", n.count())
	}
	if s.Frame() != nil {
		t.Error("failed result should not replace the displayed frame")
	}
	if st.Rendered != 0 {
		t.Errorf("Rendered = %d, want 0", st.Rendered)
	}
}

func TestSink_RenderSeverity(t *testing.T) {
	tests := []struct {
		name       string
		res        analysis.Result
		want       Severity
		wantAlerts int
		wantMsg    string
	}{
		{name: "high", res: analysis.Result{Score: 0.6}, want: High, wantAlerts: 1, wantMsg: "RISK DETECTED - Score: 0.600"},
		{name: "moderate", res: analysis.Result{Score: 0.35}, want: Moderate, wantMsg: "Moderate risk"},
		{name: "indicator", res: analysis.Result{Score: 0.1, Indicators: []string{"rope"}}, want: High, wantAlerts: 1},
		{name: "low", res: analysis.Result{Score: 0.1}, want: Low, wantMsg: "No risk detected"},
		{name: "boxes", res: analysis.Result{Boxes: []analysis.Box{{}, {}}}, want: Low, wantMsg: "Boxes: 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			s := NewSink("scan", SinkOptions{Notifier: n, Source: "monitoring"})
			f := &capture.Frame{Data: []byte("x")}

			s.Render(f, tt.res)

			st := s.Status()
			if st.Severity != tt.want {
				t.Errorf("Severity = %v, want %v", st.Severity, tt.want)
			}
			if n.count() != tt.wantAlerts {
				t.Errorf("alerts = %d, want %d", n.count(), tt.wantAlerts)
			}
			if tt.wantAlerts > 0 {
				a := n.alerts[0]
				if a.Source != "monitoring" || a.Frame != f {
					t.Errorf("alert = %+v", a)
				}
			}
			if tt.wantMsg != "" && !strings.HasPrefix(st.Message, tt.wantMsg) {
				t.Errorf("Message = %q, want prefix %q", st.Message, tt.wantMsg)
			}
			if s.Frame() != f {
				t.Error("without an overlay the source frame should be displayed")
			}
		})
	}
}

func TestSink_Threshold(t *testing.T) {
	n := &recordingNotifier{}
	s := NewSink("scan", SinkOptions{Notifier: n, Threshold: 0.9})

	s.Render(nil, analysis.Result{Score: 0.6})
	if n.count() != 0 {
		t.Error("score below raised threshold should not alert")
	}
	if got := s.Status().Severity; got != Moderate {
		t.Errorf("Severity = %v, want MODERATE", got)
	}
}

func TestSink_StateAndListeners(t *testing.T) {
	s := NewSink("overlay", SinkOptions{Highlight: fixedHighlight(true)})

	var got []Status
	s.OnUpdate(func(st Status) { got = append(got, st) })

	s.SetState("connecting")
	s.SetMessage("Using HTTP fallback")
	s.Render(nil, analysis.Result{})

	if len(got) != 3 {
		t.Fatalf("listener calls = %d, want 3", len(got))
	}
	if got[0].State != "connecting" {
		t.Errorf("State = %q", got[0].State)
	}
	if got[1].Message != "Using HTTP fallback" {
		t.Errorf("Message = %q", got[1].Message)
	}
	if !s.Status().Highlight {
		t.Error("Highlight should follow the highlighter")
	}

	s.Reset()
	st := s.Status()
	if st.State != "connecting" || st.Rendered != 0 {
		t.Errorf("after Reset: %+v", st)
	}
}

type switchHighlight struct{ on atomic.Bool }

func (h *switchHighlight) Active() bool { return h.on.Load() }

func TestSink_RefreshPublishesHighlight(t *testing.T) {
	h := &switchHighlight{}
	h.on.Store(true)
	s := NewSink("scan", SinkOptions{Highlight: h})

	var got []Status
	s.OnUpdate(func(st Status) { got = append(got, st) })

	s.Render(nil, analysis.Result{Score: 0.9})
	h.on.Store(false)
	s.Refresh()

	if len(got) != 2 {
		t.Fatalf("listener calls = %d, want 2", len(got))
	}
	if !got[0].Highlight || got[1].Highlight {
		t.Errorf("highlight = %v then %v, want true then false", got[0].Highlight, got[1].Highlight)
	}
	if got[1].Severity != High || got[1].Score != 0.9 {
		t.Errorf("Refresh changed the result: %+v", got[1])
	}
}
