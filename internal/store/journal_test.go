package store

import (
	"testing"
	"time"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/render"
)

func TestJournal_Notify(t *testing.T) {
	s := setupTestStore(t)
	j := NewJournal(s, true)

	var recorded []*Alert
	j.OnRecord = func(a *Alert) { recorded = append(recorded, a) }

	j.Notify(render.Alert{
		Source:     "monitoring",
		Severity:   render.High,
		Score:      0.81,
		Indicators: []string{"rope"},
		Timestamp:  "2024-05-01T10:00:00",
		At:         time.Now(),
		Frame:      &capture.Frame{Data: []byte{1, 2, 3}},
	})

	if len(recorded) != 1 {
		t.Fatalf("OnRecord called %d times, want 1", len(recorded))
	}

	rows, err := j.Recent(10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Recent() = %d rows, want 1", len(rows))
	}
	got := rows[0]
	if got.ID != recorded[0].ID {
		t.Errorf("ID = %s, want %s", got.ID, recorded[0].ID)
	}
	if got.Severity != "HIGH" || got.Score != 0.81 || !got.HasImage {
		t.Errorf("row = %+v", got)
	}
}

func TestJournal_WithoutImage(t *testing.T) {
	s := setupTestStore(t)
	j := NewJournal(s, false)

	row, err := j.Record(render.Alert{
		Source:   "scan",
		Severity: render.High,
		At:       time.Now(),
		Frame:    &capture.Frame{Data: []byte{1, 2, 3}},
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	got, err := s.Alerts().GetByID(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasImage {
		t.Error("image stored although disabled")
	}
}

func TestJournal_RecordSave(t *testing.T) {
	s := setupTestStore(t)
	j := NewJournal(s, false)

	row, err := j.Record(render.Alert{Source: "monitoring", Severity: render.High, At: time.Now()})
	if err != nil {
		t.Fatal(err)
	}
	j.RecordSave(row.ID, analysis.SaveResult{Original: "/g/1.jpg"})
	j.RecordSave("", analysis.SaveResult{Error: "timeout"})

	saves, err := s.Saves().ListByAlert(row.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(saves) != 1 || saves[0].Original != "/g/1.jpg" {
		t.Errorf("saves = %+v", saves)
	}
	if n, _ := s.Saves().Failures(); n != 1 {
		t.Errorf("Failures() = %d, want 1", n)
	}
}
