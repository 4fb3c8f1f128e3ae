package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestAlertRepository_CreateAndGet(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Alerts()

	a := &Alert{
		ID:              "a1",
		Source:          "monitoring",
		Severity:        "HIGH",
		Score:           0.72,
		Indicators:      []string{"rope", "ledge"},
		RemoteTimestamp: "2024-05-01T10:00:00",
		Image:           []byte{0xff, 0xd8, 0xff, 0xd9},
	}
	if err := repo.Create(a); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if a.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := repo.GetByID("a1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Source != "monitoring" || got.Severity != "HIGH" || got.Score != 0.72 {
		t.Errorf("GetByID() = %+v", got)
	}
	if len(got.Indicators) != 2 || got.Indicators[0] != "rope" || got.Indicators[1] != "ledge" {
		t.Errorf("Indicators = %v, want [rope ledge]", got.Indicators)
	}
	if got.RemoteTimestamp != "2024-05-01T10:00:00" {
		t.Errorf("RemoteTimestamp = %q", got.RemoteTimestamp)
	}
	if !got.HasImage || len(got.Image) != 4 {
		t.Errorf("image not stored: has=%v len=%d", got.HasImage, len(got.Image))
	}
}

func TestAlertRepository_GetByID_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Alerts().GetByID("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("GetByID() error = %v, want ErrNotFound", err)
	}
}

func TestAlertRepository_RejectsUnknownSeverity(t *testing.T) {
	s := setupTestStore(t)

	err := s.Alerts().Create(&Alert{ID: "x", Source: "scan", Severity: "EXTREME"})
	if err == nil {
		t.Error("Create() with unknown severity should fail")
	}
}

func TestAlertRepository_Recent(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Alerts()

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"old", "mid", "new"} {
		a := &Alert{
			ID:        id,
			Source:    "scan",
			Severity:  "HIGH",
			Score:     0.5,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Create(a); err != nil {
			t.Fatalf("Create(%s) error = %v", id, err)
		}
	}

	got, err := repo.Recent(2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) returned %d rows", len(got))
	}
	if got[0].ID != "new" || got[1].ID != "mid" {
		t.Errorf("Recent order = [%s %s], want [new mid]", got[0].ID, got[1].ID)
	}
	if got[0].Image != nil {
		t.Error("Recent should not load images")
	}
	if got[0].Indicators == nil {
		t.Error("Indicators should decode to an empty slice")
	}

	n, err := repo.Count()
	if err != nil || n != 3 {
		t.Errorf("Count() = %d, %v; want 3", n, err)
	}
}

func TestAlertRepository_RecentEmpty(t *testing.T) {
	s := setupTestStore(t)

	got, err := s.Alerts().Recent(0)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("Recent() = %v, want empty non-nil slice", got)
	}
}

func TestAlertRepository_Delete(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Alerts()

	if err := repo.Create(&Alert{ID: "d", Source: "scan", Severity: "HIGH"}); err != nil {
		t.Fatal(err)
	}
	if err := repo.Delete("d"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := repo.Delete("d"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestAlertRepository_DeleteBefore(t *testing.T) {
	s := setupTestStore(t)
	repo := s.Alerts()

	now := time.Now()
	old := &Alert{ID: "old", Source: "scan", Severity: "HIGH", CreatedAt: now.Add(-48 * time.Hour)}
	fresh := &Alert{ID: "fresh", Source: "scan", Severity: "HIGH", CreatedAt: now}
	for _, a := range []*Alert{old, fresh} {
		if err := repo.Create(a); err != nil {
			t.Fatal(err)
		}
	}

	n, err := repo.DeleteBefore(now.Add(-24 * time.Hour))
	if err != nil {
		t.Fatalf("DeleteBefore() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteBefore() removed %d, want 1", n)
	}
	if _, err := repo.GetByID("fresh"); err != nil {
		t.Errorf("fresh alert removed: %v", err)
	}
}

func TestSaveRepository(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Alerts().Create(&Alert{ID: "a", Source: "monitoring", Severity: "HIGH"}); err != nil {
		t.Fatal(err)
	}

	saves := s.Saves()
	ok := &Save{AlertID: "a", Original: "/gallery/1.jpg"}
	if err := saves.Create(ok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if ok.ID == 0 {
		t.Error("ID not set")
	}
	if err := saves.Create(&Save{Error: "upstream 500"}); err != nil {
		t.Fatalf("Create() without alert error = %v", err)
	}

	list, err := saves.ListByAlert("a")
	if err != nil {
		t.Fatalf("ListByAlert() error = %v", err)
	}
	if len(list) != 1 || list[0].Original != "/gallery/1.jpg" {
		t.Errorf("ListByAlert() = %+v", list)
	}

	n, err := saves.Failures()
	if err != nil || n != 1 {
		t.Errorf("Failures() = %d, %v; want 1", n, err)
	}

	// Deleting the alert cascades to its saves.
	if err := s.Alerts().Delete("a"); err != nil {
		t.Fatal(err)
	}
	list, _ = saves.ListByAlert("a")
	if len(list) != 0 {
		t.Errorf("saves survived alert delete: %d", len(list))
	}
}

func TestSaveRepository_UnknownAlertRejected(t *testing.T) {
	s := setupTestStore(t)

	if err := s.Saves().Create(&Save{AlertID: "ghost"}); err == nil {
		t.Error("Create() referencing a missing alert should fail")
	}
}
