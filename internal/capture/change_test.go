package capture

import (
	"testing"

	"gocv.io/x/gocv"
)

func encodeSolid(t *testing.T, v float64) *Frame {
	t.Helper()

	mat := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer mat.Close()
	mat.SetTo(gocv.NewScalar(v, v, v, 0))

	f, err := EncodeMat(mat, 90)
	if err != nil {
		t.Fatalf("EncodeMat() error = %v", err)
	}
	return f
}

func TestChangeDetector_NoReference(t *testing.T) {
	d := NewChangeDetector(1.0)
	defer d.Close()

	if d.Seen(&Frame{Data: []byte("x")}) {
		t.Error("nothing committed, frame should not be seen")
	}
	if d.Seen(nil) {
		t.Error("nil frame should not be seen")
	}
}

func TestChangeDetector_Tolerance(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	tests := []struct {
		name      string
		minChange float64
		first     float64
		second    float64
		wantSeen  bool
	}{
		{name: "identical frames", minChange: 1.0, first: 0, second: 0, wantSeen: true},
		{name: "black to white", minChange: 1.0, first: 0, second: 255, wantSeen: false},
		{name: "small shift below diff threshold", minChange: 1.0, first: 100, second: 110, wantSeen: true},
		{name: "zero tolerance still ignores noise", minChange: 0, first: 100, second: 105, wantSeen: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewChangeDetector(tt.minChange)
			defer d.Close()

			d.Commit(encodeSolid(t, tt.first))
			if got := d.Seen(encodeSolid(t, tt.second)); got != tt.wantSeen {
				t.Errorf("Seen() = %v, want %v", got, tt.wantSeen)
			}
		})
	}
}

func TestChangeDetector_Reset(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := NewChangeDetector(1.0)
	defer d.Close()

	f := encodeSolid(t, 0)
	d.Commit(f)
	if !d.Seen(f) {
		t.Fatal("committed frame should be seen")
	}

	d.Reset()
	if d.Seen(f) {
		t.Error("frame should not be seen after Reset")
	}
}

func TestChangeDetector_UndecodableFrame(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	d := NewChangeDetector(1.0)
	defer d.Close()

	d.Commit(encodeSolid(t, 0))
	if d.Seen(&Frame{Data: []byte("not a jpeg")}) {
		t.Error("undecodable frame should never be seen")
	}
}

func TestChangePercent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	gb := gocv.NewMat()
	defer gb.Close()
	gw := gocv.NewMat()
	defer gw.Close()
	blurGray(black, &gb)
	blurGray(white, &gw)

	if got := changePercent(gb, gb); got != 0 {
		t.Errorf("changePercent(black, black) = %f, want 0", got)
	}
	if got := changePercent(gb, gw); got < 50.0 {
		t.Errorf("changePercent(black, white) = %f, want > 50", got)
	}
}

func TestChangeDetector_Close_Multiple(t *testing.T) {
	d := NewChangeDetector(1.0)

	// Close multiple times should not panic
	d.Close()
	d.Close()
}
