package capture

import "testing"

func TestExactMatch(t *testing.T) {
	a := &Frame{Data: []byte{1, 2, 3}}
	sameBytes := &Frame{Data: []byte{1, 2, 3}}
	other := &Frame{Data: []byte{4, 5, 6}}

	d := NewExactMatch()
	if d.Seen(a) {
		t.Fatal("nothing committed, frame should not be seen")
	}

	d.Commit(a)

	tests := []struct {
		name  string
		frame *Frame
		want  bool
	}{
		{name: "same pointer", frame: a, want: true},
		{name: "same bytes", frame: sameBytes, want: true},
		{name: "different bytes", frame: other, want: false},
		{name: "nil frame", frame: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Seen(tt.frame); got != tt.want {
				t.Errorf("Seen() = %v, want %v", got, tt.want)
			}
		})
	}

	d.Reset()
	if d.Seen(a) {
		t.Error("frame should not be seen after Reset")
	}
}
