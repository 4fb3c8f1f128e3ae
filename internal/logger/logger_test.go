package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "INFO", want: LevelInfo},
		{in: "", want: LevelInfo},
		{in: "warning", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "none", want: LevelSilent},
		{in: "loud", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelWarn, &buf, false)

	l.Info("Scan", "hidden %d", 1)
	l.Warn("Scan", "shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered, got %q", out)
	}
	if !strings.Contains(out, "[WARN] [Scan] shown 2") {
		t.Errorf("warn line missing, got %q", out)
	}
}

func TestLogger_SilentWritesNothing(t *testing.T) {
	var buf bytes.Buffer
	l := New(LevelSilent, &buf, false)

	l.Error("Scan", "boom")

	if buf.Len() != 0 {
		t.Errorf("silent logger wrote %q", buf.String())
	}
}

func TestInit_ReplacesDefault(t *testing.T) {
	var buf bytes.Buffer
	Init(LevelDebug, &buf, false)
	defer Init(LevelInfo, nil, false)

	Debug("Overlay", "frame %d", 7)

	if !strings.Contains(buf.String(), "[DEBUG] [Overlay] frame 7") {
		t.Errorf("global logger output = %q", buf.String())
	}
}
