// Package capture provides frame sources for riskcam: a local camera via GoCV
// and a remote broadcast stream via WebSocket.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"
)

const dataURLPrefix = "data:image/jpeg;base64,"

// ErrEmptyFrame is returned when an inbound message carries no image data.
var ErrEmptyFrame = errors.New("empty frame")

// Frame is one encoded still image. Data is JPEG and must not be modified
// after the frame has been handed out by a Source.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	CapturedAt time.Time
	Seq        uint64
}

// Base64 returns the standard base64 encoding of the image bytes.
func (f *Frame) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// DataURL returns the frame as a JPEG data URL, the form the detection API expects.
func (f *Frame) DataURL() string {
	return dataURLPrefix + f.Base64()
}

// Same reports whether two frames carry identical image bytes.
func (f *Frame) Same(other *Frame) bool {
	if f == nil || other == nil {
		return false
	}
	if f == other {
		return true
	}
	return bytes.Equal(f.Data, other.Data)
}

// ParseFrame decodes a base64 JPEG, with or without a data URL prefix.
func ParseFrame(text []byte) (*Frame, error) {
	s := strings.TrimSpace(string(text))
	if i := strings.Index(s, ";base64,"); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+len(";base64,"):]
	}
	if s == "" {
		return nil, ErrEmptyFrame
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFrame
	}

	return &Frame{Data: data, CapturedAt: time.Now()}, nil
}

// Source produces the current frame. It returns false when no frame is
// available; that is never an error for the caller.
type Source interface {
	Capture() (*Frame, bool)
}

// Connector is implemented by sources that depend on a network transport.
// Done is closed when the transport goes away after a successful Connect.
type Connector interface {
	Connect(ctx context.Context) error
	Close() error
	Done() <-chan struct{}
}
