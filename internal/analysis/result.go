// Package analysis talks to the external detection service. Every call
// returns a Result; failures are carried inside it and never escape as errors.
package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTransport is a network, timeout or connection failure.
	ErrTransport = errors.New("transport error")
	// ErrRemote is a failure reported by the service or an unreadable reply.
	ErrRemote = errors.New("remote error")
)

// Kind records which class of failure produced a Result.
type Kind int

const (
	KindNone Kind = iota
	KindTransport
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindRemote:
		return "remote"
	default:
		return "none"
	}
}

// Box is one detection in source-image pixel coordinates (x1, y1, x2, y2).
type Box struct {
	Box   [4]float64 `json:"box_2d"`
	Label string     `json:"label,omitempty"`
}

// Size is the reference resolution boxes are expressed in.
// On the wire it is a two-element array [width, height].
type Size struct {
	Width  int
	Height int
}

// Empty reports whether either dimension is unset.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

func (s Size) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{s.Width, s.Height})
}

func (s *Size) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}

	var arr []float64
	if err := json.Unmarshal(b, &arr); err == nil {
		if len(arr) != 2 {
			return fmt.Errorf("size: want 2 elements, got %d", len(arr))
		}
		s.Width, s.Height = int(arr[0]), int(arr[1])
		return nil
	}

	var obj struct {
		Width  float64 `json:"width"`
		Height float64 `json:"height"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return fmt.Errorf("size: %w", err)
	}
	s.Width, s.Height = int(obj.Width), int(obj.Height)
	return nil
}

// Result is the outcome of one analysis. When Error is set no other field
// carries meaning; check Failed first.
type Result struct {
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators,omitempty"`
	Boxes      []Box    `json:"boxes,omitempty"`
	Size       Size     `json:"size"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Error      string   `json:"error,omitempty"`
	Kind       Kind     `json:"-"`
}

// Failed reports whether the analysis did not produce usable data.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Fail builds a failed Result. err should wrap ErrTransport or ErrRemote.
func Fail(err error) Result {
	kind := KindRemote
	if errors.Is(err, ErrTransport) {
		kind = KindTransport
	}
	return Result{Error: err.Error(), Kind: kind}
}

// wireResult accepts an error field of any JSON type.
type wireResult struct {
	Score      float64  `json:"score"`
	Indicators []string `json:"indicators"`
	Boxes      []Box    `json:"boxes"`
	Size       Size     `json:"size"`
	Timestamp  string   `json:"timestamp"`
	Error      any      `json:"error"`
}

// decodeResult turns a response body into a Result.
func decodeResult(body []byte) Result {
	var w wireResult
	if err := json.Unmarshal(body, &w); err != nil {
		return Fail(fmt.Errorf("%w: invalid response: %v", ErrRemote, err))
	}
	if msg := errorText(w.Error); msg != "" {
		return Result{Error: msg, Kind: KindRemote}
	}
	return Result{
		Score:      w.Score,
		Indicators: w.Indicators,
		Boxes:      w.Boxes,
		Size:       w.Size,
		Timestamp:  w.Timestamp,
	}
}

func errorText(v any) string {
	switch e := v.(type) {
	case nil:
		return ""
	case string:
		return e
	case bool:
		if e {
			return "unknown error"
		}
		return ""
	default:
		return fmt.Sprint(e)
	}
}
