package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/render"
)

// streamInterval caps the MJPEG rate at about 15 FPS.
const streamInterval = 66 * time.Millisecond

// StreamHandler serves the latest rendered frame of a sink as MJPEG.
type StreamHandler struct {
	sinks []*render.Sink
}

// NewStreamHandler creates a StreamHandler. The first sink is the default.
func NewStreamHandler(sinks []*render.Sink) *StreamHandler {
	return &StreamHandler{sinks: sinks}
}

func (h *StreamHandler) pick(name string) *render.Sink {
	if name == "" && len(h.sinks) > 0 {
		return h.sinks[0]
	}
	for _, s := range h.sinks {
		if s.Name() == name {
			return s
		}
	}
	return nil
}

// ServeHTTP streams MJPEG frames to connected clients.
// The view query parameter selects a sink by name.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sink := h.pick(r.URL.Query().Get("view"))
	if sink == nil {
		http.Error(w, "Unknown view", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var last *capture.Frame
	for {
		if f := sink.Frame(); f != nil && f != last {
			if err := writePart(w, f.Data); err != nil {
				return
			}
			last = f
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "\r\n"); err != nil {
		return err
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
