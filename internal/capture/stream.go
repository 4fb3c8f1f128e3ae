package capture

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/ayusman/riskcam/internal/logger"
)

// DefaultStreamURL is the local raw frame broadcaster.
const DefaultStreamURL = "ws://localhost:8765"

// StreamSource keeps the most recent frame pushed by a broadcast socket.
// The server sends base64 JPEG text frames and expects nothing back.
//
// Only the latest frame is held. A frame overwritten before anyone captured
// it is counted as dropped; staleness is bounded by the push rate.
type StreamSource struct {
	url    string
	dialer *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	done     chan struct{}
	latest   *Frame
	consumed bool

	seq      atomic.Uint64
	received atomic.Uint64
	dropped  atomic.Uint64
}

// StreamStats is a snapshot of the inbound counters.
type StreamStats struct {
	Received uint64 `json:"received"`
	Dropped  uint64 `json:"dropped"`
}

// NewStreamSource creates a source for url. Nothing is dialled until Connect.
func NewStreamSource(url string) *StreamSource {
	if url == "" {
		url = DefaultStreamURL
	}
	return &StreamSource{
		url:    url,
		dialer: websocket.DefaultDialer,
	}
}

// URL returns the broadcast address.
func (s *StreamSource) URL() string { return s.url }

// Connect dials the broadcaster and starts the reader goroutine.
// Any frame left over from a previous connection is discarded.
func (s *StreamSource) Connect(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.url, err)
	}

	done := make(chan struct{})

	s.mu.Lock()
	s.conn = conn
	s.done = done
	s.latest = nil
	s.consumed = false
	s.mu.Unlock()

	go s.readLoop(conn, done)
	return nil
}

func (s *StreamSource) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("Stream", "read from %s ended: %v", s.url, err)
			return
		}

		f, err := ParseFrame(msg)
		if err != nil {
			logger.Debug("Stream", "skipping message: %v", err)
			continue
		}
		f.Seq = s.seq.Add(1)
		s.received.Add(1)
		s.publish(f)
	}
}

// publish overwrites the held frame.
func (s *StreamSource) publish(f *Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest != nil && !s.consumed {
		s.dropped.Add(1)
	}
	s.latest = f
	s.consumed = false
}

// Capture returns the latest received frame, or false before the first one.
// Repeated calls return the same *Frame until a new message arrives.
func (s *StreamSource) Capture() (*Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.latest == nil {
		return nil, false
	}
	s.consumed = true
	return s.latest, true
}

// Done is closed when the socket closes. It is nil before Connect.
func (s *StreamSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Close closes the socket. The reader goroutine exits on its own.
func (s *StreamSource) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Stats returns the inbound counters.
func (s *StreamSource) Stats() StreamStats {
	return StreamStats{
		Received: s.received.Load(),
		Dropped:  s.dropped.Load(),
	}
}
