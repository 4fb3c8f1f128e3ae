package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/logger"
)

// Channel event names.
const (
	EventFrame = "frame"
	EventBoxes = "boxes"
	EventError = "error"
)

// lateReplyWait bounds how long a request waits for the reply owed to an
// abandoned one before sending its own frame.
const lateReplyWait = 2 * time.Second

// ErrChannelClosed is returned by Analyze once the socket has gone away.
var ErrChannelClosed = errors.New("analysis channel closed")

// envelope is one message on the channel.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Channel is a persistent WebSocket to the detection service. Frames go out
// as "frame" events and each one is answered by a "boxes" or "error" event.
// Only one request is outstanding at a time.
type Channel struct {
	url    string
	dialer *websocket.Dialer

	reqMu    sync.Mutex // serializes Analyze
	owed     bool       // an abandoned request may still be answered; guarded by reqMu
	lateWait time.Duration

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	replies chan Result
}

// NewChannel creates a channel for url. Nothing is dialled until Connect.
func NewChannel(url string) *Channel {
	return &Channel{
		url:      url,
		dialer:   websocket.DefaultDialer,
		lateWait: lateReplyWait,
	}
}

// URL returns the channel address.
func (c *Channel) URL() string { return c.url }

// Connect dials the service and starts reading replies.
func (c *Channel) Connect(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, c.url, err)
	}

	done := make(chan struct{})
	replies := make(chan Result, 1)

	c.reqMu.Lock()
	c.owed = false
	c.reqMu.Unlock()

	c.mu.Lock()
	c.conn = conn
	c.done = done
	c.replies = replies
	c.mu.Unlock()

	go c.readLoop(conn, done, replies)
	return nil
}

func (c *Channel) readLoop(conn *websocket.Conn, done chan struct{}, replies chan Result) {
	defer close(done)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			logger.Debug("Channel", "read from %s ended: %v", c.url, err)
			return
		}

		res, ok := decodeEnvelope(msg)
		if !ok {
			continue
		}

		// Replies nobody waits for are replaced by newer ones.
		select {
		case <-replies:
		default:
		}
		replies <- res
	}
}

// decodeEnvelope maps a reply to a Result. Unknown events are ignored.
func decodeEnvelope(msg []byte) (Result, bool) {
	var env envelope
	if err := json.Unmarshal(msg, &env); err != nil {
		logger.Debug("Channel", "skipping malformed message: %v", err)
		return Result{}, false
	}

	switch env.Event {
	case EventBoxes:
		return decodeResult(env.Data), true
	case EventError:
		var payload struct {
			Error any `json:"error"`
		}
		_ = json.Unmarshal(env.Data, &payload)
		msg := errorText(payload.Error)
		if msg == "" {
			msg = "unknown"
		}
		return Result{Error: msg, Kind: KindRemote}, true
	default:
		logger.Debug("Channel", "ignoring event %q", env.Event)
		return Result{}, false
	}
}

// Analyze sends one frame and waits for its reply.
func (c *Channel) Analyze(ctx context.Context, f *capture.Frame, prompt string) Result {
	if f == nil {
		return Fail(fmt.Errorf("%w: no frame", ErrRemote))
	}

	c.reqMu.Lock()
	defer c.reqMu.Unlock()

	c.mu.Lock()
	conn, done, replies := c.conn, c.done, c.replies
	c.mu.Unlock()

	if conn == nil {
		return Fail(fmt.Errorf("%w: %v", ErrTransport, ErrChannelClosed))
	}

	if c.owed {
		c.discardLate(ctx, replies, done)
	}
	// Drop a reply left over from an abandoned request.
	select {
	case <-replies:
	default:
	}

	data, err := json.Marshal(frameRequest{Image: f.DataURL(), Prompt: prompt})
	if err != nil {
		return Fail(fmt.Errorf("%w: encode request: %v", ErrTransport, err))
	}
	msg, err := json.Marshal(envelope{Event: EventFrame, Data: data})
	if err != nil {
		return Fail(fmt.Errorf("%w: encode request: %v", ErrTransport, err))
	}
	if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return Fail(fmt.Errorf("%w: send frame: %v", ErrTransport, err))
	}

	select {
	case res := <-replies:
		return res
	case <-done:
		return Fail(fmt.Errorf("%w: %v", ErrTransport, ErrChannelClosed))
	case <-ctx.Done():
		c.owed = true
		return Fail(fmt.Errorf("%w: %v", ErrTransport, ctx.Err()))
	}
}

// discardLate waits up to lateWait for the reply to an abandoned request and
// drops it, so it cannot be taken as the answer to the next frame.
func (c *Channel) discardLate(ctx context.Context, replies <-chan Result, done <-chan struct{}) {
	c.owed = false

	t := time.NewTimer(c.lateWait)
	defer t.Stop()

	select {
	case <-replies:
		logger.Debug("Channel", "dropped late reply to an abandoned request")
	case <-t.C:
	case <-done:
	case <-ctx.Done():
	}
}

// Done is closed when the socket closes. It is nil before Connect.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close closes the socket.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
