package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/logger"
)

// Defaults
const (
	DefaultInterval       = 1500 * time.Millisecond
	DefaultConnectTimeout = 10 * time.Second
	// idleRetry paces the event-driven loop when a tick had nothing to send.
	idleRetry = 100 * time.Millisecond
)

// Skip reasons reported to the Recorder.
const (
	SkipBusy      = "busy"
	SkipNoFrame   = "no_frame"
	SkipDuplicate = "duplicate"
	SkipStale     = "stale"
)

// Transport names.
const (
	TransportHTTP    = "http"
	TransportChannel = "channel"
)

// ErrDisposed is returned by Start after Dispose.
var ErrDisposed = errors.New("controller disposed")

// Channel is a bidirectional analysis transport chosen once per session.
type Channel interface {
	analysis.Client
	Connect(ctx context.Context) error
	Close() error
	Done() <-chan struct{}
}

// Renderer displays results and status text.
type Renderer interface {
	Render(f *capture.Frame, res analysis.Result)
	SetState(state string)
	SetMessage(msg string)
}

// Recorder observes controller activity, typically for metrics.
type Recorder interface {
	Skipped(reason string)
	Started()
	Finished(d time.Duration, res analysis.Result)
}

type nopRecorder struct{}

func (nopRecorder) Skipped(string)                          {}
func (nopRecorder) Started()                                {}
func (nopRecorder) Finished(time.Duration, analysis.Result) {}

type nopRenderer struct{}

func (nopRenderer) Render(*capture.Frame, analysis.Result) {}
func (nopRenderer) SetState(string)                        {}
func (nopRenderer) SetMessage(string)                      {}

// Options configures a Controller.
type Options struct {
	Name   string
	Source capture.Source
	// Client is used when no Channel is configured or it cannot connect.
	Client analysis.Client
	// Channel, when set, is tried first at every Start.
	Channel  Channel
	Sink     Renderer
	Prompt   string
	Interval time.Duration
	// InitialDelay postpones the first timer-driven tick.
	InitialDelay   time.Duration
	ConnectTimeout time.Duration
	Deduper        capture.Deduper
	Recorder       Recorder
}

// session is one Start..Stop cycle.
type session struct {
	id        string
	ctx       context.Context
	stop      chan struct{}
	cancel    context.CancelFunc
	loopDone  chan struct{}
	idle      chan struct{}
	once      sync.Once
	source    capture.Connector
	client    analysis.Client
	channel   bool
	transport string
}

func (s *session) shutdown() {
	s.once.Do(func() {
		close(s.stop)
		s.cancel()
	})
}

// Info is a snapshot of a controller for status surfaces.
type Info struct {
	Name      string `json:"name"`
	State     string `json:"state"`
	Transport string `json:"transport,omitempty"`
	Session   string `json:"session,omitempty"`
	Busy      bool   `json:"busy"`
}

// Controller repeatedly captures a frame, analyzes it and renders the result
// while Active. Analyses never overlap and a result that arrives after the
// session ended is dropped.
type Controller struct {
	opts  Options
	guard Guard

	mu        sync.Mutex
	state     State
	cur       *session
	prompt    string
	observers []func(State)
	disposed  bool

	// renderMu lets halt wait out a render that passed the session check.
	renderMu sync.RWMutex
	inflight sync.WaitGroup
}

// New creates a controller in the Idle state.
func New(opts Options) *Controller {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Deduper == nil {
		opts.Deduper = capture.NewExactMatch()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	if opts.Client == nil {
		opts.Client = analysis.Passthrough{}
	}
	if opts.Sink == nil {
		opts.Sink = nopRenderer{}
	}
	return &Controller{opts: opts, prompt: opts.Prompt}
}

// Name returns the controller name.
func (c *Controller) Name() string { return c.opts.Name }

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info returns a status snapshot.
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	info := Info{Name: c.opts.Name, State: c.state.String(), Busy: c.guard.Busy()}
	if c.cur != nil {
		info.Transport = c.cur.transport
		info.Session = c.cur.id
	}
	return info
}

// Prompt returns the prompt sent with each frame.
func (c *Controller) Prompt() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prompt
}

// SetPrompt changes the prompt for subsequent ticks.
func (c *Controller) SetPrompt(p string) {
	c.mu.Lock()
	c.prompt = p
	c.mu.Unlock()
}

// OnState registers fn to be called after every state change.
func (c *Controller) OnState(fn func(State)) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// setStateLocked applies e and returns the new state. Caller holds mu.
func (c *Controller) setStateLocked(e Event) State {
	next := Next(c.state, e)
	if next != c.state {
		logger.Debug("Controller", "%s: %s --%s--> %s", c.opts.Name, c.state, e, next)
	}
	c.state = next
	return next
}

func (c *Controller) emit(s State) {
	c.mu.Lock()
	observers := append([]func(State){}, c.observers...)
	c.mu.Unlock()

	c.opts.Sink.SetState(s.String())
	for _, fn := range observers {
		fn(s)
	}
}

func (c *Controller) message(msg string) {
	c.opts.Sink.SetMessage(msg)
}

// Start connects the transports and begins the loop. It is a no-op unless
// the controller is Idle. A source that cannot connect returns the
// controller to Idle; a channel that cannot connect falls back to Client.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return ErrDisposed
	}
	if c.state != Idle {
		c.mu.Unlock()
		return nil
	}

	connCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	s := &session{
		id:        uuid.NewString(),
		ctx:       ctx,
		stop:      make(chan struct{}),
		cancel:    cancel,
		loopDone:  make(chan struct{}),
		idle:      make(chan struct{}),
		client:    c.opts.Client,
		transport: TransportHTTP,
	}
	c.cur = s
	st := c.setStateLocked(EventStart)
	c.mu.Unlock()

	c.opts.Deduper.Reset()
	c.emit(st)
	c.message("Connecting...")
	logger.Info("Controller", "%s: starting session %s", c.opts.Name, s.id)

	if conn, ok := c.opts.Source.(capture.Connector); ok {
		if err := conn.Connect(connCtx); err != nil {
			logger.Warn("Controller", "%s: connection failed: %v", c.opts.Name, err)
			c.fail(s, "Connection failed")
			return fmt.Errorf("connect source: %w", err)
		}
		s.source = conn
	}

	if c.opts.Channel != nil {
		if err := c.opts.Channel.Connect(connCtx); err != nil {
			logger.Warn("Controller", "%s: channel unavailable, using HTTP fallback: %v", c.opts.Name, err)
			c.message("Using HTTP fallback")
		} else {
			s.client = c.opts.Channel
			s.channel = true
			s.transport = TransportChannel
			c.message("Channel connected")
		}
	}
	cancel()

	c.mu.Lock()
	if c.cur != s || c.state != Connecting {
		// Stopped while connecting; halt closes the transports.
		c.mu.Unlock()
		close(s.loopDone)
		return nil
	}
	st = c.setStateLocked(EventReady)
	c.mu.Unlock()

	c.emit(st)
	logger.Info("Controller", "%s: active over %s", c.opts.Name, s.transport)
	go c.loop(s)
	return nil
}

// fail returns a session that never became Active to Idle.
func (c *Controller) fail(s *session, msg string) {
	s.cancel()
	defer close(s.loopDone)

	c.mu.Lock()
	if c.cur != s || c.state != Connecting {
		c.mu.Unlock()
		return
	}
	st := c.setStateLocked(EventFail)
	c.cur = nil
	c.mu.Unlock()

	close(s.idle)
	c.message(msg)
	c.emit(st)
}

// Stop ends the current session and waits until the controller is Idle.
// It is a no-op when Idle. An analysis in flight finishes on its own but its
// result is not rendered.
func (c *Controller) Stop() {
	c.mu.Lock()
	s := c.cur
	c.mu.Unlock()
	c.halt(s, EventStop, "Stopped")
}

// halt drives s through Stopping to Idle.
func (c *Controller) halt(s *session, e Event, msg string) {
	if s == nil {
		return
	}

	c.mu.Lock()
	if c.cur != s {
		c.mu.Unlock()
		return
	}
	if c.state == Stopping {
		c.mu.Unlock()
		<-s.idle
		return
	}
	if c.state != Active && c.state != Connecting {
		c.mu.Unlock()
		return
	}
	st := c.setStateLocked(e)
	s.shutdown()
	c.mu.Unlock()

	// No render from this session can start after this point.
	c.renderMu.Lock()
	c.renderMu.Unlock()

	c.emit(st)
	<-s.loopDone

	c.closeTransports(s)
	c.guard.Reset()
	c.opts.Deduper.Reset()

	c.mu.Lock()
	st = c.setStateLocked(EventStopped)
	c.cur = nil
	c.mu.Unlock()

	close(s.idle)
	c.message(msg)
	c.emit(st)
	logger.Info("Controller", "%s: session %s ended (%s)", c.opts.Name, s.id, e)
}

func (c *Controller) closeTransports(s *session) {
	if s.source != nil {
		if err := s.source.Close(); err != nil {
			logger.Debug("Controller", "%s: close source: %v", c.opts.Name, err)
		}
	}
	if s.channel {
		if err := c.opts.Channel.Close(); err != nil {
			logger.Debug("Controller", "%s: close channel: %v", c.opts.Name, err)
		}
	}
}

// Dispose stops the controller and releases the source for good.
func (c *Controller) Dispose() {
	c.mu.Lock()
	if c.disposed {
		c.mu.Unlock()
		return
	}
	c.disposed = true
	c.mu.Unlock()

	c.Stop()
	c.inflight.Wait()

	if closer, ok := c.opts.Source.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.Debug("Controller", "%s: release source: %v", c.opts.Name, err)
		}
	}
}

// Wait blocks until every analysis started so far has returned.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// current reports whether s is still the live, Active session.
func (c *Controller) current(s *session) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur == s && c.state == Active
}

func (c *Controller) loop(s *session) {
	defer close(s.loopDone)

	var srcDone, chDone <-chan struct{}
	if s.source != nil {
		srcDone = s.source.Done()
	}
	if s.channel {
		chDone = c.opts.Channel.Done()
	}

	closed := func(what string) {
		logger.Warn("Controller", "%s: %s closed", c.opts.Name, what)
		go c.halt(s, EventClosed, "Connection closed")
	}

	if s.channel {
		c.runEvents(s, srcDone, chDone, closed)
		return
	}
	c.runTimer(s, srcDone, closed)
}

// runTimer ticks after the initial delay and then at a fixed interval.
func (c *Controller) runTimer(s *session, srcDone <-chan struct{}, closed func(string)) {
	timer := time.NewTimer(c.opts.InitialDelay)
	defer timer.Stop()

	var ticker *time.Ticker
	var tickC <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-s.stop:
			return
		case <-srcDone:
			closed("source")
			return
		case <-timer.C:
			c.tick(s)
			ticker = time.NewTicker(c.opts.Interval)
			tickC = ticker.C
		case <-tickC:
			c.tick(s)
		}
	}
}

// runEvents submits the next frame as soon as the previous analysis completes.
func (c *Controller) runEvents(s *session, srcDone, chDone <-chan struct{}, closed func(string)) {
	for {
		select {
		case <-s.stop:
			return
		default:
		}

		done := c.tick(s)
		var retry <-chan time.Time
		if done == nil {
			retry = time.After(idleRetry)
		}

		select {
		case <-s.stop:
			return
		case <-srcDone:
			closed("source")
			return
		case <-chDone:
			closed("channel")
			return
		case <-done:
		case <-retry:
		}
	}
}

// tick submits one frame unless the guard is held, no frame is available or
// the frame repeats the last one analyzed. It returns a channel closed when
// the analysis finishes, or nil when nothing was submitted.
func (c *Controller) tick(s *session) <-chan struct{} {
	rec := c.opts.Recorder

	tok, ok := c.guard.TryAcquire()
	if !ok {
		rec.Skipped(SkipBusy)
		return nil
	}

	f, ok := c.opts.Source.Capture()
	if !ok || f == nil {
		c.guard.Release(tok)
		rec.Skipped(SkipNoFrame)
		return nil
	}

	if c.opts.Deduper.Seen(f) {
		c.guard.Release(tok)
		rec.Skipped(SkipDuplicate)
		logger.Debug("Controller", "%s: frame unchanged, skipping analysis", c.opts.Name)
		return nil
	}
	c.opts.Deduper.Commit(f)

	prompt := c.Prompt()
	done := make(chan struct{})
	started := time.Now()
	rec.Started()
	c.inflight.Add(1)

	go func() {
		defer c.inflight.Done()
		defer close(done)

		res := s.client.Analyze(s.ctx, f, prompt)
		rec.Finished(time.Since(started), res)
		c.guard.Release(tok)

		c.renderMu.RLock()
		defer c.renderMu.RUnlock()
		if !c.current(s) {
			rec.Skipped(SkipStale)
			return
		}
		c.opts.Sink.Render(f, res)
	}()

	return done
}
