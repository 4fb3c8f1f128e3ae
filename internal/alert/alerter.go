package alert

import (
	"context"
	"sync"
	"time"

	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/render"
)

// beepTimeout bounds one alarm pattern including its fallback.
const beepTimeout = 5 * time.Second

// Alerter fans a HIGH alert out to the alarm, the highlight and any extra
// notifiers. Notify returns immediately; every reaction runs on its own
// goroutine and a panic in one of them is logged and dropped.
type Alerter struct {
	beeper    Beeper
	highlight *Highlight
	notifiers []render.Notifier

	wg sync.WaitGroup
}

// Options configures an Alerter. Nil fields disable that reaction.
type Options struct {
	Beeper    Beeper
	Highlight *Highlight
	Notifiers []render.Notifier
}

func New(opts Options) *Alerter {
	return &Alerter{
		beeper:    opts.Beeper,
		highlight: opts.Highlight,
		notifiers: opts.Notifiers,
	}
}

// Add registers another notifier. It is not safe to call concurrently with Notify.
func (a *Alerter) Add(n render.Notifier) {
	a.notifiers = append(a.notifiers, n)
}

// Notify implements render.Notifier.
func (a *Alerter) Notify(al render.Alert) {
	logger.Info("Alert", "%s risk from %s, score %.3f, indicators %v", al.Severity, al.Source, al.Score, al.Indicators)

	if a.highlight != nil {
		a.highlight.Trigger()
	}
	if a.beeper != nil {
		a.spawn("beep", a.beep)
	}
	for _, n := range a.notifiers {
		n := n
		a.spawn("notify", func() { n.Notify(al) })
	}
}

// beep plays the alarm, falling back to a single tone. Audio failures are swallowed.
func (a *Alerter) beep() {
	ctx, cancel := context.WithTimeout(context.Background(), beepTimeout)
	defer cancel()

	err := a.beeper.Play(ctx, AlarmTones)
	if err == nil {
		return
	}
	logger.Debug("Alert", "alarm failed: %v", err)

	if err := a.beeper.Play(ctx, FallbackTones); err != nil {
		logger.Debug("Alert", "fallback tone failed: %v", err)
	}
}

func (a *Alerter) spawn(what string, fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				logger.Warn("Alert", "%s panicked: %v", what, r)
			}
		}()
		fn()
	}()
}

// Wait blocks until all reactions started so far have finished.
func (a *Alerter) Wait() {
	a.wg.Wait()
}
