// Package app wires sources, analysis clients, sinks and alerting into the
// riskcam modes: overlay, scan, realtime and batch analyze.
package app

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/ayusman/riskcam/internal/alert"
	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/config"
	"github.com/ayusman/riskcam/internal/controller"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/metrics"
	"github.com/ayusman/riskcam/internal/render"
	"github.com/ayusman/riskcam/internal/server"
	"github.com/ayusman/riskcam/internal/store"
)

// Config holds what the application is built from.
type Config struct {
	Settings *config.Config
	// Metrics and Store are optional.
	Metrics *metrics.Metrics
	Store   *store.Store
	// Camera overrides the configured capture device.
	Camera capture.Camera
	// Bell receives the terminal bell when no beep command is installed.
	Bell io.Writer
}

// view is one running mode.
type view struct {
	name       string
	controller *controller.Controller
	sink       *render.Sink
	recorder   *metrics.ControllerMetrics
}

// App owns the controllers of the modes that were built and the alerting
// shared between them.
type App struct {
	cfg       Config
	settings  *config.Config
	highlight *alert.Highlight
	beeper    alert.Beeper
	notifiers []render.Notifier
	journal   *store.Journal
	gallery   *analysis.Gallery

	mu       sync.Mutex
	views    []*view
	alerters []*alert.Alerter
	closers  []func()
}

// New builds the shared alerting stack. Modes are added with Overlay, Scan
// and Realtime.
func New(cfg Config) (*App, error) {
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	s := cfg.Settings

	a := &App{
		cfg:       cfg,
		settings:  s,
		highlight: alert.NewHighlight(config.Ms(s.Alert.HighlightMs)),
		gallery: analysis.NewGallery(
			s.Backend.URL(s.Backend.UploadPath),
			s.Backend.URL(s.Backend.SavePath),
			s.Backend.Timeout(),
		),
	}

	a.highlight.OnChange(func(bool) { a.refreshViews() })

	if s.Alert.Beep != nil && *s.Alert.Beep {
		bell := cfg.Bell
		if bell == nil {
			bell = os.Stdout
		}
		a.beeper = alert.NewSystemBeeper(bell)
	}

	if cfg.Metrics != nil {
		a.notifiers = append(a.notifiers, countAlerts{m: cfg.Metrics})
	}

	if mailer := alert.NewMailer(s.Alert.SMTP, s.Scan.Threshold); mailer != nil {
		logger.Info("App", "e-mail alerts enabled for %s", s.Alert.SMTP.To)
		a.notifiers = append(a.notifiers, mailer)
	}

	hooks, err := a.loadHooks()
	if err != nil {
		return nil, err
	}
	if hooks != nil {
		a.notifiers = append(a.notifiers, hooks)
	}

	if cfg.Store != nil {
		a.journal = store.NewJournal(cfg.Store, s.Journal.Images)
		if cfg.Metrics != nil {
			a.journal.OnRecord = func(*store.Alert) { cfg.Metrics.AlertsJournal.Add(1) }
		}
		a.notifiers = append(a.notifiers, a.journal)
	}

	return a, nil
}

func (a *App) loadHooks() (*alert.Hooks, error) {
	s := a.settings.Alert

	var hooks []*alert.Hook
	if len(s.Hook) > 0 {
		h, err := alert.CommandHook(s.Hook)
		if err != nil {
			return nil, fmt.Errorf("alert hook: %w", err)
		}
		hooks = append(hooks, h)
	}
	if s.HookDir != "" {
		found, err := alert.DiscoverHooks(s.HookDir)
		if err != nil {
			return nil, fmt.Errorf("discover hooks: %w", err)
		}
		hooks = append(hooks, found...)
	}

	for _, h := range hooks {
		logger.Info("App", "alert hook %s (%s)", h.Manifest.Name, h.Executable)
	}
	return alert.NewHooks(alert.NewExecutor(s.HookTimeoutMs), hooks, s.HookImage), nil
}

// alerter creates the Alert fan-out for one mode.
func (a *App) alerter(extra ...render.Notifier) *alert.Alerter {
	notifiers := append(append([]render.Notifier{}, a.notifiers...), extra...)
	al := alert.New(alert.Options{
		Beeper:    a.beeper,
		Highlight: a.highlight,
		Notifiers: notifiers,
	})

	a.mu.Lock()
	a.alerters = append(a.alerters, al)
	a.mu.Unlock()
	return al
}

// register builds the controller for a mode and records it.
func (a *App) register(name string, sink *render.Sink, opts controller.Options) *controller.Controller {
	opts.Name = name
	opts.Sink = sink

	var rec *metrics.ControllerMetrics
	if a.cfg.Metrics != nil {
		rec = a.cfg.Metrics.Controller(name)
		opts.Recorder = rec
		sink.OnUpdate(func(st render.Status) { rec.FPS(st.FPS) })
	}

	c := controller.New(opts)
	c.OnState(func(st controller.State) {
		logger.Debug("App", "%s is %s", name, st)
		if st == controller.Connecting {
			sink.Reset()
		}
	})

	a.mu.Lock()
	a.views = append(a.views, &view{name: name, controller: c, sink: sink, recorder: rec})
	a.mu.Unlock()
	return c
}

// refreshViews re-publishes every sink status, e.g. when the highlight clears.
func (a *App) refreshViews() {
	a.mu.Lock()
	views := append([]*view{}, a.views...)
	a.mu.Unlock()

	for _, v := range views {
		v.sink.Refresh()
	}
}

// Views returns the monitor views of every built mode.
func (a *App) Views() []server.View {
	a.mu.Lock()
	defer a.mu.Unlock()

	views := make([]server.View, 0, len(a.views))
	for _, v := range a.views {
		sv := server.View{Sink: v.sink, Controller: v.controller}
		if v.recorder != nil {
			sv.Counts = v.recorder.Counts
		}
		views = append(views, sv)
	}
	return views
}

// Controller returns the controller of a built mode, or nil.
func (a *App) Controller(name string) *controller.Controller {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, v := range a.views {
		if v.name == name {
			return v.controller
		}
	}
	return nil
}

// Highlight returns the shared visual alert marker.
func (a *App) Highlight() *alert.Highlight {
	return a.highlight
}

// Journal returns the alert journal, or nil when no store is configured.
func (a *App) Journal() *store.Journal {
	return a.journal
}

// Close disposes every controller and waits for pending alert reactions.
func (a *App) Close() {
	a.mu.Lock()
	views := append([]*view{}, a.views...)
	alerters := append([]*alert.Alerter{}, a.alerters...)
	closers := append([]func(){}, a.closers...)
	a.mu.Unlock()

	for _, v := range views {
		v.controller.Dispose()
	}
	for _, al := range alerters {
		al.Wait()
	}
	for _, fn := range closers {
		fn()
	}
	a.highlight.Stop()
	logger.Info("App", "stopped")
}

// countAlerts counts every alert raised.
type countAlerts struct {
	m *metrics.Metrics
}

func (c countAlerts) Notify(render.Alert) {
	c.m.AlertsRaised.Add(1)
}
