package main

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/riskcam/internal/app"
	"github.com/ayusman/riskcam/internal/controller"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/metrics"
	"github.com/ayusman/riskcam/internal/render"
	"github.com/ayusman/riskcam/internal/server"
	"github.com/ayusman/riskcam/internal/store"
	"github.com/ayusman/riskcam/internal/tray"
)

var (
	noMonitor bool
	withTray  bool
)

var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Draw detection boxes over the local camera",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModes(cmd.Context(), func(a *app.App) { a.Overlay() })
	},
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan the frame stream for risk and raise alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if withTray || settings.Scan.Tray {
			return runScanTray(cmd.Context())
		}
		return runModes(cmd.Context(), func(a *app.App) { a.Scan() })
	},
}

var realtimeCmd = &cobra.Command{
	Use:   "realtime",
	Short: "Display the frame stream without analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runModes(cmd.Context(), func(a *app.App) { a.Realtime() })
	},
}

func init() {
	for _, c := range []*cobra.Command{overlayCmd, scanCmd, realtimeCmd} {
		c.Flags().BoolVar(&noMonitor, "no-monitor", false, "do not serve the monitor HTTP interface")
		rootCmd.AddCommand(c)
	}
	scanCmd.Flags().BoolVar(&withTray, "tray", false, "start stopped and control scanning from the system tray")
}

// session holds what a running mode command owns.
type session struct {
	app     *app.App
	store   *store.Store
	metrics *metrics.Metrics
}

func newSession(build func(*app.App)) (*session, error) {
	st, err := openJournal(settings)
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	a, err := app.New(app.Config{Settings: settings, Metrics: m, Store: st})
	if err != nil {
		if st != nil {
			st.Close()
		}
		return nil, err
	}
	build(a)
	return &session{app: a, store: st, metrics: m}, nil
}

func (s *session) close() {
	s.app.Close()
	if s.store != nil {
		s.store.Close()
	}
}

// serve runs the monitor until ctx is done, or blocks on ctx when disabled.
func (s *session) serve(ctx context.Context) error {
	if noMonitor {
		<-ctx.Done()
		return nil
	}
	srv := server.New(server.Config{
		StaticDir: settings.Monitor.StaticDir,
		Store:     s.store,
		Views:     s.app.Views(),
		Metrics:   s.metrics,
	})
	return srv.Run(ctx, settings.Monitor.Addr)
}

// runModes starts the modes built by build and serves the monitor until
// the context is cancelled.
func runModes(ctx context.Context, build func(*app.App)) error {
	s, err := newSession(build)
	if err != nil {
		return err
	}
	defer s.close()

	if err := startFailure(s.app.Start(ctx), !noMonitor); err != nil {
		return err
	}

	return s.serve(ctx)
}

// startFailure decides whether a failed start ends the command. With the
// monitor up the failure is shown there and the mode stays idle.
func startFailure(err error, monitored bool) error {
	if err == nil || !monitored {
		return err
	}
	logger.Warn("Main", "%v; serving the monitor with the mode stopped", err)
	return nil
}

// runScanTray runs scan mode behind a tray toggle. The tray loop owns the
// main goroutine until Quit.
func runScanTray(ctx context.Context) error {
	var scan *controller.Controller
	s, err := newSession(func(a *app.App) { scan = a.Scan() })
	if err != nil {
		return err
	}
	defer s.close()

	t := tray.New()
	scan.OnState(func(st controller.State) { t.SetState(st.String()) })
	for _, v := range s.app.Views() {
		v.Sink.OnUpdate(func(st render.Status) {
			if st.Severity == render.High {
				t.SetLastAlert(st.UpdatedAt.Format("15:04:05"), st.Score)
			}
		})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	t.OnToggle(func(start bool) {
		if !start {
			scan.Stop()
			return
		}
		if err := scan.Start(ctx); err != nil {
			logger.Warn("Main", "start scan: %v", err)
		}
	})
	t.OnOpen(func() { openBrowser(monitorURL(settings.Monitor.Addr)) })
	t.OnQuit(cancel)

	done := make(chan error, 1)
	go func() { done <- s.serve(ctx) }()
	go func() {
		<-ctx.Done()
		t.Quit()
	}()

	t.Run()
	cancel()
	return <-done
}

func monitorURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logger.Warn("Main", "open %s: %v", url, err)
		return
	}
	go cmd.Wait()
	fmt.Println("Monitor:", url)
}
