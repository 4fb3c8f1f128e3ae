package app

import (
	"context"
	"time"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/config"
	"github.com/ayusman/riskcam/internal/controller"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/render"
)

// Mode names.
const (
	ModeOverlay  = "overlay"
	ModeScan     = "scan"
	ModeRealtime = "realtime"
)

// ScanSource tags alerts and gallery saves from the scan mode.
const ScanSource = "monitoring"

// ScanPrompt is sent with every scan frame. It is fixed and not user-editable.
const ScanPrompt = "Analyze this image for signs of self-harm, suicide attempt, or suicidal ideation. " +
	"Look for dangerous objects like knives, ropes, pills, self-inflicted injuries, distressed facial " +
	"expressions indicating suicidal thoughts, or suicide notes/messages."

// RealtimeInterval paces the realtime display at about 30 FPS.
const RealtimeInterval = 33 * time.Millisecond

// Overlay builds the interactive bounding-box mode: local camera frames go
// to the detect endpoint, or over the channel when one is configured.
func (a *App) Overlay() *controller.Controller {
	s := a.settings

	display := analysis.Size{Width: s.Overlay.DisplayWidth, Height: s.Overlay.DisplayHeight}
	sink := render.NewSink(ModeOverlay, render.SinkOptions{
		Overlay:   render.NewOverlay(display, s.Camera.JPEGQuality),
		Notifier:  a.alerter(),
		Highlight: a.highlight,
	})

	opts := controller.Options{
		Source:   capture.NewLocalSource(a.camera(), s.Camera.JPEGQuality),
		Client:   analysis.NewHTTPClient(s.Backend.URL(s.Backend.DetectPath), s.Backend.Timeout()),
		Prompt:   s.Overlay.Prompt,
		Interval: config.Ms(s.Overlay.IntervalMs),
	}
	if s.Backend.ChannelURL != "" {
		opts.Channel = analysis.NewChannel(s.Backend.ChannelURL)
	}

	return a.register(ModeOverlay, sink, opts)
}

// Scan builds the automatic risk monitor over the remote frame stream.
// HIGH results raise the alarm and, when enabled, save the frame to the gallery.
func (a *App) Scan() *controller.Controller {
	s := a.settings

	var extra []render.Notifier
	if s.Scan.SaveToGallery != nil && *s.Scan.SaveToGallery {
		extra = append(extra, &GallerySaver{
			Gallery: a.gallery,
			Journal: a.journal,
			Metrics: a.cfg.Metrics,
			Timeout: s.Backend.Timeout(),
		})
	}

	sink := render.NewSink(ModeScan, render.SinkOptions{
		Source:    ScanSource,
		Threshold: s.Scan.Threshold,
		Notifier:  a.alerter(extra...),
		Highlight: a.highlight,
	})

	src := capture.NewStreamSource(s.Stream.URL)
	a.registerStream(ModeScan, src)

	var dedupe capture.Deduper
	if s.Scan.MinChangePercent > 0 {
		logger.Info("App", "scan skips frames changing less than %.2f%%", s.Scan.MinChangePercent)
		cd := capture.NewChangeDetector(s.Scan.MinChangePercent)
		a.mu.Lock()
		a.closers = append(a.closers, cd.Close)
		a.mu.Unlock()
		dedupe = cd
	}

	return a.register(ModeScan, sink, controller.Options{
		Source:       src,
		Client:       analysis.NewHTTPClient(s.Backend.URL(s.Backend.RiskPath), s.Backend.Timeout()),
		Prompt:       ScanPrompt,
		Interval:     config.Ms(s.Scan.IntervalMs),
		InitialDelay: config.Ms(s.Scan.InitialDelayMs),
		Deduper:      dedupe,
	})
}

// Realtime builds the raw stream display. Frames are shown as received
// without contacting the detection service.
func (a *App) Realtime() *controller.Controller {
	s := a.settings

	sink := render.NewSink(ModeRealtime, render.SinkOptions{})
	src := capture.NewStreamSource(s.Stream.URL)
	a.registerStream(ModeRealtime, src)

	return a.register(ModeRealtime, sink, controller.Options{
		Source:   src,
		Client:   analysis.Passthrough{},
		Interval: RealtimeInterval,
	})
}

// Start starts every built mode. The first failure is returned after all
// modes were attempted.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	views := append([]*view{}, a.views...)
	a.mu.Unlock()

	var first error
	for _, v := range views {
		if err := v.controller.Start(ctx); err != nil {
			logger.Error("App", "%s: %v", v.name, err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

func (a *App) camera() capture.Camera {
	if a.cfg.Camera != nil {
		return a.cfg.Camera
	}
	c := a.settings.Camera
	return capture.NewCamera(c.DeviceID, c.Width, c.Height)
}

func (a *App) registerStream(name string, src *capture.StreamSource) {
	if a.cfg.Metrics == nil {
		return
	}
	a.cfg.Metrics.RegisterStream(name, func() (uint64, uint64) {
		st := src.Stats()
		return st.Received, st.Dropped
	})
}
