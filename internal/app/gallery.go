package app

import (
	"context"
	"time"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/metrics"
	"github.com/ayusman/riskcam/internal/render"
	"github.com/ayusman/riskcam/internal/store"
)

// GallerySaver stores alert frames in the remote gallery. Failures are
// logged and never reach the caller.
type GallerySaver struct {
	Gallery *analysis.Gallery
	// Journal and Metrics are optional.
	Journal *store.Journal
	Metrics *metrics.Metrics
	Timeout time.Duration
}

// Notify implements render.Notifier.
func (g *GallerySaver) Notify(a render.Alert) {
	if a.Frame == nil {
		return
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = analysis.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res := g.Gallery.CaptureAndSave(ctx, SaveRequestFor(a))

	if g.Journal != nil {
		g.Journal.RecordSave("", res)
	}
	if res.Error != "" {
		logger.Warn("Gallery", "failed to save risk frame: %s", res.Error)
		if g.Metrics != nil {
			g.Metrics.GalleryErrors.Add(1)
		}
		return
	}

	logger.Info("Gallery", "risk frame saved to gallery: %s", res.Original)
	if g.Metrics != nil {
		g.Metrics.GallerySaves.Add(1)
	}
}

// SaveRequestFor builds the gallery request for an alert: no re-detection,
// saved to the gallery, tagged with the alert details.
func SaveRequestFor(a render.Alert) analysis.SaveRequest {
	ts := a.Timestamp
	if ts == "" {
		ts = a.At.Format(time.RFC3339)
	}
	indicators := a.Indicators
	if indicators == nil {
		indicators = []string{}
	}
	source := a.Source
	if source == "" {
		source = ScanSource
	}

	return analysis.SaveRequest{
		Image:         a.Frame.DataURL(),
		RunDetection:  false,
		SaveToGallery: true,
		Metadata: map[string]any{
			"timestamp":  ts,
			"score":      a.Score,
			"indicators": indicators,
			"source":     source,
		},
	}
}
