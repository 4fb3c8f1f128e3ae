package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
	"github.com/ayusman/riskcam/internal/logger"
	"github.com/ayusman/riskcam/internal/render"
)

// UploadSource tags alerts raised by batch analysis.
const UploadSource = "upload"

// BatchResult is the outcome for one uploaded file.
type BatchResult struct {
	Path     string          `json:"path"`
	Result   analysis.Result `json:"result"`
	Severity render.Severity `json:"severity"`
}

// BatchSummary counts batch outcomes by severity.
type BatchSummary struct {
	Total    int `json:"total"`
	High     int `json:"high"`
	Moderate int `json:"moderate"`
	Low      int `json:"low"`
	Failed   int `json:"failed"`
}

// AnalyzeFiles uploads each file for risk analysis, one at a time, and
// classifies the replies with the scan threshold. HIGH files raise alerts.
// Progress is drawn to progress when it is not nil.
func (a *App) AnalyzeFiles(ctx context.Context, paths []string, progress io.Writer) []BatchResult {
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Analyzing"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	notifier := a.alerter()
	threshold := a.settings.Scan.Threshold

	results := make([]BatchResult, 0, len(paths))
	for _, path := range paths {
		if ctx.Err() != nil {
			logger.Warn("Analyze", "cancelled with %d of %d files done", len(results), len(paths))
			break
		}

		res := a.gallery.UploadAndAnalyze(ctx, path)
		br := BatchResult{Path: path, Result: res}
		if res.Failed() {
			logger.Warn("Analyze", "%s: %s", path, res.Error)
		} else {
			br.Severity = render.ClassifyAt(res.Score, res.Indicators, threshold)
			logger.Debug("Analyze", "%s: %s (%.3f)", path, br.Severity, res.Score)
			if br.Severity == render.High {
				notifier.Notify(uploadAlert(path, res))
			}
		}

		results = append(results, br)
		bar.Add(1)
	}

	notifier.Wait()
	return results
}

func uploadAlert(path string, res analysis.Result) render.Alert {
	al := render.Alert{
		Source:     UploadSource,
		Severity:   render.High,
		Score:      res.Score,
		Indicators: res.Indicators,
		Timestamp:  res.Timestamp,
		At:         time.Now(),
	}
	if data, err := os.ReadFile(path); err == nil {
		al.Frame = &capture.Frame{Data: data, CapturedAt: al.At}
	}
	return al
}

// Summarize counts results by severity. Failed uploads are counted apart.
func Summarize(results []BatchResult) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Result.Failed():
			s.Failed++
		case r.Severity == render.High:
			s.High++
		case r.Severity == render.Moderate:
			s.Moderate++
		default:
			s.Low++
		}
	}
	return s
}
