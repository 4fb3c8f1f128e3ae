package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/riskcam/internal/logger"
)

// Change detection constants
const (
	// GaussianBlurSize is the kernel size for Gaussian blur (21x21)
	GaussianBlurSize = 21
	// DiffThreshold is the binary threshold for difference detection
	DiffThreshold = 25
)

// ChangeDetector is a Deduper that tolerates small pixel differences.
// A frame counts as seen when less than minChange percent of its pixels
// differ from the last committed frame.
type ChangeDetector struct {
	minChange float64

	mu      sync.Mutex
	ref     gocv.Mat
	hasRef  bool
	pending *Frame
	pendMat gocv.Mat
}

// NewChangeDetector creates a detector. minChange is a percentage in [0,100];
// 0 only suppresses frames that are pixel-identical after blurring.
func NewChangeDetector(minChange float64) *ChangeDetector {
	if minChange < 0 {
		minChange = 0
	}
	return &ChangeDetector{
		minChange: minChange,
		ref:       gocv.NewMat(),
		pendMat:   gocv.NewMat(),
	}
}

// Seen reports whether f is close enough to the committed reference.
// Frames that cannot be decoded are never treated as seen.
func (d *ChangeDetector) Seen(f *Frame) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f == nil || !d.hasRef {
		return false
	}

	blurred, ok := d.prepare(f)
	if !ok {
		return false
	}

	changed := changePercent(blurred, d.ref)
	logger.Debug("Change", "frame %d changed %.2f%%", f.Seq, changed)
	if d.minChange == 0 {
		return changed == 0
	}
	return changed < d.minChange
}

// Commit stores f as the reference frame.
func (d *ChangeDetector) Commit(f *Frame) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if f == nil {
		return
	}
	blurred, ok := d.prepare(f)
	if !ok {
		return
	}
	blurred.CopyTo(&d.ref)
	d.hasRef = true
}

// prepare returns the blurred grayscale version of f, reusing the result of
// the previous call for the same frame.
func (d *ChangeDetector) prepare(f *Frame) (gocv.Mat, bool) {
	if d.pending == f && !d.pendMat.Empty() {
		return d.pendMat, true
	}

	mat, err := DecodeFrame(f)
	if err != nil {
		logger.Debug("Change", "decode frame %d: %v", f.Seq, err)
		return d.pendMat, false
	}
	defer mat.Close()

	blurGray(mat, &d.pendMat)
	d.pending = f
	return d.pendMat, true
}

// blurGray converts src to grayscale and applies a Gaussian blur to reduce noise.
func blurGray(src gocv.Mat, dst *gocv.Mat) {
	gray := gocv.NewMat()
	defer gray.Close()

	if src.Channels() > 1 {
		gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	} else {
		src.CopyTo(&gray)
	}
	gocv.GaussianBlur(gray, dst, image.Point{X: GaussianBlurSize, Y: GaussianBlurSize}, 0, 0, gocv.BorderDefault)
}

func changePercent(a, b gocv.Mat) float64 {
	if a.Rows() != b.Rows() || a.Cols() != b.Cols() {
		return 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(a, b, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	total := thresh.Rows() * thresh.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(thresh)) / float64(total) * 100.0
}

// Reset drops the reference frame.
func (d *ChangeDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hasRef = false
	d.pending = nil
}

// Close releases resources used by the detector.
func (d *ChangeDetector) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.ref.Close()
	d.pendMat.Close()
	d.ref = gocv.NewMat()
	d.pendMat = gocv.NewMat()
	d.hasRef = false
	d.pending = nil
}
