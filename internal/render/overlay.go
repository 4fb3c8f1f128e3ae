package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/riskcam/internal/analysis"
	"github.com/ayusman/riskcam/internal/capture"
)

var (
	boxColor       = color.RGBA{R: 0, G: 255, B: 87, A: 255}
	chipColor      = color.RGBA{R: 0, G: 0, B: 0, A: 140}
	textColor      = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	highlightColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

const (
	boxThickness       = 2
	highlightThickness = 8
	labelScale         = 0.45
	labelPad           = 2
	labelHeight        = 14
)

// Overlay draws detection boxes onto a copy of a frame. Every call starts
// from the source frame, so nothing from earlier results remains.
type Overlay struct {
	display analysis.Size
	quality int
}

// NewOverlay creates an overlay. An empty display size keeps the frame size.
func NewOverlay(display analysis.Size, quality int) *Overlay {
	if quality < 1 || quality > 100 {
		quality = capture.DefaultJPEGQuality
	}
	return &Overlay{display: display, quality: quality}
}

// Draw returns a new frame with the result's boxes drawn on it. When
// highlight is set a thick red border marks the frame.
func (o *Overlay) Draw(f *capture.Frame, res analysis.Result, highlight bool) (*capture.Frame, error) {
	src, err := capture.DecodeFrame(f)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	img := src
	if !o.display.Empty() && (o.display.Width != src.Cols() || o.display.Height != src.Rows()) {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(src, &resized, image.Pt(o.display.Width, o.display.Height), 0, 0, gocv.InterpolationLinear)
		img = resized
	}

	to := analysis.Size{Width: img.Cols(), Height: img.Rows()}
	from := res.Size
	if from.Empty() {
		from = analysis.Size{Width: src.Cols(), Height: src.Rows()}
	}

	if !res.Failed() {
		for _, b := range res.Boxes {
			rect := ScaleBox(b, from, to)
			gocv.Rectangle(&img, rect, boxColor, boxThickness)
			if b.Label != "" {
				drawLabel(&img, rect.Min, b.Label)
			}
		}
	}

	if highlight {
		gocv.Rectangle(&img, image.Rect(0, 0, img.Cols()-1, img.Rows()-1), highlightColor, highlightThickness)
	}

	out, err := capture.EncodeMat(img, o.quality)
	if err != nil {
		return nil, err
	}
	out.Seq = f.Seq
	out.CapturedAt = f.CapturedAt
	return out, nil
}

// drawLabel puts a dark chip with the label text just above the box corner.
func drawLabel(img *gocv.Mat, at image.Point, label string) {
	size := gocv.GetTextSize(label, gocv.FontHersheySimplex, labelScale, 1)
	top := at.Y - labelHeight
	if top < 0 {
		top = at.Y
	}
	chip := image.Rect(at.X, top, at.X+size.X+labelPad*2, top+labelHeight)
	gocv.Rectangle(img, chip, chipColor, -1)
	gocv.PutText(img, label, image.Pt(at.X+labelPad, top+labelHeight-3), gocv.FontHersheySimplex, labelScale, textColor, 1)
}
