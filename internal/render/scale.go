package render

import (
	"image"
	"math"

	"github.com/ayusman/riskcam/internal/analysis"
)

// ScaleBox maps a box from the reference size to the display size.
// Each axis is scaled on its own; aspect ratio is not preserved.
func ScaleBox(b analysis.Box, from, to analysis.Size) image.Rectangle {
	if from.Empty() {
		from = to
	}
	sx := float64(to.Width) / float64(from.Width)
	sy := float64(to.Height) / float64(from.Height)

	x1, y1, x2, y2 := b.Box[0], b.Box[1], b.Box[2], b.Box[3]
	return image.Rect(
		int(math.Round(x1*sx)),
		int(math.Round(y1*sy)),
		int(math.Round(x2*sx)),
		int(math.Round(y2*sy)),
	)
}
