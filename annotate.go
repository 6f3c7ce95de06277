package faceannotate

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

var (
	// StrokeColor lands in channel 2 of a BGRA frame: red.
	StrokeColor = color.RGBA{R: 255, A: 255}
	// StrokeWidth is one pixel, 8-connected.
	StrokeWidth = 1
)

// Annotate outlines every box on frame in place and returns frame. Edges
// falling outside the frame are clipped, not moved onto the border.
func Annotate(frame *gocv.Mat, boxes []BoundingBox) *gocv.Mat {
	if frame == nil || frame.Empty() {
		return frame
	}
	bounds := image.Rect(0, 0, frame.Cols(), frame.Rows())
	for _, b := range boxes {
		r := b.Rect()
		if !r.Overlaps(bounds) {
			continue
		}
		gocv.RectangleWithParams(frame, r, StrokeColor, StrokeWidth, gocv.Line8, 0)
	}
	return frame
}
