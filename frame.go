package faceannotate

import (
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Frame holds one capture as a BGRA color view and a grayscale view.
type Frame struct {
	ID        string
	Timestamp time.Time
	Color     gocv.Mat
	Gray      gocv.Mat
}

// NewFrame builds both views from a 3-channel BGR capture. The caller
// keeps ownership of bgr.
func NewFrame(bgr gocv.Mat) (*Frame, error) {
	if bgr.Empty() {
		return nil, errors.New("captura vacía")
	}
	if bgr.Channels() != 3 {
		return nil, errors.New("la captura debe ser BGR de 3 canales")
	}
	f := &Frame{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Color:     gocv.NewMat(),
		Gray:      gocv.NewMat(),
	}
	gocv.CvtColor(bgr, &f.Color, gocv.ColorBGRToBGRA)
	gocv.CvtColor(bgr, &f.Gray, gocv.ColorBGRToGray)
	return f, nil
}

// DecodeFrame decodes a PNG or JPEG payload into a Frame.
func DecodeFrame(buf []byte) (*Frame, error) {
	if len(buf) == 0 {
		return nil, errors.New("imagen vacía")
	}
	img, err := gocv.IMDecode(buf, gocv.IMReadColor)
	if err != nil {
		return nil, err
	}
	defer img.Close()
	return NewFrame(img)
}

// EncodeJPEG encodes the color view of f.
func (f *Frame) EncodeJPEG() ([]byte, error) {
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(f.Color, &bgr, gocv.ColorBGRAToBGR)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, bgr)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	out := make([]byte, len(buf.GetBytes()))
	copy(out, buf.GetBytes())
	return out, nil
}

func (f *Frame) Close() {
	f.Color.Close()
	f.Gray.Close()
}

// BoundingBox is an axis-aligned box in frame pixel coordinates.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

func BoxFromRect(r image.Rectangle) BoundingBox {
	return BoundingBox{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// IoU returns the intersection over union of two boxes, 0 when they do not
// overlap.
func (b BoundingBox) IoU(o BoundingBox) float64 {
	inter := b.Rect().Intersect(o.Rect())
	if inter.Empty() {
		return 0
	}
	ia := inter.Dx() * inter.Dy()
	union := b.Width*b.Height + o.Width*o.Height - ia
	return float64(ia) / float64(union)
}
