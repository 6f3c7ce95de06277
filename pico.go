package faceannotate

import (
	"image"
	"log/slog"
	"os"

	pigo "github.com/esimov/pigo/core"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type PicoOptions struct {
	MinSize      int
	MaxSize      int
	ShiftFactor  float64
	ScaleFactor  float64
	IoUThreshold float64
	MinQuality   float32
}

func DefaultPicoOptions() PicoOptions {
	return PicoOptions{
		MinSize:      20,
		MaxSize:      1000,
		ShiftFactor:  0.1,
		ScaleFactor:  1.1,
		IoUThreshold: 0.2,
		MinQuality:   5.0,
	}
}

// PicoClassifier is a pure Go pixel-intensity-comparison cascade.
type PicoClassifier struct {
	opts PicoOptions
	cls  *pigo.Pigo
}

func NewPicoClassifier(path string, opts *PicoOptions) (*PicoClassifier, error) {
	if err := checkNonEmpty(path); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(ErrClassifierInvalid, err.Error())
	}
	if opts == nil {
		def := DefaultPicoOptions()
		opts = &def
	}
	cls, err := unpack(data)
	if err != nil {
		slog.Error("no se pudo desempaquetar la cascada pico", "path", path, "err", err)
		return nil, errors.Wrapf(ErrClassifierInvalid, "desempaquetar %s: %v", path, err)
	}
	return &PicoClassifier{opts: *opts, cls: cls}, nil
}

// unpack guards against truncated cascades, which pigo indexes without
// bounds checks.
func unpack(data []byte) (cls *pigo.Pigo, err error) {
	defer func() {
		if r := recover(); r != nil {
			cls, err = nil, errors.Errorf("cascada truncada: %v", r)
		}
	}()
	return pigo.NewPigo().Unpack(data)
}

func (c *PicoClassifier) Detect(color gocv.Mat) []image.Rectangle {
	if color.Empty() {
		return nil
	}
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(color, &gray, gocv.ColorBGRAToGray)

	params := pigo.CascadeParams{
		MinSize:     c.opts.MinSize,
		MaxSize:     c.opts.MaxSize,
		ShiftFactor: c.opts.ShiftFactor,
		ScaleFactor: c.opts.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: gray.ToBytes(),
			Rows:   gray.Rows(),
			Cols:   gray.Cols(),
			Dim:    gray.Cols(),
		},
	}
	dets := c.cls.RunCascade(params, 0.0)
	dets = c.cls.ClusterDetections(dets, c.opts.IoUThreshold)

	var rects []image.Rectangle
	for _, d := range dets {
		if d.Q < c.opts.MinQuality {
			continue
		}
		half := d.Scale / 2
		rects = append(rects, image.Rect(d.Col-half, d.Row-half, d.Col-half+d.Scale, d.Row-half+d.Scale))
	}
	return rects
}

func (c *PicoClassifier) Close() error { return nil }
