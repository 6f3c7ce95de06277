package faceannotate

import (
	"image"
	"log/slog"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Classifier is a loaded, validated face classifier.
type Classifier interface {
	Detect(color gocv.Mat) []image.Rectangle
	Close() error
}

type Options struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
	MaxSize      int
}

// DefaultOptions matches OpenCV's detectMultiScale defaults.
func DefaultOptions() Options {
	return Options{
		ScaleFactor:  1.1,
		MinNeighbors: 3,
	}
}

type HaarClassifier struct {
	opts Options
	mu   sync.Mutex
	cls  gocv.CascadeClassifier
}

func NewHaarClassifier(path string, opts *Options) (*HaarClassifier, error) {
	if path == "" {
		slog.Error("ruta de cascada vacía")
		return nil, errors.Wrap(ErrClassifierInvalid, "ruta requerida")
	}
	if err := checkNonEmpty(path); err != nil {
		return nil, err
	}
	if opts == nil {
		def := DefaultOptions()
		opts = &def
	}
	cls := gocv.NewCascadeClassifier()
	if !cls.Load(path) {
		cls.Close()
		slog.Error("no se pudo cargar haarcascade", "path", path)
		return nil, errors.Wrapf(ErrClassifierInvalid, "carga de %s", path)
	}
	return &HaarClassifier{opts: *opts, cls: cls}, nil
}

func (c *HaarClassifier) Detect(color gocv.Mat) []image.Rectangle {
	if color.Empty() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cls.DetectMultiScaleWithParams(
		color,
		c.opts.ScaleFactor, c.opts.MinNeighbors, 0,
		image.Pt(c.opts.MinSize, c.opts.MinSize),
		image.Pt(c.opts.MaxSize, c.opts.MaxSize),
	)
}

func (c *HaarClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cls.Close()
}

func checkNonEmpty(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return errors.Wrap(ErrClassifierInvalid, err.Error())
	}
	if st.Size() == 0 {
		return errors.Wrapf(ErrClassifierInvalid, "%s vacío", path)
	}
	return nil
}

// Detector runs a classifier over oriented color frames. A Detector
// without a classifier finds nothing.
type Detector struct {
	cls Classifier
}

func NewDetector(cls Classifier) *Detector {
	return &Detector{cls: cls}
}

func (d *Detector) Ready() bool {
	return d != nil && d.cls != nil
}

// Detect returns the raw classifier boxes. Overlapping boxes are kept.
func (d *Detector) Detect(color gocv.Mat) []BoundingBox {
	if !d.Ready() {
		return nil
	}
	rects := d.cls.Detect(color)
	boxes := make([]BoundingBox, 0, len(rects))
	for _, r := range rects {
		boxes = append(boxes, BoxFromRect(r))
	}
	return boxes
}

func (d *Detector) Close() error {
	if !d.Ready() {
		return nil
	}
	return d.cls.Close()
}
