package faceannotate

import (
	"context"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type Backend string

const (
	BackendHaar Backend = "haar"
	BackendPico Backend = "pico"
)

// AssetOptions says where the packaged cascade lives and where it is
// unpacked before loading.
type AssetOptions struct {
	Source  fs.FS
	Name    string
	WorkDir string
	Backend Backend
	Haar    *Options
	Pico    *PicoOptions
}

func DefaultAssetOptions() AssetOptions {
	return AssetOptions{
		Source:  os.DirFS(DefaultCascadeDir),
		Name:    DefaultCascadeName,
		WorkDir: filepath.Join(os.TempDir(), "faceannotate", "cascade"),
		Backend: BackendHaar,
	}
}

// CheckVisionLibrary reports whether OpenCV is linked and usable.
func CheckVisionLibrary() error {
	if gocv.OpenCVVersion() == "" {
		return ErrVisionUnavailable
	}
	return nil
}

// LoadAssets extracts the packaged cascade, loads and validates it, then
// removes its private extraction directory. WorkDir itself and anything
// else in it are left alone. A returned error is terminal.
func LoadAssets(opts AssetOptions) (Classifier, error) {
	if err := CheckVisionLibrary(); err != nil {
		return nil, err
	}
	if opts.Source == nil {
		return nil, &AssetError{Op: "open", Path: opts.Name, Err: errors.New("sin origen de recursos")}
	}
	if opts.Name == "" {
		opts.Name = DefaultCascadeName
		if opts.Backend == BackendPico {
			opts.Name = DefaultPicoName
		}
	}
	path, err := ExtractAsset(opts.Source, opts.Name, opts.WorkDir)
	if err != nil {
		slog.Error("no se pudo extraer la cascada", "name", opts.Name, "err", err)
		return nil, err
	}

	var cls Classifier
	switch opts.Backend {
	case BackendPico:
		cls, err = NewPicoClassifier(path, opts.Pico)
	case BackendHaar, "":
		cls, err = NewHaarClassifier(path, opts.Haar)
	default:
		err = errors.Wrapf(ErrClassifierInvalid, "backend desconocido %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	CleanupAsset(path)
	return cls, nil
}

// Result describes what happened to one frame.
type Result struct {
	FrameID string        `json:"frame_id"`
	Boxes   []BoundingBox `json:"boxes"`
	Status  string        `json:"status"`
}

type FrameSource interface {
	Next(ctx context.Context) (*Frame, OrientationContext, error)
}

type FrameSink interface {
	Show(f *Frame, res Result) error
}

// Pipeline orients, detects and annotates frames one at a time. Its
// status is fixed at construction.
type Pipeline struct {
	detector *Detector
	status   Status
	err      error
}

// NewPipeline takes the outcome of LoadAssets. A non-nil loadErr leaves
// the pipeline in pass-through mode for good.
func NewPipeline(cls Classifier, loadErr error) *Pipeline {
	p := &Pipeline{status: StatusOf(loadErr), err: loadErr}
	if loadErr == nil && cls == nil {
		p.status = StatusClassifierInvalid
		p.err = errors.Wrap(ErrClassifierInvalid, "clasificador nulo")
	}
	if p.status == StatusReady {
		p.detector = NewDetector(cls)
		return p
	}
	if cls != nil {
		cls.Close()
	}
	slog.Error("detector deshabilitado", "status", p.status.String(), "err", p.err)
	return p
}

func (p *Pipeline) Status() Status { return p.status }

func (p *Pipeline) Err() error { return p.err }

// Process runs one frame through orientation, detection and annotation.
// The frame is modified in place.
func (p *Pipeline) Process(f *Frame, oc OrientationContext) Result {
	Orient(f, oc)
	res := Result{FrameID: f.ID, Status: p.status.String()}
	if p.status != StatusReady {
		return res
	}
	res.Boxes = p.detector.Detect(f.Color)
	Annotate(&f.Color, res.Boxes)
	return res
}

// Run pulls frames from src until ctx is done or src is exhausted. Each
// frame is released before the next one is requested.
func (p *Pipeline) Run(ctx context.Context, src FrameSource, sink FrameSink) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		f, oc, err := src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		res := p.Process(f, oc)
		err = sink.Show(f, res)
		f.Close()
		if err != nil {
			return err
		}
	}
}

func (p *Pipeline) Close() error {
	return p.detector.Close()
}
