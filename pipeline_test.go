package faceannotate

import (
	"context"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
	"time"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func blankFrame(t *testing.T, rows, cols int) *Frame {
	t.Helper()
	bgr := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
	defer bgr.Close()
	f, err := NewFrame(bgr)
	require.NoError(t, err)
	return f
}

func TestNewFrame(t *testing.T) {
	f := blankFrame(t, 30, 40)
	defer f.Close()

	assert.NotEmpty(t, f.ID)
	assert.Equal(t, 4, f.Color.Channels())
	assert.Equal(t, 1, f.Gray.Channels())
	assert.Equal(t, 30, f.Color.Rows())
	assert.Equal(t, 40, f.Gray.Cols())

	empty := gocv.NewMat()
	defer empty.Close()
	_, err := NewFrame(empty)
	assert.Error(t, err)

	_, err = DecodeFrame(nil)
	assert.Error(t, err)
}

func TestFrame_EncodeRoundTrip(t *testing.T) {
	f := blankFrame(t, 24, 32)
	defer f.Close()

	buf, err := f.EncodeJPEG()
	require.NoError(t, err)

	g, err := DecodeFrame(buf)
	require.NoError(t, err)
	defer g.Close()
	assert.Equal(t, 24, g.Color.Rows())
	assert.Equal(t, 32, g.Color.Cols())
}

func TestNewPipeline_Status(t *testing.T) {
	tests := []struct {
		name string
		cls  Classifier
		err  error
		want Status
	}{
		{"ready", &stubClassifier{}, nil, StatusReady},
		{"nil classifier", nil, nil, StatusClassifierInvalid},
		{"asset copy", nil, &AssetError{Op: "create", Path: "x", Err: os.ErrPermission}, StatusAssetCopyFailed},
		{"invalid", nil, ErrClassifierInvalid, StatusClassifierInvalid},
		{"vision", nil, ErrVisionUnavailable, StatusVisionUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPipeline(tt.cls, tt.err)
			assert.Equal(t, tt.want, p.Status())
			if tt.want == StatusReady {
				assert.NoError(t, p.Err())
			} else {
				assert.Error(t, p.Err())
			}
		})
	}
}

func TestPipeline_ProcessAnnotates(t *testing.T) {
	stub := &stubClassifier{rects: []image.Rectangle{image.Rect(10, 10, 30, 30)}}
	p := NewPipeline(stub, nil)

	f := blankFrame(t, 60, 80)
	defer f.Close()

	res := p.Process(f, OrientationContext{Rotation: Landscape, Facing: Back})
	assert.Equal(t, f.ID, res.FrameID)
	assert.Equal(t, StatusReady.String(), res.Status)
	require.Len(t, res.Boxes, 1)
	assert.True(t, isStroke(f.Color, 10, 10))
}

func TestPipeline_ProcessPassThroughWhenDisabled(t *testing.T) {
	p := NewPipeline(nil, ErrClassifierInvalid)

	f := blankFrame(t, 60, 80)
	defer f.Close()
	before := matChecksum(f.Color)

	var res Result
	assert.NotPanics(t, func() {
		res = p.Process(f, OrientationContext{Rotation: Landscape, Facing: Back})
	})
	assert.Empty(t, res.Boxes)
	assert.Equal(t, StatusClassifierInvalid.String(), res.Status)
	assert.Equal(t, before, matChecksum(f.Color))
	assert.NoError(t, p.Close())
}

type sliceSource struct {
	t      *testing.T
	n      int
	served int
}

func (s *sliceSource) Next(ctx context.Context) (*Frame, OrientationContext, error) {
	if s.served == s.n {
		return nil, OrientationContext{}, io.EOF
	}
	s.served++
	return blankFrame(s.t, 20, 20), OrientationContext{Rotation: Portrait}, nil
}

type recordingSink struct {
	results []Result
}

func (r *recordingSink) Show(f *Frame, res Result) error {
	r.results = append(r.results, res)
	return nil
}

func TestPipeline_RunUntilEOF(t *testing.T) {
	stub := &stubClassifier{rects: []image.Rectangle{image.Rect(1, 1, 5, 5)}}
	p := NewPipeline(stub, nil)

	src := &sliceSource{t: t, n: 3}
	sink := &recordingSink{}
	require.NoError(t, p.Run(context.Background(), src, sink))

	assert.Len(t, sink.results, 3)
	assert.Equal(t, 3, stub.calls)
}

func TestPipeline_RunStopsOnCancel(t *testing.T) {
	p := NewPipeline(&stubClassifier{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sink := &recordingSink{}
	require.NoError(t, p.Run(ctx, &sliceSource{t: t, n: 5}, sink))
	assert.Empty(t, sink.results)
}

// blockingSource waits for the context and reports its error.
type blockingSource struct{}

func (blockingSource) Next(ctx context.Context) (*Frame, OrientationContext, error) {
	<-ctx.Done()
	return nil, OrientationContext{}, ctx.Err()
}

func TestPipeline_RunStopsOnDeadline(t *testing.T) {
	p := NewPipeline(&stubClassifier{}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.NoError(t, p.Run(ctx, blockingSource{}, &recordingSink{}))
}

func TestNewPipeline_ClosesRejectedClassifier(t *testing.T) {
	stub := &stubClassifier{}
	p := NewPipeline(stub, ErrClassifierInvalid)
	assert.Equal(t, StatusClassifierInvalid, p.Status())
	assert.True(t, stub.closed)
	assert.NoError(t, p.Close())
}

func TestLoadAssets_Failures(t *testing.T) {
	work := filepath.Join(t.TempDir(), "cascade")

	_, err := LoadAssets(AssetOptions{Source: fstest.MapFS{}, Name: DefaultCascadeName, WorkDir: work})
	assert.ErrorIs(t, err, ErrAssetCopy)
	assert.Equal(t, StatusAssetCopyFailed, StatusOf(err))

	_, err = LoadAssets(AssetOptions{WorkDir: work})
	assert.ErrorIs(t, err, ErrAssetCopy)

	src := fstest.MapFS{DefaultCascadeName: {Data: nil}}
	_, err = LoadAssets(AssetOptions{Source: src, Name: DefaultCascadeName, WorkDir: work})
	assert.ErrorIs(t, err, ErrClassifierInvalid)
	assert.Equal(t, StatusClassifierInvalid, StatusOf(err))

	picoSrc := fstest.MapFS{DefaultPicoName: {Data: []byte("not a cascade")}}
	_, err = LoadAssets(AssetOptions{Source: picoSrc, WorkDir: work, Backend: BackendPico})
	assert.ErrorIs(t, err, ErrClassifierInvalid)

	_, err = LoadAssets(AssetOptions{Source: src, Name: DefaultCascadeName, WorkDir: work, Backend: "yolo"})
	assert.ErrorIs(t, err, ErrClassifierInvalid)
}

func TestCheckVisionLibrary(t *testing.T) {
	assert.NoError(t, CheckVisionLibrary())
}

// moduleDir locates the source of a dependency in the module cache. The
// gocv and pigo modules ship the fixtures the end-to-end tests need.
func moduleDir(mod string) string {
	version := ""
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, d := range info.Deps {
			if d.Path != mod {
				continue
			}
			if d.Replace != nil && filepath.IsAbs(d.Replace.Path) {
				return d.Replace.Path
			}
			version = d.Version
		}
	}
	cache := os.Getenv("GOMODCACHE")
	if cache == "" {
		if out, err := exec.Command("go", "env", "GOMODCACHE").Output(); err == nil {
			cache = strings.TrimSpace(string(out))
		}
	}
	if cache == "" {
		return ""
	}
	if version != "" {
		return filepath.Join(cache, mod+"@"+version)
	}
	matches, _ := filepath.Glob(filepath.Join(cache, mod+"@*"))
	if len(matches) == 0 {
		return ""
	}
	return matches[len(matches)-1]
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// faceImage returns a photo of a single frontal face.
func faceImage(t *testing.T) string {
	t.Helper()
	p := firstExisting(
		os.Getenv("FACE_IMAGE"),
		filepath.Join("testdata", "face.jpg"),
		filepath.Join(moduleDir("gocv.io/x/gocv"), "images", "face.jpg"),
	)
	if p == "" {
		t.Skip("face image not found, skipping test")
	}
	return p
}

// cascadeSource returns the directory and file name of a usable asset for
// backend.
func cascadeSource(t *testing.T, backend Backend) (string, string) {
	t.Helper()
	var p string
	switch backend {
	case BackendPico:
		p = firstExisting(
			filepath.Join("testdata", DefaultPicoName),
			filepath.Join(moduleDir("github.com/esimov/pigo"), "cascade", DefaultPicoName),
		)
	default:
		p = firstExisting(
			filepath.Join(DefaultCascadeDir, DefaultCascadeName),
			filepath.Join(moduleDir("gocv.io/x/gocv"), "data", "haarcascade_frontalface_default.xml"),
		)
	}
	if p == "" {
		t.Skipf("%s cascade not found, skipping test", backend)
	}
	return filepath.Dir(p), filepath.Base(p)
}

func TestEndToEnd_FaceImage(t *testing.T) {
	for _, backend := range []Backend{BackendHaar, BackendPico} {
		t.Run(string(backend), func(t *testing.T) {
			dir, name := cascadeSource(t, backend)
			facePath := faceImage(t)

			work := t.TempDir()
			unrelated := filepath.Join(work, "unrelated.txt")
			require.NoError(t, os.WriteFile(unrelated, []byte("keep me"), 0o600))

			cls, err := LoadAssets(AssetOptions{
				Source:  os.DirFS(dir),
				Name:    name,
				WorkDir: work,
				Backend: backend,
			})
			p := NewPipeline(cls, err)
			require.Equal(t, StatusReady, p.Status(), "load: %v", p.Err())
			defer p.Close()

			entries, err := os.ReadDir(work)
			require.NoError(t, err)
			require.Len(t, entries, 1)
			assert.Equal(t, "unrelated.txt", entries[0].Name())

			img := gocv.IMRead(facePath, gocv.IMReadColor)
			require.False(t, img.Empty())
			defer img.Close()

			f, err := NewFrame(img)
			require.NoError(t, err)
			defer f.Close()

			res := p.Process(f, OrientationContext{Rotation: Landscape, Facing: Back})
			require.NotEmpty(t, res.Boxes)

			frame := BoundingBox{Width: f.Color.Cols(), Height: f.Color.Rows()}
			for _, b := range res.Boxes {
				assert.Greater(t, b.IoU(frame), 0.0, "box %v outside the frame", b)
			}
			b := res.Boxes[0]
			if b.X >= 0 && b.Y >= 0 {
				assert.True(t, isStroke(f.Color, b.Y, b.X), "no outline at %v", b)
			}
		})
	}
}

func TestBoundingBox_IoU(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}
	assert.InDelta(t, 1.0, a.IoU(a), 1e-9)
	assert.InDelta(t, 0.0, a.IoU(BoundingBox{X: 200, Y: 200, Width: 10, Height: 10}), 1e-9)
	assert.InDelta(t, 1.0/7.0, a.IoU(BoundingBox{X: 50, Y: 50, Width: 100, Height: 100}), 1e-6)
	assert.InDelta(t, 0.25, a.IoU(BoundingBox{X: 25, Y: 25, Width: 50, Height: 50}), 1e-6)
}

func TestCameraSelector_Toggle(t *testing.T) {
	s := NewCameraSelector(Front)
	assert.Equal(t, Front, s.Facing())
	assert.Equal(t, Back, s.Toggle())
	assert.Equal(t, Back, s.Facing())
	assert.Equal(t, Front, s.Toggle())
}
