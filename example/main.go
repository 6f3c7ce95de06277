// example/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/user0608/faceannotate"
	"gocv.io/x/gocv"
)

const (
	keyEsc  = 27
	keyFlip = 'f'
	keyRot  = 'r'
)

// webcam reads frames from a capture device. Which physical camera is
// active is tracked by the selector; the device itself does not change.
type webcam struct {
	capture  *gocv.VideoCapture
	img      gocv.Mat
	camera   *faceannotate.CameraSelector
	rotation faceannotate.Rotation
	emulator bool
}

func (w *webcam) Next(ctx context.Context) (*faceannotate.Frame, faceannotate.OrientationContext, error) {
	oc := faceannotate.OrientationContext{
		Rotation: w.rotation,
		Facing:   w.camera.Facing(),
		Emulator: w.emulator,
	}
	for {
		if err := ctx.Err(); err != nil {
			return nil, oc, err
		}
		if ok := w.capture.Read(&w.img); !ok {
			return nil, oc, io.EOF
		}
		if w.img.Empty() {
			continue
		}
		f, err := faceannotate.NewFrame(w.img)
		return f, oc, err
	}
}

// window shows annotated frames and maps keys to camera gestures.
type window struct {
	win    *gocv.Window
	cam    *webcam
	cancel context.CancelFunc
}

func (w *window) Show(f *faceannotate.Frame, res faceannotate.Result) error {
	w.win.IMShow(f.Color)
	switch key := w.win.WaitKey(1); key {
	case keyEsc:
		w.cancel()
	case keyFlip:
		slog.Info("cámara cambiada", "facing", w.cam.camera.Toggle().String())
	case keyRot:
		w.cam.rotation = w.cam.rotation.Next()
		slog.Info("rotación cambiada", "rotation", w.cam.rotation.String())
	}
	if n := len(res.Boxes); n > 0 {
		slog.Debug("rostros detectados", "frame", res.FrameID, "faces", n)
	}
	return nil
}

func main() {
	var (
		device   = flag.Int("device", 0, "capture device id")
		dir      = flag.String("cascade-dir", faceannotate.DefaultCascadeDir, "directory holding the cascade")
		name     = flag.String("cascade", "", "cascade file name")
		backend  = flag.String("backend", string(faceannotate.BackendHaar), "haar or pico")
		rotation = flag.String("rotation", "landscape", "device rotation")
		facing   = flag.String("facing", "front", "front or back")
		emulator = flag.Bool("emulator", false, "treat the capture as an emulator feed")
		verbose  = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	if *verbose {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}
	if err := run(*device, *dir, *name, faceannotate.Backend(*backend), *rotation, *facing, *emulator); err != nil {
		slog.Error("webcam", "err", err)
		os.Exit(1)
	}
}

func run(device int, dir, name string, backend faceannotate.Backend, rotation, facing string, emulator bool) error {
	rot, err := faceannotate.ParseRotation(rotation)
	if err != nil {
		return err
	}
	face, err := faceannotate.ParseFacing(facing)
	if err != nil {
		return err
	}

	opts := faceannotate.DefaultAssetOptions()
	opts.Source = os.DirFS(dir)
	opts.Name = name
	opts.Backend = backend
	cls, err := faceannotate.LoadAssets(opts)
	pipeline := faceannotate.NewPipeline(cls, err)
	defer pipeline.Close()
	if pipeline.Status() == faceannotate.StatusVisionUnavailable {
		return pipeline.Err()
	}
	if pipeline.Status() != faceannotate.StatusReady {
		slog.Warn("se muestran frames sin anotar", "status", pipeline.Status().String(), "err", pipeline.Err())
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("abrir dispositivo %d: %w", device, err)
	}
	defer vc.Close()

	cam := &webcam{
		capture:  vc,
		img:      gocv.NewMat(),
		camera:   faceannotate.NewCameraSelector(face),
		rotation: rot,
		emulator: emulator,
	}
	defer cam.img.Close()

	win := gocv.NewWindow("faceannotate")
	defer win.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	slog.Info("vista previa iniciada", "device", device, "keys", "f=cambiar cámara r=rotar esc=salir")
	return pipeline.Run(ctx, cam, &window{win: win, cam: cam, cancel: cancel})
}
