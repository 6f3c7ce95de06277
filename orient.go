package faceannotate

import (
	"fmt"
	"strings"

	"gocv.io/x/gocv"
)

type Rotation int

const (
	RotationUnknown Rotation = iota
	Portrait
	ReversePortrait
	Landscape
	ReverseLandscape
)

var rotationNames = map[Rotation]string{
	RotationUnknown:  "unknown",
	Portrait:         "portrait",
	ReversePortrait:  "reverse-portrait",
	Landscape:        "landscape",
	ReverseLandscape: "reverse-landscape",
}

func (r Rotation) String() string {
	if n, ok := rotationNames[r]; ok {
		return n
	}
	return rotationNames[RotationUnknown]
}

// Next cycles through the four device rotations.
func (r Rotation) Next() Rotation {
	switch r {
	case Portrait:
		return Landscape
	case Landscape:
		return ReversePortrait
	case ReversePortrait:
		return ReverseLandscape
	default:
		return Portrait
	}
}

func ParseRotation(s string) (Rotation, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "_", "-")
	for r, n := range rotationNames {
		if n == s {
			return r, nil
		}
	}
	return RotationUnknown, fmt.Errorf("rotación desconocida %q", s)
}

type Facing int

const (
	Front Facing = iota
	Back
)

func (f Facing) String() string {
	if f == Back {
		return "back"
	}
	return "front"
}

func ParseFacing(s string) (Facing, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "front":
		return Front, nil
	case "back":
		return Back, nil
	}
	return Front, fmt.Errorf("cámara desconocida %q", s)
}

// OrientationContext describes how the frame was captured.
type OrientationContext struct {
	Rotation Rotation
	Facing   Facing
	Emulator bool
}

// Op is a single flip or transpose applied to a Mat.
type Op int

const (
	FlipX    Op = iota // around the x-axis, OpenCV flip code 0
	FlipY              // around the y-axis, code 1
	FlipBoth           // code -1
	Transpose
)

func (o Op) String() string {
	switch o {
	case FlipX:
		return "flip-x"
	case FlipY:
		return "flip-y"
	case FlipBoth:
		return "flip-both"
	case Transpose:
		return "transpose"
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// Transform lists the ops for each view of a frame, applied in order.
type Transform struct {
	Color []Op
	Gray  []Op
}

// Plan returns the orientation ops for a capture context. The color and
// gray tables differ because the camera layer hands out the gray plane in
// its native sensor orientation.
func Plan(oc OrientationContext) Transform {
	if oc.Emulator {
		return Transform{Color: []Op{FlipY}}
	}
	front := oc.Facing == Front

	var t Transform
	switch oc.Rotation {
	case Portrait, ReversePortrait:
		if front {
			t.Color = []Op{FlipX}
		} else {
			t.Color = []Op{FlipBoth}
		}
	case Landscape, ReverseLandscape:
		if front {
			t.Color = []Op{FlipY}
		}
	}

	switch oc.Rotation {
	case Portrait:
		if front {
			t.Gray = []Op{Transpose, FlipBoth}
		} else {
			t.Gray = []Op{Transpose, FlipY}
		}
	case ReversePortrait:
		if front {
			t.Gray = []Op{Transpose}
		} else {
			t.Gray = []Op{Transpose, FlipX}
		}
	case Landscape:
		if front {
			t.Gray = []Op{FlipY}
		}
	case ReverseLandscape:
		if front {
			t.Gray = []Op{FlipX}
		} else {
			t.Gray = []Op{FlipX, FlipY}
		}
	}
	return t
}

// ApplyOps transforms m in place. Transpose swaps the Mat for a new one
// since the shape changes.
func ApplyOps(m *gocv.Mat, ops []Op) {
	for _, op := range ops {
		switch op {
		case FlipX:
			gocv.Flip(*m, m, 0)
		case FlipY:
			gocv.Flip(*m, m, 1)
		case FlipBoth:
			gocv.Flip(*m, m, -1)
		case Transpose:
			dst := gocv.NewMat()
			gocv.Transpose(*m, &dst)
			m.Close()
			*m = dst
		}
	}
}

// Orient normalizes both views of f so a face appears upright and
// mirrored for a user-facing preview.
func Orient(f *Frame, oc OrientationContext) Transform {
	t := Plan(oc)
	ApplyOps(&f.Color, t.Color)
	ApplyOps(&f.Gray, t.Gray)
	return t
}
