package faceannotate

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrAssetCopy         = errors.New("copia del recurso de cascada falló")
	ErrClassifierInvalid = errors.New("clasificador de cascada inválido")
	ErrVisionUnavailable = errors.New("biblioteca de visión no disponible")
)

// AssetError reports a failed step while extracting a packaged cascade.
// It matches ErrAssetCopy with errors.Is.
type AssetError struct {
	Op   string
	Path string
	Err  error
}

func (e *AssetError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *AssetError) Unwrap() error { return e.Err }

func (e *AssetError) Is(target error) bool { return target == ErrAssetCopy }

// Status is the health of a pipeline for the lifetime of the process.
type Status int

const (
	StatusPending Status = iota
	StatusReady
	StatusAssetCopyFailed
	StatusClassifierInvalid
	StatusVisionUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusAssetCopyFailed:
		return "asset_copy_failed"
	case StatusClassifierInvalid:
		return "classifier_invalid"
	case StatusVisionUnavailable:
		return "vision_unavailable"
	default:
		return "pending"
	}
}

// StatusOf maps an initialization error to the status it leaves the
// pipeline in. A nil error means ready.
func StatusOf(err error) Status {
	switch {
	case err == nil:
		return StatusReady
	case errors.Is(err, ErrVisionUnavailable):
		return StatusVisionUnavailable
	case errors.Is(err, ErrAssetCopy):
		return StatusAssetCopyFailed
	default:
		return StatusClassifierInvalid
	}
}
