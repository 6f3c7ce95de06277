package main

import (
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/user0608/faceannotate"
	"github.com/user0608/goones/answer"
	"github.com/user0608/goones/errs"
	"gocv.io/x/gocv"
)

var acceptedTypes = []string{"image/png", "image/jpeg"}

type handler struct {
	pipeline  *faceannotate.Pipeline
	camera    *faceannotate.CameraSelector
	maxUpload int64
}

func newHandler(p *faceannotate.Pipeline, cam *faceannotate.CameraSelector, maxUpload int64) *handler {
	return &handler{pipeline: p, camera: cam, maxUpload: maxUpload}
}

// orientation reads rotation, facing and emulator from the query string.
// Facing falls back to the active camera.
func (h *handler) orientation(c echo.Context) (faceannotate.OrientationContext, error) {
	oc := faceannotate.OrientationContext{Facing: h.camera.Facing()}
	if v := c.QueryParam("rotation"); v != "" {
		r, err := faceannotate.ParseRotation(v)
		if err != nil {
			return oc, err
		}
		oc.Rotation = r
	}
	if v := c.QueryParam("facing"); v != "" {
		f, err := faceannotate.ParseFacing(v)
		if err != nil {
			return oc, err
		}
		oc.Facing = f
	}
	if v := c.QueryParam("emulator"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return oc, err
		}
		oc.Emulator = b
	}
	return oc, nil
}

func (h *handler) readImage(c echo.Context) ([]byte, error) {
	content, err := io.ReadAll(io.LimitReader(c.Request().Body, h.maxUpload+1))
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, errs.BadRequestDirect("la foto enviada está incompleta o dañada")
		}
		return nil, errs.InternalErrorDirect("no se pudo leer el cuerpo de la solicitud")
	}
	if len(content) == 0 {
		return nil, errs.BadRequestDirect("la foto enviada en la solicitud está vacía")
	}
	if int64(len(content)) > h.maxUpload {
		return nil, errs.BadRequestDirect("la foto enviada supera el tamaño máximo")
	}
	mime := mimetype.Detect(content)
	if !slices.Contains(acceptedTypes, mime.String()) {
		return nil, errs.BadRequestDirect("solo se aceptan imágenes en formato PNG o JPG")
	}
	return content, nil
}

// process decodes, annotates and re-encodes one image.
func (h *handler) process(content []byte, oc faceannotate.OrientationContext) ([]byte, faceannotate.Result, error) {
	frame, err := faceannotate.DecodeFrame(content)
	if err != nil {
		slog.Warn("no se pudo decodificar la imagen", "err", err)
		return nil, faceannotate.Result{}, errs.BadRequestDirect("no se pudo decodificar la imagen")
	}
	defer frame.Close()

	res := h.pipeline.Process(frame, oc)
	out, err := frame.EncodeJPEG()
	if err != nil {
		slog.Error("no se pudo codificar la imagen", "frame", frame.ID, "err", err)
		return nil, res, errs.InternalErrorDirect("no se pudo codificar la imagen")
	}
	slog.Debug("frame procesado", "frame", frame.ID, "faces", len(res.Boxes), "status", res.Status)
	return out, res, nil
}

func (h *handler) Annotate() echo.HandlerFunc {
	return func(c echo.Context) error {
		oc, err := h.orientation(c)
		if err != nil {
			return answer.Err(c, errs.BadRequestDirect(err.Error()))
		}
		content, err := h.readImage(c)
		if err != nil {
			return answer.Err(c, err)
		}
		out, res, err := h.process(content, oc)
		if err != nil {
			return answer.Err(c, err)
		}
		hdr := c.Response().Header()
		hdr.Set("X-Frame-ID", res.FrameID)
		hdr.Set("X-Faces", strconv.Itoa(len(res.Boxes)))
		hdr.Set("X-Pipeline-Status", res.Status)
		return c.Blob(http.StatusOK, mimetype.Detect(out).String(), out)
	}
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	OpenCV string `json:"opencv"`
	Facing string `json:"facing"`
}

func (h *handler) Status() echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := statusResponse{
			Status: h.pipeline.Status().String(),
			OpenCV: gocv.OpenCVVersion(),
			Facing: h.camera.Facing().String(),
		}
		if err := h.pipeline.Err(); err != nil {
			resp.Error = err.Error()
		}
		if err := faceannotate.CheckVisionLibrary(); err != nil {
			resp.Status = faceannotate.StatusVisionUnavailable.String()
			resp.Error = err.Error()
		}
		return c.JSON(http.StatusOK, resp)
	}
}

type cameraResponse struct {
	Facing string `json:"facing"`
}

func (h *handler) Camera() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, cameraResponse{Facing: h.camera.Facing().String()})
	}
}

func (h *handler) FlipCamera() echo.HandlerFunc {
	return func(c echo.Context) error {
		f := h.camera.Toggle()
		slog.Info("cámara cambiada", "facing", f.String())
		return c.JSON(http.StatusOK, cameraResponse{Facing: f.String()})
	}
}
