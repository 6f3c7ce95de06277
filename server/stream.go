package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/user0608/faceannotate"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 << 10,
	WriteBufferSize: 64 << 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamControl is a text message that updates the capture context of a
// stream. Flip toggles the active camera like a double tap.
type streamControl struct {
	Rotation string `json:"rotation,omitempty"`
	Facing   string `json:"facing,omitempty"`
	Emulator *bool  `json:"emulator,omitempty"`
	Flip     bool   `json:"flip,omitempty"`
}

type streamError struct {
	Error string `json:"error"`
}

// apply folds a control message into oc. An empty Facing keeps following
// the shared camera selector.
func (h *handler) apply(msg streamControl, oc *faceannotate.OrientationContext, pinned *bool) error {
	if msg.Flip {
		oc.Facing = h.camera.Toggle()
		*pinned = false
	}
	if msg.Rotation != "" {
		r, err := faceannotate.ParseRotation(msg.Rotation)
		if err != nil {
			return err
		}
		oc.Rotation = r
	}
	if msg.Facing != "" {
		f, err := faceannotate.ParseFacing(msg.Facing)
		if err != nil {
			return err
		}
		oc.Facing = f
		*pinned = true
	}
	if msg.Emulator != nil {
		oc.Emulator = *msg.Emulator
	}
	return nil
}

// Stream handles one frame at a time: every binary message is answered
// with the annotated JPEG and then a JSON result before the next message
// is read.
func (h *handler) Stream() echo.HandlerFunc {
	return func(c echo.Context) error {
		conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
		if err != nil {
			slog.Warn("upgrade websocket", "err", err)
			return nil
		}
		defer conn.Close()
		conn.SetReadLimit(h.maxUpload)

		log := slog.With("remote", c.RealIP())
		log.Info("stream abierto")

		var (
			oc     faceannotate.OrientationContext
			pinned bool
		)
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn("stream interrumpido", "err", err)
				}
				log.Info("stream cerrado")
				return nil
			}

			switch mt {
			case websocket.TextMessage:
				var (
					msg  streamControl
					cerr error
				)
				if err := json.Unmarshal(data, &msg); err != nil {
					cerr = errors.New("mensaje de control inválido")
				} else {
					cerr = h.apply(msg, &oc, &pinned)
				}
				if cerr != nil {
					if err := conn.WriteJSON(streamError{Error: cerr.Error()}); err != nil {
						return nil
					}
				}
			case websocket.BinaryMessage:
				if !pinned {
					oc.Facing = h.camera.Facing()
				}
				out, res, err := h.process(data, oc)
				if err != nil {
					if werr := conn.WriteJSON(streamError{Error: err.Error()}); werr != nil {
						return nil
					}
					continue
				}
				if err := conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
					log.Warn("escritura de frame", "err", err)
					return nil
				}
				if err := conn.WriteJSON(res); err != nil {
					log.Warn("escritura de resultado", "err", err)
					return nil
				}
			}
		}
	}
}
