package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/user0608/faceannotate"
)

func newServer(h *handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.GET("/", func(c echo.Context) error { return c.JSON(http.StatusOK, "OK") })
	e.GET("/status", h.Status())
	e.GET("/camera", h.Camera())
	e.POST("/camera/flip", h.FlipCamera())
	e.POST("/annotate", h.Annotate())
	e.GET("/stream", h.Stream())
	return e
}

func main() {
	cfg := loadConfig()
	lvl := setupLogging(cfg.LogLevel)

	cls, err := faceannotate.LoadAssets(cfg.assetOptions())
	pipeline := faceannotate.NewPipeline(cls, err)
	defer pipeline.Close()
	slog.Info("pipeline inicializado", "status", pipeline.Status().String(), "backend", cfg.Backend)

	e := newServer(newHandler(pipeline, faceannotate.NewCameraSelector(cfg.Facing), cfg.MaxUploadBytes))
	e.Logger.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	go func() {
		if err := e.Start(cfg.ListenAddr); err != nil && err != http.ErrServerClosed {
			e.Logger.Fatal("shutting down the server")
		}
	}()

	<-ctx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		e.Logger.Fatal(err)
	}
}
