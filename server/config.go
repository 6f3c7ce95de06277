package main

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/labstack/gommon/log"
	"github.com/user0608/faceannotate"
)

type config struct {
	ListenAddr     string
	CascadeDir     string
	CascadeName    string
	WorkDir        string
	Backend        faceannotate.Backend
	Facing         faceannotate.Facing
	LogLevel       string
	MaxUploadBytes int64
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func loadConfig() config {
	def := faceannotate.DefaultAssetOptions()
	cfg := config{
		ListenAddr:     env("LISTEN_ADDR", ":1323"),
		CascadeDir:     env("CASCADE_DIR", faceannotate.DefaultCascadeDir),
		CascadeName:    env("CASCADE_NAME", ""),
		WorkDir:        env("CASCADE_WORKDIR", def.WorkDir),
		Backend:        faceannotate.Backend(env("DETECTOR_BACKEND", string(faceannotate.BackendHaar))),
		LogLevel:       env("LOG_LEVEL", "info"),
		MaxUploadBytes: 10 << 20,
	}
	if f, err := faceannotate.ParseFacing(env("CAMERA_FACING", "front")); err == nil {
		cfg.Facing = f
	} else {
		slog.Warn("CAMERA_FACING inválido, se usa front", "err", err)
	}
	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		} else {
			slog.Warn("MAX_UPLOAD_BYTES inválido", "value", v)
		}
	}
	return cfg
}

func (c config) assetOptions() faceannotate.AssetOptions {
	return faceannotate.AssetOptions{
		Source:  os.DirFS(c.CascadeDir),
		Name:    c.CascadeName,
		WorkDir: c.WorkDir,
		Backend: c.Backend,
	}
}

// setupLogging installs the default slog handler and returns the matching
// echo log level.
func setupLogging(level string) log.Lvl {
	var (
		lvl  slog.Level
		elvl log.Lvl
	)
	switch strings.ToLower(level) {
	case "debug":
		lvl, elvl = slog.LevelDebug, log.DEBUG
	case "warn":
		lvl, elvl = slog.LevelWarn, log.WARN
	case "error":
		lvl, elvl = slog.LevelError, log.ERROR
	default:
		lvl, elvl = slog.LevelInfo, log.INFO
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if os.Getenv("GO_ENV") == "production" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
	} else {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
	}
	return elvl
}
