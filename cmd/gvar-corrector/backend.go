package main

import (
	"fmt"
	"log/slog"

	"github.com/kstaniek/gvar-corrector/internal/gvar"
)

// initSource selects the frame source backend and returns it along with a
// cleanup function. It returns an error instead of exiting the process to
// allow graceful handling by the caller.
func initSource(cfg *appConfig, l *slog.Logger) (gvar.FrameSource, func() error, error) {
	switch cfg.backend {
	case "file":
		src, err := openFileSource(cfg.input, cfg.frameSize)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	case "serial":
		return initSerialSource(cfg, l)
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (use file|serial)", cfg.backend)
	}
}
