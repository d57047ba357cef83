package main

import (
	"fmt"
	"log/slog"

	"github.com/kstaniek/gvar-corrector/internal/gvar"
	"github.com/kstaniek/gvar-corrector/internal/serialsrc"
)

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = serialsrc.Open

// initSerialSource opens a live serial-attached GVAR demodulator as a
// gvar.FrameSource.
func initSerialSource(cfg *appConfig, l *slog.Logger) (gvar.FrameSource, func() error, error) {
	port, err := openSerialPort(cfg.serialDev, cfg.serialBaud, cfg.serialReadTO)
	if err != nil {
		return nil, nil, fmt.Errorf("open serial: %w", err)
	}
	l.Info("serial_open", "device", cfg.serialDev, "baud", cfg.serialBaud)
	src := serialsrc.NewSource(port)
	return src, port.Close, nil
}
