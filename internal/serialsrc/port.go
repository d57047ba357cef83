// Package serialsrc wraps a live serial-attached GVAR demodulator as a
// gvar.FrameSource, for operators running the corrector inline on a
// capture station instead of against a recorded file.
package serialsrc

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Open opens the named serial device at baud, with the given read
// timeout applied to each Read call.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
