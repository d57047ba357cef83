package serialsrc

import (
	"bytes"
	"io"

	"github.com/kstaniek/gvar-corrector/internal/gvar"
	"github.com/kstaniek/gvar-corrector/internal/metrics"
)

// largeBufferReclaimThreshold bounds how large the accumulation buffer is
// allowed to grow before it's reclaimed, so one oversized read doesn't
// leave an outsized buffer retained for the rest of the process lifetime.
const largeBufferReclaimThreshold = 4 * gvar.FrameSize

// Source adapts a live serial Port into a gvar.FrameSource. GVAR has no
// in-band framing markers: the source simply accumulates bytes and
// slices them on fixed FrameSize boundaries.
type Source struct {
	port Port
	buf  bytes.Buffer
	rx   []byte
}

// NewSource wraps an already-open serial Port.
func NewSource(port Port) *Source {
	return &Source{port: port, rx: make([]byte, 4096)}
}

// ReadFrame blocks until one full FrameSize-byte frame has accumulated
// from the serial link, or the port errors.
func (s *Source) ReadFrame() ([]byte, error) {
	for s.buf.Len() < gvar.FrameSize {
		n, err := s.port.Read(s.rx)
		if n > 0 {
			s.buf.Write(s.rx[:n])
		}
		if err != nil {
			if err == io.EOF && s.buf.Len() > 0 {
				break
			}
			metrics.IncError(metrics.ErrSerialRead)
			return nil, err
		}
	}
	frame := make([]byte, gvar.FrameSize)
	n, _ := s.buf.Read(frame)
	if s.buf.Len() == 0 && s.buf.Cap() > largeBufferReclaimThreshold {
		s.buf = bytes.Buffer{}
	}
	return frame[:n], nil
}

var _ gvar.FrameSource = (*Source)(nil)
