package gvar

import "io"

// FrameSource yields fixed-size frames in stream order. ReadFrame returns
// io.EOF (or a wrapped ErrEndOfStream) once no more frames are available;
// the last frame returned before that may be shorter than FrameSize.
// Implementations are free to back onto a file, a
// memory-mapped buffer, or a live serial capture (internal/serialsrc).
type FrameSource interface {
	ReadFrame() ([]byte, error)
}

// FrameSink writes fixed-size frames in the order given.
type FrameSink interface {
	WriteFrame(frame []byte) error
}

// sliceSource is a FrameSource over an in-memory byte slice already split
// on FrameSize boundaries; used by tests for small synthetic streams.
type sliceSource struct {
	data []byte
	pos  int
}

// NewSliceSource returns a FrameSource that reads FrameSize-byte frames
// sequentially out of data, starting at FirstFrameOffset frames in.
func NewSliceSource(data []byte) FrameSource {
	return &sliceSource{data: data, pos: FirstFrameOffset * FrameSize}
}

func (s *sliceSource) ReadFrame() ([]byte, error) {
	if s.pos+minFrameForHeaderVote > len(s.data) {
		return nil, io.EOF
	}
	end := s.pos + FrameSize
	if end > len(s.data) {
		end = len(s.data)
	}
	f := s.data[s.pos:end]
	s.pos = end
	return f, nil
}

// NewSliceSink returns a FrameSink collecting frames in memory.
func NewSliceSink() *SliceSink { return &SliceSink{} }

// SliceSink is the concrete type returned by NewSliceSink, exported so
// tests can inspect Frames after a run.
type SliceSink struct {
	Frames [][]byte
}

func (s *SliceSink) WriteFrame(frame []byte) error {
	cp := make([]byte, len(frame))
	copy(cp, frame)
	s.Frames = append(s.Frames, cp)
	return nil
}

var (
	_ FrameSource = (*sliceSource)(nil)
	_ FrameSink   = (*SliceSink)(nil)
)
