package main

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/kstaniek/gvar-corrector/internal/gvar"
)

// fileSource reads FrameSize-byte frames sequentially from an opened
// file, skipping FirstFrameOffset frames up front (see DESIGN.md open
// question #1). A short final read is returned as-is rather than turned
// into an error here: ResolveOuterHeader is what decides end-of-stream,
// since it's the one that knows a frame too short to hold even one
// outer-header copy means the stream has ended.
type fileSource struct {
	f         *os.File
	r         *bufio.Reader
	frameSize int
}

// openFileSource opens path for reading and skips the leading
// FirstFrameOffset*frameSize bytes.
func openFileSource(path string, frameSize int) (*fileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	if _, err := f.Seek(int64(gvar.FirstFrameOffset*frameSize), io.SeekStart); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("seek past leading frame: %w", err)
	}
	return &fileSource{f: f, r: bufio.NewReaderSize(f, frameSize), frameSize: frameSize}, nil
}

func (s *fileSource) ReadFrame() ([]byte, error) {
	buf := make([]byte, s.frameSize)
	n, err := io.ReadFull(s.r, buf)
	if n > 0 {
		return buf[:n], nil
	}
	return nil, err
}

func (s *fileSource) Close() error { return s.f.Close() }

// fileSink writes frames verbatim to an opened output file.
type fileSink struct {
	f *os.File
	w *bufio.Writer
}

func createFileSink(path string) (*fileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return &fileSink{f: f, w: bufio.NewWriter(f)}, nil
}

func (s *fileSink) WriteFrame(frame []byte) error {
	_, err := s.w.Write(frame)
	return err
}

func (s *fileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
