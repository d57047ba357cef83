package main

import (
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/kstaniek/gvar-corrector/internal/gvar"
	"github.com/kstaniek/gvar-corrector/internal/serialsrc"
)

// fakePort implements serialsrc.Port for tests. A chunk larger than the
// caller's buffer is served across several Reads.
type fakePort struct {
	chunks [][]byte
	idx    int
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.idx >= len(f.chunks) {
		return 0, io.EOF
	}
	n := copy(p, f.chunks[f.idx])
	f.chunks[f.idx] = f.chunks[f.idx][n:]
	if len(f.chunks[f.idx]) == 0 {
		f.idx++
	}
	return n, nil
}
func (f *fakePort) Close() error { return nil }

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestInitSerialSourceReadsFrames(t *testing.T) {
	frame := make([]byte, gvar.FrameSize)
	frame[gvar.FrameSize-1] = 0xAB

	openSerialPort = func(name string, baud int, to time.Duration) (serialsrc.Port, error) {
		return &fakePort{chunks: [][]byte{frame}}, nil
	}
	defer func() { openSerialPort = serialsrc.Open }()

	cfg := &appConfig{backend: "serial", serialDev: "fake", serialBaud: 115200, serialReadTO: 50 * time.Millisecond}
	src, closeFn, err := initSource(cfg, testLogger())
	if err != nil {
		t.Fatalf("initSource: %v", err)
	}
	defer closeFn()

	got, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got) != gvar.FrameSize {
		t.Fatalf("len(got) = %d, want %d", len(got), gvar.FrameSize)
	}
	if got[gvar.FrameSize-1] != 0xAB {
		t.Fatalf("frame content mismatch")
	}
}

func TestInitSourceUnknownBackend(t *testing.T) {
	cfg := &appConfig{backend: "udp"}
	if _, _, err := initSource(cfg, testLogger()); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}

func TestFileSourceSinkRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/test.gvar"

	sink, err := createFileSink(path)
	if err != nil {
		t.Fatalf("createFileSink: %v", err)
	}
	// openFileSource skips the leading frame, so write one ahead of the
	// frame under test.
	if err := sink.WriteFrame(make([]byte, gvar.FrameSize)); err != nil {
		t.Fatalf("WriteFrame(leading): %v", err)
	}
	frame := make([]byte, gvar.FrameSize)
	frame[0] = 0x42
	if err := sink.WriteFrame(frame); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	src, err := openFileSource(path, gvar.FrameSize)
	if err != nil {
		t.Fatalf("openFileSource: %v", err)
	}
	defer src.Close()

	got, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if len(got) != gvar.FrameSize || got[0] != 0x42 {
		t.Fatalf("round-tripped frame mismatch: len=%d first=%#x", len(got), got[0])
	}

	if _, err := src.ReadFrame(); err != io.EOF {
		t.Fatalf("expected io.EOF at end of file, got %v", err)
	}
}

func TestOpenFileSourceSkipsLeadingFrame(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/skip.gvar"
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	leading := make([]byte, gvar.FrameSize)
	second := make([]byte, gvar.FrameSize)
	second[5] = 0x99
	f.Write(leading)
	f.Write(second)
	f.Close()

	src, err := openFileSource(path, gvar.FrameSize)
	if err != nil {
		t.Fatalf("openFileSource: %v", err)
	}
	defer src.Close()

	got, err := src.ReadFrame()
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if got[5] != 0x99 {
		t.Fatal("expected the leading frame to be skipped")
	}
}
