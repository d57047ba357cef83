// Package gvar implements the GVAR scan-line correction core: outer-header
// majority voting, the bit-packed line-header codec, the scanline series
// accumulator, and the counter-correction strategies. It has no knowledge
// of files, sockets, or serial ports; callers drive it with a FrameSource
// and FrameSink (io.go).
package gvar

// FrameSize is the fixed length in bytes of one GVAR downlink frame.
const FrameSize = 32786

// FirstFrameOffset is the number of leading frames skipped before
// processing starts. The original tool begins its loop at frame index 1,
// discarding frame index 0; this is preserved as a named constant rather
// than re-derived, since whether it is an intentional sync-frame discard
// or a historical off-by-one is undocumented upstream (see DESIGN.md).
const FirstFrameOffset = 1

// MaxFrames bounds the number of frames a driver will process, as a safety
// cap against runaway input.
const MaxFrames = 100_000_000

// ConsistencyThreshold is the strict lower bound a counter's multiplicity
// within a series must exceed for the corrector to arm extrapolation for
// the next series.
const ConsistencyThreshold = 5

// Block ID domain values.
const (
	BlockIDUnused    = 0
	BlockIDAuxiliary = 11
	minImageryBlock  = 1
	maxImageryBlock  = 10
)

// Frame offsets within a raw FrameSize-byte buffer.
const (
	outerHeaderStart     = 8
	outerHeaderCopySize  = 30
	outerHeaderCopies    = 3
	lineHeaderStart      = 98
	lineHeaderSize       = 28
	lineHeaderEnd        = lineHeaderStart + lineHeaderSize
	minFrameForHeaderVote = outerHeaderStart + outerHeaderCopies*outerHeaderCopySize
)

// isImageryBlockID reports whether id is a valid imagery channel ID (1..10).
func isImageryBlockID(id byte) bool {
	return id >= minImageryBlock && id <= maxImageryBlock
}
