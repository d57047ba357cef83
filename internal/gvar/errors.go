package gvar

import "errors"

// Sentinel errors distinguishing recoverable per-frame conditions
// (ErrInvalidBlockID) from fatal ones. Callers use errors.Is to tell them
// apart.
var (
	// ErrMalformedLineHeader is returned when a line-header slice is not
	// exactly 28 bytes. Fatal: indicates the caller sliced the frame wrong.
	ErrMalformedLineHeader = errors.New("gvar: malformed line header")

	// ErrCodecInvariantViolation is returned when a rewritten line header,
	// re-decoded, disagrees with the target counter. Fatal: indicates a
	// codec bug, not input corruption.
	ErrCodecInvariantViolation = errors.New("gvar: codec invariant violation")

	// ErrInvalidBlockID marks a frame whose resolved block ID is 0 or >11.
	// Recovered locally by the accumulator: the frame is dropped.
	ErrInvalidBlockID = errors.New("gvar: invalid block id")

	// ErrEndOfStream signals a clean end of input (outer-header copy 0
	// read short). Triggers graceful driver termination.
	ErrEndOfStream = errors.New("gvar: end of stream")
)
