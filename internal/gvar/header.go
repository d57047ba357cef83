package gvar

import "fmt"

// OuterHeader is the 30-byte authoritative outer header produced by
// per-byte majority vote over the three redundant copies embedded in a
// frame. Only byte 0 (BlockID) is interpreted by this package; the
// remainder is preserved in case a future caller wants to consult it
// without re-voting.
type OuterHeader [outerHeaderCopySize]byte

// BlockID returns the resolved block identifier (byte 0 of the header).
func (h OuterHeader) BlockID() byte { return h[0] }

// ResolveOuterHeader majority-votes the three 30-byte outer header copies
// found at frame offsets 8, 38 and 68. For each byte position, the result
// is whichever value appears in at least two of the three copies; if all
// three disagree, copy 0 wins (deterministic tie-break).
//
// It returns ErrEndOfStream if frame is shorter than the bytes needed to
// read even the first copy (38 bytes) — the original tool's end-of-file
// signal, since a truncated read can only happen at EOF for a fixed-size
// frame stream.
func ResolveOuterHeader(frame []byte) (OuterHeader, error) {
	var h OuterHeader
	if len(frame) < outerHeaderStart+outerHeaderCopySize {
		return h, ErrEndOfStream
	}
	a := frame[outerHeaderStart : outerHeaderStart+outerHeaderCopySize]

	// If the frame is too short to hold copies 1 and 2, there is nothing
	// to vote against; copy 0 stands alone (still not EOF, since copy 0
	// itself was present).
	if len(frame) < minFrameForHeaderVote {
		copy(h[:], a)
		return h, nil
	}
	b := frame[outerHeaderStart+outerHeaderCopySize : outerHeaderStart+2*outerHeaderCopySize]
	c := frame[outerHeaderStart+2*outerHeaderCopySize : outerHeaderStart+3*outerHeaderCopySize]

	for i := 0; i < outerHeaderCopySize; i++ {
		h[i] = majorityByte(a[i], b[i], c[i])
	}
	return h, nil
}

// majorityByte returns whichever of a, b, c occurs at least twice, without
// building a vote table: (a&b)|(a&c)|(b&c) reproduces the majority value
// whenever any pair agrees (the agreeing pair's term is the shared value,
// the other two terms are subsets of its bits, and a subset of a value's
// own bits ORed back into it is a no-op).
// When no pair agrees the formula still produces a result, but not
// necessarily equal to any of a, b, c — that's exactly the "all three
// copies disagree" case, so it's detected explicitly and resolved by the
// deterministic tie-break: copy 0 (a) wins.
func majorityByte(a, b, c byte) byte {
	if a != b && a != c && b != c {
		return a
	}
	return (a & b) | (a & c) | (b & c)
}

// FormatBlockID is a small helper for log/error messages.
func FormatBlockID(id byte) string {
	return fmt.Sprintf("%d", id)
}
