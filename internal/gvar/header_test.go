package gvar

import (
	"errors"
	"testing"
)

// makeFrame builds a synthetic FrameSize-byte frame with blockID written
// into all three outer header copies and counter packed into the line
// header. It is shared across this package's test files.
func makeFrame(blockID byte, counter uint32) []byte {
	f := make([]byte, FrameSize)
	for _, off := range []int{outerHeaderStart, outerHeaderStart + outerHeaderCopySize, outerHeaderStart + 2*outerHeaderCopySize} {
		f[off] = blockID
	}
	var words LineHeaderWords
	words = words.InjectCounter(counter)
	copy(f[lineHeaderStart:lineHeaderEnd], EncodeLineHeader(words))
	return f
}

func TestResolveOuterHeaderAgreement(t *testing.T) {
	f := makeFrame(3, 42)
	h, err := ResolveOuterHeader(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.BlockID(); got != 3 {
		t.Fatalf("BlockID() = %d, want 3", got)
	}
}

func TestResolveOuterHeaderMajorityVote(t *testing.T) {
	f := makeFrame(3, 0)
	// Corrupt copy 1's BlockID byte only; copies 0 and 2 still agree.
	f[outerHeaderStart+outerHeaderCopySize] = 7
	h, err := ResolveOuterHeader(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.BlockID(); got != 3 {
		t.Fatalf("majority vote BlockID() = %d, want 3 (corrupted minority should be outvoted)", got)
	}
}

func TestResolveOuterHeaderAllDisagreeTieBreak(t *testing.T) {
	f := makeFrame(3, 0)
	f[outerHeaderStart+outerHeaderCopySize] = 7
	f[outerHeaderStart+2*outerHeaderCopySize] = 9
	h, err := ResolveOuterHeader(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.BlockID(); got != 3 {
		t.Fatalf("three-way disagreement should tie-break to copy 0 (%d), got %d", 3, got)
	}
}

func TestResolveOuterHeaderEndOfStream(t *testing.T) {
	short := make([]byte, 10)
	_, err := ResolveOuterHeader(short)
	if !errors.Is(err, ErrEndOfStream) {
		t.Fatalf("expected ErrEndOfStream for a short frame, got %v", err)
	}
}

func TestResolveOuterHeaderSingleCopyNoVote(t *testing.T) {
	f := make([]byte, outerHeaderStart+outerHeaderCopySize)
	f[outerHeaderStart] = 5
	h, err := ResolveOuterHeader(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := h.BlockID(); got != 5 {
		t.Fatalf("BlockID() = %d, want 5 when only one copy is present", got)
	}
}

// FuzzOuterHeaderVote feeds ResolveOuterHeader raw byte slices of varying
// length, covering short reads that must surface ErrEndOfStream, a single
// present copy, and full three-copy frames where any pair or no pair of
// copies agrees. It only asserts the invariants that hold regardless of
// input: the function must never panic, and whenever it succeeds the
// resolved BlockID must equal one of the candidate copies actually
// present in the input.
func FuzzOuterHeaderVote(f *testing.F) {
	f.Add(make([]byte, 10)) // too short for even one copy
	f.Add(make([]byte, outerHeaderStart+outerHeaderCopySize))
	f.Add(makeFrame(3, 42))

	corrupted := makeFrame(3, 0)
	corrupted[outerHeaderStart+outerHeaderCopySize] = 7
	f.Add(corrupted)

	allDisagree := makeFrame(3, 0)
	allDisagree[outerHeaderStart+outerHeaderCopySize] = 7
	allDisagree[outerHeaderStart+2*outerHeaderCopySize] = 9
	f.Add(allDisagree)

	f.Fuzz(func(t *testing.T, data []byte) {
		h, err := ResolveOuterHeader(data)
		if err != nil {
			if !errors.Is(err, ErrEndOfStream) {
				t.Fatalf("unexpected error: %v", err)
			}
			return
		}
		if len(data) < outerHeaderStart+outerHeaderCopySize {
			t.Fatalf("ResolveOuterHeader succeeded on a frame too short to hold copy 0")
		}
		a := data[outerHeaderStart]
		if len(data) < minFrameForHeaderVote {
			if h.BlockID() != a {
				t.Fatalf("single-copy BlockID() = %d, want %d", h.BlockID(), a)
			}
			return
		}
		b := data[outerHeaderStart+outerHeaderCopySize]
		c := data[outerHeaderStart+2*outerHeaderCopySize]
		got := h.BlockID()
		if got != a && got != b && got != c {
			t.Fatalf("BlockID() = %d, not among the three copies (%d, %d, %d)", got, a, b, c)
		}
	})
}

func TestMajorityByte(t *testing.T) {
	cases := []struct{ a, b, c, want byte }{
		{1, 1, 1, 1},
		{1, 1, 2, 1},
		{2, 1, 2, 2},
		{1, 2, 2, 2},
		{0xFF, 0x0F, 0xF0, 0xFF}, // all disagree: tie-break to a
	}
	for _, c := range cases {
		if got := majorityByte(c.a, c.b, c.c); got != c.want {
			t.Errorf("majorityByte(%#x,%#x,%#x) = %#x, want %#x", c.a, c.b, c.c, got, c.want)
		}
	}
}
