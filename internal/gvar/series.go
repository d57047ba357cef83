package gvar

// SeriesEntry holds one imagery block's original frame bytes and the
// counter decoded from it when it was inserted into the series.
type SeriesEntry struct {
	Frame   []byte
	Counter uint32
}

// Series groups up to ten imagery blocks (BlockID 1..10) belonging to one
// scanline. It is a fixed array indexed by BlockID-1 rather than a map,
// since BlockID is bounded and dense.
type Series struct {
	entries [maxImageryBlock]*SeriesEntry
	count   int
}

// Get returns the entry for blockID (1..10), or nil if absent.
func (s *Series) Get(blockID byte) *SeriesEntry {
	if !isImageryBlockID(blockID) {
		return nil
	}
	return s.entries[blockID-1]
}

// Has reports whether blockID is already present in the series.
func (s *Series) Has(blockID byte) bool {
	return s.Get(blockID) != nil
}

// Set inserts or overwrites the entry for blockID.
func (s *Series) Set(blockID byte, e *SeriesEntry) {
	idx := blockID - 1
	if s.entries[idx] == nil {
		s.count++
	}
	s.entries[idx] = e
}

// Empty reports whether no imagery block has been observed yet.
func (s *Series) Empty() bool { return s.count == 0 }

// Len returns the number of distinct imagery blocks observed.
func (s *Series) Len() int { return s.count }

// Entries returns the series's entries in ascending BlockID order, paired
// with their BlockID. Absent slots are skipped.
func (s *Series) Entries() []IDEntry {
	out := make([]IDEntry, 0, s.count)
	for i, e := range s.entries {
		if e != nil {
			out = append(out, IDEntry{BlockID: byte(i + 1), Entry: e})
		}
	}
	return out
}

// IDEntry pairs a BlockID with its series entry.
type IDEntry struct {
	BlockID byte
	Entry   *SeriesEntry
}

// FinalizedSeries is a completed scanline group ready for correction and
// emission: the imagery series plus any auxiliary frames captured while it
// was accumulating.
type FinalizedSeries struct {
	Series     *Series
	PendingAux [][]byte
}

// Accumulator is the frame-stream state machine: it classifies incoming
// frames by block ID and decides when a scanline series is complete.
type Accumulator struct {
	series      *Series
	pendingAux  [][]byte
	lastBlockID byte
}

// NewAccumulator returns an empty Accumulator.
func NewAccumulator() *Accumulator {
	return &Accumulator{series: &Series{}}
}

// Push processes one frame's resolved BlockID and decoded line-header
// words (when applicable) and returns a non-nil FinalizedSeries exactly
// when this frame closed out the series that was accumulating before it
// arrived. blockID 0 and blockID>11 are reported via a false second
// return so the caller can count/log the drop; words is only read when
// blockID is in [1,10].
func (a *Accumulator) Push(blockID byte, frame []byte, words LineHeaderWords) (fin *FinalizedSeries, accepted bool) {
	if blockID == BlockIDUnused || blockID > BlockIDAuxiliary {
		return nil, false
	}
	if blockID == BlockIDAuxiliary {
		a.pendingAux = append(a.pendingAux, frame)
		a.lastBlockID = BlockIDAuxiliary
		return nil, true
	}

	boundary := !a.series.Empty() && (a.lastBlockID == maxImageryBlock || a.lastBlockID == BlockIDAuxiliary || a.series.Has(blockID))
	if boundary {
		fin = a.finalize()
	}

	a.series.Set(blockID, &SeriesEntry{Frame: frame, Counter: words.ExtractCounter()})
	a.lastBlockID = blockID
	return fin, true
}

// finalize packages the current series and pending aux queue, then resets
// both for the next scanline group.
func (a *Accumulator) finalize() *FinalizedSeries {
	fin := &FinalizedSeries{Series: a.series, PendingAux: a.pendingAux}
	a.series = &Series{}
	a.pendingAux = nil
	return fin
}

// Flush returns the in-progress series as a FinalizedSeries if one is
// accumulating (used by callers that choose to emit a trailing partial
// series at EOF rather than drop it; see DESIGN.md open question #2). It
// returns nil if nothing has been accumulated.
func (a *Accumulator) Flush() *FinalizedSeries {
	if a.series.Empty() && len(a.pendingAux) == 0 {
		return nil
	}
	return a.finalize()
}
