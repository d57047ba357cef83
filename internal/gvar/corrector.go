package gvar

import (
	"fmt"

	"github.com/kstaniek/gvar-corrector/internal/metrics"
)

// Strategy names a correction strategy that fired, for metrics/logging.
type Strategy string

const (
	StrategyNone       Strategy = "none"
	StrategySequential Strategy = "sequential"
	StrategyMajority   Strategy = "majority"
)

// Report describes the outcome of correcting one finalized series.
type Report struct {
	Strategy        Strategy
	TargetCounter   uint32
	RewrittenBlocks []byte // BlockIDs whose frame was rewritten
}

// CorrectorState carries the cross-series "confident counter" belief: once
// one series shows enough agreement on its scan counter, that counter
// plus one becomes the expected value for the next series, so a later
// series with no internal majority can still be corrected by
// extrapolation rather than guesswork. The zero value is not ready to use;
// construct via NewDriver's corrector, which sets consistencyThreshold.
type CorrectorState struct {
	confident            *uint32
	consistencyThreshold int

	// RequireConsistencyPresence, when true, only applies the
	// sequential-consistency strategy if confident+1 actually appears in
	// the current series' counters. Left unguarded (false) by default:
	// extrapolation is trusted even when the target value isn't itself
	// present in the ambiguous series it's being applied to.
	RequireConsistencyPresence bool
}

// ConfidentCounter returns the currently armed confident counter and
// whether one is armed.
func (c *CorrectorState) ConfidentCounter() (uint32, bool) {
	if c.confident == nil {
		return 0, false
	}
	return *c.confident, true
}

// Correct picks a target scan counter for fs.Series and rewrites any entry
// whose counter disagrees with it: sequential extrapolation from the
// armed confident counter first, falling back to the series' own modal
// counter when no confident counter is armed (or the guard on it rejects
// the extrapolation target). It updates the confident counter from the
// series' *original* counters (before any rewrite), so a correction can
// never manufacture its own future consensus. It returns
// ErrCodecInvariantViolation if a rewritten frame, re-decoded, doesn't
// show the target counter.
func (c *CorrectorState) Correct(fs *FinalizedSeries) (Report, error) {
	entries := fs.Series.Entries()
	original := make([]uint32, len(entries))
	for i, e := range entries {
		original[i] = e.Entry.Counter
	}

	mode, modeCount := modalCounter(original)
	unique := countUnique(original)

	report := Report{Strategy: StrategyNone, TargetCounter: mode}

	if unique > 1 {
		if confident, armed := c.ConfidentCounter(); armed {
			target := confident + 1
			if !c.RequireConsistencyPresence || containsCounter(original, target) {
				if err := c.rewriteTo(entries, original, target, &report); err != nil {
					return report, err
				}
				report.Strategy = StrategySequential
				report.TargetCounter = target
			}
		}
		if report.Strategy == StrategyNone {
			if err := c.rewriteTo(entries, original, mode, &report); err != nil {
				return report, err
			}
			report.Strategy = StrategyMajority
			report.TargetCounter = mode
		}
	}

	c.updateConfidentCounter(mode, modeCount)
	return report, nil
}

// rewriteTo rewrites every entry whose original counter differs from
// target, replacing its stored frame with one whose line header encodes
// target, and re-decodes to confirm the invariant holds.
func (c *CorrectorState) rewriteTo(entries []IDEntry, original []uint32, target uint32, report *Report) error {
	for i, e := range entries {
		if original[i] == target {
			continue
		}
		newFrame, err := rewriteCounter(e.Entry.Frame, target)
		if err != nil {
			return err
		}
		e.Entry.Frame = newFrame
		e.Entry.Counter = target
		report.RewrittenBlocks = append(report.RewrittenBlocks, e.BlockID)
	}
	return nil
}

// rewriteCounter returns a copy of frame with its line header's scan
// counter replaced by target, verifying the round trip.
func rewriteCounter(frame []byte, target uint32) ([]byte, error) {
	h := frame[lineHeaderStart:lineHeaderEnd]
	words, err := DecodeLineHeader(h)
	if err != nil {
		return nil, err
	}
	words = words.InjectCounter(target)
	newHeader := EncodeLineHeader(words)

	// Only the bytes that hold packed words are copied back; the line
	// header's trailing bytes carry no words and keep their original value.
	packed := lineHeaderWords / wordsPerGroup * bytesPerGroup
	out := make([]byte, len(frame))
	copy(out, frame)
	copy(out[lineHeaderStart:lineHeaderStart+packed], newHeader[:packed])

	check, err := DecodeLineHeader(out[lineHeaderStart:lineHeaderEnd])
	if err != nil {
		return nil, err
	}
	if check.ExtractCounter() != target {
		metrics.IncCodecInvariantViolation()
		return nil, fmt.Errorf("%w: got %d, want %d", ErrCodecInvariantViolation, check.ExtractCounter(), target)
	}
	return out, nil
}

// updateConfidentCounter arms the confident counter when this series' own
// counters agreed strongly enough to trust as a basis for extrapolating
// into the next series, and clears it otherwise so a weak series can't
// poison the next one's correction.
func (c *CorrectorState) updateConfidentCounter(mode uint32, modeCount int) {
	if modeCount > c.consistencyThreshold {
		v := mode
		c.confident = &v
		return
	}
	c.confident = nil
}

// modalCounter returns the most frequent value in counters (stable mode:
// ties broken by first occurrence) and its multiplicity. Returns (0, 0)
// for an empty input.
func modalCounter(counters []uint32) (mode uint32, count int) {
	counts := make(map[uint32]int, len(counters))
	order := make([]uint32, 0, len(counters))
	for _, v := range counters {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}
	best := -1
	for _, v := range order {
		if counts[v] > best {
			best = counts[v]
			mode = v
		}
	}
	return mode, best
}

// countUnique returns the number of distinct values in counters.
func countUnique(counters []uint32) int {
	seen := make(map[uint32]struct{}, len(counters))
	for _, v := range counters {
		seen[v] = struct{}{}
	}
	return len(seen)
}

// containsCounter reports whether target appears anywhere in counters.
func containsCounter(counters []uint32, target uint32) bool {
	for _, v := range counters {
		if v == target {
			return true
		}
	}
	return false
}
