package gvar

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kstaniek/gvar-corrector/internal/logging"
	"github.com/kstaniek/gvar-corrector/internal/metrics"
)

// Driver owns the accumulator and corrector state for one correction run
// and ties a FrameSource to a FrameSink behind a small functional-options
// constructor, so a caller only pins down the behavior it wants to
// override and gets sensible defaults for the rest.
type Driver struct {
	acc       *Accumulator
	corrector *CorrectorState
	logger    *slog.Logger

	flushPartialOnEOF bool
	maxFrames         uint64

	framesRead    uint64
	framesDropped uint64
	framesEmitted uint64
	auxEmitted    uint64
	seriesClean   uint64
	seriesFixed   map[Strategy]uint64
	seriesDropped uint64
}

// DriverOption configures a Driver at construction time.
type DriverOption func(*Driver)

// WithLogger overrides the driver's logger (default logging.L()).
func WithLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithFlushPartialOnEOF selects the EOF policy for a series still
// accumulating when the input ends: true emits it uncorrected, false (the
// default) drops it. See DESIGN.md open question #2.
func WithFlushPartialOnEOF(flush bool) DriverOption {
	return func(d *Driver) { d.flushPartialOnEOF = flush }
}

// WithRequireConsistencyPresence requires confident+1 to actually appear
// in a series' own counters before the sequential-consistency strategy is
// allowed to extrapolate to it; by default the extrapolation is unguarded.
func WithRequireConsistencyPresence(require bool) DriverOption {
	return func(d *Driver) { d.corrector.RequireConsistencyPresence = require }
}

// WithConsistencyThreshold overrides the strict lower bound a counter's
// multiplicity within a series must exceed for the corrector to arm
// extrapolation for the next series (default ConsistencyThreshold).
func WithConsistencyThreshold(threshold int) DriverOption {
	return func(d *Driver) { d.corrector.consistencyThreshold = threshold }
}

// WithMaxFrames overrides the safety cap on the number of frames a single
// run will read before stopping (default MaxFrames). A value <= 0 leaves
// the default in place.
func WithMaxFrames(max int) DriverOption {
	return func(d *Driver) {
		if max > 0 {
			d.maxFrames = uint64(max)
		}
	}
}

// NewDriver constructs a Driver ready to process a fresh frame stream.
func NewDriver(opts ...DriverOption) *Driver {
	d := &Driver{
		acc:         NewAccumulator(),
		corrector:   &CorrectorState{consistencyThreshold: ConsistencyThreshold},
		logger:      logging.L(),
		seriesFixed: make(map[Strategy]uint64),
		maxFrames:   MaxFrames,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Summary reports run totals for the closing log line / exit diagnostic.
type Summary struct {
	FramesRead        uint64
	FramesDropped     uint64
	FramesEmitted     uint64
	AuxFramesEmitted  uint64
	SeriesClean       uint64
	SeriesSequential  uint64
	SeriesMajority    uint64
	SeriesDropped     uint64
}

// Run drains src frame-by-frame, classifying, correcting, and writing to
// sink, until src reports end-of-stream or ctx is cancelled. It returns
// the run summary and the terminal error, which is nil on a clean EOF.
func (d *Driver) Run(ctx context.Context, src FrameSource, sink FrameSink) (Summary, error) {
	for {
		select {
		case <-ctx.Done():
			return d.summary(), ctx.Err()
		default:
		}

		frame, err := src.ReadFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, ErrEndOfStream) {
				eofErr := d.onEOF(sink)
				return d.summary(), eofErr
			}
			return d.summary(), err
		}
		d.framesRead++
		if d.framesRead > d.maxFrames {
			return d.summary(), nil
		}

		if err := d.processFrame(frame, sink); err != nil {
			return d.summary(), err
		}
	}
}

// processFrame resolves one frame's outer header and routes it through
// the accumulator, emitting a finalized series when a boundary fires.
func (d *Driver) processFrame(frame []byte, sink FrameSink) error {
	metrics.IncFramesRead()
	header, err := ResolveOuterHeader(frame)
	if err != nil {
		if errors.Is(err, ErrEndOfStream) {
			return d.onEOF(sink)
		}
		return err
	}
	blockID := header.BlockID()

	if blockID == BlockIDUnused || blockID > BlockIDAuxiliary {
		d.framesDropped++
		metrics.IncDroppedInvalidBlock()
		d.logger.Warn("frame_dropped", "error", fmt.Errorf("%w: %d", ErrInvalidBlockID, blockID))
		return nil
	}

	var words LineHeaderWords
	if isImageryBlockID(blockID) {
		words, err = DecodeLineHeader(frame[lineHeaderStart:lineHeaderEnd])
		if err != nil {
			return fmt.Errorf("processing block %d: %w", blockID, err)
		}
	}

	fin, _ := d.acc.Push(blockID, frame, words)
	if fin != nil {
		return d.emit(fin, sink)
	}
	return nil
}

// onEOF finalizes the trailing partial series per the configured policy
// and reports ErrEndOfStream-derived graceful termination (nil error).
func (d *Driver) onEOF(sink FrameSink) error {
	if !d.flushPartialOnEOF {
		if fin := d.acc.Flush(); fin != nil {
			d.seriesDropped++
			d.logger.Info("series_dropped_partial", "blocks", fin.Series.Len(), "aux", len(fin.PendingAux))
			metrics.IncSeriesDroppedPartial()
		}
		return nil
	}
	fin := d.acc.Flush()
	if fin == nil {
		return nil
	}
	d.logger.Info("series_flushed_partial_uncorrected", "blocks", fin.Series.Len())
	return d.emitEntries(fin, sink)
}

// emit corrects fin, then writes its imagery frames in ascending BlockID
// order followed by its pending auxiliary frames in arrival order.
func (d *Driver) emit(fin *FinalizedSeries, sink FrameSink) error {
	report, err := d.corrector.Correct(fin)
	if err != nil {
		return err
	}
	switch report.Strategy {
	case StrategyNone:
		d.seriesClean++
		d.logger.Debug("series_clean", "blocks", fin.Series.Len())
	default:
		d.seriesFixed[report.Strategy]++
		d.logger.Info("series_corrected", "strategy", report.Strategy, "target_counter", report.TargetCounter, "rewritten_blocks", report.RewrittenBlocks)
		metrics.IncSeriesCorrected(string(report.Strategy))
	}
	if confident, armed := d.corrector.ConfidentCounter(); armed {
		metrics.SetConfidentCounterArmed(true)
		d.logger.Debug("confident_counter_armed", "value", confident)
	} else {
		metrics.SetConfidentCounterArmed(false)
	}
	return d.emitEntries(fin, sink)
}

// emitEntries writes out a finalized series' frames in block-ID order
// without running correction (used both by the corrected path and the
// uncorrected partial-flush path).
func (d *Driver) emitEntries(fin *FinalizedSeries, sink FrameSink) error {
	for _, e := range fin.Series.Entries() {
		if err := sink.WriteFrame(e.Entry.Frame); err != nil {
			return fmt.Errorf("writing block %d: %w", e.BlockID, err)
		}
		d.framesEmitted++
		metrics.IncFramesEmitted()
	}
	for _, aux := range fin.PendingAux {
		if err := sink.WriteFrame(aux); err != nil {
			return fmt.Errorf("writing aux frame: %w", err)
		}
		d.auxEmitted++
		metrics.IncAuxFramesEmitted()
	}
	return nil
}

func (d *Driver) summary() Summary {
	return Summary{
		FramesRead:       d.framesRead,
		FramesDropped:    d.framesDropped,
		FramesEmitted:    d.framesEmitted,
		AuxFramesEmitted: d.auxEmitted,
		SeriesClean:      d.seriesClean,
		SeriesSequential: d.seriesFixed[StrategySequential],
		SeriesMajority:   d.seriesFixed[StrategyMajority],
		SeriesDropped:    d.seriesDropped,
	}
}
