// Package metrics exposes Prometheus counters and gauges for a
// gvar-corrector run, plus a cheap in-process snapshot for the
// non-Prometheus periodic log line (metrics_logger.go).
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/gvar-corrector/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	FramesRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gvar_frames_read_total",
		Help: "Total frames read from the input stream.",
	})
	FramesDroppedInvalidBlock = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gvar_frames_dropped_invalid_block_total",
		Help: "Total frames dropped due to an out-of-range block ID (0 or >11).",
	})
	FramesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gvar_frames_emitted_total",
		Help: "Total imagery frames written to the output stream.",
	})
	AuxFramesEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gvar_aux_frames_emitted_total",
		Help: "Total auxiliary (block ID 11) frames written to the output stream.",
	})
	SeriesCorrected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gvar_series_corrected_total",
		Help: "Total scanline series that required counter correction, by strategy.",
	}, []string{"strategy"})
	SeriesDroppedPartial = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gvar_series_dropped_partial_total",
		Help: "Total trailing partial series dropped at end of stream.",
	})
	CodecInvariantViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gvar_codec_invariant_violations_total",
		Help: "Total fatal codec round-trip mismatches after a counter rewrite.",
	})
	ConfidentCounterArmed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gvar_confident_counter_armed",
		Help: "1 if the corrector currently has an armed confident counter, else 0.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gvar_errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality).
const (
	ErrSerialRead = "serial_read"
	ErrFileRead   = "file_read"
	ErrFileWrite  = "file_write"
	ErrCodec      = "codec"
	ErrConfig     = "config"
)

var (
	localFramesRead     uint64
	localFramesDropped  uint64
	localFramesEmitted  uint64
	localAuxEmitted     uint64
	localSeriesSeq      uint64
	localSeriesMajority uint64
	localSeriesDropped  uint64
	localErrors         uint64
)

// Snapshot is a cheap copy of local counters for the non-Prometheus
// periodic log line.
type Snapshot struct {
	FramesRead       uint64
	FramesDropped    uint64
	FramesEmitted    uint64
	AuxFramesEmitted uint64
	SeriesSequential uint64
	SeriesMajority   uint64
	SeriesDropped    uint64
	Errors           uint64
}

func Snap() Snapshot {
	return Snapshot{
		FramesRead:       atomic.LoadUint64(&localFramesRead),
		FramesDropped:    atomic.LoadUint64(&localFramesDropped),
		FramesEmitted:    atomic.LoadUint64(&localFramesEmitted),
		AuxFramesEmitted: atomic.LoadUint64(&localAuxEmitted),
		SeriesSequential: atomic.LoadUint64(&localSeriesSeq),
		SeriesMajority:   atomic.LoadUint64(&localSeriesMajority),
		SeriesDropped:    atomic.LoadUint64(&localSeriesDropped),
		Errors:           atomic.LoadUint64(&localErrors),
	}
}

func IncFramesRead() {
	FramesRead.Inc()
	atomic.AddUint64(&localFramesRead, 1)
}

func IncDroppedInvalidBlock() {
	FramesDroppedInvalidBlock.Inc()
	atomic.AddUint64(&localFramesDropped, 1)
}

func IncFramesEmitted() {
	FramesEmitted.Inc()
	atomic.AddUint64(&localFramesEmitted, 1)
}

func IncAuxFramesEmitted() {
	AuxFramesEmitted.Inc()
	atomic.AddUint64(&localAuxEmitted, 1)
}

// IncSeriesCorrected increments the per-strategy series-corrected counter.
func IncSeriesCorrected(strategy string) {
	SeriesCorrected.WithLabelValues(strategy).Inc()
	switch strategy {
	case "sequential":
		atomic.AddUint64(&localSeriesSeq, 1)
	case "majority":
		atomic.AddUint64(&localSeriesMajority, 1)
	}
}

func IncSeriesDroppedPartial() {
	SeriesDroppedPartial.Inc()
	atomic.AddUint64(&localSeriesDropped, 1)
}

func IncCodecInvariantViolation() {
	CodecInvariantViolations.Inc()
}

// SetConfidentCounterArmed sets the armed/disarmed gauge.
func SetConfidentCounterArmed(armed bool) {
	if armed {
		ConfidentCounterArmed.Set(1)
		return
	}
	ConfidentCounterArmed.Set(0)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
}

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
