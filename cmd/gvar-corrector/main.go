package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/kstaniek/gvar-corrector/internal/gvar"
	"github.com/kstaniek/gvar-corrector/internal/metrics"
	"github.com/pkg/errors"
)

// Helper implementations live in dedicated files: version.go, config.go,
// logger.go, metrics_logger.go, mdns.go, backend.go, backend_file.go,
// backend_serial.go.

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("gvar-corrector %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
	}()

	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	if err := run(ctx, cfg, l); err != nil {
		l.Error("run_failed", "error", fmt.Sprintf("%+v", errors.WithStack(err)))
		wg.Wait()
		os.Exit(1)
	}
	wg.Wait()
}

// run wires the driver to its frame source/sink, starts the optional
// metrics/mDNS servers, and drains the stream to completion or until ctx
// is cancelled.
func run(ctx context.Context, cfg *appConfig, l *slog.Logger) error {
	src, closeSrc, err := initSource(cfg, l)
	if err != nil {
		return errors.WithStack(fmt.Errorf("init source: %w", err))
	}
	defer func() { _ = closeSrc() }()

	sink, err := createFileSink(cfg.output)
	if err != nil {
		return errors.WithStack(fmt.Errorf("init sink: %w", err))
	}
	defer func() { _ = sink.Close() }()

	driver := gvar.NewDriver(
		gvar.WithLogger(l),
		gvar.WithFlushPartialOnEOF(cfg.flushPartial),
		gvar.WithRequireConsistencyPresence(cfg.requireConsistency),
		gvar.WithConsistencyThreshold(cfg.consistencyThreshold),
		gvar.WithMaxFrames(cfg.maxFrames),
	)

	metrics.SetReadinessFunc(func() bool { return true })

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = srv.Shutdown(context.Background()) }()

		if cfg.mdnsEnable {
			_, port := splitPort(cfg.metricsAddr)
			cleanup, merr := startMDNS(ctx, cfg, port)
			if merr != nil {
				l.Warn("mdns_start_failed", "error", merr)
			} else {
				l.Info("mdns_started", "service", mdnsServiceType, "port", port)
				defer cleanup()
			}
		}
	}

	summary, runErr := driver.Run(ctx, src, sink)
	l.Info("driver_summary",
		"frames_read", summary.FramesRead,
		"frames_dropped", summary.FramesDropped,
		"frames_emitted", summary.FramesEmitted,
		"aux_frames_emitted", summary.AuxFramesEmitted,
		"series_clean", summary.SeriesClean,
		"series_sequential", summary.SeriesSequential,
		"series_majority", summary.SeriesMajority,
		"series_dropped", summary.SeriesDropped,
	)
	if runErr == context.Canceled {
		return nil
	}
	return runErr
}

// splitPort extracts the numeric port from a "host:port" style address,
// for handing to the mDNS advertiser alongside the metrics HTTP server.
func splitPort(addr string) (string, int) {
	host, p, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 0
	}
	n, _ := strconv.Atoi(p)
	return host, n
}
