package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// appConfig holds the fully-resolved configuration for one corrector run,
// after layering (lowest to highest precedence) defaults, an optional
// YAML file, environment variables, and explicit flags.
type appConfig struct {
	input  string
	output string

	consistencyThreshold int
	frameSize            int
	maxFrames            int
	flushPartial         bool
	requireConsistency   bool

	logFormat       string
	logLevel        string
	metricsAddr     string
	logMetricsEvery time.Duration

	backend      string
	serialDev    string
	serialBaud   int
	serialReadTO time.Duration

	mdnsEnable bool
	mdnsName   string
}

// fileConfig is the subset of appConfig that may be supplied via
// --config, read with gopkg.in/yaml.v3 the way doismellburning-samoyed's
// deviceid.go loads tocalls.yaml. Zero values mean "not set in file."
type fileConfig struct {
	Input                string `yaml:"input"`
	Output               string `yaml:"output"`
	ConsistencyThreshold int    `yaml:"consistency_threshold"`
	FrameSize            int    `yaml:"frame_size"`
	MaxFrames            int    `yaml:"max_frames"`
	FlushPartial         *bool  `yaml:"flush_partial"`
	RequireConsistency   *bool  `yaml:"require_consistency"`
	LogFormat            string `yaml:"log_format"`
	LogLevel             string `yaml:"log_level"`
	MetricsAddr          string `yaml:"metrics_addr"`
	Backend              string `yaml:"backend"`
	SerialDev            string `yaml:"serial_dev"`
	SerialBaud           int    `yaml:"serial_baud"`
	MDNSEnable           *bool  `yaml:"mdns_enable"`
	MDNSName             string `yaml:"mdns_name"`
}

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	input := flag.String("i", "", "Input GVAR file path (alias: --input)")
	flag.StringVar(input, "input", "", "Input GVAR file path")
	output := flag.String("o", "", "Output GVAR file path (alias: --output)")
	flag.StringVar(output, "output", "", "Output GVAR file path")
	configPath := flag.String("config", "", "Optional YAML config file providing defaults")
	consistencyThreshold := flag.Int("consistency-threshold", 5, "Strict lower bound a counter's multiplicity must exceed to arm extrapolation")
	frameSize := flag.Int("frame-size", 32786, "Fixed frame size in bytes")
	maxFrames := flag.Int("max-frames", 100_000_000, "Safety cap on frames processed")
	flushPartial := flag.Bool("flush-partial", false, "Emit a trailing partial series uncorrected instead of dropping it at EOF")
	requireConsistency := flag.Bool("require-consistency-presence", false, "Require confident_counter+1 to appear in the series before applying sequential-consistency correction")
	logFormat := flag.String("log-format", "text", "Log format: text|json")
	logLevel := flag.String("log-level", "info", "Log level: debug|info|warn|error")
	metricsAddr := flag.String("metrics-addr", "", "Metrics HTTP listen address (e.g., :9100); empty disables")
	logMetricsEvery := flag.Duration("log-metrics-interval", 0, "If >0, periodically log metrics counters (for non-Prometheus setups)")
	backend := flag.String("backend", "file", "Frame source: file|serial")
	serialDev := flag.String("serial-dev", "/dev/ttyUSB0", "Serial device path (when --backend=serial)")
	serialBaud := flag.Int("serial-baud", 115200, "Serial baud rate (when --backend=serial)")
	serialReadTO := flag.Duration("serial-read-timeout", 50*time.Millisecond, "Serial read timeout (when --backend=serial)")
	mdnsEnable := flag.Bool("mdns-enable", false, "Advertise the metrics endpoint via mDNS/Avahi")
	mdnsName := flag.String("mdns-name", "", "mDNS instance name (default gvar-corrector-<hostname>)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })
	// -i and -o are aliases: setting either pins the long-form setting too.
	if _, ok := setFlags["i"]; ok {
		setFlags["input"] = struct{}{}
	}
	if _, ok := setFlags["o"]; ok {
		setFlags["output"] = struct{}{}
	}

	cfg.input = *input
	cfg.output = *output
	cfg.consistencyThreshold = *consistencyThreshold
	cfg.frameSize = *frameSize
	cfg.maxFrames = *maxFrames
	cfg.flushPartial = *flushPartial
	cfg.requireConsistency = *requireConsistency
	cfg.logFormat = *logFormat
	cfg.logLevel = *logLevel
	cfg.metricsAddr = *metricsAddr
	cfg.logMetricsEvery = *logMetricsEvery
	cfg.backend = *backend
	cfg.serialDev = *serialDev
	cfg.serialBaud = *serialBaud
	cfg.serialReadTO = *serialReadTO
	cfg.mdnsEnable = *mdnsEnable
	cfg.mdnsName = *mdnsName

	if *configPath != "" {
		if err := applyFileConfig(cfg, *configPath, setFlags); err != nil {
			fmt.Printf("config file error: %v\n", err)
			return nil, *showVersion
		}
	}
	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, *showVersion
	}
	if cfg.output == "" {
		cfg.output = "goes_gvar_corrected.gvar"
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		return nil, *showVersion
	}
	return cfg, *showVersion
}

// applyFileConfig loads path as YAML and fills in any field the operator
// didn't already pin down with an explicit flag. Precedence is flags,
// then environment variables, then the config file, so an operator can
// always override a file default from the command line without editing
// it.
func applyFileConfig(c *appConfig, path string, set map[string]struct{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	strField := func(flagName string, dst *string, v string) {
		if _, ok := set[flagName]; !ok && v != "" {
			*dst = v
		}
	}
	intField := func(flagName string, dst *int, v int) {
		if _, ok := set[flagName]; !ok && v != 0 {
			*dst = v
		}
	}
	boolField := func(flagName string, dst *bool, v *bool) {
		if _, ok := set[flagName]; !ok && v != nil {
			*dst = *v
		}
	}

	strField("input", &c.input, fc.Input)
	strField("output", &c.output, fc.Output)
	intField("consistency-threshold", &c.consistencyThreshold, fc.ConsistencyThreshold)
	intField("frame-size", &c.frameSize, fc.FrameSize)
	intField("max-frames", &c.maxFrames, fc.MaxFrames)
	boolField("flush-partial", &c.flushPartial, fc.FlushPartial)
	boolField("require-consistency-presence", &c.requireConsistency, fc.RequireConsistency)
	strField("log-format", &c.logFormat, fc.LogFormat)
	strField("log-level", &c.logLevel, fc.LogLevel)
	strField("metrics-addr", &c.metricsAddr, fc.MetricsAddr)
	strField("backend", &c.backend, fc.Backend)
	strField("serial-dev", &c.serialDev, fc.SerialDev)
	intField("serial-baud", &c.serialBaud, fc.SerialBaud)
	boolField("mdns-enable", &c.mdnsEnable, fc.MDNSEnable)
	strField("mdns-name", &c.mdnsName, fc.MDNSName)
	return nil
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open files or listeners -- only checks values/ranges.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.input == "" {
		return errors.New("input file is required (-i/--input)")
	}
	switch c.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log-format: %s", c.logFormat)
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	switch c.backend {
	case "file", "serial":
	default:
		return fmt.Errorf("invalid backend: %s", c.backend)
	}
	if c.consistencyThreshold < 0 {
		return fmt.Errorf("consistency-threshold must be >= 0 (got %d)", c.consistencyThreshold)
	}
	if c.frameSize <= 0 {
		return fmt.Errorf("frame-size must be > 0 (got %d)", c.frameSize)
	}
	if c.maxFrames <= 0 {
		return fmt.Errorf("max-frames must be > 0 (got %d)", c.maxFrames)
	}
	if c.serialBaud <= 0 {
		return fmt.Errorf("serial-baud must be > 0 (got %d)", c.serialBaud)
	}
	if c.serialReadTO <= 0 {
		return fmt.Errorf("serial-read-timeout must be > 0")
	}
	return nil
}

// applyEnvOverrides maps GVARCORR_* environment variables to config
// fields unless a corresponding flag was explicitly set.
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["input"]; !ok {
		if v, ok := get("GVARCORR_INPUT"); ok && v != "" {
			c.input = v
		}
	}
	if _, ok := set["output"]; !ok {
		if v, ok := get("GVARCORR_OUTPUT"); ok && v != "" {
			c.output = v
		}
	}
	if _, ok := set["consistency-threshold"]; !ok {
		if v, ok := get("GVARCORR_CONSISTENCY_THRESHOLD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				c.consistencyThreshold = n
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid GVARCORR_CONSISTENCY_THRESHOLD: %w", err)
			}
		}
	}
	if _, ok := set["log-format"]; !ok {
		if v, ok := get("GVARCORR_LOG_FORMAT"); ok && v != "" {
			c.logFormat = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("GVARCORR_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("GVARCORR_METRICS"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["backend"]; !ok {
		if v, ok := get("GVARCORR_BACKEND"); ok && v != "" {
			c.backend = v
		}
	}
	if _, ok := set["serial-dev"]; !ok {
		if v, ok := get("GVARCORR_SERIAL_DEV"); ok && v != "" {
			c.serialDev = v
		}
	}
	if _, ok := set["mdns-enable"]; !ok {
		if v, ok := get("GVARCORR_MDNS_ENABLE"); ok && v != "" {
			switch strings.ToLower(v) {
			case "1", "true", "yes", "on":
				c.mdnsEnable = true
			case "0", "false", "no", "off":
				c.mdnsEnable = false
			}
		}
	}
	if _, ok := set["log-metrics-interval"]; !ok {
		if v, ok := get("GVARCORR_LOG_METRICS_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil && d >= 0 {
				c.logMetricsEvery = d
			} else if err != nil && firstErr == nil {
				firstErr = fmt.Errorf("invalid GVARCORR_LOG_METRICS_INTERVAL: %w", err)
			}
		}
	}
	return firstErr
}
