package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// daemonConfig is the parsed and validated CLI surface of §6.5. Flags win
// over ARM6_DAEMON_* environment overrides, which win over defaults,
// mirroring kstaniek-go-ampio-server's cmd/can-server/config.go.
type daemonConfig struct {
	udsPath            string
	udpAddr            string
	bitrate            int
	serial             string
	lockFile           string
	reconnectInterval  time.Duration
	reconnectDebounce  time.Duration
	clientTimeout      time.Duration
	metricsAddr        string
	logLevel           string
}

func parseFlags(args []string) (*daemonConfig, error) {
	fs := flag.NewFlagSet("armcand", flag.ContinueOnError)
	uds := fs.String("uds", "/run/armcand.sock", "Local datagram socket path")
	udp := fs.String("udp", "", "Loopback UDP listen address (alternative to --uds)")
	bitrate := fs.Int("bitrate", 1_000_000, "CAN bitrate in bits/second")
	serial := fs.String("serial", "", "USB-CAN adapter serial number (empty = first match)")
	lockFile := fs.String("lock-file", "/run/armcand.lock", "Single-instance advisory lock file path")
	reconnectInterval := fs.Duration("reconnect-interval", 2*time.Second, "Device-manager reconnect poll interval")
	reconnectDebounce := fs.Duration("reconnect-debounce", 500*time.Millisecond, "Validated (> 0) but unused: the reconnect loop polls at --reconnect-interval")
	clientTimeout := fs.Duration("client-timeout", 30*time.Second, "Client heartbeat timeout before GC")
	metricsAddr := fs.String("metrics-addr", "", "Prometheus metrics HTTP listen address (empty disables)")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	set := map[string]struct{}{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = struct{}{} })

	cfg := &daemonConfig{
		udsPath:           *uds,
		udpAddr:           *udp,
		bitrate:           *bitrate,
		serial:            *serial,
		lockFile:          *lockFile,
		reconnectInterval: *reconnectInterval,
		reconnectDebounce: *reconnectDebounce,
		clientTimeout:     *clientTimeout,
		metricsAddr:       *metricsAddr,
		logLevel:          *logLevel,
	}
	if err := applyEnvOverrides(cfg, set); err != nil {
		return nil, err
	}
	// A UDP address replaces the default --uds path unless a socket path
	// was also given explicitly (by flag or ARM6_DAEMON_UDS).
	if _, udsFlag := set["uds"]; !udsFlag && cfg.udpAddr != "" {
		if _, udsEnv := os.LookupEnv("ARM6_DAEMON_UDS"); !udsEnv {
			cfg.udsPath = ""
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate performs semantic checks only; it never touches the filesystem
// or the device.
func (c *daemonConfig) validate() error {
	if c.udsPath == "" && c.udpAddr == "" {
		return errors.New("one of --uds or --udp must be set")
	}
	if c.udsPath != "" && c.udpAddr != "" {
		return errors.New("--uds and --udp are mutually exclusive")
	}
	if c.bitrate <= 0 {
		return fmt.Errorf("bitrate must be > 0 (got %d)", c.bitrate)
	}
	if c.lockFile == "" {
		return errors.New("lock-file must not be empty")
	}
	if c.reconnectInterval <= 0 {
		return errors.New("reconnect-interval must be > 0")
	}
	if c.reconnectDebounce <= 0 {
		return errors.New("reconnect-debounce must be > 0")
	}
	if c.clientTimeout <= 0 {
		return errors.New("client-timeout must be > 0")
	}
	switch c.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log-level: %s", c.logLevel)
	}
	return nil
}

// applyEnvOverrides maps ARM6_DAEMON_* variables onto cfg, skipping any
// field whose flag was explicitly set on the command line.
func applyEnvOverrides(c *daemonConfig, set map[string]struct{}) error {
	get := func(k string) (string, bool) {
		v, ok := os.LookupEnv(k)
		return strings.TrimSpace(v), ok
	}
	var firstErr error
	fail := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	if _, ok := set["uds"]; !ok {
		if v, ok := get("ARM6_DAEMON_UDS"); ok {
			c.udsPath = v
		}
	}
	if _, ok := set["udp"]; !ok {
		if v, ok := get("ARM6_DAEMON_UDP"); ok {
			c.udpAddr = v
		}
	}
	if _, ok := set["bitrate"]; !ok {
		if v, ok := get("ARM6_DAEMON_BITRATE"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.bitrate = n
			} else {
				fail(fmt.Errorf("invalid ARM6_DAEMON_BITRATE: %w", err))
			}
		}
	}
	if _, ok := set["serial"]; !ok {
		if v, ok := get("ARM6_DAEMON_SERIAL"); ok {
			c.serial = v
		}
	}
	if _, ok := set["lock-file"]; !ok {
		if v, ok := get("ARM6_DAEMON_LOCK_FILE"); ok && v != "" {
			c.lockFile = v
		}
	}
	if _, ok := set["reconnect-interval"]; !ok {
		if v, ok := get("ARM6_DAEMON_RECONNECT_INTERVAL"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.reconnectInterval = d
			} else {
				fail(fmt.Errorf("invalid ARM6_DAEMON_RECONNECT_INTERVAL: %w", err))
			}
		}
	}
	if _, ok := set["reconnect-debounce"]; !ok {
		if v, ok := get("ARM6_DAEMON_RECONNECT_DEBOUNCE"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.reconnectDebounce = d
			} else {
				fail(fmt.Errorf("invalid ARM6_DAEMON_RECONNECT_DEBOUNCE: %w", err))
			}
		}
	}
	if _, ok := set["client-timeout"]; !ok {
		if v, ok := get("ARM6_DAEMON_CLIENT_TIMEOUT"); ok && v != "" {
			if d, err := time.ParseDuration(v); err == nil {
				c.clientTimeout = d
			} else {
				fail(fmt.Errorf("invalid ARM6_DAEMON_CLIENT_TIMEOUT: %w", err))
			}
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("ARM6_DAEMON_METRICS_ADDR"); ok {
			c.metricsAddr = v
		}
	}
	if _, ok := set["log-level"]; !ok {
		if v, ok := get("ARM6_DAEMON_LOG_LEVEL"); ok && v != "" {
			c.logLevel = v
		}
	}
	return firstErr
}
