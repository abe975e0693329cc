// Command armcand is the single-device daemon of §4.4/§6: it owns the
// USB-CAN adapter continuously and relays frames to any number of local
// clients over a datagram socket, so that no client needs exclusive access
// to the hardware.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/can/usbcan"
	"github.com/ctrlcan/arm6/daemon"
)

// Exit codes per §6.5.
const (
	exitOK              = 0
	exitLockFailed       = 1
	exitDeviceOpenFailed = 2
	exitConfigError      = 3
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := parseFlags(args)
	if err != nil {
		log.WithError(err).Error("armcand: configuration error")
		return exitConfigError
	}

	level, err := log.ParseLevel(cfg.logLevel)
	if err != nil {
		log.WithError(err).Error("armcand: invalid log level")
		return exitConfigError
	}
	log.SetLevel(level)

	lock, err := daemon.AcquireInstanceLock(cfg.lockFile)
	if err != nil {
		log.WithError(err).Error("armcand: failed to acquire single-instance lock")
		return exitLockFailed
	}
	defer lock.Release()

	// The device manager's single reconnect ticker is driven by
	// --reconnect-interval; --reconnect-debounce is validated but has no
	// additional effect today since there is only one timing knob in the
	// reconnect loop (see DESIGN.md).
	adapter, err := usbcan.Open(cfg.bitrate,
		usbcan.WithSerial(cfg.serial),
		usbcan.WithReconnectDebounce(cfg.reconnectInterval),
	)
	if err != nil {
		log.WithError(err).Error("armcand: failed to open CAN device")
		return exitDeviceOpenFailed
	}

	deviceManagerStop := make(chan struct{})
	go adapter.RunDeviceManager(deviceManagerStop)
	defer close(deviceManagerStop)

	conn, err := openSocket(cfg)
	if err != nil {
		log.WithError(err).Error("armcand: failed to open IPC socket")
		return exitConfigError
	}
	defer conn.Close()

	if cfg.metricsAddr != "" {
		daemon.StartMetricsHTTP(cfg.metricsAddr, func() bool { return true })
	}

	server := daemon.NewServer(adapter, conn,
		daemon.WithHeartbeatTimeout(cfg.clientTimeout),
		daemon.WithGCInterval(cfg.clientTimeout/6),
	)

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("armcand: shutdown signal received")
		cancel()
	}()

	log.WithFields(log.Fields{
		"bitrate": cfg.bitrate,
		"serial":  cfg.serial,
	}).Info("armcand: starting")

	if err := server.Serve(ctx); err != nil {
		log.WithError(err).Error("armcand: server exited with error")
	}
	log.Info("armcand: stopped")
	return exitOK
}

func openSocket(cfg *daemonConfig) (net.PacketConn, error) {
	if cfg.udsPath != "" {
		_ = os.Remove(cfg.udsPath)
		return net.ListenPacket("unixgram", cfg.udsPath)
	}
	return net.ListenPacket("udp", cfg.udpAddr)
}
