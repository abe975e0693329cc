// Package usbcan implements the GS-USB class CAN adapter: a single device
// with two bulk endpoints and a small set of vendor control requests,
// built on github.com/google/gousb the way the pack's closest analogue
// (a vendor USB-CAN dongle driver) is built.
package usbcan

import (
	"encoding/binary"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/gousb"
	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/can"
	"github.com/ctrlcan/arm6/frame"
	"github.com/ctrlcan/arm6/internal/ringfifo"
)

func init() {
	can.RegisterInterface("usbcan", newAdapterFromChannel)
}

// State is the adapter's lifecycle state machine, §4.3.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateConfigured
	StateRunning
	StateStall
	StateDisconnected
	StateReconnecting
)

// Option configures an adapter at construction time.
type Option func(*config)

type config struct {
	vid, pid     gousb.ID
	serial       string
	clockHz      int
	timingTable  map[clockBitrate]BitTiming
	recvTimeout  time.Duration
	loopback     bool
	reconnectDebounce time.Duration
}

func WithVIDPID(vid, pid uint16) Option {
	return func(c *config) { c.vid, c.pid = gousb.ID(vid), gousb.ID(pid) }
}
func WithSerial(serial string) Option { return func(c *config) { c.serial = serial } }
func WithDeviceClockHz(hz int) Option { return func(c *config) { c.clockHz = hz } }
func WithBitTimingTable(t map[clockBitrate]BitTiming) Option {
	return func(c *config) { c.timingTable = t }
}
func WithReceiveTimeout(d time.Duration) Option { return func(c *config) { c.recvTimeout = d } }
func WithLoopback(enabled bool) Option           { return func(c *config) { c.loopback = enabled } }
func WithReconnectDebounce(d time.Duration) Option {
	return func(c *config) { c.reconnectDebounce = d }
}

func defaultConfig() config {
	return config{
		vid: defaultVID, pid: defaultPID,
		clockHz:     48_000_000,
		timingTable: builtinTimingTable,
		recvTimeout: 50 * time.Millisecond, // spec forbids the historic 2ms default
		reconnectDebounce: 500 * time.Millisecond,
	}
}

// Adapter owns the libusb device handle. Never shared across goroutines
// except through the two halves Split returns.
type Adapter struct {
	cfg config
	bitrate int

	mu    sync.Mutex
	state State

	ctx     *gousb.Context
	dev     *gousb.Device
	devCfg  *gousb.Config
	iface   *gousb.Interface
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint

	effectiveFlags uint32
	rx             *ringfifo.Fifo
	sendMu         sync.Mutex
}

func newAdapterFromChannel(channel string, bitrate int) (can.Adapter, error) {
	opts := []Option{WithSerial(channel)}
	return Open(bitrate, opts...)
}

// Open runs the configuration sequence of §4.3: enumerate, claim, set bit
// timing, start the device, and disable hardware loopback.
func Open(bitrate int, opts ...Option) (*Adapter, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	a := &Adapter{cfg: cfg, bitrate: bitrate, state: StateClosed, rx: ringfifo.New(4096)}
	if err := a.open(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Adapter) open() error {
	a.state = StateOpening
	a.ctx = gousb.NewContext()

	dev, err := a.ctx.OpenDeviceWithVIDPID(a.cfg.vid, a.cfg.pid)
	if err != nil || dev == nil {
		a.ctx.Close()
		return can.NewDeviceError(can.KindNotFound, "open gs-usb device", err)
	}
	a.dev = dev
	_ = a.dev.SetAutoDetach(true)

	a.devCfg, err = a.dev.Config(1)
	if err != nil {
		a.dev.Close()
		a.ctx.Close()
		return can.NewDeviceError(can.KindBusy, "claim config", err)
	}
	a.iface, err = a.devCfg.Interface(0, 0)
	if err != nil {
		a.devCfg.Close()
		a.dev.Close()
		a.ctx.Close()
		return can.NewDeviceError(can.KindBusy, "claim interface", err)
	}
	a.in, err = a.iface.InEndpoint(epIn & 0x7f)
	if err != nil {
		a.teardown()
		return can.NewDeviceError(can.KindIO, "open in endpoint", err)
	}
	a.out, err = a.iface.OutEndpoint(epOut)
	if err != nil {
		a.teardown()
		return can.NewDeviceError(can.KindIO, "open out endpoint", err)
	}

	timing, err := lookupTiming(a.cfg.timingTable, a.cfg.clockHz, a.bitrate)
	if err != nil {
		a.teardown()
		return err
	}
	if err := a.setBitTiming(timing); err != nil {
		a.teardown()
		return err
	}
	a.state = StateConfigured

	requested := ModeNormal | ModeHwTimestamp
	if a.cfg.loopback {
		requested |= ModeLoopBack
	}
	effective, err := a.startMode(requested)
	if err != nil {
		a.teardown()
		return err
	}
	a.effectiveFlags = effective
	if effective&ModeLoopBack == 0 {
		// Hardware loopback disabled or unsupported: default path already
		// filters echoes downstream, nothing further to do here.
	}
	a.state = StateRunning
	return nil
}

// EffectiveFlags reports the MODE flags the device actually accepted, per
// §4.3 step 4: callers must not assume hardware timestamps are present
// without checking this.
func (a *Adapter) EffectiveFlags() uint32 { return a.effectiveFlags }

func (a *Adapter) setBitTiming(t BitTiming) error {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], t.Prop)
	binary.LittleEndian.PutUint32(buf[4:8], t.Seg1)
	binary.LittleEndian.PutUint32(buf[8:12], t.Seg2)
	binary.LittleEndian.PutUint32(buf[12:16], t.SJW)
	binary.LittleEndian.PutUint32(buf[16:20], t.BRP)
	_, err := a.dev.Control(0x41, reqBitTiming, 0, 0, buf)
	if err != nil {
		return can.NewDeviceError(can.KindUnsupportedConfig, "set bit timing", err)
	}
	return nil
}

// startMode issues MODE(start) with the requested flags and returns the
// device's effective_flags subset.
func (a *Adapter) startMode(requested uint32) (uint32, error) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], modeSubStartCmd)
	binary.LittleEndian.PutUint32(buf[4:8], requested)
	n, err := a.dev.Control(0x41, reqMode, 0, 0, buf)
	if err != nil || n < 8 {
		return 0, can.NewDeviceError(can.KindUnsupportedConfig, "MODE start", err)
	}
	return binary.LittleEndian.Uint32(buf[4:8]), nil
}

func (a *Adapter) stopMode() error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf[0:4], modeSubResetCmd)
	_, err := a.dev.Control(0x41, reqMode, 0, 0, buf)
	return err
}

func (a *Adapter) Send(fr frame.Frame) error {
	a.sendMu.Lock()
	defer a.sendMu.Unlock()

	buf := a.marshalTxFrame(fr)
	_, err := a.out.Write(buf)
	if err != nil {
		if isStall(err) {
			log.Warn("usbcan: tx endpoint stall, clearing halt")
			a.mu.Lock()
			a.state = StateStall
			a.mu.Unlock()
			if clrErr := a.clearHalt(epOut); clrErr != nil {
				log.WithError(clrErr).Error("usbcan: clear-halt failed")
			}
			a.mu.Lock()
			a.state = StateRunning
			a.mu.Unlock()
			return can.ErrTimeout
		}
		return can.NewDeviceError(can.KindIO, "bulk write", err)
	}
	return nil
}

// clearHalt issues the standard USB CLEAR_FEATURE(ENDPOINT_HALT) control
// request against the stalled endpoint. Mandatory after a stall: without
// it the endpoint stays stuck until physical replug.
func (a *Adapter) clearHalt(endpoint uint8) error {
	_, err := a.dev.Control(0x02, 1 /* CLEAR_FEATURE */, 0 /* ENDPOINT_HALT */, uint16(endpoint), nil)
	return err
}

func isStall(err error) bool {
	// gousb surfaces a pipe/stall condition as a TransferError with status
	// "stall"; string matching is the only portable signal libusb exposes.
	if err == nil {
		return false
	}
	s := err.Error()
	for _, needle := range []string{"stall", "pipe error", "halt"} {
		if strings.Contains(s, needle) {
			return true
		}
	}
	return false
}

func (a *Adapter) Receive(timeout time.Duration) (frame.Frame, error) {
	if fr, ok := a.popFromQueue(); ok {
		return fr, nil
	}
	buf := make([]byte, a.in.Desc.MaxPacketSize)
	ctx, cancel := deadlineContext(timeout)
	n, err := a.in.ReadContext(ctx, buf)
	cancel()
	if err != nil {
		if isTimeout(err) {
			return frame.Frame{}, can.ErrTimeout
		}
		return frame.Frame{}, can.NewDeviceError(can.KindIO, "bulk read", err)
	}
	a.rx.Write(buf[:n])
	if fr, ok := a.popFromQueue(); ok {
		return fr, nil
	}
	return frame.Frame{}, can.ErrTimeout
}

// popFromQueue extracts one complete GS-USB wire frame from the
// reassembly buffer, if one is available. A single USB packet may carry
// more than one frame; the buffer holds any leftover bytes across calls.
func (a *Adapter) popFromQueue() (frame.Frame, bool) {
	size := frameSizeNoTs
	if a.effectiveFlags&ModeHwTimestamp != 0 {
		size = frameSizeTs
	}
	if a.rx.Occupied() < size {
		return frame.Frame{}, false
	}
	raw := make([]byte, size)
	a.rx.Read(raw)
	fr, isEcho := unmarshalRxFrame(raw, a.effectiveFlags&ModeHwTimestamp != 0)
	if isEcho && a.effectiveFlags&ModeLoopBack == 0 {
		// Echo frames are filtered by default; only surfaced in loopback
		// mode, used by tests.
		return a.popFromQueue()
	}
	return fr, true
}

func (a *Adapter) marshalTxFrame(fr frame.Frame) []byte {
	buf := make([]byte, 20)
	binary.LittleEndian.PutUint32(buf[0:4], fr.ID)
	copy(buf[4:12], fr.Data[:])
	buf[12] = fr.DLC
	if fr.IsExtended {
		buf[13] = extFlag
	}
	return buf
}

func unmarshalRxFrame(raw []byte, hasTs bool) (frame.Frame, bool) {
	var fr frame.Frame
	fr.ID = binary.LittleEndian.Uint32(raw[0:4])
	copy(fr.Data[:], raw[4:12])
	fr.DLC = raw[12]
	flags := raw[13]
	fr.IsExtended = flags&extFlag != 0
	isEcho := flags&echoFlag != 0
	if hasTs {
		fr.HwTsUs = uint64(binary.LittleEndian.Uint32(raw[20:24]))
	}
	return fr, isEcho
}

func (a *Adapter) Split() (can.RxHalf, can.TxHalf) {
	return &rxHalf{a}, &txHalf{a}
}

func (a *Adapter) teardown() {
	if a.iface != nil {
		a.iface.Close()
	}
	if a.devCfg != nil {
		a.devCfg.Close()
	}
	if a.dev != nil {
		a.dev.Close()
	}
	if a.ctx != nil {
		a.ctx.Close()
	}
	a.state = StateClosed
}

// Close runs the lifecycle discipline of §4.3: MODE(reset), release the
// interface, and let SetAutoDetach's pairing re-attach the kernel driver.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.state == StateClosed {
		return can.ErrClosed
	}
	if err := a.stopMode(); err != nil {
		log.WithError(err).Warn("usbcan: MODE reset failed during close")
	}
	a.teardown()
	return nil
}

type rxHalf struct{ *Adapter }
type txHalf struct{ *Adapter }

func (r *rxHalf) Close() error { runtime.KeepAlive(r); return r.Adapter.Close() }
func (t *txHalf) Close() error { runtime.KeepAlive(t); return t.Adapter.Close() }
