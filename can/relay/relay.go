// Package relay implements the client side of the daemon's datagram
// protocol: it wraps a single connected datagram socket behind the
// can.Adapter capability, the way pkg/can/virtual wraps a TCP connection,
// generalized to connectionless transport plus a heartbeat goroutine and a
// sequence-number generator (§4.4).
package relay

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/can"
	"github.com/ctrlcan/arm6/daemon"
	"github.com/ctrlcan/arm6/frame"
)

func init() {
	can.RegisterInterface("relay", newAdapter)
}

const heartbeatPeriod = 5 * time.Second

type Adapter struct {
	conn net.Conn
	seq  atomic.Uint32

	clientID atomic.Uint32

	mu      sync.Mutex
	closed  bool
	stop    chan struct{}
	rxQueue chan frame.Frame
}

// newAdapter dials channel, a "network|address" pair such as
// "unixgram|/run/arm6/daemon.sock", and completes the Connect/ConnectAck
// handshake before returning.
func newAdapter(channel string, _ int) (can.Adapter, error) {
	network, address, err := splitChannel(channel)
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, can.NewDeviceError(can.KindNotFound, "dial daemon socket", err)
	}
	a := &Adapter{conn: conn, stop: make(chan struct{}), rxQueue: make(chan frame.Frame, 256)}
	if err := a.handshake(nil); err != nil {
		conn.Close()
		return nil, err
	}
	go a.heartbeatLoop()
	go a.receiveLoop()
	return a, nil
}

func splitChannel(channel string) (network, address string, err error) {
	for i := 0; i < len(channel); i++ {
		if channel[i] == '|' {
			return channel[:i], channel[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("relay: channel %q missing network|address separator", channel)
}

func (a *Adapter) nextSeq() uint32 { return a.seq.Add(1) }

func (a *Adapter) handshake(filters []daemon.FilterRange) error {
	hdr := daemon.Header{Type: daemon.MsgConnect, Seq: a.nextSeq()}
	body := append([]byte{0, 0, 0, 0}, marshalFiltersForHandshake(filters)...)
	hdr.Length = uint16(9 + len(body))
	if _, err := a.conn.Write(append(hdr.Marshal(), body...)); err != nil {
		return can.NewDeviceError(can.KindIO, "send connect", err)
	}
	_ = a.conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	buf := make([]byte, 64)
	n, err := a.conn.Read(buf)
	if err != nil {
		return can.NewDeviceError(can.KindIO, "read connect ack", err)
	}
	if n < 9+5 || buf[0] != daemon.MsgConnectAck {
		return can.NewDeviceError(can.KindInvalidFrame, "unexpected connect reply", nil)
	}
	assigned := leUint32(buf[9:13])
	a.clientID.Store(assigned)
	return nil
}

func marshalFiltersForHandshake(filters []daemon.FilterRange) []byte {
	buf := make([]byte, 1)
	buf[0] = byte(len(filters))
	for _, f := range filters {
		b := make([]byte, 8)
		lePutUint32(b[0:4], f.Min)
		lePutUint32(b[4:8], f.Max)
		buf = append(buf, b...)
	}
	return buf
}

func (a *Adapter) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			body := make([]byte, 4)
			lePutUint32(body, a.clientID.Load())
			hdr := daemon.Header{Type: daemon.MsgHeartbeat, Seq: a.nextSeq(), Length: uint16(9 + len(body))}
			if _, err := a.conn.Write(append(hdr.Marshal(), body...)); err != nil {
				log.WithError(err).Warn("relay: heartbeat send failed")
			}
		}
	}
}

func (a *Adapter) receiveLoop() {
	buf := make([]byte, 2048)
	for {
		select {
		case <-a.stop:
			return
		default:
		}
		_ = a.conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
		n, err := a.conn.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-a.stop:
				return
			default:
			}
			log.WithError(err).Warn("relay: receive loop error")
			time.Sleep(50 * time.Millisecond)
			continue
		}
		fr, ok := parseReceiveFrame(buf[:n])
		if !ok {
			continue
		}
		select {
		case a.rxQueue <- fr:
		default:
			log.Warn("relay: rx queue full, dropping frame")
		}
	}
}

func parseReceiveFrame(raw []byte) (frame.Frame, bool) {
	if len(raw) < 9+14 || raw[0] != daemon.MsgReceiveFrame {
		return frame.Frame{}, false
	}
	body := raw[9:]
	dlc := body[5]
	if len(body) < int(14+dlc) {
		return frame.Frame{}, false
	}
	var fr frame.Frame
	fr.ID = leUint32(body[0:4])
	fr.IsExtended = body[4]&0x01 != 0
	fr.DLC = dlc
	fr.HwTsUs = leUint64(body[6:14])
	copy(fr.Data[:], body[14:14+dlc])
	return fr, true
}

func (a *Adapter) Send(fr frame.Frame) error {
	body := make([]byte, 6+int(fr.DLC))
	lePutUint32(body[0:4], fr.ID)
	if fr.IsExtended {
		body[4] = 0x01
	}
	body[5] = fr.DLC
	copy(body[6:], fr.Data[:fr.DLC])
	hdr := daemon.Header{Type: daemon.MsgSendFrame, Seq: a.nextSeq(), Length: uint16(9 + len(body))}
	if _, err := a.conn.Write(append(hdr.Marshal(), body...)); err != nil {
		return can.NewDeviceError(can.KindIO, "send frame", err)
	}
	return nil
}

func (a *Adapter) Receive(timeout time.Duration) (frame.Frame, error) {
	select {
	case fr := <-a.rxQueue:
		return fr, nil
	case <-time.After(timeout):
		return frame.Frame{}, can.ErrTimeout
	}
}

func (a *Adapter) Split() (can.RxHalf, can.TxHalf) {
	return &rxHalf{a}, &txHalf{a}
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return can.ErrClosed
	}
	a.closed = true
	close(a.stop)
	return a.conn.Close()
}

type rxHalf struct{ *Adapter }
type txHalf struct{ *Adapter }

func (r *rxHalf) Close() error { return r.Adapter.Close() }
func (t *txHalf) Close() error { return t.Adapter.Close() }
