package daemon

import (
	"context"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/can"
)

// Server owns the physical adapter and the datagram socket, and runs three
// of the four threads of §4.4: USB->IPC, IPC->USB and client GC. The device
// manager is not started here; cmd/armcand runs usbcan's RunDeviceManager.
// Built with functional options the way kstaniek-go-ampio-server's Server
// is, generalized from a TCP listener to a connectionless datagram socket.
type Server struct {
	hub     *Hub
	adapter can.Adapter
	conn    net.PacketConn

	heartbeatTimeout time.Duration
	gcInterval       time.Duration
	clientBufSize    int

	wg   sync.WaitGroup
	quit chan struct{}

	mu      sync.Mutex
	lastErr error
}

type ServerOption func(*Server)

func WithHeartbeatTimeout(d time.Duration) ServerOption {
	return func(s *Server) { s.heartbeatTimeout = d }
}
func WithGCInterval(d time.Duration) ServerOption { return func(s *Server) { s.gcInterval = d } }

func NewServer(adapter can.Adapter, conn net.PacketConn, opts ...ServerOption) *Server {
	s := &Server{
		hub:              NewHub(),
		adapter:          adapter,
		conn:             conn,
		heartbeatTimeout: 30 * time.Second,
		gcInterval:       5 * time.Second,
		clientBufSize:    256,
		quit:             make(chan struct{}),
	}
	s.hub.Send = func(addr net.Addr, payload []byte) error {
		_, err := s.conn.WriteTo(payload, addr)
		return err
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Serve launches the USB->IPC, IPC->USB and client GC goroutines and blocks
// until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	rx, tx := s.adapter.Split()

	s.wg.Add(3)
	go s.runUSBToIPC(rx)
	go s.runIPCToUSB(tx)
	go func() {
		defer s.wg.Done()
		s.hub.RunGC(s.gcInterval, s.heartbeatTimeout, s.quit)
	}()

	<-ctx.Done()
	close(s.quit)
	_ = s.conn.Close()
	_ = rx.Close()
	_ = tx.Close()
	s.wg.Wait()
	return nil
}

// runUSBToIPC blocks on the adapter's receive and fans each frame out to
// matching clients, using a copy of the client table taken under the hub's
// read lock.
func (s *Server) runUSBToIPC(rx can.RxHalf) {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		default:
		}
		fr, err := rx.Receive(200 * time.Millisecond)
		if err != nil {
			if err == can.ErrTimeout {
				continue
			}
			log.WithError(err).Warn("daemon: usb receive error")
			time.Sleep(50 * time.Millisecond)
			continue
		}
		delivered, dropped := s.hub.Broadcast(fr)
		framesRelayed.Add(float64(delivered))
		if dropped > 0 {
			framesDropped.WithLabelValues("any").Add(float64(dropped))
		}
		clientsConnected.Set(float64(s.hub.Count()))
	}
}

// runIPCToUSB blocks on the datagram socket and dispatches each client
// message per the type table of §6.3.
func (s *Server) runIPCToUSB(tx can.TxHalf) {
	defer s.wg.Done()
	buf := make([]byte, 2048)
	for {
		select {
		case <-s.quit:
			return
		default:
		}
		_ = s.conn.SetReadDeadline(timeNow().Add(200 * time.Millisecond))
		n, addr, err := s.conn.ReadFrom(buf)
		if err != nil {
			if isDeadlineErr(err) {
				continue
			}
			select {
			case <-s.quit:
				return
			default:
			}
			log.WithError(err).Warn("daemon: ipc read error")
			continue
		}
		s.handleMessage(tx, addr, buf[:n])
	}
}

func (s *Server) handleMessage(tx can.TxHalf, addr net.Addr, raw []byte) {
	hdr, err := unmarshalHeader(raw)
	if err != nil {
		return
	}
	body := raw[headerSize:]
	switch hdr.Type {
	case MsgConnect:
		msg, err := unmarshalConnect(body)
		if err != nil {
			s.sendError(addr, hdr.Seq, ErrInvalidMessage, err.Error())
			return
		}
		c := s.hub.Connect(addr, msg.Filters)
		_, _ = s.conn.WriteTo(marshalConnectAck(hdr.Seq, c.ID, 0), addr)

	case MsgHeartbeat:
		if len(body) >= 4 {
			s.hub.Touch(leUint32(body))
		}

	case MsgDisconnect:
		if len(body) >= 4 {
			s.hub.Disconnect(leUint32(body))
		}

	case MsgSetFilter:
		if len(body) < 4 {
			s.sendError(addr, hdr.Seq, ErrInvalidMessage, "short set-filter body")
			return
		}
		clientID := leUint32(body)
		filters, err := unmarshalFilters(body[4:])
		if err != nil {
			s.sendError(addr, hdr.Seq, ErrInvalidMessage, err.Error())
			return
		}
		s.hub.SetFilter(clientID, filters)

	case MsgSendFrame:
		msg, err := unmarshalSendFrame(body)
		if err != nil {
			s.sendError(addr, hdr.Seq, ErrInvalidMessage, err.Error())
			return
		}
		sendErr := tx.Send(toCANFrame(msg))
		status := uint8(0)
		if sendErr != nil {
			status = ErrDeviceError
		}
		_, _ = s.conn.WriteTo(marshalSendAck(hdr.Seq, status), addr)

	case MsgGetStatus:
		// StatusResponse body is implementation-defined by §6.3; the daemon
		// reports connected-client count and relay totals.
		_, _ = s.conn.WriteTo(s.statusResponse(hdr.Seq), addr)

	default:
		s.sendError(addr, hdr.Seq, ErrInvalidMessage, "unknown message type")
	}
}

func (s *Server) sendError(addr net.Addr, seq uint32, code uint8, msg string) {
	_, _ = s.conn.WriteTo(marshalError(seq, code, msg), addr)
}

func (s *Server) statusResponse(seq uint32) []byte {
	body := make([]byte, 4)
	lePutUint32(body, uint32(s.hub.Count()))
	hdr := Header{Type: MsgStatusResp, Length: uint16(headerSize + len(body)), Seq: seq}
	return append(hdr.Marshal(), body...)
}
