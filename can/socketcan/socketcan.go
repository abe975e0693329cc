// Package socketcan wraps github.com/brutella/can, the kernel CAN-socket
// library the teacher also depends on, behind the can.Adapter capability.
// brutella/can is push-style (it calls back into a Handle method); this
// adapter buffers those callbacks into a small channel so Receive can offer
// the pull-with-timeout contract the pipeline needs.
package socketcan

import (
	"sync"
	"time"

	sockcan "github.com/brutella/can"
	log "github.com/sirupsen/logrus"

	"github.com/ctrlcan/arm6/can"
	"github.com/ctrlcan/arm6/frame"
)

func init() {
	can.RegisterInterface("socketcan", newAdapter)
}

const rxQueueDepth = 256

type adapter struct {
	bus *sockcan.Bus

	mu     sync.Mutex
	closed bool

	rxQueue chan frame.Frame
}

func newAdapter(channel string, _ int) (can.Adapter, error) {
	bus, err := sockcan.NewBusForInterfaceWithName(channel)
	if err != nil {
		return nil, can.NewDeviceError(can.KindNotFound, "open "+channel, err)
	}
	a := &adapter{bus: bus, rxQueue: make(chan frame.Frame, rxQueueDepth)}
	bus.Subscribe(a)
	go func() {
		if err := bus.ConnectAndPublish(); err != nil {
			log.WithError(err).Warn("socketcan: bus loop exited")
		}
	}()
	return a, nil
}

// Handle is brutella/can's FrameListener callback; it must never block, so
// a full queue drops the newest frame rather than stalling the kernel
// socket's own read loop.
func (a *adapter) Handle(fr sockcan.Frame) {
	converted := frame.Frame{ID: fr.ID, DLC: fr.Length, Data: fr.Data}
	select {
	case a.rxQueue <- converted:
	default:
		log.Warn("socketcan: rx queue full, dropping frame")
	}
}

func (a *adapter) Send(fr frame.Frame) error {
	err := a.bus.Publish(sockcan.Frame{ID: fr.ID, Length: fr.DLC, Data: fr.Data})
	if err != nil {
		return can.NewDeviceError(can.KindIO, "publish", err)
	}
	return nil
}

func (a *adapter) Receive(timeout time.Duration) (frame.Frame, error) {
	select {
	case fr := <-a.rxQueue:
		return fr, nil
	case <-time.After(timeout):
		return frame.Frame{}, can.ErrTimeout
	}
}

func (a *adapter) Split() (can.RxHalf, can.TxHalf) {
	return &rxHalf{a}, &txHalf{a}
}

func (a *adapter) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return can.ErrClosed
	}
	a.closed = true
	return a.bus.Disconnect()
}

type rxHalf struct{ *adapter }
type txHalf struct{ *adapter }

func (r *rxHalf) Close() error { return r.adapter.close() }
func (t *txHalf) Close() error { return t.adapter.close() }
