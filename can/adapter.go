// Package can defines the CAN adapter capability shared by every transport
// backend (SocketCAN, GS-USB, and the daemon relay client) and a small
// plugin registry so backends can be selected by name without the callers
// importing every implementation.
package can

import (
	"time"

	"github.com/ctrlcan/arm6/frame"
)

// Adapter is the full capability set a backend must provide before it is
// split for RX/TX thread ownership.
type Adapter interface {
	Sender
	Receiver
	// Split partitions the adapter into two half-capabilities so a caller
	// can hand the RX half to one goroutine and the TX half to another.
	// Implementations that cannot truly split a single handle must hide
	// their own synchronisation inside the two returned halves. The
	// original Adapter value must not be used after Split.
	Split() (RxHalf, TxHalf)
}

// Sender enqueues a frame on the wire. Send must not block longer than a
// small, fixed timeout; returning success means the bytes were handed to
// the transport, not that the frame reached the bus.
type Sender interface {
	Send(fr frame.Frame) error
}

// Receiver blocks up to the given timeout and returns one decoded
// frame. ErrTimeout is a normal control-flow signal, not a fault.
type Receiver interface {
	Receive(timeout time.Duration) (frame.Frame, error)
}

// RxHalf is the receive-only capability owned exclusively by the pipeline's
// RX goroutine after Split.
type RxHalf interface {
	Receiver
	Close() error
}

// TxHalf is the send-only capability, used after Split by one sending
// goroutine (in package robot, the same pipeline goroutine that owns the RX
// half).
type TxHalf interface {
	Sender
	Close() error
}
