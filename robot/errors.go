package robot

import "errors"

// Errors returned by the public API. These are distinct from can.DeviceError:
// they describe the state of the Robot handle itself, not the transport.
var (
	ErrFull         = errors.New("robot: command channel full")
	ErrClosed       = errors.New("robot: handle is stopped")
	ErrTimeout      = errors.New("robot: operation timed out")
	ErrPoisonedLock = errors.New("robot: cold state lock poisoned by a panicking writer")
)
