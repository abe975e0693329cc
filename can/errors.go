package can

import (
	"errors"
	"fmt"
)

// DeviceErrorKind is the small, closed set of reasons a backend can fail.
// Higher layers dispatch reconnect-vs-abort on Kind, never on the message
// text.
type DeviceErrorKind int

const (
	KindNoDevice DeviceErrorKind = iota
	KindAccessDenied
	KindNotFound
	KindBusy
	KindUnsupportedConfig
	KindInvalidFrame
	KindIO
	KindOther
)

func (k DeviceErrorKind) String() string {
	switch k {
	case KindNoDevice:
		return "no_device"
	case KindAccessDenied:
		return "access_denied"
	case KindNotFound:
		return "not_found"
	case KindBusy:
		return "busy"
	case KindUnsupportedConfig:
		return "unsupported_config"
	case KindInvalidFrame:
		return "invalid_frame"
	case KindIO:
		return "io"
	default:
		return "other"
	}
}

// DeviceError lifts a backend-specific failure into the closed taxonomy
// the rest of the driver dispatches on.
type DeviceError struct {
	Kind    DeviceErrorKind
	Message string
	Err     error
}

func (e *DeviceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("can: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("can: %s: %s", e.Kind, e.Message)
}

func (e *DeviceError) Unwrap() error { return e.Err }

func NewDeviceError(kind DeviceErrorKind, message string, cause error) *DeviceError {
	return &DeviceError{Kind: kind, Message: message, Err: cause}
}

// Sentinel transport-level errors. ErrTimeout is a normal return from
// Receive, not a fault; ErrDisconnected and ErrClosed mark terminal states
// a caller must stop retrying on.
var (
	ErrTimeout      = errors.New("can: receive or send timed out")
	ErrDisconnected = errors.New("can: adapter disconnected")
	ErrClosed       = errors.New("can: adapter already closed")
)
