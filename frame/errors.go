package frame

import "errors"

// Decode errors are all recoverable: the pipeline logs and drops the frame
// that produced them.
var (
	ErrShortPayload = errors.New("frame: payload shorter than record requires")
	ErrUnknownID    = errors.New("frame: unknown CAN ID")
	ErrInvalidValue = errors.New("frame: payload decodes to an invalid value")
)
