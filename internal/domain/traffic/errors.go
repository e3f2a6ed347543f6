package traffic

import "errors"

var (
	// ErrUnknownPlate means a violation was attempted for a plate that has
	// no owner record. Nothing is written in that case.
	ErrUnknownPlate = errors.New("unknown license plate")

	// ErrStreamClosed is returned by a frame source at end of stream or on
	// an unrecoverable read error. It terminates the capture loop.
	ErrStreamClosed = errors.New("frame stream closed")
)
