package relay

import "errors"

var (
	// ErrUnknownRelay is returned for an id outside the layout.
	ErrUnknownRelay = errors.New("unknown relay")

	// ErrHardware wraps a transport failure during synchronization.
	ErrHardware = errors.New("relay hardware write failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("relay controller closed")
)
