package transport

import "errors"

// ErrNotConnected is returned by Send when the socket was never
// connected to a remote peer and the caller did not supply one via
// SendTo.
var ErrNotConnected = errors.New("transport: socket not connected to a remote peer")

// ErrClosed is returned by any operation attempted on a socket that has
// already been closed.
var ErrClosed = errors.New("transport: socket is closed")

// ErrInvalidConfig is returned by New when Config holds an invalid value.
var ErrInvalidConfig = errors.New("transport: invalid configuration")
