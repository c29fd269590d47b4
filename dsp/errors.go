package dsp

import "errors"

// ErrInvalidParam is returned by a block constructor or a setter when a
// configuration value is outside the range the block can operate in.
var ErrInvalidParam = errors.New("dsp: invalid parameter")

// ErrNotInitialized is returned when Process, Reset, or Close is called
// on a block whose construction failed or that has already been closed.
var ErrNotInitialized = errors.New("dsp: block not initialized")
