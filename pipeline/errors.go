package pipeline

import "errors"

var (
	// ErrInvalidConfig is returned by New when required collaborators are
	// missing or parameters are out of range.
	ErrInvalidConfig = errors.New("pipeline: invalid configuration")

	// ErrInvalidTransition is returned when a lifecycle method is called
	// from a state that does not permit it (e.g. Start from Running).
	ErrInvalidTransition = errors.New("pipeline: invalid state transition")

	// ErrNotRunning is returned by the tick methods when called outside
	// the Running state.
	ErrNotRunning = errors.New("pipeline: not running")

	// ErrFrameSize is returned when a caller-supplied PCM buffer doesn't
	// match the configured frame size.
	ErrFrameSize = errors.New("pipeline: frame size mismatch")
)
