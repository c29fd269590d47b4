package jitter

import "time"

// TimeProvider abstracts wall-clock reads so the histogram/jitter
// estimator can be driven deterministically in tests, matching the
// pattern used throughout this codebase's RTP and pipeline packages.
type TimeProvider interface {
	Now() time.Time
}

// DefaultTimeProvider uses the standard time package.
type DefaultTimeProvider struct{}

// Now returns the current time.
func (d DefaultTimeProvider) Now() time.Time { return time.Now() }
