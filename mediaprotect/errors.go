package mediaprotect

import "errors"

// ErrInvalidKey is returned when a caller-supplied master key or salt
// has the wrong length for the negotiated protection profile.
var ErrInvalidKey = errors.New("mediaprotect: invalid key or salt length")
