package transport

import "fmt"

// Config configures a Socket at bind time.
type Config struct {
	// LocalAddr is the address to bind, e.g. "0.0.0.0:5004" or "[::]:5004".
	LocalAddr string

	// RemoteAddr, if set, is the peer Send writes to without requiring a
	// destination on every call. SendTo always overrides it per-packet.
	RemoteAddr string

	// RecvBufferBytes and SendBufferBytes set SO_RCVBUF/SO_SNDBUF on the
	// underlying socket. Zero leaves the OS default.
	RecvBufferBytes int
	SendBufferBytes int

	// TOS sets the IP_TOS (IPv4) or traffic class (IPv6) byte on
	// outgoing packets, for DSCP marking of real-time media. Zero
	// leaves it unset.
	TOS int
}

func (c Config) validate() error {
	if c.LocalAddr == "" {
		return fmt.Errorf("%w: transport local address must not be empty", ErrInvalidConfig)
	}
	if c.RecvBufferBytes < 0 || c.SendBufferBytes < 0 {
		return fmt.Errorf("%w: transport buffer sizes must be >= 0", ErrInvalidConfig)
	}
	if c.TOS < 0 || c.TOS > 255 {
		return fmt.Errorf("%w: transport TOS must be in [0,255]", ErrInvalidConfig)
	}
	return nil
}
