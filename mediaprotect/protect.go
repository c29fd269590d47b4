package mediaprotect

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/srtp/v2"
	"github.com/sirupsen/logrus"
)

// DefaultProfile is the SRTP cipher suite a Context uses: the
// mandatory-to-implement RFC 3711 baseline.
const DefaultProfile = srtp.ProtectionProfileAes128CmHmacSha1_80

// Context holds the per-direction SRTP state for one RTP session: a
// send context for Protect and a receive context for Unprotect, each
// nil until a key is installed for that direction.
type Context struct {
	mu      sync.Mutex
	sendCtx *srtp.Context
	recvCtx *srtp.Context
}

// New returns a Context with no keys installed; Protect/Unprotect pass
// packets through unchanged until SetSendKey/SetRecvKey are called.
func New() *Context {
	return &Context{}
}

// SetSendKey installs the outbound SRTP master key and salt, replacing
// any previously installed send key.
func (c *Context) SetSendKey(masterKey, masterSalt []byte) error {
	ctx, err := srtp.CreateContext(masterKey, masterSalt, DefaultProfile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	c.mu.Lock()
	c.sendCtx = ctx
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{"function": "Context.SetSendKey"}).Info("srtp send key installed")
	return nil
}

// SetRecvKey installs the inbound SRTP master key and salt, replacing
// any previously installed receive key.
func (c *Context) SetRecvKey(masterKey, masterSalt []byte) error {
	ctx, err := srtp.CreateContext(masterKey, masterSalt, DefaultProfile)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	c.mu.Lock()
	c.recvCtx = ctx
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{"function": "Context.SetRecvKey"}).Info("srtp recv key installed")
	return nil
}

// Protect encrypts and authenticates an outbound RTP packet. With no
// send key installed it returns packet unchanged.
func (c *Context) Protect(packet []byte) ([]byte, error) {
	c.mu.Lock()
	ctx := c.sendCtx
	c.mu.Unlock()
	if ctx == nil {
		return packet, nil
	}

	header := &rtp.Header{}
	n, err := header.Unmarshal(packet)
	if err != nil {
		return nil, fmt.Errorf("mediaprotect: parse header for protect: %w", err)
	}

	encrypted, err := ctx.EncryptRTP(nil, header, packet[n:])
	if err != nil {
		return nil, fmt.Errorf("mediaprotect: encrypt rtp: %w", err)
	}
	return encrypted, nil
}

// Unprotect authenticates and decrypts an inbound SRTP packet. With no
// receive key installed it returns packet unchanged.
func (c *Context) Unprotect(packet []byte) ([]byte, error) {
	c.mu.Lock()
	ctx := c.recvCtx
	c.mu.Unlock()
	if ctx == nil {
		return packet, nil
	}

	header := &rtp.Header{}
	if _, err := header.Unmarshal(packet); err != nil {
		return nil, fmt.Errorf("mediaprotect: parse header for unprotect: %w", err)
	}

	plaintext, err := ctx.DecryptRTP(nil, packet, header)
	if err != nil {
		return nil, fmt.Errorf("mediaprotect: decrypt rtp: %w", err)
	}
	return plaintext, nil
}

// Enabled reports whether at least one direction has a key installed.
func (c *Context) Enabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCtx != nil || c.recvCtx != nil
}
