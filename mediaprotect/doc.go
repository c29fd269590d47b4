// Package mediaprotect implements the media protection context (C11):
// per-direction SRTP (RFC 3711) protect/unprotect backed by the pack's
// pure-Go SRTP library, keyed by externally negotiated master key and
// salt material. Key negotiation itself (DTLS-SRTP, SDES-SRTP) is out of
// scope — this package only installs and applies already-negotiated
// keys. Before a key is installed for a direction, Protect/Unprotect are
// no-ops and the pipeline carries plain RTP.
package mediaprotect
