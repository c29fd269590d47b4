// Package rtp implements the RTP/RTCP session layer: packet framing
// (RFC 3550/3551), receive-side sequence/jitter accounting, and the
// compound SR/RR/SDES/BYE RTCP reports.
//
// A Session owns one local SSRC and tracks exactly one remote SSRC at a
// time. It does not discover peers or negotiate a transport; the caller
// supplies raw packet bytes (read from whatever socket or test harness it
// likes) and receives back payload bytes, statistics, and RTCP reports to
// send on its own schedule.
//
// Time-dependent and random behaviour (wall-clock reads, SSRC generation)
// go through the injectable TimeProvider and SSRCProvider interfaces so
// tests can drive a Session deterministically.
package rtp
