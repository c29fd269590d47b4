package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
	"golang.org/x/sys/unix"
)

// Socket is a thin UDP transport: bind, optional connect, buffer and TOS
// tuning, and a poll()-style readiness check, for the pipeline's network
// ingress/egress stage (C8).
type Socket struct {
	mu     sync.Mutex
	conn   *net.UDPConn
	remote *net.UDPAddr
	closed bool

	bytesSent     uint64
	bytesReceived uint64
	packetsSent   uint64
	packetsRecv   uint64
}

// New binds a UDP socket per cfg. If cfg.RemoteAddr is set, Send without
// an explicit destination writes there.
func New(cfg Config) (*Socket, error) {
	if err := cfg.validate(); err != nil {
		logrus.WithFields(logrus.Fields{"function": "transport.New", "error": err.Error()}).Error("transport config rejected")
		return nil, err
	}

	lc := net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			var sockErr error
			err := c.Control(func(fd uintptr) {
				if cfg.RecvBufferBytes > 0 {
					if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_RCVBUF, cfg.RecvBufferBytes); e != nil {
						sockErr = fmt.Errorf("set SO_RCVBUF: %w", e)
						return
					}
				}
				if cfg.SendBufferBytes > 0 {
					if e := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_SNDBUF, cfg.SendBufferBytes); e != nil {
						sockErr = fmt.Errorf("set SO_SNDBUF: %w", e)
						return
					}
				}
			})
			if err != nil {
				return err
			}
			return sockErr
		},
	}

	network := "udp4"
	if isIPv6Addr(cfg.LocalAddr) {
		network = "udp6"
	}

	pc, err := lc.ListenPacket(context.Background(), network, cfg.LocalAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %s: %w", cfg.LocalAddr, err)
	}
	conn := pc.(*net.UDPConn)

	if cfg.TOS > 0 {
		if err := setTOS(conn, network, cfg.TOS); err != nil {
			logrus.WithFields(logrus.Fields{
				"function": "transport.New",
				"tos":      cfg.TOS,
				"error":    err.Error(),
			}).Warn("failed to set TOS/traffic class")
		}
	}

	s := &Socket{conn: conn}

	if cfg.RemoteAddr != "" {
		remote, err := net.ResolveUDPAddr(network, cfg.RemoteAddr)
		if err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: resolve remote %s: %w", cfg.RemoteAddr, err)
		}
		s.remote = remote
	}

	logrus.WithFields(logrus.Fields{
		"function": "transport.New",
		"local":    cfg.LocalAddr,
		"remote":   cfg.RemoteAddr,
	}).Info("transport socket bound")

	return s, nil
}

func isIPv6Addr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.To4() == nil
}

func setTOS(conn *net.UDPConn, network string, tos int) error {
	if network == "udp6" {
		return ipv6.NewConn(conn).SetTrafficClass(tos)
	}
	return ipv4.NewConn(conn).SetTOS(tos)
}

// Connect sets the default remote peer for Send, overriding any
// RemoteAddr given at construction.
func (s *Socket) Connect(remoteAddr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	network := "udp4"
	if isIPv6Addr(remoteAddr) {
		network = "udp6"
	}
	remote, err := net.ResolveUDPAddr(network, remoteAddr)
	if err != nil {
		return fmt.Errorf("transport: resolve remote %s: %w", remoteAddr, err)
	}
	s.remote = remote
	return nil
}

// Send writes payload to the connected remote peer.
func (s *Socket) Send(payload []byte) (int, error) {
	s.mu.Lock()
	remote := s.remote
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return 0, ErrClosed
	}
	if remote == nil {
		return 0, ErrNotConnected
	}
	return s.SendTo(payload, remote)
}

// SendTo writes payload to dst regardless of any connected remote.
func (s *Socket) SendTo(payload []byte, dst *net.UDPAddr) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	n, err := conn.WriteToUDP(payload, dst)
	if err != nil {
		return n, fmt.Errorf("transport: send to %s: %w", dst, err)
	}

	s.mu.Lock()
	s.bytesSent += uint64(n)
	s.packetsSent++
	s.mu.Unlock()
	return n, nil
}

// Recv reads one datagram into buf and returns the number of bytes read.
func (s *Socket) Recv(buf []byte) (int, error) {
	n, _, err := s.RecvFrom(buf)
	return n, err
}

// RecvFrom reads one datagram into buf and returns the sender's address
// alongside the byte count.
func (s *Socket) RecvFrom(buf []byte) (int, *net.UDPAddr, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, nil, ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return n, addr, fmt.Errorf("transport: recv: %w", err)
	}

	s.mu.Lock()
	s.bytesReceived += uint64(n)
	s.packetsRecv++
	s.mu.Unlock()
	return n, addr, nil
}

// Poll blocks up to timeoutMS milliseconds and reports whether the
// socket has a datagram ready to read, using the raw file descriptor
// directly rather than a read-with-deadline so it never consumes data.
func (s *Socket) Poll(timeoutMS int) (bool, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false, ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return false, fmt.Errorf("transport: syscall conn: %w", err)
	}

	var fd int
	if err := rawConn.Control(func(descriptor uintptr) {
		fd = int(descriptor)
	}); err != nil {
		return false, fmt.Errorf("transport: poll control: %w", err)
	}

	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, timeoutMS)
	if err != nil {
		return false, fmt.Errorf("transport: poll: %w", err)
	}
	return n > 0 && fds[0].Revents&unix.POLLIN != 0, nil
}

// SetNonBlocking toggles the underlying file descriptor's non-blocking
// flag directly, for callers driving their own event loop via Poll
// instead of blocking Recv calls.
func (s *Socket) SetNonBlocking(nonBlocking bool) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	conn := s.conn
	s.mu.Unlock()

	rawConn, err := conn.SyscallConn()
	if err != nil {
		return fmt.Errorf("transport: syscall conn: %w", err)
	}

	var ctrlErr error
	err = rawConn.Control(func(fd uintptr) {
		ctrlErr = unix.SetNonblock(int(fd), nonBlocking)
	})
	if err != nil {
		return fmt.Errorf("transport: nonblock control: %w", err)
	}
	if ctrlErr != nil {
		return fmt.Errorf("transport: set nonblocking: %w", ctrlErr)
	}
	return nil
}

// Stats reports cumulative byte/packet counters.
type Stats struct {
	BytesSent     uint64
	BytesReceived uint64
	PacketsSent   uint64
	PacketsReceived uint64
}

// Stats returns a snapshot of the socket's send/receive counters.
func (s *Socket) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		BytesSent:       s.bytesSent,
		BytesReceived:   s.bytesReceived,
		PacketsSent:     s.packetsSent,
		PacketsReceived: s.packetsRecv,
	}
}

// LocalAddr returns the socket's bound local address.
func (s *Socket) LocalAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.LocalAddr()
}

// Close releases the underlying file descriptor. Close is idempotent.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}
