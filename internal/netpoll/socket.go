// Package netpoll wraps a single non-blocking stream socket and its
// readiness poll. It is the only package that touches the OS socket layer.
package netpoll

import (
	"errors"
	"fmt"
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// Flags is the set of readiness conditions reported by Poll.
type Flags uint8

const (
	// Readable means a recv will not block (or will report hang-up).
	Readable Flags = 1 << iota
	// Writable means the socket accepts outbound bytes.
	Writable
	// Errored means the socket is in an exceptional condition.
	Errored
)

// Has reports whether f contains flag.
func (f Flags) Has(flag Flags) bool { return f&flag != 0 }

// String lists the set flags for logs.
func (f Flags) String() string {
	s := ""
	if f.Has(Readable) {
		s += "R"
	}
	if f.Has(Writable) {
		s += "W"
	}
	if f.Has(Errored) {
		s += "E"
	}
	if s == "" {
		return "-"
	}
	return s
}

// Socket owns one non-blocking AF_INET stream socket. It is destroyed and
// replaced wholesale by Reset, never reused after an error.
type Socket struct {
	fd int

	// Sending records that a write readiness check should be requested on
	// the next Poll. Poll clears it.
	Sending bool
}

// New allocates a fresh non-blocking stream socket.
func New() (*Socket, error) {
	s := &Socket{fd: -1}
	if err := s.alloc(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Socket) alloc() error {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return fmt.Errorf("netpoll: socket: %w", err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return fmt.Errorf("netpoll: set nonblock: %w", err)
	}
	unix.CloseOnExec(fd)
	s.fd = fd
	return nil
}

// Poll blocks until the socket is readable, writable (only requested while
// Sending is set), or errored, or until timeout elapses. hasDeadline=false
// means no pending timer bounds the wait and Poll may block until the next
// readiness event. An OS-level poll failure is reported as "nothing ready"
// rather than an error; it does not by itself mean the connection died.
func (s *Socket) Poll(timeout time.Duration, hasDeadline bool) Flags {
	events := int16(unix.POLLIN)
	if s.Sending {
		s.Sending = false
		events |= unix.POLLOUT
	}
	pfds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}

	ms := -1
	if hasDeadline {
		ms = int(timeout / time.Millisecond)
		if ms < 0 {
			ms = 0
		}
	}

	n, err := unix.Poll(pfds, ms)
	if err != nil || n == 0 {
		return 0
	}

	var flags Flags
	re := pfds[0].Revents
	if re&unix.POLLIN != 0 {
		flags |= Readable
	}
	if re&unix.POLLOUT != 0 {
		flags |= Writable
	}
	if re&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
		flags |= Errored
	}
	return flags
}

// Connect performs a one-shot blocking connect: the socket is switched to
// blocking mode for the duration so the initial handshake latency does not
// have to be driven through the event loop, then switched back.
func (s *Socket) Connect(host string, port int) error {
	ip, err := resolveIPv4(host)
	if err != nil {
		return err
	}
	sa := &unix.SockaddrInet4{Port: port}
	copy(sa.Addr[:], ip)

	if err := unix.SetNonblock(s.fd, false); err != nil {
		return fmt.Errorf("netpoll: set blocking: %w", err)
	}
	connectErr := unix.Connect(s.fd, sa)
	if err := unix.SetNonblock(s.fd, true); err != nil {
		return fmt.Errorf("netpoll: restore nonblock: %w", err)
	}
	if connectErr != nil {
		return fmt.Errorf("netpoll: connect %s:%d: %w", host, port, connectErr)
	}
	return nil
}

func resolveIPv4(host string) (net.IP, error) {
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, fmt.Errorf("netpoll: resolve %s: %w", host, err)
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("netpoll: no IPv4 address for %s", host)
}

// Recv reads up to len(buf) bytes. A zero-byte return with nil error means
// the peer closed the connection.
func (s *Socket) Recv(buf []byte) (int, error) {
	n, err := unix.Read(s.fd, buf)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Send writes as much of p as the OS accepts and returns the count.
func (s *Socket) Send(p []byte) (int, error) {
	n, err := unix.Write(s.fd, p)
	if n < 0 {
		n = 0
	}
	if errors.Is(err, unix.EAGAIN) {
		return n, nil
	}
	return n, err
}

// Reset discards the current socket and allocates a fresh one with
// identical configuration. It does not reconnect.
func (s *Socket) Reset() error {
	s.Close()
	s.Sending = false
	return s.alloc()
}

// Close releases the socket fd.
func (s *Socket) Close() {
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
}
