package session

import (
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"
)

// Session is an open bidirectional byte stream to the server under test.
//
// Every blocking read and write is bounded by the session timeout, applied as a
// fresh deadline per call. A Session is owned by a single caller and is not meant
// for concurrent reads or concurrent writes.
type Session struct {
	conn    net.Conn
	timeout time.Duration

	closed atomic.Bool
	broken atomic.Bool

	bytesSent atomic.Uint64
	bytesRecv atomic.Uint64
}

// NewSession wraps conn. A non-positive timeout disables per-call deadlines.
func NewSession(conn net.Conn, timeout time.Duration) *Session {
	return &Session{conn: conn, timeout: timeout}
}

// WriteAll writes the whole of p, retrying short writes until every byte is sent
// or an error occurs.
func (s *Session) WriteAll(p []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("write: %w", ErrSessionClosed)
	}

	if err := s.setDeadline(s.conn.SetWriteDeadline); err != nil {
		return normalize("set write deadline", err)
	}

	for sent := 0; sent < len(p); {
		n, err := s.conn.Write(p[sent:])
		sent += n
		s.bytesSent.Add(uint64(n)) //nolint:gosec
		if err != nil {
			return normalize(fmt.Sprintf("write %d of %d bytes", sent, len(p)), err)
		}
		if n == 0 {
			return normalize("write", io.ErrShortWrite)
		}
	}

	return nil
}

// ReadExact reads exactly n bytes from the session, see the package level ReadExact.
//
// Once a read reports ErrConnBroken the session is marked broken and every later
// ReadExact fails immediately with ErrConnBroken.
func (s *Session) ReadExact(n int) ([]byte, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("read: %w", ErrSessionClosed)
	}
	if s.broken.Load() {
		return nil, fmt.Errorf("read: %w", ErrConnBroken)
	}
	if n == 0 {
		return []byte{}, nil
	}

	if err := s.setDeadline(s.conn.SetReadDeadline); err != nil {
		return nil, normalize("set read deadline", err)
	}

	data, err := ReadExact(s.conn, n)
	if err != nil {
		if isBroken(err) {
			s.broken.Store(true)
		}
		return nil, err
	}
	s.bytesRecv.Add(uint64(n)) //nolint:gosec

	return data, nil
}

// Close closes the underlying connection. It is safe to call Close more than once.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	return s.conn.Close()
}

// IsClosed reports whether Close has been called.
func (s *Session) IsClosed() bool { return s.closed.Load() }

// IsBroken reports whether a read observed the peer closing the stream.
func (s *Session) IsBroken() bool { return s.broken.Load() }

// Timeout returns the per-call deadline applied to reads and writes.
func (s *Session) Timeout() time.Duration { return s.timeout }

// BytesSent returns the number of bytes written to the session.
func (s *Session) BytesSent() uint64 { return s.bytesSent.Load() }

// BytesReceived returns the number of bytes returned by successful reads.
func (s *Session) BytesReceived() uint64 { return s.bytesRecv.Load() }

// LocalAddr returns the local network address as a string.
func (s *Session) LocalAddr() string { return s.conn.LocalAddr().String() }

// RemoteAddr returns the remote network address as a string.
func (s *Session) RemoteAddr() string { return s.conn.RemoteAddr().String() }

func (s *Session) setDeadline(set func(time.Time) error) error {
	if s.timeout <= 0 {
		return set(time.Time{})
	}

	return set(time.Now().Add(s.timeout))
}
