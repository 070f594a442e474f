// Package echoserver provides a scriptable loopback TCP server speaking the echo-and-grow
// protocol, used to exercise the harness in tests.
package echoserver

import (
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"

	"github.com/arloliu/go-echotest/internal/util"
	"github.com/arloliu/go-echotest/logger"
)

// Responder returns the reply for request number step (starting at 1 on every connection).
// When keepOpen is false the connection is closed after the reply is written.
type Responder func(step int, req []byte) (resp []byte, keepOpen bool)

// RequestLength returns the number of bytes the server reads for request number step.
type RequestLength func(step int) int

// GrowingEcho is the well-behaved server: it echoes the 8-byte seed unchanged and from
// then on echoes every request grown by one byte, so reply number step is 7+step bytes long.
func GrowingEcho(step int, req []byte) ([]byte, bool) {
	resp := util.CloneSlice(req)
	if step > 1 {
		resp = append(resp, byte(step))
	}

	return resp, true
}

// GrowingRequestLength is the request length matching GrowingEcho: 8 bytes for the seed,
// then the length of the previous reply.
func GrowingRequestLength(step int) int {
	if step <= 1 {
		return 8
	}

	return 6 + step
}

// ShortFrom wraps next so that every reply from step on is one byte short.
func ShortFrom(step int, next Responder) Responder {
	return func(s int, req []byte) ([]byte, bool) {
		resp, keepOpen := next(s, req)
		if s >= step && len(resp) > 0 {
			resp = resp[:len(resp)-1]
		}

		return resp, keepOpen
	}
}

// CloseAt wraps next so that the connection is closed without a reply at step.
func CloseAt(step int, next Responder) Responder {
	return func(s int, req []byte) ([]byte, bool) {
		if s == step {
			return nil, false
		}

		return next(s, req)
	}
}

// Server is a loopback echo server.
type Server struct {
	ln         net.Listener
	responder  Responder
	requestLen RequestLength
	onAccept   func(n int64) bool
	logger     logger.Logger

	conns    *xsync.MapOf[uint64, net.Conn]
	nextID   atomic.Uint64
	accepted atomic.Int64
	closed   atomic.Bool
	group    errgroup.Group
}

// Option configures a Server.
type Option func(*Server)

// WithResponder sets the reply script. Defaults to GrowingEcho.
func WithResponder(r Responder) Option {
	return func(s *Server) { s.responder = r }
}

// WithRequestLength sets the request framing. Defaults to GrowingRequestLength.
func WithRequestLength(f RequestLength) Option {
	return func(s *Server) { s.requestLen = f }
}

// WithAcceptFilter sets a function called with the 1-based number of every accepted
// connection; returning false closes the connection immediately.
func WithAcceptFilter(f func(n int64) bool) Option {
	return func(s *Server) { s.onAccept = f }
}

// WithCloseOnAccept closes every connection right after accepting it.
func WithCloseOnAccept() Option {
	return WithAcceptFilter(func(int64) bool { return false })
}

// WithLogger sets the logger of the server.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Start listens on an ephemeral loopback port and serves connections until Close.
func Start(opts ...Option) (*Server, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}

	s := &Server{
		ln:         ln,
		responder:  GrowingEcho,
		requestLen: GrowingRequestLength,
		logger:     logger.GetLogger(),
		conns:      xsync.NewMapOf[uint64, net.Conn](),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.group.Go(s.acceptLoop)

	return s, nil
}

// Addr returns the listening address as host:port.
func (s *Server) Addr() string { return s.ln.Addr().String() }

// Port returns the listening port.
func (s *Server) Port() int { return s.ln.Addr().(*net.TCPAddr).Port }

// Accepted returns the number of accepted connections.
func (s *Server) Accepted() int64 { return s.accepted.Load() }

// ActiveConns returns the number of connections being served.
func (s *Server) ActiveConns() int { return s.conns.Size() }

// Close stops accepting, closes every served connection and waits for the handlers to return.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.ln.Close()
	s.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.Close()
		return true
	})

	if werr := s.group.Wait(); werr != nil {
		return werr
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}

	return err
}

func (s *Server) acceptLoop() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.closed.Load() {
				return nil
			}
			return err
		}

		n := s.accepted.Add(1)
		if s.onAccept != nil && !s.onAccept(n) {
			s.logger.Debug("echoserver: rejecting connection", "n", n)
			_ = conn.Close()
			continue
		}

		id := s.nextID.Add(1)
		s.conns.Store(id, conn)
		// Close may have ranged over conns before the Store above.
		if s.closed.Load() {
			_ = conn.Close()
		}

		s.group.Go(func() error {
			defer s.conns.Delete(id)
			defer conn.Close()
			s.serve(conn)

			return nil
		})
	}
}

func (s *Server) serve(conn net.Conn) {
	for step := 1; ; step++ {
		req := make([]byte, s.requestLen(step))
		if _, err := io.ReadFull(conn, req); err != nil {
			s.logger.Debug("echoserver: connection done", "step", step, "error", err)
			return
		}

		resp, keepOpen := s.responder(step, req)
		if len(resp) > 0 {
			if _, err := conn.Write(resp); err != nil {
				return
			}
		}
		if !keepOpen {
			return
		}
	}
}
