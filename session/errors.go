package session

import (
	"errors"
	"fmt"
	"net"
	"os"
)

var (
	// ErrConnectFailed indicates that a TCP connection could not be established,
	// because the timeout elapsed or the remote refused or was unreachable.
	ErrConnectFailed = errors.New("connection failed")

	// ErrConnBroken indicates that the peer closed or reset the stream before the
	// expected number of bytes was transferred.
	// A session that reported ErrConnBroken must not be read from again.
	ErrConnBroken = errors.New("socket connection broken")

	// ErrIOTimeout indicates that the per-call deadline elapsed during a read or write.
	ErrIOTimeout = errors.New("i/o timeout")

	// ErrSessionClosed indicates that the session has been closed locally.
	ErrSessionClosed = errors.New("session closed")

	// ErrInvalidLength indicates that a negative byte count was requested.
	ErrInvalidLength = errors.New("invalid length, should be >= 0")
)

// normalize converts a transport error into one of the package sentinel errors.
// The underlying error text is kept in the message, but only the sentinel is wrapped.
func normalize(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrConnBroken), errors.Is(err, ErrIOTimeout),
		errors.Is(err, ErrSessionClosed), errors.Is(err, ErrInvalidLength):
		return err
	case errors.Is(err, net.ErrClosed):
		return fmt.Errorf("%s: %w", op, ErrSessionClosed)
	case isTimeout(err):
		return fmt.Errorf("%s: %w", op, ErrIOTimeout)
	default:
		// EOF, unexpected EOF, connection reset and broken pipe all end the stream.
		return fmt.Errorf("%s: %w (%v)", op, ErrConnBroken, err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}

func isBroken(err error) bool {
	return errors.Is(err, ErrConnBroken)
}
