package session

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-echotest/logger"
)

const defaultKeepAlive = 30 * time.Second

// Connector opens timeout-bounded TCP sessions.
type Connector struct {
	timeout time.Duration
	dialer  *net.Dialer
	logger  logger.Logger
}

// NewConnector creates a Connector whose timeout bounds both the connection
// attempt and every later read or write on the returned sessions.
//
// A nil logger falls back to the package-level default logger.
func NewConnector(timeout time.Duration, l logger.Logger) *Connector {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Connector{
		timeout: timeout,
		dialer:  &net.Dialer{KeepAlive: defaultKeepAlive},
		logger:  l,
	}
}

// Connect dials address over TCP.
//
// On success it returns a Session configured with the connector timeout. On failure
// it returns a nil Session and an error wrapping ErrConnectFailed; the underlying
// dial error is only kept in the message.
func (c *Connector) Connect(ctx context.Context, address string) (*Session, error) {
	dialCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	c.logger.Debug("connecting to server", "address", address, "timeout", c.timeout)

	conn, err := c.dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		c.logger.Warn("connection failed", "address", address, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", ErrConnectFailed, address, err)
	}

	c.logger.Info("connected to server",
		"address", address,
		"local_addr", conn.LocalAddr().String(),
	)

	return NewSession(conn, c.timeout), nil
}
