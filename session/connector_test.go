package session

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/arloliu/go-echotest/logger"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConnector_Connect(t *testing.T) {
	require := require.New(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	l := logger.NewMockLogger()
	l.On("Debug", "connecting to server", mock.Anything).Once()
	l.On("Info", "connected to server", mock.Anything).Once()

	c := NewConnector(500*time.Millisecond, l)
	sess, err := c.Connect(context.Background(), ln.Addr().String())
	require.NoError(err)
	require.NotNil(sess)
	defer sess.Close()

	require.Equal(500*time.Millisecond, sess.Timeout())
	require.Equal(ln.Addr().String(), sess.RemoteAddr())

	peer := <-accepted
	defer peer.Close()

	go func() { _, _ = peer.Write([]byte{0xD2, 0x02}) }()
	got, err := sess.ReadExact(2)
	require.NoError(err)
	require.Equal([]byte{0xD2, 0x02}, got)

	l.AssertExpectations(t)
}

func TestConnector_Refused(t *testing.T) {
	require := require.New(t)

	// reserve a port, then release it so nothing listens there
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(err)
	addr := ln.Addr().String()
	require.NoError(ln.Close())

	l := logger.NewMockLogger()
	l.On("Debug", mock.Anything, mock.Anything).Maybe()
	l.On("Warn", "connection failed", mock.Anything).Once()

	c := NewConnector(200*time.Millisecond, l)
	sess, err := c.Connect(context.Background(), addr)
	require.ErrorIs(err, ErrConnectFailed)
	require.Nil(sess)
	require.Contains(err.Error(), addr)

	l.AssertExpectations(t)
}

func TestConnector_CancelledContext(t *testing.T) {
	require := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewConnector(time.Second, logger.NewMockLogger().AllowAll())
	sess, err := c.Connect(ctx, "127.0.0.1:6666")
	require.ErrorIs(err, ErrConnectFailed)
	require.Nil(sess)
}

func TestConnector_NilLogger(t *testing.T) {
	c := NewConnector(time.Second, nil)
	require.NotNil(t, c.logger)
}
