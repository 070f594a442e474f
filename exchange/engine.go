// Package exchange implements the send-then-exact-receive round trip of the echo harness.
package exchange

import (
	"fmt"
	"time"

	"github.com/arloliu/go-echotest/internal/util"
	"github.com/arloliu/go-echotest/logger"
)

// Conn is the part of a session the engine needs.
// *session.Session satisfies it.
type Conn interface {
	WriteAll(p []byte) error
	ReadExact(n int) ([]byte, error)
}

// Engine drives single exchanges on a Conn.
type Engine struct {
	logger logger.Logger
	now    func() time.Time
}

// NewEngine creates an Engine. A nil logger falls back to the package-level default logger.
func NewEngine(l logger.Logger) *Engine {
	if l == nil {
		l = logger.GetLogger()
	}

	return &Engine{logger: l, now: time.Now}
}

// Exchange writes payload to conn and then reads exactly expected bytes.
//
// A nil payload means there is nothing to send: the call performs no I/O and returns
// StatusIdle. An empty, non-nil payload is a valid zero-byte request.
//
// Errors never escape as return values; they are reported through Outcome.Err with
// StatusFailed and a nil Response, leaving the retry policy to the caller.
func (e *Engine) Exchange(conn Conn, payload []byte, expected int) Outcome {
	if payload == nil {
		e.logger.Debug("no data to send")
		return Outcome{Status: StatusIdle}
	}

	start := e.now()

	if err := conn.WriteAll(payload); err != nil {
		return e.failed(start, 0, fmt.Errorf("send %d bytes: %w", len(payload), err))
	}
	e.logger.Debug("sent bytes", "len", len(payload), "head", util.HexHead(payload, 8))

	resp, err := conn.ReadExact(expected)
	if err != nil {
		return e.failed(start, len(payload), fmt.Errorf("receive %d bytes: %w", expected, err))
	}
	elapsed := e.now().Sub(start)

	if len(resp) != expected {
		return e.failed(start, len(payload), fmt.Errorf("%w: got %d, want %d", ErrLengthMismatch, len(resp), expected))
	}
	e.logger.Debug("received bytes", "len", len(resp), "head", util.HexHead(resp, 8))

	return Outcome{
		Status:   StatusOK,
		Response: resp,
		Sent:     len(payload),
		Elapsed:  elapsed,
	}
}

func (e *Engine) failed(start time.Time, sent int, err error) Outcome {
	e.logger.Warn("communication error", "error", err)

	return Outcome{
		Status:  StatusFailed,
		Sent:    sent,
		Elapsed: e.now().Sub(start),
		Err:     err,
	}
}
