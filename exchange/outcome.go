package exchange

import (
	"errors"
	"time"
)

// ErrLengthMismatch indicates that a Conn returned a response whose length differs
// from the expected length.
var ErrLengthMismatch = errors.New("response length mismatch")

// Status is the result class of one exchange.
type Status uint8

const (
	// StatusOK means the payload was sent and exactly the expected number of bytes was received.
	StatusOK Status = iota
	// StatusIdle means there was no payload to send, so no I/O happened.
	StatusIdle
	// StatusFailed means sending or receiving failed.
	StatusFailed
)

// String returns string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusIdle:
		return "idle"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome describes one exchange.
//
// Response is non-nil only when Status is StatusOK.
type Outcome struct {
	Status   Status
	Response []byte
	// Sent is the number of payload bytes handed to the connection.
	Sent int
	// Elapsed spans write-start to read-complete.
	Elapsed time.Duration
	// Err is set when Status is StatusFailed.
	Err error
}

// OK reports whether the exchange succeeded.
func (o Outcome) OK() bool { return o.Status == StatusOK }

// ElapsedMicros returns Elapsed in whole microseconds.
func (o Outcome) ElapsedMicros() int64 { return o.Elapsed.Microseconds() }
