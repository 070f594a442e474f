// Package session provides the transport layer of the echo harness: a timeout-bounded TCP
// connector and a Session that reads and writes with a per-call deadline.
//
// Every socket-level failure is normalized into one of the sentinel errors declared in
// errors.go, so callers can branch with errors.Is without inspecting net or syscall errors:
//
//   - ErrConnectFailed: the connection could not be established within the timeout.
//   - ErrConnBroken: the peer closed or reset the stream before the expected bytes arrived.
//   - ErrIOTimeout: the per-call deadline elapsed during a read or a write.
//   - ErrSessionClosed: the session was closed locally.
//
// Exact-length framing:
//
//	data, err := sess.ReadExact(9)
//	if errors.Is(err, session.ErrConnBroken) {
//	    // the session is unusable, later reads fail fast
//	}
//
// ReadExact never consumes more bytes than requested, so surplus data sent by the peer
// stays buffered in the transport for the next call.
package session
