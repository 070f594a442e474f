package session

import (
	"fmt"
	"io"
)

// ReadExact reads exactly n bytes from r.
//
// It keeps reading until n bytes have accumulated, so a peer delivering the data in
// arbitrarily small chunks is handled transparently. It never reads past n bytes.
//
// A zero n returns an empty slice without touching r. When the stream ends before
// n bytes arrive the error wraps ErrConnBroken and no data is returned; a deadline
// expiry wraps ErrIOTimeout.
func ReadExact(r io.Reader, n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("read %d bytes: %w", n, ErrInvalidLength)
	}
	if n == 0 {
		return []byte{}, nil
	}

	buf := make([]byte, n)
	got, err := io.ReadFull(r, buf)
	if err != nil {
		return nil, normalize(fmt.Sprintf("read %d of %d bytes", got, n), err)
	}

	return buf, nil
}
