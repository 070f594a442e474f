package session

import (
	"bytes"
	"errors"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/require"
)

func TestReadExact_OneByteChunks(t *testing.T) {
	require := require.New(t)

	data := make([]byte, 407)
	for i := range data {
		data[i] = byte(i)
	}

	got, err := ReadExact(iotest.OneByteReader(bytes.NewReader(data)), len(data))
	require.NoError(err)
	require.Equal(data, got)
}

func TestReadExact_HalfChunks(t *testing.T) {
	require := require.New(t)

	data := []byte("0123456789abcdef")
	got, err := ReadExact(iotest.HalfReader(bytes.NewReader(data)), len(data))
	require.NoError(err)
	require.Equal(data, got)
}

func TestReadExact_LeavesSurplus(t *testing.T) {
	require := require.New(t)

	r := bytes.NewReader([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12})

	got, err := ReadExact(r, 8)
	require.NoError(err)
	require.Equal([]byte{1, 2, 3, 4, 5, 6, 7, 8}, got)
	require.Equal(4, r.Len(), "surplus bytes must stay unread")

	got, err = ReadExact(r, 4)
	require.NoError(err)
	require.Equal([]byte{9, 10, 11, 12}, got)
}

func TestReadExact_EarlyClose(t *testing.T) {
	require := require.New(t)

	t.Run("Partial Data", func(t *testing.T) {
		got, err := ReadExact(iotest.OneByteReader(bytes.NewReader([]byte{1, 2, 3, 4, 5})), 8)
		require.ErrorIs(err, ErrConnBroken)
		require.Nil(got)
		require.Contains(err.Error(), "read 5 of 8 bytes")
	})

	t.Run("No Data", func(t *testing.T) {
		got, err := ReadExact(bytes.NewReader(nil), 8)
		require.ErrorIs(err, ErrConnBroken)
		require.Nil(got)
	})
}

func TestReadExact_ZeroLength(t *testing.T) {
	require := require.New(t)

	got, err := ReadExact(iotest.ErrReader(errors.New("must not be read")), 0)
	require.NoError(err)
	require.NotNil(got)
	require.Empty(got)
}

func TestReadExact_NegativeLength(t *testing.T) {
	require := require.New(t)

	got, err := ReadExact(bytes.NewReader([]byte{1}), -1)
	require.ErrorIs(err, ErrInvalidLength)
	require.Nil(got)
}
