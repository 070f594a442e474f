package util

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCloneSlice(t *testing.T) {
	require := require.New(t)

	require.Nil(CloneSlice[byte](nil))

	empty := CloneSlice([]byte{})
	require.NotNil(empty)
	require.Empty(empty)

	src := []byte{0x00, 0x01, 0x02}
	clone := CloneSlice(src)
	require.Equal(src, clone)

	clone[0] = 0xFF
	require.Equal(byte(0x00), src[0], "clone must not alias the source")
}

func TestHexHead(t *testing.T) {
	seed := []byte{0x00, 0x00, 0x01, 0x00, 0xD2, 0x02, 0xEF, 0x8D}

	require.Equal(t, "00 00 01 00 D2 02 EF 8D", HexHead(seed, -1))
	require.Equal(t, "00 00 01 00 D2 02 EF 8D", HexHead(seed, 16))
	require.Equal(t, "00 00 01 ...", HexHead(seed, 3))
	require.Equal(t, "", HexHead(nil, 4))
}
