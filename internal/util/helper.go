package util

import (
	"encoding/hex"
	"strings"
)

// CloneSlice clones src into a new slice.
//
// A nil src yields nil, so callers can keep using nil to mean "absent"
// while still getting an independent copy of a present, possibly empty, slice.
func CloneSlice[T any](src []T) []T {
	if src == nil {
		return nil
	}
	clone := make([]T, len(src))
	copy(clone, src)

	return clone
}

// HexHead returns the first max bytes of b as space-separated upper-case hex.
// An ellipsis is appended when b is longer than max.
func HexHead(b []byte, max int) string {
	if max < 0 || max > len(b) {
		max = len(b)
	}

	var sb strings.Builder
	for i := 0; i < max; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(strings.ToUpper(hex.EncodeToString(b[i : i+1])))
	}
	if max < len(b) {
		sb.WriteString(" ...")
	}

	return sb.String()
}
