package plumbing

import (
	"encoding/hex"
	"fmt"
)

// AbbreviatedID is a 1..40 hex nibble prefix of an ObjectID, as used in
// user-facing contexts (short commit ids, etc).
type AbbreviatedID struct {
	buf [Size]byte
	// nibbles is the number of significant hex nibbles, 1..40.
	nibbles int
}

// NewAbbreviatedID parses a hex prefix of 1..40 characters into an
// AbbreviatedID. An odd number of nibbles is allowed; the trailing nibble is
// stored in the high 4 bits of its byte.
func NewAbbreviatedID(s string) (AbbreviatedID, error) {
	var a AbbreviatedID
	if len(s) < 1 || len(s) > Size*2 {
		return a, fmt.Errorf("plumbing: abbreviated id length %d out of range 1..%d", len(s), Size*2)
	}

	full := s
	odd := len(s)%2 == 1
	if odd {
		full = s + "0"
	}

	b, err := hex.DecodeString(full)
	if err != nil {
		return a, fmt.Errorf("plumbing: invalid abbreviated id %q: %w", s, err)
	}

	copy(a.buf[:], b)
	a.nibbles = len(s)
	return a, nil
}

// Len returns the number of significant hex nibbles, 1..40.
func (a AbbreviatedID) Len() int {
	return a.nibbles
}

// String returns the significant hex nibbles of a, lower-case.
func (a AbbreviatedID) String() string {
	full := hex.EncodeToString(a.buf[:])
	return full[:a.nibbles]
}

// FirstByte returns the id's leading full byte (its first two nibbles,
// high nibble first). It is always defined, even when Len() == 1, in which
// case the low nibble is zero-filled and must not be treated as
// significant.
func (a AbbreviatedID) FirstByte() byte {
	return a.buf[0]
}

// FirstNibble returns the single high nibble of the id's first byte. It is
// the only significant nibble when Len() == 1.
func (a AbbreviatedID) FirstNibble() byte {
	return a.buf[0] >> 4
}

// Matches reports whether id's leading nibbles equal a's prefix.
func (a AbbreviatedID) Matches(id ObjectID) bool {
	return a.ComparePrefix(id) == 0
}

// ComparePrefix compares a's significant nibbles against id's leading
// nibbles, returning <0, 0 or >0, so it can drive a lower-bound binary
// search over a sorted run of ids. Comparison proceeds full bytes first,
// then (for an odd nibble count) the high nibble of the next byte, per
// spec.
func (a AbbreviatedID) ComparePrefix(id ObjectID) int {
	fullBytes := a.nibbles / 2
	for i := 0; i < fullBytes; i++ {
		if d := int(a.buf[i]) - int(id[i]); d != 0 {
			return d
		}
	}
	if a.nibbles%2 == 1 {
		want := a.buf[fullBytes] & 0xf0
		got := id[fullBytes] & 0xf0
		if d := int(want) - int(got); d != 0 {
			return d
		}
	}
	return 0
}
