// Package plumbing contains the low-level identifiers shared by the pack
// index access layer: fixed-width object ids, a mutable cursor variant, and
// abbreviated (prefix) ids.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
)

// Size is the length in bytes of a SHA-1 object id.
const Size = 20

// ObjectID is a SHA-1 object id: 20 bytes, compared and ordered
// lexicographically. It is immutable and safe to share across goroutines.
type ObjectID [Size]byte

// ZeroID is the ObjectID with all bytes zero.
var ZeroID ObjectID

// FromHex parses a 40 hex-character SHA-1 into an ObjectID. It rejects
// non-hex input and any length other than 40.
func FromHex(s string) (ObjectID, error) {
	var id ObjectID
	if len(s) != Size*2 {
		return id, fmt.Errorf("plumbing: invalid object id length %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("plumbing: invalid object id %q: %w", s, err)
	}
	copy(id[:], b)
	return id, nil
}

// NewObjectID is like FromHex but returns the zero id on error, mirroring
// go-git's NewHash convenience constructor for call sites that already know
// the input is well formed (e.g. tests).
func NewObjectID(s string) ObjectID {
	id, _ := FromHex(s)
	return id
}

// String returns the lower-case 40 hex-character representation.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the all-zero id.
func (id ObjectID) IsZero() bool {
	return id == ZeroID
}

// Bytes returns the 20 underlying bytes.
func (id ObjectID) Bytes() []byte {
	return id[:]
}

// Compare returns -1, 0 or 1 depending on whether id is lexically less than,
// equal to, or greater than other.
func (id ObjectID) Compare(other ObjectID) int {
	return bytes.Compare(id[:], other[:])
}

// Less reports whether id sorts strictly before other.
func (id ObjectID) Less(other ObjectID) bool {
	return id.Compare(other) < 0
}

// HasPrefix reports whether id's leading bytes equal prefix.
func (id ObjectID) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(id[:], prefix)
}

// Sort sorts ids in increasing lexical order.
func Sort(ids []ObjectID) {
	sort.Sort(idSlice(ids))
}

type idSlice []ObjectID

func (s idSlice) Len() int           { return len(s) }
func (s idSlice) Less(i, j int) bool { return s[i].Less(s[j]) }
func (s idSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// MutableObjectID is a cursor variant of ObjectID that can be rewritten in
// place, so a traversal need not allocate a fresh ObjectID on every step.
// The idxfile entry iterators do not use it; they overwrite the ID field of
// a reused Entry instead. The zero value is the zero id.
type MutableObjectID struct {
	buf [Size]byte
}

// SetBytes overwrites the cursor's contents with b, which must be exactly
// Size bytes long.
func (m *MutableObjectID) SetBytes(b []byte) {
	copy(m.buf[:], b)
}

// Bytes returns the cursor's current bytes. The returned slice aliases the
// cursor's internal storage and is invalidated by the next call that
// mutates it.
func (m *MutableObjectID) Bytes() []byte {
	return m.buf[:]
}

// String returns the lower-case hex representation of the cursor's current
// value.
func (m *MutableObjectID) String() string {
	return hex.EncodeToString(m.buf[:])
}

// Freeze returns an immutable, independent copy of the cursor's current
// value. Cheap: a single 20-byte array copy.
func (m *MutableObjectID) Freeze() ObjectID {
	var id ObjectID
	copy(id[:], m.buf[:])
	return id
}
