package idxfile

import (
	"io"

	"github.com/go-git-idx/packidx/plumbing"
)

// entryAtFunc fills cursor with the entry at global position pos.
type entryAtFunc func(pos uint32, cursor *Entry) error

// cursorIter is the shared Iterator Cursor implementation (§4.4): it
// reuses a single Entry across every call to Next, so a long traversal does
// not allocate per entry. Callers that need a value to outlive the next
// Next call must copy it (Entry is a plain struct, so `e := *entry` works).
type cursorIter struct {
	entryAt entryAtFunc
	count   uint32
	pos     uint32
	closed  bool
	cursor  Entry
}

func newCursorIter(count uint32, entryAt entryAtFunc) *cursorIter {
	return &cursorIter{entryAt: entryAt, count: count}
}

// Next overwrites and returns the shared cursor entry for the next position
// in ascending id order, or io.EOF once every position has been visited.
func (it *cursorIter) Next() (*Entry, error) {
	if it.closed {
		return nil, io.EOF
	}
	if it.pos >= it.count {
		return nil, io.EOF
	}
	if err := it.entryAt(it.pos, &it.cursor); err != nil {
		return nil, err
	}
	it.pos++
	return &it.cursor, nil
}

// Close marks the iterator exhausted. Removal during iteration is
// unsupported.
func (it *cursorIter) Close() error {
	it.closed = true
	return nil
}

var _ EntryIter = (*cursorIter)(nil)

// freezeID is a small helper iterators' entryAt callbacks use to copy a
// decoded id-sized byte slice into the cursor's ObjectID field without an
// intermediate allocation.
func freezeID(dst *plumbing.ObjectID, src []byte) {
	copy(dst[:], src)
}
