package idxfile

import (
	"errors"
	"fmt"

	"github.com/go-git-idx/packidx/plumbing"
)

// ErrCorruptIndex is returned when a v1 record encodes a negative offset
// (the high bit of its 32-bit offset set), which the v1 format does not
// permit.
var ErrCorruptIndex = errors.New("idxfile: corrupt index: negative offset in v1 record")

// ErrCRC32NotSupported is returned by FindCRC32 on a v1 index, which never
// stored per-object CRC32 values.
var ErrCRC32NotSupported = errors.New("idxfile: v1 index does not store CRC32 values")

// ErrUnsupportedOperation is the error kind for operations the index
// contract does not support, such as removing an entry during iteration.
// EntryIter has no removal method, so no function in this package returns
// it.
var ErrUnsupportedOperation = errors.New("idxfile: unsupported operation")

// UnsupportedVersionError is returned when the index header carries the v2
// magic but a version other than 2.
type UnsupportedVersionError struct {
	Version uint32
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("idxfile: unsupported index version %d", e.Version)
}

// UnreadableIndexError wraps any I/O or structural decode failure
// encountered while opening path, always retaining the underlying cause.
type UnreadableIndexError struct {
	Path string
	Err  error
}

func (e *UnreadableIndexError) Error() string {
	return fmt.Sprintf("idxfile: cannot read index %q: %v", e.Path, e.Err)
}

func (e *UnreadableIndexError) Unwrap() error {
	return e.Err
}

// MissingObjectError is returned by FindCRC32 (and similar membership-
// presuming queries) when asked about an id the index does not contain.
type MissingObjectError struct {
	ID plumbing.ObjectID
}

func (e *MissingObjectError) Error() string {
	return fmt.Sprintf("idxfile: object %s not found in index", e.ID)
}
