// Package idxfile implements the pack index (.idx) access layer: decoding,
// validating, looking up and iterating over the on-disk structure that maps
// a Git object id to its byte offset inside a companion pack file, in both
// the legacy v1 and current v2 on-disk formats.
//
// The package consumes only a byte source (a billy.Filesystem path, or an
// in-memory io.ReaderAt for tests) and never touches the pack file itself,
// object inflation, or any higher-level object database; those remain the
// caller's responsibility.
package idxfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5"
	"github.com/pjbgf/sha1cd"

	"github.com/go-git-idx/packidx/plumbing"
)

// VersionSupported is the only v2 on-disk version this package decodes.
const VersionSupported = 2

const (
	headerSize    = 8
	fanoutEntries = 256
	fanoutSize    = fanoutEntries * 4
	checksumSize  = plumbing.Size
)

// magic is the first 4 bytes of a v2 index: the ASCII sequence "\xfftOc".
var magic = [4]byte{0xff, 't', 'O', 'c'}

// Entry is a single decoded record: an object id, its offset into the
// companion pack file, and (v2 only) the CRC32 of its compressed
// representation. Values returned by EntryIter alias a single mutable
// cursor and must be copied by callers that need them to outlive the next
// call to Next.
type Entry struct {
	ID     plumbing.ObjectID
	Offset uint64
	CRC32  uint32
}

// EntryIter iterates over an Index's entries in strictly ascending id
// order. Next returns io.EOF once exhausted. Close releases resources held
// by the iterator. There is no operation for removing an entry during
// iteration.
type EntryIter interface {
	Next() (*Entry, error)
	Close() error
}

// Index is the contract a pack reader uses to translate an object id into a
// pack file offset, and vice versa. Implementations (*V1Index, *V2Index) are
// immutable after Open and safe for concurrent read access, provided each
// goroutine uses its own EntryIter.
type Index interface {
	// Has reports whether id is present in the index.
	Has(id plumbing.ObjectID) (bool, error)

	// FindOffset returns the byte offset of id within the companion pack
	// file, or a negative value if id is absent.
	FindOffset(id plumbing.ObjectID) (int64, error)

	// FindCRC32 returns the stored CRC32 of id's compressed representation.
	// It returns a *MissingObjectError if id is absent, or
	// ErrCRC32NotSupported on a v1 index.
	FindCRC32(id plumbing.ObjectID) (uint32, error)

	// ObjectCount returns the total number of objects in the index.
	ObjectCount() uint32

	// Offset64Count returns the number of entries in the optional 64-bit
	// offset overflow table (always 0 for v1).
	Offset64Count() uint32

	// ObjectID returns the id at global position n, n in [0, ObjectCount()).
	ObjectID(n uint32) (plumbing.ObjectID, error)

	// Entries returns a fresh iterator over the index's entries in
	// ascending id order.
	Entries() (EntryIter, error)

	// Resolve appends to *matches every id whose leading nibbles equal
	// abbrev, stopping once len(*matches) reaches limit+1 so callers can
	// distinguish "ambiguous" from "resolved".
	Resolve(matches *[]plumbing.ObjectID, abbrev plumbing.AbbreviatedID, limit int) error

	// PackfileChecksum returns the SHA-1 of the companion pack file's
	// trailer, as recorded in the index.
	PackfileChecksum() plumbing.ObjectID
}

// indexFile is the minimal surface Open needs from an opened file: random
// access plus a close. billy.File satisfies this directly.
type indexFile interface {
	io.ReaderAt
	io.Closer
}

// Open reads and validates the index file at path on fs, dispatching to the
// v1 or v2 decoder depending on the 8-byte header, and returns an Index
// ready for queries. The file handle is closed before Open returns, whether
// it succeeds or fails; both formats copy every table they need into
// memory.
func Open(fs billy.Filesystem, path string) (Index, error) {
	info, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx, err := decode(f, info.Size())
	if err != nil {
		return nil, &UnreadableIndexError{Path: path, Err: err}
	}
	return idx, nil
}

// OpenReaderAt is like Open but takes an already-opened random-access
// source directly, for callers (and tests) that do not have a
// billy.Filesystem path.
func OpenReaderAt(r indexFile, size int64) (Index, error) {
	return decode(r, size)
}

func decode(r indexFile, size int64) (Index, error) {
	minSize := int64(headerSize + fanoutSize + 2*checksumSize)
	if size < minSize {
		return nil, fmt.Errorf("idxfile: file too small: %d bytes, need at least %d", size, minSize)
	}

	header := make([]byte, headerSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, 0, size), header); err != nil {
		return nil, fmt.Errorf("idxfile: failed to read header: %w", err)
	}

	if bytes.Equal(header[:4], magic[:]) {
		version := binary.BigEndian.Uint32(header[4:])
		if version != VersionSupported {
			return nil, &UnsupportedVersionError{Version: version}
		}
		return decodeV2(r, size)
	}

	// No magic: these 8 bytes are the first two entries of a v1 fan-out
	// table. The table must be non-decreasing for the file to be a
	// plausible v1 index.
	fan0 := binary.BigEndian.Uint32(header[:4])
	fan1 := binary.BigEndian.Uint32(header[4:])
	if fan0 > fan1 {
		return nil, fmt.Errorf("idxfile: neither a valid v2 header nor a plausible v1 fanout table")
	}

	return decodeV1(r, size, fan0, fan1)
}

// verifyChecksum recomputes the SHA-1 over every byte preceding the
// trailing 20-byte index checksum and compares it against the stored value,
// using the collision-detecting SHA-1 implementation go-git registers for
// crypto.SHA1.
func verifyChecksum(r indexFile, size int64, want plumbing.ObjectID) error {
	h := sha1cd.New()
	sr := io.NewSectionReader(r, 0, size-int64(checksumSize))
	if _, err := io.Copy(h, sr); err != nil {
		return fmt.Errorf("idxfile: failed to hash index for checksum verification: %w", err)
	}

	var got plumbing.ObjectID
	copy(got[:], h.Sum(nil))
	if got != want {
		return fmt.Errorf("idxfile: index checksum mismatch: got %s, want %s", got, want)
	}
	return nil
}
