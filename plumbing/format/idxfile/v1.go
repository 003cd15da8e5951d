package idxfile

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/go-git-idx/packidx/plumbing"
)

// recordSize is the width in bytes of a single v1 record: a 4-byte
// big-endian offset followed by a 20-byte object id.
const recordSize = 4 + plumbing.Size

// V1Index implements Index over the legacy on-disk layout: a fan-out table
// followed by a single contiguous array of (offset, id) records sorted by
// id, with no separate CRC32 table and no 64-bit offset overflow table.
type V1Index struct {
	fanout       [256]uint32
	records      []byte // recordSize * count bytes
	packChecksum plumbing.ObjectID
	idxChecksum  plumbing.ObjectID
}

var _ Index = (*V1Index)(nil)

// decodeV1 parses a v1 index from r. fan0 and fan1 are the first two
// fan-out entries, already read by the format detector from the file's
// first 8 bytes.
func decodeV1(r indexFile, size int64, fan0, fan1 uint32) (*V1Index, error) {
	rest := make([]byte, fanoutSize-headerSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, headerSize, size-headerSize), rest); err != nil {
		return nil, fmt.Errorf("idxfile: failed to read v1 fan-out table: %w", err)
	}

	var fanout [256]uint32
	fanout[0] = fan0
	fanout[1] = fan1
	for i := 2; i < fanoutEntries; i++ {
		v, err := readUint32At(rest, (i-2)*4)
		if err != nil {
			return nil, err
		}
		fanout[i] = v
	}
	for i := 1; i < fanoutEntries; i++ {
		if fanout[i] < fanout[i-1] {
			return nil, fmt.Errorf("idxfile: v1 fan-out table is not non-decreasing at entry %d", i)
		}
	}

	count := fanout[255]
	wantSize := int64(fanoutSize) + int64(count)*recordSize + 2*checksumSize
	if size != wantSize {
		return nil, fmt.Errorf("idxfile: v1 index size %d does not match fan-out derived size %d", size, wantSize)
	}

	records := make([]byte, int64(count)*recordSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, int64(fanoutSize), int64(len(records))), records); err != nil {
		return nil, fmt.Errorf("idxfile: failed to read v1 record table: %w", err)
	}

	trailer := make([]byte, 2*checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, int64(fanoutSize)+int64(len(records)), 2*checksumSize), trailer); err != nil {
		return nil, fmt.Errorf("idxfile: failed to read v1 trailer: %w", err)
	}

	idx := &V1Index{fanout: fanout, records: records}
	copy(idx.packChecksum[:], trailer[:checksumSize])
	copy(idx.idxChecksum[:], trailer[checksumSize:])

	if err := verifyChecksum(r, size, idx.idxChecksum); err != nil {
		return nil, err
	}

	return idx, nil
}

func (v *V1Index) recordID(pos uint32) ([]byte, error) {
	return idAt(v.records, int(pos)*recordSize+4, plumbing.Size)
}

func (v *V1Index) recordOffset(pos uint32) (uint64, error) {
	raw, err := readUint32At(v.records, int(pos)*recordSize)
	if err != nil {
		return 0, err
	}
	if raw&0x80000000 != 0 {
		return 0, ErrCorruptIndex
	}
	return uint64(raw), nil
}

// search performs the binary search described in §4.2: within [lo, hi),
// find the position whose id equals want.
func (v *V1Index) search(lo, hi uint32, want plumbing.ObjectID) (uint32, bool, error) {
	var readErr error
	pos := lo + uint32(sort.Search(int(hi-lo), func(i int) bool {
		id, err := v.recordID(lo + uint32(i))
		if err != nil {
			readErr = err
			return true
		}
		return bytes.Compare(id, want[:]) >= 0
	}))
	if readErr != nil {
		return 0, false, readErr
	}
	if pos >= hi {
		return 0, false, nil
	}
	id, err := v.recordID(pos)
	if err != nil {
		return 0, false, err
	}
	return pos, bytes.Equal(id, want[:]), nil
}

// Has implements Index.
func (v *V1Index) Has(id plumbing.ObjectID) (bool, error) {
	off, err := v.FindOffset(id)
	if err != nil {
		return false, err
	}
	return off >= 0, nil
}

// FindOffset implements Index.
func (v *V1Index) FindOffset(id plumbing.ObjectID) (int64, error) {
	b := id[0]
	lo, hi := fanoutLow(v.fanout, b), fanoutHigh(v.fanout, v.ObjectCount(), b)
	pos, found, err := v.search(lo, hi, id)
	if err != nil {
		return -1, err
	}
	if !found {
		return -1, nil
	}
	off, err := v.recordOffset(pos)
	if err != nil {
		return -1, err
	}
	return int64(off), nil
}

// FindCRC32 implements Index. v1 never stored per-object CRC32 values.
func (v *V1Index) FindCRC32(plumbing.ObjectID) (uint32, error) {
	return 0, ErrCRC32NotSupported
}

// ObjectCount implements Index.
func (v *V1Index) ObjectCount() uint32 {
	return v.fanout[255]
}

// Offset64Count implements Index. v1 has no 64-bit offset table.
func (v *V1Index) Offset64Count() uint32 {
	return 0
}

// ObjectID implements Index.
func (v *V1Index) ObjectID(n uint32) (plumbing.ObjectID, error) {
	var id plumbing.ObjectID
	if n >= v.ObjectCount() {
		return id, fmt.Errorf("idxfile: position %d out of range [0, %d)", n, v.ObjectCount())
	}
	b, err := v.recordID(n)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}

// Entries implements Index.
func (v *V1Index) Entries() (EntryIter, error) {
	return newCursorIter(v.ObjectCount(), func(pos uint32, cursor *Entry) error {
		b, err := v.recordID(pos)
		if err != nil {
			return err
		}
		freezeID(&cursor.ID, b)

		off, err := v.recordOffset(pos)
		if err != nil {
			return err
		}
		cursor.Offset = off
		cursor.CRC32 = 0
		return nil
	}), nil
}

// Resolve implements Index.
func (v *V1Index) Resolve(matches *[]plumbing.ObjectID, abbrev plumbing.AbbreviatedID, limit int) error {
	return resolve(v.fanout, v.ObjectCount(), v.ObjectID, matches, abbrev, limit)
}

// PackfileChecksum implements Index.
func (v *V1Index) PackfileChecksum() plumbing.ObjectID {
	return v.packChecksum
}
