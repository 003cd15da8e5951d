package idxfile

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/go-git-idx/packidx/plumbing"
)

const (
	crc32Size     = 4
	offset32Size  = 4
	offset64Size  = 8
	is64BitsMask  = uint32(1) << 31
	noBucket      = -1
)

// V2Index implements Index over the current on-disk layout: a fan-out table
// followed by four parallel tables (ids, CRC32s, 32-bit offsets, and an
// optional 64-bit offset overflow table) indexed by the same global
// position.
//
// The id/CRC32/offset32 tables are loaded in 256 per-leading-byte chunks
// (one allocation per non-empty fan-out bucket) rather than as three giant
// buffers, bounding peak allocation size and defending against a corrupt
// fan-out count that would otherwise demand an implausibly large single
// read (§9, "Bucketed allocation").
type V2Index struct {
	fanout  [256]uint32
	mapping [256]int // bucket index into names/crc32/offset32, or noBucket

	names    [][]byte // per bucket: 20 bytes per entry
	crc32    [][]byte // per bucket: 4 bytes per entry
	offset32 [][]byte // per bucket: 4 bytes per entry

	offset64 []byte // contiguous: 8 bytes per overflow entry

	packChecksum plumbing.ObjectID
	idxChecksum  plumbing.ObjectID
}

var _ Index = (*V2Index)(nil)

func decodeV2(r indexFile, size int64) (*V2Index, error) {
	fanoutBuf := make([]byte, fanoutSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, headerSize, size-headerSize), fanoutBuf); err != nil {
		return nil, fmt.Errorf("idxfile: failed to read v2 fan-out table: %w", err)
	}

	var fanout [256]uint32
	for i := 0; i < fanoutEntries; i++ {
		v, err := readUint32At(fanoutBuf, i*4)
		if err != nil {
			return nil, err
		}
		fanout[i] = v
	}
	for i := 1; i < fanoutEntries; i++ {
		if fanout[i] < fanout[i-1] {
			return nil, fmt.Errorf("idxfile: v2 fan-out table is not non-decreasing at entry %d", i)
		}
	}

	count := fanout[255]

	fixedTables := int64(count)*(plumbing.Size+crc32Size+offset32Size) + 2*checksumSize
	remaining := size - headerSize - fanoutSize - fixedTables
	if remaining < 0 || remaining%offset64Size != 0 {
		return nil, fmt.Errorf("idxfile: v2 index size %d inconsistent with %d objects", size, count)
	}
	offset64Count := uint32(remaining / offset64Size)

	namesStart := int64(headerSize) + fanoutSize
	crcStart := namesStart + int64(count)*plumbing.Size
	off32Start := crcStart + int64(count)*crc32Size
	off64Start := off32Start + int64(count)*offset32Size
	trailerStart := off64Start + int64(offset64Count)*offset64Size

	idx := &V2Index{fanout: fanout}
	for i := range idx.mapping {
		idx.mapping[i] = noBucket
	}

	last := uint32(0)
	for b := 0; b < fanoutEntries; b++ {
		lo := last
		hi := fanout[b]
		last = hi
		n := hi - lo
		if n == 0 {
			continue
		}
		// Plausibility cap (§9): a single bucket can never legitimately
		// hold more entries than the whole index.
		if n > count {
			return nil, fmt.Errorf("idxfile: v2 fan-out bucket %d claims %d entries, more than the %d total", b, n, count)
		}

		names := make([]byte, int64(n)*plumbing.Size)
		if _, err := io.ReadFull(io.NewSectionReader(r, namesStart+int64(lo)*plumbing.Size, int64(len(names))), names); err != nil {
			return nil, fmt.Errorf("idxfile: failed to read id bucket %d: %w", b, err)
		}

		crc := make([]byte, int64(n)*crc32Size)
		if _, err := io.ReadFull(io.NewSectionReader(r, crcStart+int64(lo)*crc32Size, int64(len(crc))), crc); err != nil {
			return nil, fmt.Errorf("idxfile: failed to read crc32 bucket %d: %w", b, err)
		}

		off32 := make([]byte, int64(n)*offset32Size)
		if _, err := io.ReadFull(io.NewSectionReader(r, off32Start+int64(lo)*offset32Size, int64(len(off32))), off32); err != nil {
			return nil, fmt.Errorf("idxfile: failed to read offset32 bucket %d: %w", b, err)
		}

		idx.mapping[b] = len(idx.names)
		idx.names = append(idx.names, names)
		idx.crc32 = append(idx.crc32, crc)
		idx.offset32 = append(idx.offset32, off32)
	}

	if offset64Count > 0 {
		idx.offset64 = make([]byte, int64(offset64Count)*offset64Size)
		if _, err := io.ReadFull(io.NewSectionReader(r, off64Start, int64(len(idx.offset64))), idx.offset64); err != nil {
			return nil, fmt.Errorf("idxfile: failed to read offset64 table: %w", err)
		}
	}

	trailer := make([]byte, 2*checksumSize)
	if _, err := io.ReadFull(io.NewSectionReader(r, trailerStart, 2*checksumSize), trailer); err != nil {
		return nil, fmt.Errorf("idxfile: failed to read v2 trailer: %w", err)
	}
	copy(idx.packChecksum[:], trailer[:checksumSize])
	copy(idx.idxChecksum[:], trailer[checksumSize:])

	if err := verifyChecksum(r, size, idx.idxChecksum); err != nil {
		return nil, err
	}

	return idx, nil
}

// bucket returns the per-leading-byte id table for b, or ok=false if that
// byte has no entries at all.
func (v *V2Index) bucket(b byte) (names []byte, ok bool) {
	bi := v.mapping[b]
	if bi == noBucket {
		return nil, false
	}
	return v.names[bi], true
}

func (v *V2Index) idAtLocal(names []byte, local uint32) ([]byte, error) {
	return idAt(names, int(local)*plumbing.Size, plumbing.Size)
}

func (v *V2Index) offsetAtGlobal(bi int, local uint32) (uint64, error) {
	raw, err := readUint32At(v.offset32[bi], int(local)*offset32Size)
	if err != nil {
		return 0, err
	}
	if raw&is64BitsMask == 0 {
		return uint64(raw), nil
	}
	slot := raw &^ is64BitsMask
	return readUint64At(v.offset64, int(slot)*offset64Size)
}

func (v *V2Index) crc32AtGlobal(bi int, local uint32) (uint32, error) {
	return readUint32At(v.crc32[bi], int(local)*crc32Size)
}

// Has implements Index.
func (v *V2Index) Has(id plumbing.ObjectID) (bool, error) {
	off, err := v.FindOffset(id)
	if err != nil {
		return false, err
	}
	return off >= 0, nil
}

// FindOffset implements Index.
func (v *V2Index) FindOffset(id plumbing.ObjectID) (int64, error) {
	names, ok := v.bucket(id[0])
	if !ok {
		return -1, nil
	}
	local, found, err := searchBucket(names, id)
	if err != nil {
		return -1, err
	}
	if !found {
		return -1, nil
	}
	off, err := v.offsetAtGlobal(v.mapping[id[0]], local)
	if err != nil {
		return -1, err
	}
	return int64(off), nil
}

// FindCRC32 implements Index.
func (v *V2Index) FindCRC32(id plumbing.ObjectID) (uint32, error) {
	names, ok := v.bucket(id[0])
	if !ok {
		return 0, &MissingObjectError{ID: id}
	}
	local, found, err := searchBucket(names, id)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, &MissingObjectError{ID: id}
	}
	return v.crc32AtGlobal(v.mapping[id[0]], local)
}

// searchBucket binary searches a bucket's raw 20-bytes-per-entry id table
// for want, returning its local (bucket-relative) position.
func searchBucket(names []byte, want plumbing.ObjectID) (uint32, bool, error) {
	n := len(names) / plumbing.Size
	var readErr error
	local := sort.Search(n, func(i int) bool {
		id, err := idAt(names, i*plumbing.Size, plumbing.Size)
		if err != nil {
			readErr = err
			return true
		}
		return bytes.Compare(id, want[:]) >= 0
	})
	if readErr != nil {
		return 0, false, readErr
	}
	if local >= n {
		return 0, false, nil
	}
	id, err := idAt(names, local*plumbing.Size, plumbing.Size)
	if err != nil {
		return 0, false, err
	}
	return uint32(local), bytes.Equal(id, want[:]), nil
}

// ObjectCount implements Index.
func (v *V2Index) ObjectCount() uint32 {
	return v.fanout[255]
}

// Offset64Count implements Index.
func (v *V2Index) Offset64Count() uint32 {
	return uint32(len(v.offset64) / offset64Size)
}

// bucketForPos returns the leading byte whose fan-out range contains the
// global position pos. O(log 256), matching §4.3's get_object_id.
func (v *V2Index) bucketForPos(pos uint32) byte {
	return byte(sort.Search(fanoutEntries, func(b int) bool {
		return v.fanout[b] > pos
	}))
}

// ObjectID implements Index.
func (v *V2Index) ObjectID(n uint32) (plumbing.ObjectID, error) {
	var id plumbing.ObjectID
	if n >= v.ObjectCount() {
		return id, fmt.Errorf("idxfile: position %d out of range [0, %d)", n, v.ObjectCount())
	}
	b := v.bucketForPos(n)
	bi := v.mapping[b]
	local := n - fanoutLow(v.fanout, b)
	raw, err := v.idAtLocal(v.names[bi], local)
	if err != nil {
		return id, err
	}
	copy(id[:], raw)
	return id, nil
}

// Entries implements Index.
func (v *V2Index) Entries() (EntryIter, error) {
	return newCursorIter(v.ObjectCount(), func(pos uint32, cursor *Entry) error {
		b := v.bucketForPos(pos)
		bi := v.mapping[b]
		local := pos - fanoutLow(v.fanout, b)

		raw, err := v.idAtLocal(v.names[bi], local)
		if err != nil {
			return err
		}
		freezeID(&cursor.ID, raw)

		off, err := v.offsetAtGlobal(bi, local)
		if err != nil {
			return err
		}
		cursor.Offset = off

		crc, err := v.crc32AtGlobal(bi, local)
		if err != nil {
			return err
		}
		cursor.CRC32 = crc
		return nil
	}), nil
}

// Resolve implements Index.
func (v *V2Index) Resolve(matches *[]plumbing.ObjectID, abbrev plumbing.AbbreviatedID, limit int) error {
	return resolve(v.fanout, v.ObjectCount(), v.ObjectID, matches, abbrev, limit)
}

// PackfileChecksum implements Index.
func (v *V2Index) PackfileChecksum() plumbing.ObjectID {
	return v.packChecksum
}
