package idxfile_test

import (
	"bytes"
	"crypto/sha1"
	"encoding/binary"
	"sort"

	"github.com/go-git-idx/packidx/plumbing"
)

// fixtureEntry is a single (id, offset, crc32) triple used to assemble
// hand-built v1/v2 index fixtures. CRC32 is ignored when building a v1
// fixture, since that format never stores one.
type fixtureEntry struct {
	ID     plumbing.ObjectID
	Offset uint64
	CRC32  uint32
}

// readerAtCloser adapts a bytes.Reader to the ReadAt+Close pair
// idxfile.OpenReaderAt expects from an already-opened file, so fixtures never
// need a real filesystem.
type readerAtCloser struct {
	*bytes.Reader
}

func (readerAtCloser) Close() error { return nil }

func sortedEntries(entries []fixtureEntry) []fixtureEntry {
	out := make([]fixtureEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Less(out[j].ID) })
	return out
}

// fanoutTable computes the 256-entry cumulative fan-out table for entries,
// which must already be sorted by id.
func fanoutTable(entries []fixtureEntry) [256]uint32 {
	var fanout [256]uint32
	i := 0
	cum := uint32(0)
	for b := 0; b < 256; b++ {
		for i < len(entries) && int(entries[i].ID.Bytes()[0]) == b {
			i++
			cum++
		}
		fanout[b] = cum
	}
	return fanout
}

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// buildV1 assembles a legacy-format index: a 256-entry fan-out table
// immediately followed by one (offset, id) record per entry, sorted by id.
func buildV1(entries []fixtureEntry, packChecksum plumbing.ObjectID) []byte {
	entries = sortedEntries(entries)
	fanout := fanoutTable(entries)

	buf := new(bytes.Buffer)
	for _, v := range fanout {
		putUint32(buf, v)
	}
	for _, e := range entries {
		putUint32(buf, uint32(e.Offset))
		buf.Write(e.ID.Bytes())
	}
	buf.Write(packChecksum.Bytes())

	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

// buildV2 assembles a current-format index. Any entry whose offset does not
// fit in 31 bits is recorded in the 64-bit overflow table, with its 32-bit
// slot carrying the high bit plus the overflow index.
func buildV2(entries []fixtureEntry, packChecksum plumbing.ObjectID) []byte {
	entries = sortedEntries(entries)
	fanout := fanoutTable(entries)

	buf := new(bytes.Buffer)
	buf.Write([]byte{0xff, 't', 'O', 'c'})
	putUint32(buf, 2)

	for _, v := range fanout {
		putUint32(buf, v)
	}
	for _, e := range entries {
		buf.Write(e.ID.Bytes())
	}
	for _, e := range entries {
		putUint32(buf, e.CRC32)
	}

	var offset64 []uint64
	for _, e := range entries {
		if e.Offset >= 1<<31 {
			slot := uint32(len(offset64))
			offset64 = append(offset64, e.Offset)
			putUint32(buf, slot|0x80000000)
		} else {
			putUint32(buf, uint32(e.Offset))
		}
	}
	for _, off := range offset64 {
		putUint64(buf, off)
	}

	buf.Write(packChecksum.Bytes())
	sum := sha1.Sum(buf.Bytes())
	buf.Write(sum[:])
	return buf.Bytes()
}

func id(s string) plumbing.ObjectID {
	return plumbing.NewObjectID(s)
}
