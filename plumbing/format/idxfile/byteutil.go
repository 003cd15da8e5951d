package idxfile

import (
	"encoding/binary"
	"fmt"
)

// readUint32At decodes a big-endian uint32 from buf at byte offset off,
// bounds-checking the access instead of panicking on a short buffer.
func readUint32At(buf []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(buf) {
		return 0, fmt.Errorf("idxfile: uint32 read at %d out of bounds (len %d)", off, len(buf))
	}
	return binary.BigEndian.Uint32(buf[off : off+4]), nil
}

// readUint64At decodes a big-endian uint64 from buf at byte offset off.
func readUint64At(buf []byte, off int) (uint64, error) {
	if off < 0 || off+8 > len(buf) {
		return 0, fmt.Errorf("idxfile: uint64 read at %d out of bounds (len %d)", off, len(buf))
	}
	return binary.BigEndian.Uint64(buf[off : off+8]), nil
}

// idAt returns the Size-byte slice at byte offset off within buf, bounds
// checked. The returned slice aliases buf.
func idAt(buf []byte, off, size int) ([]byte, error) {
	if off < 0 || off+size > len(buf) {
		return nil, fmt.Errorf("idxfile: id read at %d out of bounds (len %d)", off, len(buf))
	}
	return buf[off : off+size], nil
}
