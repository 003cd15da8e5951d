package idxfile

import (
	"sort"

	"github.com/go-git-idx/packidx/plumbing"
)

// idAtFunc returns the id stored at global position pos, pos in
// [0, count).
type idAtFunc func(pos uint32) (plumbing.ObjectID, error)

// resolve implements §4.5's abbreviated-id resolution shared by V1Index and
// V2Index: narrow to the fan-out bucket(s) that could contain a match,
// lower-bound binary search for the first candidate, then walk forward
// appending matches until the prefix stops matching, the bucket ends, or
// matches reaches limit+1 (one past the limit, so callers can tell
// "ambiguous" from "resolved").
func resolve(fanout [256]uint32, count uint32, idAt idAtFunc, matches *[]plumbing.ObjectID, abbrev plumbing.AbbreviatedID, limit int) error {
	lo, hi := resolveBounds(fanout, count, abbrev)
	if lo >= hi {
		return nil
	}

	start, err := lowerBound(lo, hi, abbrev, idAt)
	if err != nil {
		return err
	}

	for pos := start; pos < hi; pos++ {
		id, err := idAt(pos)
		if err != nil {
			return err
		}
		if !abbrev.Matches(id) {
			break
		}
		*matches = append(*matches, id)
		if len(*matches) == limit+1 {
			break
		}
	}
	return nil
}

// resolveBounds narrows the search range to the fan-out bucket(s) that
// could hold an id matching abbrev.
//
// For abbreviations of two or more nibbles, the leading full byte pins a
// single bucket. For a single leading nibble (§9's open question), no full
// byte is known, so every bucket sharing that high nibble is in play: the
// sixteen buckets fan[16*n .. 16*n+15].
func resolveBounds(fanout [256]uint32, count uint32, abbrev plumbing.AbbreviatedID) (lo, hi uint32) {
	if abbrev.Len() >= 2 {
		b := abbrev.FirstByte()
		return fanoutLow(fanout, b), fanoutHigh(fanout, count, b)
	}

	n := abbrev.FirstNibble()
	loBucket := n * 16
	hiBucket := n*16 + 15
	return fanoutLow(fanout, loBucket), fanoutHigh(fanout, count, hiBucket)
}

func fanoutLow(fanout [256]uint32, b byte) uint32 {
	if b == 0 {
		return 0
	}
	return fanout[b-1]
}

func fanoutHigh(fanout [256]uint32, count uint32, b byte) uint32 {
	if b == 255 {
		return count
	}
	return fanout[b]
}

// lowerBound returns the smallest position in [lo, hi) whose id is not
// strictly less than abbrev's prefix, or hi if no such position exists.
func lowerBound(lo, hi uint32, abbrev plumbing.AbbreviatedID, idAt idAtFunc) (uint32, error) {
	var readErr error
	pos := lo + uint32(sort.Search(int(hi-lo), func(i int) bool {
		id, err := idAt(lo + uint32(i))
		if err != nil {
			readErr = err
			return true
		}
		return abbrev.ComparePrefix(id) <= 0
	}))
	return pos, readErr
}
