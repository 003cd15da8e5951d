package idxfile_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-git-idx/packidx/plumbing"
	"github.com/go-git-idx/packidx/plumbing/format/idxfile"
)

// checkUniversalInvariants exercises the properties every Index
// implementation must hold, regardless of on-disk version, against a
// fixture built from entries.
func checkUniversalInvariants(t *testing.T, idx idxfile.Index, entries []fixtureEntry) {
	t.Helper()
	sorted := sortedEntries(entries)

	require.Equal(t, uint32(len(sorted)), idx.ObjectCount())

	// FindOffset(ObjectID(i)) round-trips, and ids come back in strictly
	// ascending order.
	var prev plumbing.ObjectID
	for i := uint32(0); i < idx.ObjectCount(); i++ {
		got, err := idx.ObjectID(i)
		require.NoError(t, err)
		require.Equal(t, sorted[i].ID, got)
		if i > 0 {
			require.True(t, prev.Less(got), "ids must be strictly ascending")
		}
		prev = got

		off, err := idx.FindOffset(got)
		require.NoError(t, err)
		require.Equal(t, int64(sorted[i].Offset), off)

		ok, err := idx.Has(got)
		require.NoError(t, err)
		require.True(t, ok)
	}

	// Entries visits every id exactly once, in the same ascending order.
	iter, err := idx.Entries()
	require.NoError(t, err)
	var n uint32
	for {
		e, err := iter.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		require.Equal(t, sorted[n].ID, e.ID)
		require.Equal(t, sorted[n].Offset, e.Offset)
		n++
	}
	require.Equal(t, idx.ObjectCount(), n)
	require.NoError(t, iter.Close())

	// An id that was never stored is absent without error, and FindOffset
	// returns a negative value rather than panicking or reading out of
	// bounds.
	absent := id("c0ffee0000000000000000000000000000000000")
	found := false
	for _, e := range sorted {
		if e.ID == absent {
			found = true
		}
	}
	require.False(t, found, "fixture accidentally contains the absent probe id")

	off, err := idx.FindOffset(absent)
	require.NoError(t, err)
	require.True(t, off < 0)

	has, err := idx.Has(absent)
	require.NoError(t, err)
	require.False(t, has)
}

func TestUniversalInvariantsV1(t *testing.T) {
	entries := []fixtureEntry{
		{ID: id("0000000000000000000000000000000000000001"), Offset: 1},
		{ID: id("1111111111111111111111111111111111111111"), Offset: 2},
		{ID: id("a000000000000000000000000000000000000000"), Offset: 3},
		{ID: id("ffffffffffffffffffffffffffffffffffffffff"), Offset: 4},
	}
	idx := open(t, buildV1(entries, plumbing.ZeroID))
	checkUniversalInvariants(t, idx, entries)
}

func TestUniversalInvariantsV2(t *testing.T) {
	entries := v2Fixture()
	idx := open(t, buildV2(entries, plumbing.ZeroID))
	checkUniversalInvariants(t, idx, entries)
}

// TestV2OffsetTopBitCorrespondence confirms that an entry whose offset
// needs the 64-bit table is only ever the one entry that was built that
// way, and that every other entry's offset still decodes straight out of
// the 32-bit table.
func TestV2OffsetTopBitCorrespondence(t *testing.T) {
	entries := []fixtureEntry{
		{ID: id("1111111111111111111111111111111111111111"), Offset: 100},
		{ID: id("2222222222222222222222222222222222222222"), Offset: 1 << 40},
		{ID: id("3333333333333333333333333333333333333333"), Offset: 200},
	}
	idx := open(t, buildV2(entries, plumbing.ZeroID))
	require.Equal(t, uint32(1), idx.Offset64Count())

	for _, e := range entries {
		off, err := idx.FindOffset(e.ID)
		require.NoError(t, err)
		require.Equal(t, int64(e.Offset), off)
	}
}
