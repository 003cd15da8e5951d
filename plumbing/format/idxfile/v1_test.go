package idxfile_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/go-git-idx/packidx/plumbing"
)

func v1Fixture(t *testing.T) ([]fixtureEntry, idxIndexOpener) {
	t.Helper()
	entries := []fixtureEntry{
		{ID: id("0000000000000000000000000000000000000001"), Offset: 10},
		{ID: id("00000000000000000000000000000000000000ff"), Offset: 20},
		{ID: id("a000000000000000000000000000000000000000"), Offset: 30},
		{ID: id("a000000000000000000000000000000000000001"), Offset: 40},
		{ID: id("ffffffffffffffffffffffffffffffffffffffff"), Offset: 50},
	}
	return entries, func() []byte {
		return buildV1(entries, plumbing.NewObjectID("0102030405060708090a0b0c0d0e0f1011121314"))
	}
}

type idxIndexOpener func() []byte

func TestV1FindOffsetAndHas(t *testing.T) {
	entries, build := v1Fixture(t)
	idx := open(t, build())

	for _, e := range entries {
		off, err := idx.FindOffset(e.ID)
		require.NoError(t, err)
		require.Equal(t, int64(e.Offset), off)

		ok, err := idx.Has(e.ID)
		require.NoError(t, err)
		require.True(t, ok)
	}

	off, err := idx.FindOffset(id("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"))
	require.NoError(t, err)
	require.Equal(t, int64(-1), off)
}

func TestV1EntriesAscending(t *testing.T) {
	entries, build := v1Fixture(t)
	sorted := sortedEntries(entries)
	idx := open(t, build())

	iter, err := idx.Entries()
	require.NoError(t, err)

	var got []plumbing.ObjectID
	for {
		e, err := iter.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, e.ID)
	}
	require.NoError(t, iter.Close())

	require.Len(t, got, len(sorted))
	for i, e := range sorted {
		require.Equal(t, e.ID, got[i])
	}
}

func TestV1CorruptNegativeOffsetIsRejected(t *testing.T) {
	entries := []fixtureEntry{
		{ID: id("1669dce138d9b841a518c64b10914d88f5e488ea"), Offset: 0x80000001},
	}
	data := buildV1(entries, plumbing.ZeroID)

	idx := open(t, data)
	_, err := idx.FindOffset(entries[0].ID)
	require.Error(t, err)
}
