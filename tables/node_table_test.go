package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeTableAddRowGrowth(t *testing.T) {
	var nt NodeTable
	require.NoError(t, nt.Alloc(2, 4))

	id0, err := nt.AddRow(IsSample, 0, 0, []byte("a"))
	require.NoError(t, err)
	assert.Equal(t, NodeId(0), id0)

	id1, err := nt.AddRow(IsSample, 0, 1, []byte("bb"))
	require.NoError(t, err)
	assert.Equal(t, NodeId(1), id1)

	// Forces a row-capacity grow beyond the initial increment of 2.
	id2, err := nt.AddRow(0, 1, 2, []byte("ccc"))
	require.NoError(t, err)
	assert.Equal(t, NodeId(2), id2)

	require.Equal(t, 3, nt.NumRows)
	assert.Equal(t, "a", nt.NameAt(0))
	assert.Equal(t, "bb", nt.NameAt(1))
	assert.Equal(t, "ccc", nt.NameAt(2))
	assert.Equal(t, uint32(IsSample), nt.Flags[0])
	assert.Equal(t, float64(1), nt.Time[2])
}

func TestNodeTableAllocBadParam(t *testing.T) {
	var nt NodeTable
	err := nt.Alloc(0, 4)
	require.Error(t, err)
	assert.Equal(t, BadParam, CodeOf(err))
}

func TestNodeTableSetColumnsRoundTrip(t *testing.T) {
	var nt NodeTable
	require.NoError(t, nt.Alloc(4, 8))
	flags := []uint32{IsSample, IsSample, 0}
	time := []float64{0, 0, 1}
	population := []int32{0, 0, 1}
	names := []byte("abc")
	nameLength := []uint32{1, 1, 1}
	require.NoError(t, nt.SetColumns(3, flags, time, population, names, nameLength))

	assert.Equal(t, 3, nt.NumRows)
	assert.Equal(t, "a", nt.NameAt(0))
	assert.Equal(t, "b", nt.NameAt(1))
	assert.Equal(t, "c", nt.NameAt(2))

	var other NodeTable
	require.NoError(t, other.Alloc(4, 8))
	require.NoError(t, other.SetColumns(3, flags, time, population, names, nameLength))
	assert.True(t, nt.Equal(&other))

	require.NoError(t, nt.Reset())
	assert.Equal(t, 0, nt.NumRows)
	assert.False(t, nt.Equal(&other))
}

func TestNodeTableGrowRowsNoMemory(t *testing.T) {
	var nt NodeTable
	require.NoError(t, nt.Alloc(DefaultRowIncrement, DefaultPayloadIncrement))
	err := nt.growRows(MaxTableRows + 1)
	require.Error(t, err)
	assert.Equal(t, NoMemory, CodeOf(err))
}

func TestNodeTablePrintStateDoesNotPanic(t *testing.T) {
	var nt NodeTable
	require.NoError(t, nt.Alloc(4, 8))
	_, err := nt.AddRow(IsSample, 0, 0, []byte("s0"))
	require.NoError(t, err)
	nt.PrintState(discard{})
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
