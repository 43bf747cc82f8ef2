package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutationTableAddRowGrowth(t *testing.T) {
	var mt MutationTable
	require.NoError(t, mt.Alloc(1, 1))

	_, err := mt.AddRow(0, 0, []byte("T"))
	require.NoError(t, err)
	// Forces row growth (increment 1) and derived_state growth (increment 1).
	_, err = mt.AddRow(1, 1, []byte("GG"))
	require.NoError(t, err)

	require.Equal(t, 2, mt.NumRows)
	assert.Equal(t, "T", mt.DerivedStateAt(0))
	assert.Equal(t, "GG", mt.DerivedStateAt(1))
}

func TestMutationTableAllocBadParam(t *testing.T) {
	var mt MutationTable
	err := mt.Alloc(0, 4)
	require.Error(t, err)
	assert.Equal(t, BadParam, CodeOf(err))
}

func TestMutationTableSetColumnsRoundTrip(t *testing.T) {
	var mt MutationTable
	require.NoError(t, mt.Alloc(4, 8))
	site := []SiteId{0, 1}
	node := []NodeId{0, 1}
	derivedState := []byte("AC")
	derivedStateLength := []uint32{1, 1}
	require.NoError(t, mt.SetColumns(2, site, node, derivedState, derivedStateLength))

	assert.Equal(t, 2, mt.NumRows)
	assert.Equal(t, "A", mt.DerivedStateAt(0))
	assert.Equal(t, "C", mt.DerivedStateAt(1))

	var other MutationTable
	require.NoError(t, other.Alloc(4, 8))
	require.NoError(t, other.SetColumns(2, site, node, derivedState, derivedStateLength))
	assert.True(t, mt.Equal(&other))

	require.NoError(t, mt.Reset())
	assert.Equal(t, 0, mt.NumRows)
	assert.False(t, mt.Equal(&other))
}

func TestMutationTableGrowRowsNoMemory(t *testing.T) {
	var mt MutationTable
	require.NoError(t, mt.Alloc(DefaultRowIncrement, DefaultPayloadIncrement))
	err := mt.growRows(MaxTableRows + 1)
	require.Error(t, err)
	assert.Equal(t, NoMemory, CodeOf(err))
}

func TestMutationTablePrintStateDoesNotPanic(t *testing.T) {
	var mt MutationTable
	require.NoError(t, mt.Alloc(4, 8))
	_, err := mt.AddRow(0, 0, []byte("T"))
	require.NoError(t, err)
	mt.PrintState(discard{})
}
