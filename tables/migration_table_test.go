package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationTableAddRowGrowth(t *testing.T) {
	var mt MigrationTable
	require.NoError(t, mt.Alloc(1))

	row0, err := mt.AddRow(0, 0.5, 0, 1, 2, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 0, row0)

	// Forces row growth beyond the initial increment of 1.
	row1, err := mt.AddRow(0.5, 1, 1, 2, 3, 0.2)
	require.NoError(t, err)
	assert.Equal(t, 1, row1)

	require.Equal(t, 2, mt.NumRows)
	assert.Equal(t, int32(1), mt.Source[0])
	assert.Equal(t, int32(3), mt.Dest[1])
}

func TestMigrationTableAllocBadParam(t *testing.T) {
	var mt MigrationTable
	err := mt.Alloc(0)
	require.Error(t, err)
	assert.Equal(t, BadParam, CodeOf(err))
}

func TestMigrationTableSetColumnsRoundTrip(t *testing.T) {
	var mt MigrationTable
	require.NoError(t, mt.Alloc(4))
	left := []float64{0, 0.5}
	right := []float64{0.5, 1}
	node := []NodeId{0, 1}
	source := []int32{0, 1}
	dest := []int32{1, 2}
	time := []float64{0.1, 0.2}
	require.NoError(t, mt.SetColumns(2, left, right, node, source, dest, time))

	assert.Equal(t, 2, mt.NumRows)

	var other MigrationTable
	require.NoError(t, other.Alloc(4))
	require.NoError(t, other.SetColumns(2, left, right, node, source, dest, time))
	assert.True(t, mt.Equal(&other))

	require.NoError(t, mt.Reset())
	assert.Equal(t, 0, mt.NumRows)
	assert.False(t, mt.Equal(&other))
}

func TestMigrationTableGrowRowsNoMemory(t *testing.T) {
	var mt MigrationTable
	require.NoError(t, mt.Alloc(DefaultRowIncrement))
	err := mt.growRows(MaxTableRows + 1)
	require.Error(t, err)
	assert.Equal(t, NoMemory, CodeOf(err))
}

func TestMigrationTablePrintStateDoesNotPanic(t *testing.T) {
	var mt MigrationTable
	require.NoError(t, mt.Alloc(4))
	_, err := mt.AddRow(0, 1, 0, 1, 2, 0.1)
	require.NoError(t, err)
	mt.PrintState(discard{})
}
