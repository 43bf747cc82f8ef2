package tables

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSiteTableAddRowGrowth(t *testing.T) {
	var st SiteTable
	require.NoError(t, st.Alloc(1, 1))

	id0, err := st.AddRow(0.1, []byte("A"))
	require.NoError(t, err)
	assert.Equal(t, SiteId(0), id0)

	// Forces row growth (increment 1) and ancestral_state growth (increment 1).
	id1, err := st.AddRow(0.2, []byte("GG"))
	require.NoError(t, err)
	assert.Equal(t, SiteId(1), id1)

	require.Equal(t, 2, st.NumRows)
	assert.Equal(t, "A", st.AncestralStateAt(0))
	assert.Equal(t, "GG", st.AncestralStateAt(1))
}

func TestSiteTableAllocBadParam(t *testing.T) {
	var st SiteTable
	err := st.Alloc(0, 4)
	require.Error(t, err)
	assert.Equal(t, BadParam, CodeOf(err))
}

func TestSiteTableSetColumnsRoundTrip(t *testing.T) {
	var st SiteTable
	require.NoError(t, st.Alloc(4, 8))
	position := []float64{0.1, 0.5}
	ancestralState := []byte("AC")
	ancestralStateLength := []uint32{1, 1}
	require.NoError(t, st.SetColumns(2, position, ancestralState, ancestralStateLength))

	assert.Equal(t, 2, st.NumRows)
	assert.Equal(t, "A", st.AncestralStateAt(0))
	assert.Equal(t, "C", st.AncestralStateAt(1))

	var other SiteTable
	require.NoError(t, other.Alloc(4, 8))
	require.NoError(t, other.SetColumns(2, position, ancestralState, ancestralStateLength))
	assert.True(t, st.Equal(&other))

	require.NoError(t, st.Reset())
	assert.Equal(t, 0, st.NumRows)
	assert.False(t, st.Equal(&other))
}

func TestSiteTableGrowRowsNoMemory(t *testing.T) {
	var st SiteTable
	require.NoError(t, st.Alloc(DefaultRowIncrement, DefaultPayloadIncrement))
	err := st.growRows(MaxTableRows + 1)
	require.Error(t, err)
	assert.Equal(t, NoMemory, CodeOf(err))
}

func TestSiteTablePrintStateDoesNotPanic(t *testing.T) {
	var st SiteTable
	require.NoError(t, st.Alloc(4, 8))
	_, err := st.AddRow(0.1, []byte("A"))
	require.NoError(t, err)
	st.PrintState(discard{})
}
