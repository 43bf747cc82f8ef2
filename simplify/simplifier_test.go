package simplify

import (
	"testing"

	"github.com/grailbio/tsimplify/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildNodeTable(t *testing.T, flags []uint32, times []float64) *tables.NodeTable {
	t.Helper()
	nt := &tables.NodeTable{}
	require.NoError(t, nt.Alloc(tables.DefaultRowIncrement, tables.DefaultPayloadIncrement))
	for i := range flags {
		_, err := nt.AddRow(flags[i], times[i], 0, nil)
		require.NoError(t, err)
	}
	return nt
}

func buildEdgesetTable(t *testing.T) *tables.EdgesetTable {
	t.Helper()
	et := &tables.EdgesetTable{}
	require.NoError(t, et.Alloc(tables.DefaultRowIncrement, tables.DefaultPayloadIncrement))
	return et
}

// Two samples coalesce directly under a single parent covering the whole
// sequence: spec §8's "single coalescence" scenario.
func TestSimplifyRunSingleCoalescence(t *testing.T) {
	nodes := buildNodeTable(t, []uint32{tables.IsSample, tables.IsSample, 0}, []float64{0, 0, 1})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 10, 2, []tables.NodeId{0, 1})
	require.NoError(t, err)

	s, err := NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0, 1}, 10, 0)
	require.NoError(t, err)
	require.NoError(t, s.Run())

	assert.Equal(t, 3, nodes.NumRows)
	require.Equal(t, 1, edgesets.NumRows)
	assert.Equal(t, float64(0), edgesets.Left[0])
	assert.Equal(t, float64(10), edgesets.Right[0])
	assert.Equal(t, tables.NodeId(2), edgesets.Parent[0])
	assert.Equal(t, []tables.NodeId{0, 1}, edgesets.ChildrenAt(0))
}

// A non-sample intermediate node that only ever passes a single lineage
// through never gets its own recorded output node: spec §8's "non-ancestral
// node pruned" scenario.
func TestSimplifyRunPrunesPassThroughNode(t *testing.T) {
	nodes := buildNodeTable(t,
		[]uint32{tables.IsSample, tables.IsSample, 0, 0},
		[]float64{0, 0, 1, 2})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 10, 2, []tables.NodeId{0})
	require.NoError(t, err)
	_, err = edgesets.AddRow(0, 10, 3, []tables.NodeId{1, 2})
	require.NoError(t, err)

	s, err := NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0, 1}, 10, 0)
	require.NoError(t, err)
	require.NoError(t, s.Run())

	// Only the two samples and the true coalescence point (the root, input
	// id 3, recorded as output node 2) survive; the pass-through node
	// (input id 2) is absent.
	assert.Equal(t, 3, nodes.NumRows)
	require.Equal(t, 1, edgesets.NumRows)
	assert.Equal(t, tables.NodeId(2), edgesets.Parent[0])
	assert.Equal(t, []tables.NodeId{0, 1}, edgesets.ChildrenAt(0))
}

// Two edgesets that cover adjacent intervals under the same parent with
// identical children get squashed into a single output row: spec §8's
// "adjacent squash" scenario.
func TestSimplifyRunSquashesAdjacentEdgesets(t *testing.T) {
	nodes := buildNodeTable(t, []uint32{tables.IsSample, tables.IsSample, 0}, []float64{0, 0, 1})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 5, 2, []tables.NodeId{0, 1})
	require.NoError(t, err)
	_, err = edgesets.AddRow(5, 10, 2, []tables.NodeId{0, 1})
	require.NoError(t, err)

	s, err := NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0, 1}, 10, 0)
	require.NoError(t, err)
	require.NoError(t, s.Run())

	require.Equal(t, 1, edgesets.NumRows)
	assert.Equal(t, float64(0), edgesets.Left[0])
	assert.Equal(t, float64(10), edgesets.Right[0])
}

// A sample's ancestry is split across two disjoint genomic intervals, each
// coalescing under a different parent: spec §8's "split ancestry" scenario.
func TestSimplifyRunSplitsAncestryAcrossEdges(t *testing.T) {
	nodes := buildNodeTable(t,
		[]uint32{tables.IsSample, tables.IsSample, 0, 0},
		[]float64{0, 0, 1, 1})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 5, 2, []tables.NodeId{0, 1})
	require.NoError(t, err)
	_, err = edgesets.AddRow(5, 10, 3, []tables.NodeId{0, 1})
	require.NoError(t, err)

	s, err := NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0, 1}, 10, 0)
	require.NoError(t, err)
	require.NoError(t, s.Run())

	assert.Equal(t, 4, nodes.NumRows)
	require.Equal(t, 2, edgesets.NumRows)
	assert.Equal(t, float64(0), edgesets.Left[0])
	assert.Equal(t, float64(5), edgesets.Right[0])
	assert.Equal(t, tables.NodeId(2), edgesets.Parent[0])
	assert.Equal(t, float64(5), edgesets.Left[1])
	assert.Equal(t, float64(10), edgesets.Right[1])
	assert.Equal(t, tables.NodeId(3), edgesets.Parent[1])
}

func TestNewSimplifierRejectsTooFewSamples(t *testing.T) {
	nodes := buildNodeTable(t, []uint32{tables.IsSample}, []float64{0})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 10, 0, []tables.NodeId{0})
	require.NoError(t, err)

	_, err = NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0}, 10, 0)
	require.Error(t, err)
	assert.Equal(t, tables.BadParam, tables.CodeOf(err))
}

func TestNewSimplifierRejectsDuplicateSample(t *testing.T) {
	nodes := buildNodeTable(t, []uint32{tables.IsSample, tables.IsSample}, []float64{0, 0})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 10, 0, []tables.NodeId{0})
	require.NoError(t, err)

	_, err = NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0, 0}, 10, 0)
	require.Error(t, err)
	assert.Equal(t, tables.DuplicateSample, tables.CodeOf(err))
}

func TestNewSimplifierRejectsSampleMissingFlag(t *testing.T) {
	nodes := buildNodeTable(t, []uint32{tables.IsSample, 0}, []float64{0, 0})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 10, 0, []tables.NodeId{1})
	require.NoError(t, err)

	_, err = NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0, 1}, 10, 0)
	require.Error(t, err)
	assert.Equal(t, tables.BadSamples, tables.CodeOf(err))
}

// An edgeset table whose parents are not in non-decreasing time order is
// rejected mid-sweep rather than silently producing a wrong answer.
func TestSimplifyRunDetectsUnsortedParentTimes(t *testing.T) {
	nodes := buildNodeTable(t,
		[]uint32{tables.IsSample, tables.IsSample, 0, 0},
		[]float64{0, 0, 2, 1}) // node 2 is older than node 3 despite appearing first
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 5, 2, []tables.NodeId{0})
	require.NoError(t, err)
	_, err = edgesets.AddRow(0, 5, 3, []tables.NodeId{1})
	require.NoError(t, err)

	s, err := NewSimplifier(nodes, edgesets, nil, nil, nil, []tables.NodeId{0, 1}, 10, 0)
	require.NoError(t, err)
	err = s.Run()
	require.Error(t, err)
	assert.Equal(t, tables.RecordsNotTimeSorted, tables.CodeOf(err))
}

// Mutations are rewritten to the output node that covered their site's
// position at their original node; sites with no surviving mutation are
// dropped entirely.
func TestSimplifyRunRemapsMutationsAndDropsEmptySites(t *testing.T) {
	nodes := buildNodeTable(t,
		[]uint32{tables.IsSample, tables.IsSample, 0, 0},
		[]float64{0, 0, 1, 2})
	edgesets := buildEdgesetTable(t)
	_, err := edgesets.AddRow(0, 10, 2, []tables.NodeId{0})
	require.NoError(t, err)
	_, err = edgesets.AddRow(0, 10, 3, []tables.NodeId{1, 2})
	require.NoError(t, err)

	sites := &tables.SiteTable{}
	require.NoError(t, sites.Alloc(tables.DefaultRowIncrement, tables.DefaultPayloadIncrement))
	siteOnSample, err := sites.AddRow(1, []byte("A"))
	require.NoError(t, err)
	sitePruned, err := sites.AddRow(3, []byte("A"))
	require.NoError(t, err)
	siteOnRoot, err := sites.AddRow(7, []byte("A"))
	require.NoError(t, err)

	mutations := &tables.MutationTable{}
	require.NoError(t, mutations.Alloc(tables.DefaultRowIncrement, tables.DefaultPayloadIncrement))
	// On sample 1 directly: should survive, remapped to sample 1's own output id.
	_, err = mutations.AddRow(siteOnSample, 1, []byte("T"))
	require.NoError(t, err)
	// On the pass-through node (input id 2), which carries sample 0's
	// lineage until it is fully coalesced under parent 3: should survive,
	// remapped to sample 0's output id.
	_, err = mutations.AddRow(sitePruned, 2, []byte("T"))
	require.NoError(t, err)
	// On the root (input id 3), which fully saturates and is never
	// recorded as a surviving ancestor of anything further: dropped.
	_, err = mutations.AddRow(siteOnRoot, 3, []byte("T"))
	require.NoError(t, err)

	s, err := NewSimplifier(nodes, edgesets, nil, sites, mutations, []tables.NodeId{0, 1}, 10, 0)
	require.NoError(t, err)
	require.NoError(t, s.Run())

	require.Equal(t, 2, sites.NumRows)
	require.Equal(t, 2, mutations.NumRows)
	assert.Equal(t, tables.NodeId(1), mutations.Node[0])
	assert.Equal(t, tables.NodeId(0), mutations.Node[1])
}
