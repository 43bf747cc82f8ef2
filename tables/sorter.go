package tables

import (
	"sort"

	grerrors "github.com/grailbio/base/errors"
	"github.com/pkg/errors"
)

// edgesetSortKey is the auxiliary sort record used while reordering
// EdgesetTable rows. It holds a pointer into a private copy of the
// children payload so that rows with variable children length can be
// reordered without repeated slice allocation.
type edgesetSortKey struct {
	left, right float64
	parent      NodeId
	time        float64
	children    []NodeId
}

// SortTables reorders edgesets by (parent time ascending, parent
// ascending, left ascending) and, within each row, children by node id
// ascending; if sites is non-nil it also reorders sites by position
// ascending and rewrites every mutation's site field through the
// resulting remap before reordering mutations by (new site ascending).
//
// migrations is accepted (and left untouched) purely to keep this
// signature matching the five-table family the rest of the column-table
// package exposes; the simplifier never reads or writes migrations.
func SortTables(nodes *NodeTable, edgesets *EdgesetTable, migrations *MigrationTable, sites *SiteTable, mutations *MutationTable) error {
	if nodes == nil || edgesets == nil {
		return E(BadParam, "SortTables", "nodes and edgesets are required")
	}
	if sites != nil && mutations == nil {
		return E(BadParam, "SortTables", "mutations must be provided alongside sites")
	}
	if err := sortEdgesets(nodes, edgesets); err != nil {
		return errors.Wrap(err, "SortTables")
	}
	if sites != nil {
		siteIDMap, err := sortSites(sites)
		if err != nil {
			return errors.Wrap(err, "SortTables")
		}
		if err := sortMutations(nodes, sites, mutations, siteIDMap); err != nil {
			return errors.Wrap(err, "SortTables")
		}
	}
	return nil
}

func sortEdgesets(nodes *NodeTable, edgesets *EdgesetTable) error {
	keys := make([]edgesetSortKey, edgesets.NumRows)
	childrenCopy := make([]NodeId, edgesets.TotalChildrenLength)
	copy(childrenCopy, edgesets.Children[:edgesets.TotalChildrenLength])
	offset := 0
	once := grerrors.Once{}
	for j := 0; j < edgesets.NumRows; j++ {
		n := int(edgesets.ChildrenLength[j])
		children := childrenCopy[offset : offset+n]
		offset += n
		parent := edgesets.Parent[j]
		if parent < 0 || int(parent) >= nodes.NumRows {
			once.Set(E(OutOfBounds, "SortTables", "edgeset parent out of bounds"))
			continue
		}
		keys[j] = edgesetSortKey{
			left:     edgesets.Left[j],
			right:    edgesets.Right[j],
			parent:   parent,
			time:     nodes.Time[parent],
			children: children,
		}
	}
	if err := once.Err(); err != nil {
		return errors.Wrap(err, "sortEdgesets")
	}
	sort.SliceStable(keys, func(i, j int) bool {
		if keys[i].time != keys[j].time {
			return keys[i].time < keys[j].time
		}
		if keys[i].parent != keys[j].parent {
			return keys[i].parent < keys[j].parent
		}
		return keys[i].left < keys[j].left
	})
	if err := edgesets.Reset(); err != nil {
		return errors.Wrap(err, "sortEdgesets")
	}
	for _, k := range keys {
		sort.Slice(k.children, func(i, j int) bool { return k.children[i] < k.children[j] })
		if _, err := edgesets.AddRow(k.left, k.right, k.parent, k.children); err != nil {
			return errors.Wrap(err, "sortEdgesets")
		}
	}
	return nil
}

type siteSortKey struct {
	id             SiteId
	position       float64
	ancestralState []byte
}

func sortSites(sites *SiteTable) ([]SiteId, error) {
	keys := make([]siteSortKey, sites.NumRows)
	for j := 0; j < sites.NumRows; j++ {
		state := sites.AncestralStateAt(j)
		keys[j] = siteSortKey{id: SiteId(j), position: sites.Position[j], ancestralState: []byte(state)}
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].position < keys[j].position })
	siteIDMap := make([]SiteId, sites.NumRows)
	for newID, k := range keys {
		siteIDMap[k.id] = SiteId(newID)
	}
	if err := sites.Reset(); err != nil {
		return nil, errors.Wrap(err, "sortSites")
	}
	for _, k := range keys {
		if _, err := sites.AddRow(k.position, k.ancestralState); err != nil {
			return nil, errors.Wrap(err, "sortSites")
		}
	}
	return siteIDMap, nil
}

type mutationSortKey struct {
	site           SiteId
	node           NodeId
	derivedState   []byte
}

func sortMutations(nodes *NodeTable, sites *SiteTable, mutations *MutationTable, siteIDMap []SiteId) error {
	keys := make([]mutationSortKey, mutations.NumRows)
	once := grerrors.Once{}
	for j := 0; j < mutations.NumRows; j++ {
		site := mutations.Site[j]
		if site < 0 || int(site) >= len(siteIDMap) {
			once.Set(E(OutOfBounds, "SortTables", "mutation site out of bounds"))
			continue
		}
		node := mutations.Node[j]
		if node < 0 || int(node) >= nodes.NumRows {
			once.Set(E(OutOfBounds, "SortTables", "mutation node out of bounds"))
			continue
		}
		keys[j] = mutationSortKey{
			site:         siteIDMap[site],
			node:         node,
			derivedState: []byte(mutations.DerivedStateAt(j)),
		}
	}
	if err := once.Err(); err != nil {
		return errors.Wrap(err, "sortMutations")
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].site < keys[j].site })
	if err := mutations.Reset(); err != nil {
		return errors.Wrap(err, "sortMutations")
	}
	for _, k := range keys {
		if _, err := mutations.AddRow(k.site, k.node, k.derivedState); err != nil {
			return errors.Wrap(err, "sortMutations")
		}
	}
	return nil
}
