package simplify

import (
	"sort"

	"github.com/grailbio/tsimplify/tables"
	"github.com/pkg/errors"
)

// squashBuffer is the one-row look-behind described in spec §4.4(c): it
// holds the most recently emitted edgeset and only actually writes a row
// to the output table once a non-squashable emission arrives (or the
// sweep finishes).
type squashBuffer struct {
	valid    bool
	left     float64
	right    float64
	parent   tables.NodeId
	children []tables.NodeId
}

// record stages a new edgeset emission, sorting children by node id
// ascending first (matching the sorter's invariant, so comparisons here
// are stable). If it is squashable with the buffered row (same parent,
// same sorted children, and left meets the buffered right), the buffered
// row's right is extended instead of emitting a new row.
func (b *squashBuffer) record(out *tables.EdgesetTable, left, right float64, parent tables.NodeId, children []tables.NodeId) error {
	sorted := make([]tables.NodeId, len(children))
	copy(sorted, children)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if b.valid && left == b.right && parent == b.parent && sameChildren(sorted, b.children) {
		b.right = right
		return nil
	}
	if b.valid {
		if err := b.flush(out); err != nil {
			return errors.Wrap(err, "squashBuffer.record")
		}
	}
	b.valid = true
	b.left, b.right, b.parent, b.children = left, right, parent, sorted
	return nil
}

// flush writes the buffered row to out, if any, and clears the buffer.
func (b *squashBuffer) flush(out *tables.EdgesetTable) error {
	if !b.valid {
		return nil
	}
	_, err := out.AddRow(b.left, b.right, b.parent, b.children)
	b.valid = false
	if err != nil {
		return errors.Wrap(err, "squashBuffer.flush")
	}
	return nil
}

func sameChildren(a, b []tables.NodeId) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
