package tables

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// EdgesetTable is a column-major, growable store of Edgeset rows:
// {left, right, parent, children}. children is stored in the flattened-pair
// representation: a contiguous payload buffer plus a per-row length
// column.
type EdgesetTable struct {
	Left           []float64
	Right          []float64
	Parent         []NodeId
	ChildrenLength []uint32
	Children       []NodeId

	NumRows             int
	TotalChildrenLength int

	rowIncrement     int
	payloadIncrement int
}

// Alloc prepares t for use, with the given growth increments.
func (t *EdgesetTable) Alloc(rowIncrement, payloadIncrement int) error {
	if rowIncrement <= 0 || payloadIncrement <= 0 {
		return E(BadParam, "EdgesetTable.Alloc", "increments must be positive")
	}
	*t = EdgesetTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
	return nil
}

func (t *EdgesetTable) rowCapacity() int { return len(t.Left) }

func (t *EdgesetTable) growRows(minRows int) error {
	if minRows <= t.rowCapacity() {
		return nil
	}
	if minRows > MaxTableRows {
		return E(NoMemory, "EdgesetTable.growRows", "row count would exceed int32 row id range")
	}
	newCap := t.rowCapacity()
	for newCap < minRows {
		newCap += t.rowIncrement
	}
	if newCap > MaxTableRows {
		newCap = MaxTableRows
	}
	log.Debug.Printf("EdgesetTable: growing rows %d -> %d", t.rowCapacity(), newCap)
	grownLeft := make([]float64, newCap)
	copy(grownLeft, t.Left)
	t.Left = grownLeft
	grownRight := make([]float64, newCap)
	copy(grownRight, t.Right)
	t.Right = grownRight
	grownParent := make([]NodeId, newCap)
	copy(grownParent, t.Parent)
	t.Parent = grownParent
	grownLen := make([]uint32, newCap)
	copy(grownLen, t.ChildrenLength)
	t.ChildrenLength = grownLen
	return nil
}

func (t *EdgesetTable) growChildren(minLength int) error {
	if minLength <= len(t.Children) {
		return nil
	}
	if minLength > MaxPayloadBytes {
		return E(NoMemory, "EdgesetTable.growChildren", "children payload would exceed uint32 length range")
	}
	newCap := len(t.Children)
	for newCap < minLength {
		newCap += t.payloadIncrement
	}
	if newCap > MaxPayloadBytes {
		newCap = MaxPayloadBytes
	}
	log.Debug.Printf("EdgesetTable: growing children payload %d -> %d", len(t.Children), newCap)
	grown := make([]NodeId, newCap)
	copy(grown, t.Children)
	t.Children = grown
	return nil
}

// AddRow appends a new edgeset row. An empty children set is rejected with
// BadParam; left < right is the caller's responsibility to ensure.
func (t *EdgesetTable) AddRow(left, right float64, parent NodeId, children []NodeId) (int, error) {
	if len(children) == 0 {
		return -1, E(BadParam, "EdgesetTable.AddRow", "children must be non-empty")
	}
	if t.NumRows+1 > t.rowCapacity() {
		if err := t.growRows(t.NumRows + 1); err != nil {
			return -1, errors.Wrapf(err, "EdgesetTable.AddRow: row %d", t.NumRows)
		}
	}
	if t.TotalChildrenLength+len(children) >= len(t.Children) {
		if err := t.growChildren(t.TotalChildrenLength + len(children)); err != nil {
			return -1, errors.Wrapf(err, "EdgesetTable.AddRow: row %d", t.NumRows)
		}
	}
	row := t.NumRows
	t.Left[row] = left
	t.Right[row] = right
	t.Parent[row] = parent
	t.ChildrenLength[row] = uint32(len(children))
	copy(t.Children[t.TotalChildrenLength:], children)
	t.TotalChildrenLength += len(children)
	t.NumRows++
	return row, nil
}

// SetColumns replaces the entire contents of t in one bulk operation.
func (t *EdgesetTable) SetColumns(numRows int, left, right []float64, parent []NodeId, childrenLength []uint32, children []NodeId) error {
	if left == nil || right == nil || parent == nil || childrenLength == nil {
		return E(BadParam, "EdgesetTable.SetColumns", "required column is nil")
	}
	if err := t.growRows(numRows); err != nil {
		return errors.Wrap(err, "EdgesetTable.SetColumns")
	}
	totalChildren := 0
	for j := 0; j < numRows; j++ {
		totalChildren += int(childrenLength[j])
	}
	if err := t.growChildren(totalChildren); err != nil {
		return errors.Wrap(err, "EdgesetTable.SetColumns")
	}
	copy(t.Left, left[:numRows])
	copy(t.Right, right[:numRows])
	copy(t.Parent, parent[:numRows])
	copy(t.ChildrenLength, childrenLength[:numRows])
	copy(t.Children, children[:totalChildren])
	t.NumRows = numRows
	t.TotalChildrenLength = totalChildren
	return nil
}

// Reset logically clears t, retaining backing storage.
func (t *EdgesetTable) Reset() error {
	t.NumRows = 0
	t.TotalChildrenLength = 0
	return nil
}

// Free releases all backing storage.
func (t *EdgesetTable) Free() {
	rowIncrement, payloadIncrement := t.rowIncrement, t.payloadIncrement
	*t = EdgesetTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
}

// childrenOffset returns the payload offset at which row j's children
// begin.
func (t *EdgesetTable) childrenOffset(j int) int {
	offset := 0
	for i := 0; i < j; i++ {
		offset += int(t.ChildrenLength[i])
	}
	return offset
}

// ChildrenAt returns a read-only view of row j's children.
func (t *EdgesetTable) ChildrenAt(j int) []NodeId {
	offset := t.childrenOffset(j)
	return t.Children[offset : offset+int(t.ChildrenLength[j])]
}

// Equal reports whether t and other hold identical rows.
func (t *EdgesetTable) Equal(other *EdgesetTable) bool {
	if t.NumRows != other.NumRows || t.TotalChildrenLength != other.TotalChildrenLength {
		return false
	}
	for j := 0; j < t.NumRows; j++ {
		if t.Left[j] != other.Left[j] || t.Right[j] != other.Right[j] ||
			t.Parent[j] != other.Parent[j] || t.ChildrenLength[j] != other.ChildrenLength[j] {
			return false
		}
	}
	for j := 0; j < t.TotalChildrenLength; j++ {
		if t.Children[j] != other.Children[j] {
			return false
		}
	}
	return true
}

// PrintState writes a human-readable dump of t's state, for debugging.
func (t *EdgesetTable) PrintState(w io.Writer) {
	fmt.Fprintf(w, "edgeset_table: %d rows (capacity %d), %d children (capacity %d)\n",
		t.NumRows, t.rowCapacity(), t.TotalChildrenLength, len(t.Children))
	for j := 0; j < t.NumRows; j++ {
		fmt.Fprintf(w, "\t%d\tleft=%f\tright=%f\tparent=%d\tchildren=%v\n",
			j, t.Left[j], t.Right[j], t.Parent[j], t.ChildrenAt(j))
	}
}
