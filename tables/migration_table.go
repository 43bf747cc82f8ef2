package tables

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	"github.com/pkg/errors"
)

// MigrationTable is a column-major, growable store of Migration rows:
// {left, right, node, source, dest, time}. The simplifier does not read or
// write this table directly (spec's in-scope sweep never touches
// migrations); it is carried end-to-end by the table sorter and is part of
// the five-table family listed alongside nodes, edgesets, sites, and
// mutations, matching the original implementation's sort_tables signature.
type MigrationTable struct {
	Left   []float64
	Right  []float64
	Node   []NodeId
	Source []int32
	Dest   []int32
	Time   []float64

	NumRows int

	rowIncrement int
}

// Alloc prepares t for use, with the given row growth increment.
func (t *MigrationTable) Alloc(rowIncrement int) error {
	if rowIncrement <= 0 {
		return E(BadParam, "MigrationTable.Alloc", "increment must be positive")
	}
	*t = MigrationTable{rowIncrement: rowIncrement}
	return nil
}

func (t *MigrationTable) rowCapacity() int { return len(t.Left) }

func (t *MigrationTable) growRows(minRows int) error {
	if minRows <= t.rowCapacity() {
		return nil
	}
	if minRows > MaxTableRows {
		return E(NoMemory, "MigrationTable.growRows", "row count would exceed int32 row id range")
	}
	newCap := t.rowCapacity()
	for newCap < minRows {
		newCap += t.rowIncrement
	}
	if newCap > MaxTableRows {
		newCap = MaxTableRows
	}
	log.Debug.Printf("MigrationTable: growing rows %d -> %d", t.rowCapacity(), newCap)
	grownLeft := make([]float64, newCap)
	copy(grownLeft, t.Left)
	t.Left = grownLeft
	grownRight := make([]float64, newCap)
	copy(grownRight, t.Right)
	t.Right = grownRight
	grownNode := make([]NodeId, newCap)
	copy(grownNode, t.Node)
	t.Node = grownNode
	grownSource := make([]int32, newCap)
	copy(grownSource, t.Source)
	t.Source = grownSource
	grownDest := make([]int32, newCap)
	copy(grownDest, t.Dest)
	t.Dest = grownDest
	grownTime := make([]float64, newCap)
	copy(grownTime, t.Time)
	t.Time = grownTime
	return nil
}

// AddRow appends a new migration row.
func (t *MigrationTable) AddRow(left, right float64, node NodeId, source, dest int32, time float64) (int, error) {
	if t.NumRows+1 > t.rowCapacity() {
		if err := t.growRows(t.NumRows + 1); err != nil {
			return -1, errors.Wrapf(err, "MigrationTable.AddRow: row %d", t.NumRows)
		}
	}
	row := t.NumRows
	t.Left[row] = left
	t.Right[row] = right
	t.Node[row] = node
	t.Source[row] = source
	t.Dest[row] = dest
	t.Time[row] = time
	t.NumRows++
	return row, nil
}

// SetColumns replaces the entire contents of t in one bulk operation.
func (t *MigrationTable) SetColumns(numRows int, left, right []float64, node []NodeId, source, dest []int32, time []float64) error {
	if left == nil || right == nil || node == nil || source == nil || dest == nil || time == nil {
		return E(BadParam, "MigrationTable.SetColumns", "required column is nil")
	}
	if err := t.growRows(numRows); err != nil {
		return errors.Wrap(err, "MigrationTable.SetColumns")
	}
	copy(t.Left, left[:numRows])
	copy(t.Right, right[:numRows])
	copy(t.Node, node[:numRows])
	copy(t.Source, source[:numRows])
	copy(t.Dest, dest[:numRows])
	copy(t.Time, time[:numRows])
	t.NumRows = numRows
	return nil
}

// Reset logically clears t, retaining backing storage.
func (t *MigrationTable) Reset() error {
	t.NumRows = 0
	return nil
}

// Free releases all backing storage.
func (t *MigrationTable) Free() {
	rowIncrement := t.rowIncrement
	*t = MigrationTable{rowIncrement: rowIncrement}
}

// Equal reports whether t and other hold identical rows.
func (t *MigrationTable) Equal(other *MigrationTable) bool {
	if t.NumRows != other.NumRows {
		return false
	}
	for j := 0; j < t.NumRows; j++ {
		if t.Left[j] != other.Left[j] || t.Right[j] != other.Right[j] || t.Node[j] != other.Node[j] ||
			t.Source[j] != other.Source[j] || t.Dest[j] != other.Dest[j] || t.Time[j] != other.Time[j] {
			return false
		}
	}
	return true
}

// PrintState writes a human-readable dump of t's state, for debugging.
func (t *MigrationTable) PrintState(w io.Writer) {
	fmt.Fprintf(w, "migration_table: %d rows (capacity %d)\n", t.NumRows, t.rowCapacity())
	for j := 0; j < t.NumRows; j++ {
		fmt.Fprintf(w, "\t%d\tleft=%f\tright=%f\tnode=%d\tsource=%d\tdest=%d\ttime=%f\n",
			j, t.Left[j], t.Right[j], t.Node[j], t.Source[j], t.Dest[j], t.Time[j])
	}
}
