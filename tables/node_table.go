package tables

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/pkg/errors"
)

// NodeTable is a column-major, growable store of Node rows:
// {flags, time, population, name}. Variable-width name data is stored in
// the flattened-pair representation: a contiguous payload buffer plus a
// per-row length column, so that row j's name occupies
// Name[offset(j):offset(j)+NameLength[j]] where offset(j) is the running
// sum of the preceding lengths.
type NodeTable struct {
	Flags      []uint32
	Time       []float64
	Population []int32
	NameLength []uint32
	Name       []byte

	NumRows         int
	TotalNameLength int

	rowIncrement     int
	payloadIncrement int
}

// Alloc prepares t for use, with the given growth increments. Either
// increment of zero is a BadParam error.
func (t *NodeTable) Alloc(rowIncrement, payloadIncrement int) error {
	if rowIncrement <= 0 || payloadIncrement <= 0 {
		return E(BadParam, "NodeTable.Alloc", "increments must be positive")
	}
	*t = NodeTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
	return nil
}

func (t *NodeTable) rowCapacity() int { return len(t.Flags) }

func (t *NodeTable) growRows(minRows int) error {
	if minRows <= t.rowCapacity() {
		return nil
	}
	if minRows > MaxTableRows {
		return E(NoMemory, "NodeTable.growRows", "row count would exceed int32 row id range")
	}
	newCap := t.rowCapacity()
	for newCap < minRows {
		newCap += t.rowIncrement
	}
	if newCap > MaxTableRows {
		newCap = MaxTableRows
	}
	log.Debug.Printf("NodeTable: growing rows %d -> %d", t.rowCapacity(), newCap)
	grownFlags := make([]uint32, newCap)
	copy(grownFlags, t.Flags)
	t.Flags = grownFlags
	grownTime := make([]float64, newCap)
	copy(grownTime, t.Time)
	t.Time = grownTime
	grownPop := make([]int32, newCap)
	copy(grownPop, t.Population)
	t.Population = grownPop
	grownLen := make([]uint32, newCap)
	copy(grownLen, t.NameLength)
	t.NameLength = grownLen
	return nil
}

func (t *NodeTable) growName(minLength int) error {
	if minLength <= len(t.Name) {
		return nil
	}
	if minLength > MaxPayloadBytes {
		return E(NoMemory, "NodeTable.growName", "name payload would exceed uint32 length range")
	}
	newCap := len(t.Name)
	for newCap < minLength {
		newCap += t.payloadIncrement
	}
	if newCap > MaxPayloadBytes {
		newCap = MaxPayloadBytes
	}
	log.Debug.Printf("NodeTable: growing name payload %d -> %d", len(t.Name), newCap)
	grown := make([]byte, newCap)
	copy(grown, t.Name)
	t.Name = grown
	return nil
}

// AddRow appends a new node row, growing backing storage as needed.
func (t *NodeTable) AddRow(flags uint32, time float64, population int32, name []byte) (NodeId, error) {
	if t.NumRows+1 > t.rowCapacity() {
		if err := t.growRows(t.NumRows + 1); err != nil {
			return NullNodeId, errors.Wrapf(err, "NodeTable.AddRow: row %d", t.NumRows)
		}
	}
	if t.TotalNameLength+len(name) >= len(t.Name) {
		if err := t.growName(t.TotalNameLength + len(name)); err != nil {
			return NullNodeId, errors.Wrapf(err, "NodeTable.AddRow: row %d", t.NumRows)
		}
	}
	id := NodeId(t.NumRows)
	t.Flags[t.NumRows] = flags
	t.Time[t.NumRows] = time
	t.Population[t.NumRows] = population
	t.NameLength[t.NumRows] = uint32(len(name))
	copy(t.Name[t.TotalNameLength:], name)
	t.TotalNameLength += len(name)
	t.NumRows++
	return id, nil
}

// SetColumns replaces the entire contents of t in one bulk operation.
// Capacity grows in whole row and payload increments, as in AddRow, until
// it holds numRows rows and their names; it is not trimmed to the exact
// required size.
func (t *NodeTable) SetColumns(numRows int, flags []uint32, time []float64, population []int32, name []byte, nameLength []uint32) error {
	if flags == nil || time == nil || population == nil || nameLength == nil {
		return E(BadParam, "NodeTable.SetColumns", "required column is nil")
	}
	if err := t.growRows(numRows); err != nil {
		return errors.Wrap(err, "NodeTable.SetColumns")
	}
	totalNameLength := 0
	for j := 0; j < numRows; j++ {
		totalNameLength += int(nameLength[j])
	}
	if err := t.growName(totalNameLength); err != nil {
		return errors.Wrap(err, "NodeTable.SetColumns")
	}
	copy(t.Flags, flags[:numRows])
	copy(t.Time, time[:numRows])
	copy(t.Population, population[:numRows])
	copy(t.NameLength, nameLength[:numRows])
	copy(t.Name, name[:totalNameLength])
	t.NumRows = numRows
	t.TotalNameLength = totalNameLength
	return nil
}

// Reset logically clears t: row and payload counts drop to zero, but
// backing storage is retained.
func (t *NodeTable) Reset() error {
	t.NumRows = 0
	t.TotalNameLength = 0
	return nil
}

// Free releases all backing storage.
func (t *NodeTable) Free() {
	rowIncrement, payloadIncrement := t.rowIncrement, t.payloadIncrement
	*t = NodeTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
}

// nameOffset returns the byte offset at which row j's name begins.
func (t *NodeTable) nameOffset(j int) int {
	offset := 0
	for i := 0; i < j; i++ {
		offset += int(t.NameLength[i])
	}
	return offset
}

// NameAt returns the name of row j as a read-only, zero-copy string view
// into the payload buffer.
func (t *NodeTable) NameAt(j int) string {
	offset := t.nameOffset(j)
	return gunsafe.BytesToString(t.Name[offset : offset+int(t.NameLength[j])])
}

// Equal reports whether t and other hold identical rows.
func (t *NodeTable) Equal(other *NodeTable) bool {
	if t.NumRows != other.NumRows || t.TotalNameLength != other.TotalNameLength {
		return false
	}
	for j := 0; j < t.NumRows; j++ {
		if t.Flags[j] != other.Flags[j] || t.Time[j] != other.Time[j] ||
			t.Population[j] != other.Population[j] || t.NameLength[j] != other.NameLength[j] {
			return false
		}
	}
	for j := 0; j < t.TotalNameLength; j++ {
		if t.Name[j] != other.Name[j] {
			return false
		}
	}
	return true
}

// PrintState writes a human-readable dump of t's state, for debugging.
func (t *NodeTable) PrintState(w io.Writer) {
	fmt.Fprintf(w, "node_table: %d rows (capacity %d), %d name bytes (capacity %d)\n",
		t.NumRows, t.rowCapacity(), t.TotalNameLength, len(t.Name))
	for j := 0; j < t.NumRows; j++ {
		fmt.Fprintf(w, "\t%d\tflags=%#x\ttime=%f\tpopulation=%d\tname=%q\n",
			j, t.Flags[j], t.Time[j], t.Population[j], t.NameAt(j))
	}
}
