package tables

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/pkg/errors"
)

// MutationTable is a column-major, growable store of Mutation rows:
// {site, node, derived_state}. A single site may carry multiple mutations.
type MutationTable struct {
	Site               []SiteId
	Node               []NodeId
	DerivedStateLength []uint32
	DerivedState       []byte

	NumRows                int
	TotalDerivedStateLength int

	rowIncrement     int
	payloadIncrement int
}

// Alloc prepares t for use, with the given growth increments.
func (t *MutationTable) Alloc(rowIncrement, payloadIncrement int) error {
	if rowIncrement <= 0 || payloadIncrement <= 0 {
		return E(BadParam, "MutationTable.Alloc", "increments must be positive")
	}
	*t = MutationTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
	return nil
}

func (t *MutationTable) rowCapacity() int { return len(t.Site) }

func (t *MutationTable) growRows(minRows int) error {
	if minRows <= t.rowCapacity() {
		return nil
	}
	if minRows > MaxTableRows {
		return E(NoMemory, "MutationTable.growRows", "row count would exceed int32 row id range")
	}
	newCap := t.rowCapacity()
	for newCap < minRows {
		newCap += t.rowIncrement
	}
	if newCap > MaxTableRows {
		newCap = MaxTableRows
	}
	log.Debug.Printf("MutationTable: growing rows %d -> %d", t.rowCapacity(), newCap)
	grownSite := make([]SiteId, newCap)
	copy(grownSite, t.Site)
	t.Site = grownSite
	grownNode := make([]NodeId, newCap)
	copy(grownNode, t.Node)
	t.Node = grownNode
	grownLen := make([]uint32, newCap)
	copy(grownLen, t.DerivedStateLength)
	t.DerivedStateLength = grownLen
	return nil
}

func (t *MutationTable) growDerivedState(minLength int) error {
	if minLength <= len(t.DerivedState) {
		return nil
	}
	if minLength > MaxPayloadBytes {
		return E(NoMemory, "MutationTable.growDerivedState", "derived_state payload would exceed uint32 length range")
	}
	newCap := len(t.DerivedState)
	for newCap < minLength {
		newCap += t.payloadIncrement
	}
	if newCap > MaxPayloadBytes {
		newCap = MaxPayloadBytes
	}
	log.Debug.Printf("MutationTable: growing derived_state payload %d -> %d", len(t.DerivedState), newCap)
	grown := make([]byte, newCap)
	copy(grown, t.DerivedState)
	t.DerivedState = grown
	return nil
}

// AddRow appends a new mutation row.
func (t *MutationTable) AddRow(site SiteId, node NodeId, derivedState []byte) (int, error) {
	if t.NumRows+1 > t.rowCapacity() {
		if err := t.growRows(t.NumRows + 1); err != nil {
			return -1, errors.Wrapf(err, "MutationTable.AddRow: row %d", t.NumRows)
		}
	}
	if t.TotalDerivedStateLength+len(derivedState) >= len(t.DerivedState) {
		if err := t.growDerivedState(t.TotalDerivedStateLength + len(derivedState)); err != nil {
			return -1, errors.Wrapf(err, "MutationTable.AddRow: row %d", t.NumRows)
		}
	}
	row := t.NumRows
	t.Site[row] = site
	t.Node[row] = node
	t.DerivedStateLength[row] = uint32(len(derivedState))
	copy(t.DerivedState[t.TotalDerivedStateLength:], derivedState)
	t.TotalDerivedStateLength += len(derivedState)
	t.NumRows++
	return row, nil
}

// SetColumns replaces the entire contents of t in one bulk operation.
func (t *MutationTable) SetColumns(numRows int, site []SiteId, node []NodeId, derivedState []byte, derivedStateLength []uint32) error {
	if site == nil || node == nil || derivedStateLength == nil {
		return E(BadParam, "MutationTable.SetColumns", "required column is nil")
	}
	if err := t.growRows(numRows); err != nil {
		return errors.Wrap(err, "MutationTable.SetColumns")
	}
	total := 0
	for j := 0; j < numRows; j++ {
		total += int(derivedStateLength[j])
	}
	if err := t.growDerivedState(total); err != nil {
		return errors.Wrap(err, "MutationTable.SetColumns")
	}
	copy(t.Site, site[:numRows])
	copy(t.Node, node[:numRows])
	copy(t.DerivedStateLength, derivedStateLength[:numRows])
	copy(t.DerivedState, derivedState[:total])
	t.NumRows = numRows
	t.TotalDerivedStateLength = total
	return nil
}

// Reset logically clears t, retaining backing storage.
func (t *MutationTable) Reset() error {
	t.NumRows = 0
	t.TotalDerivedStateLength = 0
	return nil
}

// Free releases all backing storage.
func (t *MutationTable) Free() {
	rowIncrement, payloadIncrement := t.rowIncrement, t.payloadIncrement
	*t = MutationTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
}

func (t *MutationTable) derivedStateOffset(j int) int {
	offset := 0
	for i := 0; i < j; i++ {
		offset += int(t.DerivedStateLength[i])
	}
	return offset
}

// DerivedStateAt returns a zero-copy view of row j's derived state.
func (t *MutationTable) DerivedStateAt(j int) string {
	offset := t.derivedStateOffset(j)
	return gunsafe.BytesToString(t.DerivedState[offset : offset+int(t.DerivedStateLength[j])])
}

// Equal reports whether t and other hold identical rows.
func (t *MutationTable) Equal(other *MutationTable) bool {
	if t.NumRows != other.NumRows || t.TotalDerivedStateLength != other.TotalDerivedStateLength {
		return false
	}
	for j := 0; j < t.NumRows; j++ {
		if t.Site[j] != other.Site[j] || t.Node[j] != other.Node[j] ||
			t.DerivedStateLength[j] != other.DerivedStateLength[j] {
			return false
		}
	}
	for j := 0; j < t.TotalDerivedStateLength; j++ {
		if t.DerivedState[j] != other.DerivedState[j] {
			return false
		}
	}
	return true
}

// PrintState writes a human-readable dump of t's state, for debugging.
func (t *MutationTable) PrintState(w io.Writer) {
	fmt.Fprintf(w, "mutation_table: %d rows (capacity %d)\n", t.NumRows, t.rowCapacity())
	for j := 0; j < t.NumRows; j++ {
		fmt.Fprintf(w, "\t%d\tsite=%d\tnode=%d\tderived_state=%q\n", j, t.Site[j], t.Node[j], t.DerivedStateAt(j))
	}
}
