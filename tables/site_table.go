package tables

import (
	"fmt"
	"io"

	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/pkg/errors"
)

// SiteTable is a column-major, growable store of Site rows:
// {position, ancestral_state}. Positions are strictly increasing in final
// output; ancestral_state is flattened-pair encoded.
type SiteTable struct {
	Position             []float64
	AncestralStateLength []uint32
	AncestralState       []byte

	NumRows               int
	TotalAncestralStateLength int

	rowIncrement     int
	payloadIncrement int
}

// Alloc prepares t for use, with the given growth increments.
func (t *SiteTable) Alloc(rowIncrement, payloadIncrement int) error {
	if rowIncrement <= 0 || payloadIncrement <= 0 {
		return E(BadParam, "SiteTable.Alloc", "increments must be positive")
	}
	*t = SiteTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
	return nil
}

func (t *SiteTable) rowCapacity() int { return len(t.Position) }

func (t *SiteTable) growRows(minRows int) error {
	if minRows <= t.rowCapacity() {
		return nil
	}
	if minRows > MaxTableRows {
		return E(NoMemory, "SiteTable.growRows", "row count would exceed int32 row id range")
	}
	newCap := t.rowCapacity()
	for newCap < minRows {
		newCap += t.rowIncrement
	}
	if newCap > MaxTableRows {
		newCap = MaxTableRows
	}
	log.Debug.Printf("SiteTable: growing rows %d -> %d", t.rowCapacity(), newCap)
	grownPos := make([]float64, newCap)
	copy(grownPos, t.Position)
	t.Position = grownPos
	grownLen := make([]uint32, newCap)
	copy(grownLen, t.AncestralStateLength)
	t.AncestralStateLength = grownLen
	return nil
}

func (t *SiteTable) growAncestralState(minLength int) error {
	if minLength <= len(t.AncestralState) {
		return nil
	}
	if minLength > MaxPayloadBytes {
		return E(NoMemory, "SiteTable.growAncestralState", "ancestral_state payload would exceed uint32 length range")
	}
	newCap := len(t.AncestralState)
	for newCap < minLength {
		newCap += t.payloadIncrement
	}
	if newCap > MaxPayloadBytes {
		newCap = MaxPayloadBytes
	}
	log.Debug.Printf("SiteTable: growing ancestral_state payload %d -> %d", len(t.AncestralState), newCap)
	grown := make([]byte, newCap)
	copy(grown, t.AncestralState)
	t.AncestralState = grown
	return nil
}

// AddRow appends a new site row.
func (t *SiteTable) AddRow(position float64, ancestralState []byte) (SiteId, error) {
	if t.NumRows+1 > t.rowCapacity() {
		if err := t.growRows(t.NumRows + 1); err != nil {
			return NullSiteId, errors.Wrapf(err, "SiteTable.AddRow: row %d", t.NumRows)
		}
	}
	if t.TotalAncestralStateLength+len(ancestralState) >= len(t.AncestralState) {
		if err := t.growAncestralState(t.TotalAncestralStateLength + len(ancestralState)); err != nil {
			return NullSiteId, errors.Wrapf(err, "SiteTable.AddRow: row %d", t.NumRows)
		}
	}
	id := SiteId(t.NumRows)
	t.Position[t.NumRows] = position
	t.AncestralStateLength[t.NumRows] = uint32(len(ancestralState))
	copy(t.AncestralState[t.TotalAncestralStateLength:], ancestralState)
	t.TotalAncestralStateLength += len(ancestralState)
	t.NumRows++
	return id, nil
}

// SetColumns replaces the entire contents of t in one bulk operation.
func (t *SiteTable) SetColumns(numRows int, position []float64, ancestralState []byte, ancestralStateLength []uint32) error {
	if position == nil || ancestralStateLength == nil {
		return E(BadParam, "SiteTable.SetColumns", "required column is nil")
	}
	if err := t.growRows(numRows); err != nil {
		return errors.Wrap(err, "SiteTable.SetColumns")
	}
	total := 0
	for j := 0; j < numRows; j++ {
		total += int(ancestralStateLength[j])
	}
	if err := t.growAncestralState(total); err != nil {
		return errors.Wrap(err, "SiteTable.SetColumns")
	}
	copy(t.Position, position[:numRows])
	copy(t.AncestralStateLength, ancestralStateLength[:numRows])
	copy(t.AncestralState, ancestralState[:total])
	t.NumRows = numRows
	t.TotalAncestralStateLength = total
	return nil
}

// Reset logically clears t, retaining backing storage.
func (t *SiteTable) Reset() error {
	t.NumRows = 0
	t.TotalAncestralStateLength = 0
	return nil
}

// Free releases all backing storage.
func (t *SiteTable) Free() {
	rowIncrement, payloadIncrement := t.rowIncrement, t.payloadIncrement
	*t = SiteTable{rowIncrement: rowIncrement, payloadIncrement: payloadIncrement}
}

func (t *SiteTable) ancestralStateOffset(j int) int {
	offset := 0
	for i := 0; i < j; i++ {
		offset += int(t.AncestralStateLength[i])
	}
	return offset
}

// AncestralStateAt returns a zero-copy view of row j's ancestral state.
func (t *SiteTable) AncestralStateAt(j int) string {
	offset := t.ancestralStateOffset(j)
	return gunsafe.BytesToString(t.AncestralState[offset : offset+int(t.AncestralStateLength[j])])
}

// Equal reports whether t and other hold identical rows.
func (t *SiteTable) Equal(other *SiteTable) bool {
	if t.NumRows != other.NumRows || t.TotalAncestralStateLength != other.TotalAncestralStateLength {
		return false
	}
	for j := 0; j < t.NumRows; j++ {
		if t.Position[j] != other.Position[j] || t.AncestralStateLength[j] != other.AncestralStateLength[j] {
			return false
		}
	}
	for j := 0; j < t.TotalAncestralStateLength; j++ {
		if t.AncestralState[j] != other.AncestralState[j] {
			return false
		}
	}
	return true
}

// PrintState writes a human-readable dump of t's state, for debugging.
func (t *SiteTable) PrintState(w io.Writer) {
	fmt.Fprintf(w, "site_table: %d rows (capacity %d)\n", t.NumRows, t.rowCapacity())
	for j := 0; j < t.NumRows; j++ {
		fmt.Fprintf(w, "\t%d\tposition=%f\tancestral_state=%q\n", j, t.Position[j], t.AncestralStateAt(j))
	}
}
