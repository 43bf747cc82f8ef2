package tables

import "math"

// MaxTableRows bounds how many rows any table's fixed-width columns may
// hold. Row ids (NodeId, SiteId) are int32, so capacity can never grow
// past the positive range of an int32 without two distinct rows
// aliasing the same id; growRows refuses to cross this ceiling and
// reports NoMemory instead, mirroring the allocation-failure path the
// original C implementation takes when malloc cannot satisfy a grow
// request.
const MaxTableRows = math.MaxInt32

// MaxPayloadBytes bounds how large a table's variable-width payload
// buffer (Name, Children, AncestralState, DerivedState) may grow.
// Per-row lengths are stored in a uint32 column, so an offset beyond
// this ceiling could never be addressed by that column again.
const MaxPayloadBytes = math.MaxUint32

// NodeId identifies a row of a NodeTable. It is a plain int32, mirroring
// the node_id_t of the original table-based implementation this package is
// grounded on.
type NodeId int32

// NullNodeId is never a valid row index; it marks "no node".
const NullNodeId NodeId = -1

// SiteId identifies a row of a SiteTable.
type SiteId int32

// NullSiteId is never a valid row index.
const NullSiteId SiteId = -1

// Node flag bits. Only the sample bit is defined by this package; callers
// may use the remaining bits of Flags for their own purposes.
const (
	// IsSample marks a node as an endpoint whose ancestry must survive
	// simplification.
	IsSample uint32 = 1 << 0
)

// DefaultRowIncrement is the default number of rows by which a table's
// fixed-width columns grow when capacity is exhausted.
const DefaultRowIncrement = 1024

// DefaultPayloadIncrement is the default number of bytes/elements by which
// a table's variable-width payload buffer grows when capacity is
// exhausted.
const DefaultPayloadIncrement = 65536
