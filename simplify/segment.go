// Package simplify implements the segment-interval sweep that reduces an
// ancestral recombination graph (nodes, edgesets, sites, mutations) to the
// minimal history ancestral to a chosen set of sample nodes.
package simplify

import "github.com/grailbio/tsimplify/tables"

// segRef is a tagged, optional handle into a segmentPool's arena: a plain
// integer index rather than a pointer, the same adaptation the package
// uses for every linked structure here (the pool owns the backing array;
// a chain only ever holds handles into it). nilSeg is the "no segment"
// tag, playing the role of a nil *Segment without needing one.
type segRef int32

const nilSeg segRef = -1

// segment is one link of an ancestor's segment chain: the half-open
// interval [left, right) of some input node's ancestry is, at this point
// in the sweep, represented by the output node `node`. Chains are
// strictly forward-linked via next; invariants (within any chain):
// left < right, and right <= the next link's left.
type segment struct {
	left, right float64
	node        tables.NodeId
	next        segRef
}

// segmentPool is the arena backing every segment allocated during a
// simplifier run: ancestor-map chains and the chains borrowed by the merge
// queue are both slices of handles into this single arena. Freed slots are
// kept on a stack and reused by the next acquire, so the arena's length is
// a high-water mark, not a running count.
type segmentPool struct {
	arena []segment
	free  []segRef
	live  int
}

func newSegmentPool(capacityHint int) *segmentPool {
	return &segmentPool{arena: make([]segment, 0, capacityHint)}
}

// acquire returns a handle to a new segment with the given fields. It
// grows the arena when the free list is empty, mirroring the object
// heap's on-demand expansion.
func (p *segmentPool) acquire(left, right float64, node tables.NodeId, next segRef) segRef {
	p.live++
	if n := len(p.free); n > 0 {
		ref := p.free[n-1]
		p.free = p.free[:n-1]
		p.arena[ref] = segment{left: left, right: right, node: node, next: next}
		return ref
	}
	p.arena = append(p.arena, segment{left: left, right: right, node: node, next: next})
	return segRef(len(p.arena) - 1)
}

// release returns ref's slot to the free list.
func (p *segmentPool) release(ref segRef) {
	p.free = append(p.free, ref)
	p.live--
}

func (p *segmentPool) get(ref segRef) *segment {
	return &p.arena[ref]
}

// allocated returns the number of currently live (un-released) segments.
func (p *segmentPool) allocated() int {
	return p.live
}

// chainValid walks a chain starting at head and returns its length,
// validating the ordering invariant (left < right, right <= next.left) as
// it goes. Used by checkState.
func (p *segmentPool) chainValid(head segRef) (length int, ok bool) {
	for ref := head; ref != nilSeg; {
		seg := p.get(ref)
		if !(seg.left < seg.right) {
			return length, false
		}
		length++
		if seg.next != nilSeg {
			next := p.get(seg.next)
			if !(seg.right <= next.left) {
				return length, false
			}
		}
		ref = seg.next
	}
	return length, true
}
