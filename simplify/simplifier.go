package simplify

import (
	"sort"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/tsimplify/tables"
	"github.com/pkg/errors"
)

// Flags carries simplifier run-time options. No flag bits are currently
// defined; the type exists so the public contract matches spec §4.4's
// simplifier_alloc(..., flags) signature.
type Flags uint32

// chainRecord is one piece of an input node's ancestry history: over
// [left, right), this input node's lineage was represented by output node
// Node. Built incrementally as removeAncestry detaches pieces of a chain
// and by a final sweep over whatever is left in the ancestor map, so that
// every genomic position of every input node that ever carried a mutation
// can be mapped to the output node that covered it at the time it was
// removed (or, if never removed, at the end of the run).
type chainRecord struct {
	left, right float64
	node        tables.NodeId
}

// Simplifier implements the segment-interval sweep of spec §4.4. It owns
// the output tables (clearing and rewriting them during Run) and a
// snapshot of the input node table taken at construction time.
type Simplifier struct {
	nodes      *tables.NodeTable
	edgesets   *tables.EdgesetTable
	migrations *tables.MigrationTable
	sites      *tables.SiteTable
	mutations  *tables.MutationTable

	inputNodes     tables.NodeTable
	samples        []tables.NodeId
	sequenceLength float64
	flags          Flags

	segPool *segmentPool
	ocPool  *overlapCountPool
	qnPool  *queueNodePool

	ancestorMap []segRef
	queue       *mergeQueue
	overlaps    *overlapMap
	squash      squashBuffer

	history [][]chainRecord
}

// NewSimplifier validates its arguments, snapshots the input node table,
// and seeds per-sample ancestry, exactly as spec §4.4's "Initialisation"
// describes. The supplied tables are taken over: nodes and edgesets (and,
// if present, sites/mutations) are read as input during Run and rewritten
// in place to hold the reduced output.
func NewSimplifier(
	nodes *tables.NodeTable,
	edgesets *tables.EdgesetTable,
	migrations *tables.MigrationTable,
	sites *tables.SiteTable,
	mutations *tables.MutationTable,
	samples []tables.NodeId,
	sequenceLength float64,
	flags Flags,
) (*Simplifier, error) {
	if len(samples) < 2 {
		return nil, tables.E(tables.BadParam, "NewSimplifier", "at least two samples are required")
	}
	if nodes == nil || nodes.NumRows == 0 {
		return nil, tables.E(tables.BadParam, "NewSimplifier", "input node table is empty")
	}
	if edgesets == nil || edgesets.NumRows == 0 {
		return nil, tables.E(tables.BadParam, "NewSimplifier", "input edgeset table is empty")
	}

	s := &Simplifier{
		nodes:          nodes,
		edgesets:       edgesets,
		migrations:     migrations,
		sites:          sites,
		mutations:      mutations,
		samples:        append([]tables.NodeId(nil), samples...),
		sequenceLength: sequenceLength,
		flags:          flags,
	}

	// Snapshot the input node table; the live one is about to be cleared
	// and rewritten with the reduced output.
	if err := s.inputNodes.Alloc(tables.DefaultRowIncrement, nodes.TotalNameLength+1); err != nil {
		return nil, errors.Wrap(err, "NewSimplifier")
	}
	if err := s.inputNodes.SetColumns(nodes.NumRows, nodes.Flags, nodes.Time, nodes.Population, nodes.Name, nodes.NameLength); err != nil {
		return nil, errors.Wrap(err, "NewSimplifier")
	}
	if err := nodes.Reset(); err != nil {
		return nil, errors.Wrap(err, "NewSimplifier")
	}

	capacityHint := edgesets.NumRows
	if capacityHint < 64 {
		capacityHint = 64
	}
	s.segPool = newSegmentPool(capacityHint)
	s.ocPool = newOverlapCountPool(capacityHint)
	s.qnPool = &queueNodePool{}
	s.queue = newMergeQueue(s.segPool, s.qnPool)
	s.overlaps = newOverlapMap(s.ocPool)

	s.ancestorMap = make([]segRef, s.inputNodes.NumRows)
	for i := range s.ancestorMap {
		s.ancestorMap[i] = nilSeg
	}
	s.history = make([][]chainRecord, s.inputNodes.NumRows)

	seen := make(map[tables.NodeId]bool, len(s.samples))
	for _, sample := range s.samples {
		if sample < 0 || int(sample) >= s.inputNodes.NumRows {
			return nil, tables.E(tables.OutOfBounds, "NewSimplifier", "sample id out of bounds")
		}
		if s.inputNodes.Flags[sample]&tables.IsSample == 0 {
			return nil, tables.E(tables.BadSamples, "NewSimplifier", "sample lacks IS_SAMPLE flag")
		}
		if seen[sample] {
			return nil, tables.E(tables.DuplicateSample, "NewSimplifier", "sample id repeated")
		}
		seen[sample] = true

		outID, err := nodes.AddRow(s.inputNodes.Flags[sample], s.inputNodes.Time[sample],
			s.inputNodes.Population[sample], []byte(s.inputNodes.NameAt(int(sample))))
		if err != nil {
			return nil, errors.Wrap(err, "NewSimplifier")
		}
		s.ancestorMap[sample] = s.segPool.acquire(0, sequenceLength, outID, nilSeg)
	}

	s.overlaps.insert(0, uint32(len(s.samples)))
	s.overlaps.insert(sequenceLength, uint32(len(s.samples)+1))

	return s, nil
}

// Run performs the full simplification described in spec §4.4, mutating
// the output tables in place.
func (s *Simplifier) Run() error {
	start := time.Now()
	log.Debug.Printf("simplify: starting run: %d input nodes, %d input edgesets",
		s.inputNodes.NumRows, s.edgesets.NumRows)

	type inputRow struct {
		left, right float64
		parent      tables.NodeId
		children    []tables.NodeId
	}
	numInput := s.edgesets.NumRows
	rows := make([]inputRow, numInput)
	for j := 0; j < numInput; j++ {
		children := s.edgesets.ChildrenAt(j)
		cp := make([]tables.NodeId, len(children))
		copy(cp, children)
		rows[j] = inputRow{s.edgesets.Left[j], s.edgesets.Right[j], s.edgesets.Parent[j], cp}
	}
	if err := s.edgesets.Reset(); err != nil {
		return errors.Wrap(err, "Simplifier.Run")
	}

	if numInput > 0 {
		currentParent := rows[0].parent
		for j, r := range rows {
			if j < s.edgesets.NumRows {
				panic("simplify: output edgeset count overtook the input read pointer")
			}
			if r.parent != currentParent {
				s.checkState()
				log.Debug.Printf("simplify: flushing parent %d: %d segments queued, %d output edgesets so far",
					currentParent, s.queue.len(), s.edgesets.NumRows)
				if err := s.mergeAncestors(currentParent); err != nil {
					return errors.Wrap(err, "Simplifier.Run")
				}
				if s.inputNodes.Time[currentParent] > s.inputNodes.Time[r.parent] {
					return tables.E(tables.RecordsNotTimeSorted, "Simplifier.Run",
						"edgeset parents are not presented in non-decreasing time order")
				}
				currentParent = r.parent
			}
			for _, c := range r.children {
				if s.ancestorMap[c] != nilSeg {
					s.checkState()
					if err := s.removeAncestry(r.left, r.right, c); err != nil {
						return errors.Wrap(err, "Simplifier.Run")
					}
					s.checkState()
				}
			}
		}
		log.Debug.Printf("simplify: flushing parent %d: %d segments queued, %d output edgesets so far",
			currentParent, s.queue.len(), s.edgesets.NumRows)
		if err := s.mergeAncestors(currentParent); err != nil {
			return errors.Wrap(err, "Simplifier.Run")
		}
		s.checkState()
	}
	if err := s.squash.flush(s.edgesets); err != nil {
		return errors.Wrap(err, "Simplifier.Run")
	}

	// Anything still carried in the ancestor map at the end of the sweep
	// was never consumed by a later edge; record it as final history so
	// mutations on it can still be mapped.
	for id, head := range s.ancestorMap {
		if head == nilSeg {
			continue
		}
		for ref := head; ref != nilSeg; {
			seg := s.segPool.get(ref)
			s.history[id] = append(s.history[id], chainRecord{seg.left, seg.right, seg.node})
			ref = seg.next
		}
	}

	if err := s.remapSitesAndMutations(); err != nil {
		return errors.Wrap(err, "Simplifier.Run")
	}

	log.Debug.Printf("simplify: run finished in %v: %d output nodes, %d output edgesets",
		time.Since(start), s.nodes.NumRows, s.edgesets.NumRows)
	return nil
}

// removeAncestry implements spec §4.4(a): it splits ancestor_map[inputID]
// into the portion outside [left, right), which remains in the ancestor
// map, and the portion inside, which is pushed as a single chain head onto
// the merge queue.
func (s *Simplifier) removeAncestry(left, right float64, inputID tables.NodeId) error {
	p := s.segPool
	x := s.ancestorMap[inputID]
	head := x
	var last segRef = nilSeg

	for x != nilSeg && p.get(x).right <= left {
		last = x
		x = p.get(x).next
	}
	if x != nilSeg && p.get(x).left < left {
		xLeft, xNode := p.get(x).left, p.get(x).node
		y := p.acquire(xLeft, left, xNode, nilSeg)
		p.get(x).left = left
		if last != nilSeg {
			p.get(last).next = y
		}
		last = y
		if x == head {
			head = last
		}
	}

	var insideHead segRef = nilSeg
	if x != nilSeg && p.get(x).left < right {
		insideHead = x
		var xPrev segRef = nilSeg
		for x != nilSeg && p.get(x).right <= right {
			xPrev = x
			x = p.get(x).next
		}
		if x != nilSeg && p.get(x).left < right {
			xRight, xNode, xNext := p.get(x).right, p.get(x).node, p.get(x).next
			y := p.acquire(right, xRight, xNode, xNext)
			p.get(x).right = right
			p.get(x).next = nilSeg
			x = y
		} else if xPrev != nilSeg {
			p.get(xPrev).next = nilSeg
		}
	}

	if last == nilSeg {
		head = x
	} else {
		p.get(last).next = x
	}
	s.ancestorMap[inputID] = head

	if insideHead != nilSeg {
		for ref := insideHead; ref != nilSeg; ref = p.get(ref).next {
			seg := p.get(ref)
			s.history[inputID] = append(s.history[inputID], chainRecord{seg.left, seg.right, seg.node})
		}
		s.queue.insert(insideHead)
	}
	return nil
}

// mergeAncestors implements spec §4.4(b): it drains the merge queue,
// building a new ancestor chain for inputID and emitting output edgesets
// whenever two or more queued chains coalesce.
func (s *Simplifier) mergeAncestors(inputID tables.NodeId) error {
	p := s.segPool
	var z segRef = nilSeg
	haveCoalescenceNode := false
	var v tables.NodeId

	for s.queue.len() > 0 {
		batch, l := s.queue.popBatch()
		h := len(batch)

		rMax := s.sequenceLength
		for _, ref := range batch {
			if right := p.get(ref).right; right < rMax {
				rMax = right
			}
		}
		nextL, hasNext := s.queue.peekLeft()
		if hasNext && nextL < rMax {
			rMax = nextL
		}

		var alpha segRef = nilSeg
		if h == 1 {
			x := batch[0]
			xLeft, xNode, xRight, xNext := p.get(x).left, p.get(x).node, p.get(x).right, p.get(x).next
			if hasNext && nextL < xRight {
				alpha = p.acquire(xLeft, nextL, xNode, nilSeg)
				p.get(x).left = nextL
				s.queue.insert(x)
			} else {
				alpha = x
				p.get(alpha).next = nilSeg
				if xNext != nilSeg {
					s.queue.insert(xNext)
				}
			}
		} else {
			if !haveCoalescenceNode {
				haveCoalescenceNode = true
				var err error
				v, err = s.recordNode(inputID)
				if err != nil {
					return errors.Wrap(err, "Simplifier.mergeAncestors")
				}
			}
			if _, ok := s.overlaps.search(l); !ok {
				s.overlaps.copyFrom(l)
			}
			if _, ok := s.overlaps.search(rMax); !ok {
				s.overlaps.copyFrom(rMax)
			}
			lRef, _ := s.overlaps.search(l)

			var r float64
			if s.overlaps.countOf(lRef) == uint32(h) {
				s.overlaps.setCount(lRef, 0)
				nextRef := s.overlaps.next(lRef)
				r = s.overlaps.startOf(nextRef)
			} else {
				r = l
				cur := lRef
				for s.overlaps.countOf(cur) != uint32(h) && r < rMax {
					s.overlaps.addCount(cur, -(int64(h) - 1))
					cur = s.overlaps.next(cur)
					r = s.overlaps.startOf(cur)
				}
				alpha = p.acquire(l, r, v, nilSeg)
			}

			children := make([]tables.NodeId, h)
			for i, x := range batch {
				seg := p.get(x)
				children[i] = seg.node
				var next segRef
				if seg.right == r {
					next = seg.next
					p.release(x)
				} else { // seg.right > r
					p.get(x).left = r
					next = x
				}
				if next != nilSeg {
					s.queue.insert(next)
				}
			}
			if err := s.squash.record(s.edgesets, l, r, v, children); err != nil {
				return errors.Wrap(err, "Simplifier.mergeAncestors")
			}
		}

		if alpha != nilSeg {
			if z == nilSeg {
				s.ancestorMap[inputID] = alpha
			} else {
				p.get(z).next = alpha
			}
			z = alpha
		}
	}
	return nil
}

// recordNode appends a new output node copying {flags, time, population,
// name} from the snapshot of inputID.
func (s *Simplifier) recordNode(inputID tables.NodeId) (tables.NodeId, error) {
	return s.nodes.AddRow(
		s.inputNodes.Flags[inputID],
		s.inputNodes.Time[inputID],
		s.inputNodes.Population[inputID],
		[]byte(s.inputNodes.NameAt(int(inputID))),
	)
}

// checkState verifies the invariants of spec §8 property 1-2. A violation
// is a programmer error (corrupted internal state), not a recoverable
// condition, so it aborts the process rather than returning an error, per
// spec §7.
func (s *Simplifier) checkState() {
	total := 0
	for _, head := range s.ancestorMap {
		if head == nilSeg {
			continue
		}
		n, ok := s.segPool.chainValid(head)
		if !ok {
			panic("simplify: invalid segment chain ordering in ancestor map")
		}
		total += n
	}
	for _, ref := range s.queue.entries {
		n, ok := s.segPool.chainValid(ref)
		if !ok {
			panic("simplify: invalid segment chain ordering in merge queue")
		}
		total += n
	}
	if total != s.segPool.allocated() {
		panic("simplify: segment pool accounting mismatch")
	}
	if s.qnPool.allocated() != s.queue.len() {
		panic("simplify: queue node pool accounting mismatch")
	}
	if s.ocPool.allocated() != s.overlaps.len() {
		panic("simplify: overlap count pool accounting mismatch")
	}
}

// remapSitesAndMutations implements spec §4.4's "Sites and mutations
// (post-sweep)": every surviving mutation's node is rewritten to the
// output node that covered its site's position at its original node, and
// sites left with no mutations are dropped, compacting ids.
//
// Like edgesets, sites and mutations are read from the live tables as
// input before being cleared and rewritten with the reduced output.
func (s *Simplifier) remapSitesAndMutations() error {
	if s.sites == nil || s.mutations == nil {
		return nil
	}
	for id := range s.history {
		sort.Slice(s.history[id], func(i, j int) bool { return s.history[id][i].left < s.history[id][j].left })
	}

	type inputSite struct {
		position       float64
		ancestralState []byte
	}
	numSites := s.sites.NumRows
	inSites := make([]inputSite, numSites)
	for j := 0; j < numSites; j++ {
		inSites[j] = inputSite{s.sites.Position[j], []byte(s.sites.AncestralStateAt(j))}
	}

	type inputMutation struct {
		site         tables.SiteId
		node         tables.NodeId
		derivedState []byte
	}
	numMutations := s.mutations.NumRows
	inMutations := make([]inputMutation, numMutations)
	for j := 0; j < numMutations; j++ {
		inMutations[j] = inputMutation{s.mutations.Site[j], s.mutations.Node[j], []byte(s.mutations.DerivedStateAt(j))}
	}

	if err := s.sites.Reset(); err != nil {
		return errors.Wrap(err, "Simplifier.remapSitesAndMutations")
	}
	if err := s.mutations.Reset(); err != nil {
		return errors.Wrap(err, "Simplifier.remapSitesAndMutations")
	}

	type remapped struct {
		site         tables.SiteId
		node         tables.NodeId
		derivedState []byte
	}
	keptBySite := make(map[tables.SiteId][]remapped, numSites)
	for _, m := range inMutations {
		if m.site < 0 || int(m.site) >= numSites {
			return tables.E(tables.OutOfBounds, "Simplifier.remapSitesAndMutations", "mutation site out of bounds")
		}
		if m.node < 0 || int(m.node) >= len(s.history) {
			return tables.E(tables.OutOfBounds, "Simplifier.remapSitesAndMutations", "mutation node out of bounds")
		}
		node, ok := s.coveringNode(m.node, inSites[m.site].position)
		if !ok {
			continue // node's ancestry at this position is not ancestral to any sample
		}
		keptBySite[m.site] = append(keptBySite[m.site], remapped{site: m.site, node: node, derivedState: m.derivedState})
	}

	for oldID := 0; oldID < numSites; oldID++ {
		kept := keptBySite[tables.SiteId(oldID)]
		if len(kept) == 0 {
			continue
		}
		newID, err := s.sites.AddRow(inSites[oldID].position, inSites[oldID].ancestralState)
		if err != nil {
			return errors.Wrap(err, "Simplifier.remapSitesAndMutations")
		}
		for _, m := range kept {
			if _, err := s.mutations.AddRow(newID, m.node, m.derivedState); err != nil {
				return errors.Wrap(err, "Simplifier.remapSitesAndMutations")
			}
		}
	}
	return nil
}

// coveringNode returns the output node that represented inputID's
// ancestry at position, by consulting the recorded chain history.
func (s *Simplifier) coveringNode(inputID tables.NodeId, position float64) (tables.NodeId, bool) {
	h := s.history[inputID]
	i := sort.Search(len(h), func(i int) bool { return h[i].right > position })
	if i < len(h) && h[i].left <= position && position < h[i].right {
		return h[i].node, true
	}
	return tables.NullNodeId, false
}
