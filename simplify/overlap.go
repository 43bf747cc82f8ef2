package simplify

// ocRef is a tagged, optional handle into an overlapCountPool's arena,
// following the same pattern as segRef.
type ocRef int32

const nilOC ocRef = -1

// overlapCount is one break point of the step function "how many
// ancestral lineages overlap position x": the function is num_samples at
// x==0 and changes value only at the start of each entry in the map.
type overlapCount struct {
	start      float64
	count      uint32
	prev, next ocRef
}

// overlapCountPool is the arena backing an overlapMap's entries. Entries
// are essentially never released during a run (coalesced intervals are
// recorded by zeroing their count, not by removing the break point), so
// this exists mainly for the pool-accounting invariant of spec's object
// pool design, not because the algorithm frees these in practice.
type overlapCountPool struct {
	arena []overlapCount
	free  []ocRef
	live  int
}

func newOverlapCountPool(capacityHint int) *overlapCountPool {
	return &overlapCountPool{arena: make([]overlapCount, 0, capacityHint)}
}

func (p *overlapCountPool) acquire(start float64, count uint32) ocRef {
	p.live++
	if n := len(p.free); n > 0 {
		ref := p.free[n-1]
		p.free = p.free[:n-1]
		p.arena[ref] = overlapCount{start: start, count: count, prev: nilOC, next: nilOC}
		return ref
	}
	p.arena = append(p.arena, overlapCount{start: start, count: count, prev: nilOC, next: nilOC})
	return ocRef(len(p.arena) - 1)
}

func (p *overlapCountPool) get(ref ocRef) *overlapCount { return &p.arena[ref] }

func (p *overlapCountPool) allocated() int { return p.live }

// overlapMap is the ordered map of break points described in spec §3/§4.4:
// supports exact search, search-closest (largest key <= x), and in-order
// successor traversal. It is implemented as a sorted doubly linked list
// over overlapCountPool handles: insertion position is found by linear
// scan, which keeps handles stable across insertions (unlike a sorted
// slice, where inserting ahead of a cached index would invalidate it) —
// the simplifier's merge step relies on walking forward from an
// already-looked-up node while the map grows around it.
type overlapMap struct {
	pool *overlapCountPool
	head ocRef
}

func newOverlapMap(pool *overlapCountPool) *overlapMap {
	return &overlapMap{pool: pool, head: nilOC}
}

// insert adds a new break point at x with the given count. x must not
// already be present.
func (m *overlapMap) insert(x float64, count uint32) ocRef {
	ref := m.pool.acquire(x, count)
	node := m.pool.get(ref)
	if m.head == nilOC {
		m.head = ref
		return ref
	}
	// Find the first existing entry with start > x; insert before it.
	var prev ocRef = nilOC
	cur := m.head
	for cur != nilOC && m.pool.get(cur).start < x {
		prev = cur
		cur = m.pool.get(cur).next
	}
	node.prev = prev
	node.next = cur
	if prev != nilOC {
		m.pool.get(prev).next = ref
	} else {
		m.head = ref
	}
	if cur != nilOC {
		m.pool.get(cur).prev = ref
	}
	return ref
}

// search returns the entry with start == x, if present.
func (m *overlapMap) search(x float64) (ocRef, bool) {
	for cur := m.head; cur != nilOC; cur = m.pool.get(cur).next {
		e := m.pool.get(cur)
		if e.start == x {
			return cur, true
		}
		if e.start > x {
			break
		}
	}
	return nilOC, false
}

// searchClosest returns the entry with the largest start <= x. The map
// always contains an entry at 0, so this only fails on an empty map.
func (m *overlapMap) searchClosest(x float64) (ocRef, bool) {
	var best ocRef = nilOC
	for cur := m.head; cur != nilOC; cur = m.pool.get(cur).next {
		e := m.pool.get(cur)
		if e.start > x {
			break
		}
		best = cur
	}
	if best == nilOC {
		return nilOC, false
	}
	return best, true
}

// copyFrom inserts a new break point at x, copying its count from the
// entry that currently contains x (the closest entry with start <= x).
func (m *overlapMap) copyFrom(x float64) ocRef {
	closest, ok := m.searchClosest(x)
	if !ok {
		panic("overlapMap: copyFrom on empty map")
	}
	return m.insert(x, m.pool.get(closest).count)
}

func (m *overlapMap) next(ref ocRef) ocRef { return m.pool.get(ref).next }

func (m *overlapMap) startOf(ref ocRef) float64 { return m.pool.get(ref).start }

func (m *overlapMap) countOf(ref ocRef) uint32 { return m.pool.get(ref).count }

func (m *overlapMap) setCount(ref ocRef, count uint32) { m.pool.get(ref).count = count }

func (m *overlapMap) addCount(ref ocRef, delta int64) {
	e := m.pool.get(ref)
	e.count = uint32(int64(e.count) + delta)
}

// len returns the number of entries currently in the map.
func (m *overlapMap) len() int {
	n := 0
	for cur := m.head; cur != nilOC; cur = m.pool.get(cur).next {
		n++
	}
	return n
}
