package lineagestore

import (
	necsim "github.com/kentwait/necsimgo"
)

// Independent is a lineage store with no cross-lineage index: each Lineage
// carries its own state and is processed without knowledge of its
// neighbours. Coalescence is instead detected out-of-band via a
// deduplication cache (see DedupLRU).
type Independent struct {
	byRef map[necsim.GlobalReference]*necsim.Lineage
}

// NewIndependent constructs an empty Independent store.
func NewIndependent() *Independent {
	return &Independent{byRef: make(map[necsim.GlobalReference]*necsim.Lineage)}
}

// Insert adds or replaces lineage by its GlobalReference.
func (s *Independent) Insert(lineage *necsim.Lineage) {
	s.byRef[lineage.GlobalRef] = lineage
}

// Remove discards a lineage (on speciation, dedup loss, or emigration).
func (s *Independent) Remove(ref necsim.GlobalReference) {
	delete(s.byRef, ref)
}

// ByReference looks up a lineage by its GlobalReference.
func (s *Independent) ByReference(ref necsim.GlobalReference) (*necsim.Lineage, bool) {
	l, ok := s.byRef[ref]
	return l, ok
}

// Len returns the number of lineages currently tracked.
func (s *Independent) Len() int { return len(s.byRef) }

// All returns every currently tracked lineage, for iteration by the
// Independent active-lineage sampler.
func (s *Independent) All() []*necsim.Lineage {
	out := make([]*necsim.Lineage, 0, len(s.byRef))
	for _, l := range s.byRef {
		out = append(out, l)
	}
	return out
}

// DedupLRU is a fixed-capacity deduplication cache over SpeciationSample
// fingerprints: two lineages that would produce the same triple are the
// same coalescence event observed from each side, and the second insert
// must fail so exactly one side survives. Hand-rolled (no pack dependency
// provides a generic LRU set; see DESIGN.md), grounded on
// original_source/third-party/lru-set.
type DedupLRU struct {
	capacity int
	index    map[necsim.SpeciationSample]*lruNode
	head     *lruNode // most recently used
	tail     *lruNode // least recently used
}

type lruNode struct {
	key        necsim.SpeciationSample
	prev, next *lruNode
}

// NewDedupLRU constructs a DedupLRU with the given fixed capacity.
func NewDedupLRU(capacity int) *DedupLRU {
	return &DedupLRU{capacity: capacity, index: make(map[necsim.SpeciationSample]*lruNode)}
}

// TryInsert attempts to insert key. Returns true if key was not already
// present (the caller's lineage survives as the coalescence winner); false
// if key was already present (the caller's lineage must be discarded,
// since the other side already reported this coalescence).
func (d *DedupLRU) TryInsert(key necsim.SpeciationSample) bool {
	if n, exists := d.index[key]; exists {
		d.moveToFront(n)
		return false
	}

	n := &lruNode{key: key}
	d.index[key] = n
	d.pushFront(n)

	if len(d.index) > d.capacity {
		d.evictTail()
	}
	return true
}

func (d *DedupLRU) pushFront(n *lruNode) {
	n.prev = nil
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
	if d.tail == nil {
		d.tail = n
	}
}

func (d *DedupLRU) moveToFront(n *lruNode) {
	if d.head == n {
		return
	}
	if n.prev != nil {
		n.prev.next = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	}
	if d.tail == n {
		d.tail = n.prev
	}
	n.prev = nil
	n.next = d.head
	if d.head != nil {
		d.head.prev = n
	}
	d.head = n
}

func (d *DedupLRU) evictTail() {
	if d.tail == nil {
		return
	}
	delete(d.index, d.tail.key)
	prev := d.tail.prev
	if prev != nil {
		prev.next = nil
	}
	d.tail = prev
	if d.tail == nil {
		d.head = nil
	}
}

// Len returns the number of keys currently cached.
func (d *DedupLRU) Len() int { return len(d.index) }
