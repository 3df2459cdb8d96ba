// Package lineagestore implements the C6 lineage store cog in its two
// flavours: a globally-coherent store that indexes occupants by location
// (required by the Gillespie family and the Classical sampler's
// coalescence checks), and an independent store used by the embarrassingly
// parallel Independent algorithm, which knows nothing about neighbours.
package lineagestore

import (
	necsim "github.com/kentwait/necsimgo"
	"github.com/kentwait/necsimgo/habitat"
)

// Coherent is a globally-coherent lineage store: for every occupied
// IndexedLocation there is at most one Lineage, and the occupants at a
// location are retrievable in O(deme size). Grounded on network.go's
// adjacencyMatrix, repurposed from edge weights to occupancy slots.
type Coherent struct {
	h habitat.Habitat
	// occupants[loc] is a slice of length capacity(loc); a nil entry is an
	// empty slot.
	occupants map[necsim.Location][]*necsim.Lineage
	byRef     map[necsim.GlobalReference]*necsim.Lineage
}

// NewCoherent constructs an empty Coherent store sized to h.
func NewCoherent(h habitat.Habitat) *Coherent {
	return &Coherent{
		h:         h,
		occupants: make(map[necsim.Location][]*necsim.Lineage),
		byRef:     make(map[necsim.GlobalReference]*necsim.Lineage),
	}
}

func (c *Coherent) slots(loc necsim.Location) []*necsim.Lineage {
	slots, ok := c.occupants[loc]
	if !ok {
		slots = make([]*necsim.Lineage, c.h.CapacityAt(loc))
		c.occupants[loc] = slots
	}
	return slots
}

// OccupantAt returns the occupant at (loc, index), or nil if the slot is
// empty.
func (c *Coherent) OccupantAt(il necsim.IndexedLocation) *necsim.Lineage {
	slots := c.slots(il.Location)
	if int(il.Index) >= len(slots) {
		return nil
	}
	return slots[il.Index]
}

// OccupancyCount returns the number of occupied slots at loc.
func (c *Coherent) OccupancyCount(loc necsim.Location) int {
	n := 0
	for _, l := range c.slots(loc) {
		if l != nil {
			n++
		}
	}
	return n
}

// Insert places lineage at il, which must currently be empty. The
// lineage's IndexedLocation is updated to il.
func (c *Coherent) Insert(lineage *necsim.Lineage, il necsim.IndexedLocation) {
	slots := c.slots(il.Location)
	slots[il.Index] = lineage
	loc := il
	lineage.IndexedLocation = &loc
	c.byRef[lineage.GlobalRef] = lineage
}

// Remove clears the occupant at il (used on speciation or coalescence).
func (c *Coherent) Remove(il necsim.IndexedLocation) {
	slots := c.slots(il.Location)
	if l := slots[il.Index]; l != nil {
		delete(c.byRef, l.GlobalRef)
	}
	slots[il.Index] = nil
}

// ByReference looks up a lineage by its GlobalReference.
func (c *Coherent) ByReference(ref necsim.GlobalReference) (*necsim.Lineage, bool) {
	l, ok := c.byRef[ref]
	return l, ok
}

// Len returns the total number of active lineages currently stored.
func (c *Coherent) Len() int { return len(c.byRef) }
