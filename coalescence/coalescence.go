// Package coalescence implements the C5 coalescence sampler cog: given a
// target location and the lineage store, decides whether an arriving
// lineage lands on an occupant (coalescence) or an empty slot.
package coalescence

import (
	"math/rand"

	necsim "github.com/kentwait/necsimgo"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
)

// Outcome is the result of a coalescence draw.
type Outcome struct {
	// Coalesced reports whether the arriving lineage landed on an
	// occupant.
	Coalesced bool
	// Occupant is the existing lineage hit, valid iff Coalesced.
	Occupant *necsim.Lineage
	// Index is the slot index chosen.
	Index uint32
}

// Sampler is the C5 cog contract. exclude is the GlobalReference of the
// lineage whose own event is being sampled: the acting lineage is still
// physically occupying its slot in store when this is called (the caller
// only removes it from the store once the outcome is known), so any slot
// held by exclude must be treated as empty rather than as a coalescence
// partner — a lineage can never coalesce with itself. Pass 0 (never a
// real lineage reference, see GlobalReference) when the arriving lineage
// holds no slot of its own yet, e.g. an immigrant or a lineage being
// resumed. Grounded on the Rust original's event sampler, which removes
// the active lineage from the store before sampling and accounts for it
// separately in the rate/probability calculation.
type Sampler interface {
	Sample(target necsim.Location, store *lineagestore.Coherent, rng *rand.Rand, exclude necsim.GlobalReference) Outcome
}

// occupiedByOther returns the occupant at (loc, idx), or nil if the slot
// is empty or held by exclude.
func occupiedByOther(store *lineagestore.Coherent, loc necsim.Location, idx uint32, exclude necsim.GlobalReference) *necsim.Lineage {
	occ := store.OccupantAt(necsim.IndexedLocation{Location: loc, Index: idx})
	if occ != nil && occ.GlobalRef == exclude {
		return nil
	}
	return occ
}

// Unconditional draws an occupant slot uniformly in [0, capacity(target)).
// If the slot is occupied by a lineage other than exclude, a coalescence
// occurs with that occupant; otherwise the lineage simply settles.
type Unconditional struct {
	H habitat.Habitat
}

func (u Unconditional) Sample(target necsim.Location, store *lineagestore.Coherent, rng *rand.Rand, exclude necsim.GlobalReference) Outcome {
	cap := u.H.CapacityAt(target)
	idx := uint32(rng.Int63n(int64(cap)))
	occ := occupiedByOther(store, target, idx, exclude)
	return Outcome{Coalesced: occ != nil, Occupant: occ, Index: idx}
}

// Conditional is the separable variant: given the occupancy count n at the
// target (excluding exclude, if it holds a slot there), it returns a
// coalescence outcome with probability n/capacity and selects the
// coalescing occupant uniformly among the n occupants; otherwise it
// returns a non-coalescing settle onto a uniformly-chosen empty slot
// (exclude's own slot, if any, counts as empty here, so a self-dispersal
// that doesn't coalesce can legally re-settle in place). Required by the
// Event-Skipping event sampler, which has already excluded the no-op
// self-dispersal case and needs to draw directly from "coalesce with
// probability n/capacity" without wasting a draw on an empty
// self-dispersal.
type Conditional struct {
	H habitat.Habitat
}

func (c Conditional) Sample(target necsim.Location, store *lineagestore.Coherent, rng *rand.Rand, exclude necsim.GlobalReference) Outcome {
	cap := int(c.H.CapacityAt(target))

	n := 0
	for idx := 0; idx < cap; idx++ {
		if occupiedByOther(store, target, uint32(idx), exclude) != nil {
			n++
		}
	}

	if n > 0 && rng.Float64() < float64(n)/float64(cap) {
		// Coalesce: choose uniformly among the n occupants other than exclude.
		choice := rng.Intn(n)
		seen := 0
		for idx := 0; idx < cap; idx++ {
			occ := occupiedByOther(store, target, uint32(idx), exclude)
			if occ == nil {
				continue
			}
			if seen == choice {
				return Outcome{Coalesced: true, Occupant: occ, Index: uint32(idx)}
			}
			seen++
		}
	}

	// Settle on a uniformly chosen empty slot.
	empties := cap - n
	if empties <= 0 {
		// Capacity fully occupied by lineages other than exclude and the
		// coalescence draw missed due to float rounding; coalesce with the
		// first other occupant found.
		for idx := 0; idx < cap; idx++ {
			if occ := occupiedByOther(store, target, uint32(idx), exclude); occ != nil {
				return Outcome{Coalesced: true, Occupant: occ, Index: uint32(idx)}
			}
		}
	}
	choice := rng.Intn(empties)
	seen := 0
	for idx := 0; idx < cap; idx++ {
		if occupiedByOther(store, target, uint32(idx), exclude) != nil {
			continue
		}
		if seen == choice {
			return Outcome{Coalesced: false, Index: uint32(idx)}
		}
		seen++
	}
	panic("unreachable: empty slot accounting error in coalescence.Conditional")
}
