package scheduler

import (
	"math/rand"

	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
	"github.com/kentwait/necsimgo/scheduler/dynamicalias"

	necsim "github.com/kentwait/necsimgo"
	necsimrng "github.com/kentwait/necsimgo/rng"
)

// Gillespie is the Gillespie active-lineage sampler: a
// per-location event rate r(loc) = occupancy(loc)*turnover(loc) is
// maintained in a dynamic alias sampler over location indices; each event
// first samples a location proportional to its rate, then a resident
// lineage uniformly among the occupants there. Requires a Coherent store
// (global occupancy visibility).
type Gillespie struct {
	rng      *rand.Rand
	h        habitat.Habitat
	turnover habitat.TurnoverRate
	store    *lineagestore.Coherent
	alias    *dynamicalias.Indexed
	width    uint32
	clock    float64

	// pendingOrigin records, for a lineage popped but not yet
	// reinserted/removed, the location its rate row must be refreshed
	// against once the caller resolves the event.
	pendingOrigin map[necsim.GlobalReference]necsim.Location
}

// NewGillespie constructs a Gillespie sampler over every habitable
// location in h, seeding alias rows from store's initial occupancy.
func NewGillespie(rng *rand.Rand, h habitat.Habitat, turnover habitat.TurnoverRate, store *lineagestore.Coherent) *Gillespie {
	width, height := h.Extent()
	g := &Gillespie{
		rng: rng, h: h, turnover: turnover, store: store,
		alias: dynamicalias.New(), width: width,
		pendingOrigin: make(map[necsim.GlobalReference]necsim.Location),
	}
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			if h.CapacityAt(loc) == 0 {
				continue
			}
			g.refreshLocation(loc)
		}
	}
	return g
}

func (g *Gillespie) locIndex(loc necsim.Location) int {
	return int(loc.Y)*int(g.width) + int(loc.X)
}

func (g *Gillespie) locFromIndex(idx int) necsim.Location {
	return necsim.Location{X: uint32(idx) % g.width, Y: uint32(idx) / g.width}
}

func (g *Gillespie) rateAt(loc necsim.Location) float64 {
	n := g.store.OccupancyCount(loc)
	if n == 0 {
		return 0
	}
	return float64(n) * g.turnover.At(loc)
}

// refreshLocation recomputes loc's alias weight from current occupancy.
// Called whenever a lineage arrives at or departs from loc.
func (g *Gillespie) refreshLocation(loc necsim.Location) {
	g.alias.UpdateOrAdd(g.locIndex(loc), g.rateAt(loc))
}

// occupantByChoice returns the choice-th (0-indexed) occupied slot at loc.
func (g *Gillespie) occupantByChoice(loc necsim.Location, choice int) *necsim.Lineage {
	cap := g.h.CapacityAt(loc)
	seen := 0
	for idx := uint32(0); idx < cap; idx++ {
		occ := g.store.OccupantAt(necsim.IndexedLocation{Location: loc, Index: idx})
		if occ == nil {
			continue
		}
		if seen == choice {
			return occ
		}
		seen++
	}
	return nil
}

// PopNext draws the next event time from the aggregate rate, then a
// location proportional to its rate, then a resident uniformly.
func (g *Gillespie) PopNext() (necsim.GlobalReference, float64, bool) {
	total := g.alias.TotalWeight()
	if total <= 0 {
		return 0, 0, false
	}
	candidate := g.clock + necsimrng.Exp(g.rng, total)
	t := necsimrng.NextEventTime(g.clock, candidate)
	g.clock = t

	locIdx, ok := g.alias.Sample(g.rng)
	if !ok {
		return 0, 0, false
	}
	loc := g.locFromIndex(locIdx)
	n := g.store.OccupancyCount(loc)
	if n == 0 {
		return 0, 0, false
	}
	occ := g.occupantByChoice(loc, g.rng.Intn(n))
	if occ == nil {
		return 0, 0, false
	}

	g.pendingOrigin[occ.GlobalRef] = loc
	return occ.GlobalRef, t, true
}

// Reinsert refreshes the rate rows affected by a non-terminal dispersal:
// the vacated origin and the newly occupied target.
func (g *Gillespie) Reinsert(ref necsim.GlobalReference) {
	if origin, ok := g.pendingOrigin[ref]; ok {
		g.refreshLocation(origin)
		delete(g.pendingOrigin, ref)
	}
	if l, ok := g.store.ByReference(ref); ok && l.IndexedLocation != nil {
		g.refreshLocation(l.IndexedLocation.Location)
	}
}

// Remove refreshes the origin rate row after ref permanently leaves the
// schedule (speciation, terminal coalescence, or emigration).
func (g *Gillespie) Remove(ref necsim.GlobalReference) {
	if origin, ok := g.pendingOrigin[ref]; ok {
		g.refreshLocation(origin)
		delete(g.pendingOrigin, ref)
	}
}

// Len returns the number of lineages currently tracked by the backing
// store.
func (g *Gillespie) Len() int { return g.store.Len() }

// Clock returns the shared simulation clock's current value.
func (g *Gillespie) Clock() float64 { return g.clock }
