package scheduler

import (
	"math/rand"

	"github.com/kentwait/necsimgo/dispersal"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
	"github.com/kentwait/necsimgo/scheduler/dynamicalias"

	necsim "github.com/kentwait/necsimgo"
	necsimrng "github.com/kentwait/necsimgo/rng"
)

// EventSkipping is the Event-Skipping Gillespie active-lineage sampler:
// like Gillespie, it samples a location proportional to
// its event rate then a resident uniformly, but the per-location rate is
// scaled by one minus the probability that a resident's event is a
// self-dispersal onto another occupant (see rateAt). Requires a
// RejectionFree separable dispersal kernel, checked at construction.
type EventSkipping struct {
	rng       *rand.Rand
	h         habitat.Habitat
	turnover  habitat.TurnoverRate
	dispersal dispersal.SeparableSampler
	store     *lineagestore.Coherent
	alias     *dynamicalias.Indexed
	width     uint32
	clock     float64

	pendingOrigin map[necsim.GlobalReference]necsim.Location
}

// NewEventSkipping constructs an EventSkipping sampler. It returns an
// error if d is not rejection-free, since a rejection-based kernel cannot
// give the O(1) guarantee the algorithm depends on.
func NewEventSkipping(rng *rand.Rand, h habitat.Habitat, turnover habitat.TurnoverRate, d dispersal.SeparableSampler, store *lineagestore.Coherent) (*EventSkipping, error) {
	if !d.RejectionFree() {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			"event-skipping algorithm requires a rejection-free separable dispersal kernel")
	}
	width, height := h.Extent()
	e := &EventSkipping{
		rng: rng, h: h, turnover: turnover, dispersal: d, store: store,
		alias: dynamicalias.New(), width: width,
		pendingOrigin: make(map[necsim.GlobalReference]necsim.Location),
	}
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			if h.CapacityAt(loc) == 0 {
				continue
			}
			e.refreshLocation(loc)
		}
	}
	return e, nil
}

func (e *EventSkipping) locIndex(loc necsim.Location) int {
	return int(loc.Y)*int(e.width) + int(loc.X)
}

func (e *EventSkipping) locFromIndex(idx int) necsim.Location {
	return necsim.Location{X: uint32(idx) % e.width, Y: uint32(idx) / e.width}
}

// rateAt computes occupancy*turnover*(1 - P_self*P_coalGivenSelf): the raw
// Gillespie rate scaled down by the probability that a resident's event is
// a self-dispersal onto another occupant. P_coalGivenSelf
// is (n-1)/capacity, not n/capacity: each of the n residents at loc excludes
// its own slot when computing the chance that its self-dispersal lands on
// another occupant, matching eventsampler.Conditional's per-lineage
// pCoalGivenSelf.
func (e *EventSkipping) rateAt(loc necsim.Location) float64 {
	n := e.store.OccupancyCount(loc)
	if n == 0 {
		return 0
	}
	cap := e.h.CapacityAt(loc)
	pSelf := e.dispersal.SelfDispersalProbability(loc)
	pCoalGivenSelf := 0.0
	if cap > 0 {
		pCoalGivenSelf = float64(n-1) / float64(cap)
	}
	return float64(n) * e.turnover.At(loc) * (1 - pSelf*pCoalGivenSelf)
}

func (e *EventSkipping) refreshLocation(loc necsim.Location) {
	e.alias.UpdateOrAdd(e.locIndex(loc), e.rateAt(loc))
}

func (e *EventSkipping) occupantByChoice(loc necsim.Location, choice int) *necsim.Lineage {
	cap := e.h.CapacityAt(loc)
	seen := 0
	for idx := uint32(0); idx < cap; idx++ {
		occ := e.store.OccupantAt(necsim.IndexedLocation{Location: loc, Index: idx})
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

// PopNext draws the next event time and a reduced-rate-weighted location,
// then a resident uniformly.
func (e *EventSkipping) PopNext() (necsim.GlobalReference, float64, bool) {
	total := e.alias.TotalWeight()
	if total <= 0 {
		return 0, 0, false
	}
	candidate := e.clock + necsimrng.Exp(e.rng, total)
	t := necsimrng.NextEventTime(e.clock, candidate)
	e.clock = t

	locIdx, ok := e.alias.Sample(e.rng)
	if !ok {
		return 0, 0, false
	}
	loc := e.locFromIndex(locIdx)
	n := e.store.OccupancyCount(loc)
	if n == 0 {
		return 0, 0, false
	}
	occ := e.occupantByChoice(loc, e.rng.Intn(n))
	if occ == nil {
		return 0, 0, false
	}

	e.pendingOrigin[occ.GlobalRef] = loc
	return occ.GlobalRef, t, true
}

// Reinsert refreshes the vacated origin and the newly occupied target.
func (e *EventSkipping) Reinsert(ref necsim.GlobalReference) {
	if origin, ok := e.pendingOrigin[ref]; ok {
		e.refreshLocation(origin)
		delete(e.pendingOrigin, ref)
	}
	if l, ok := e.store.ByReference(ref); ok && l.IndexedLocation != nil {
		e.refreshLocation(l.IndexedLocation.Location)
	}
}

// Remove refreshes the origin rate row after ref permanently leaves the
// schedule.
func (e *EventSkipping) Remove(ref necsim.GlobalReference) {
	if origin, ok := e.pendingOrigin[ref]; ok {
		e.refreshLocation(origin)
		delete(e.pendingOrigin, ref)
	}
}

// Len returns the number of lineages currently tracked by the backing
// store.
func (e *EventSkipping) Len() int { return e.store.Len() }

// Clock returns the shared simulation clock's current value.
func (e *EventSkipping) Clock() float64 { return e.clock }
