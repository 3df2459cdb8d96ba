package eventsampler

import (
	"math/rand"

	"github.com/kentwait/necsimgo/coalescence"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"

	necsim "github.com/kentwait/necsimgo"
)

// Conditional is the separable event sampler required by the Event-Skipping
// active lineage sampler: it splits the u residue
// into three bins {speciation, out-dispersal, in-coalescence} with weights
// {ν, (1-ν)(1-P_self), (1-ν)·P_self·P_coal}, so that a self-dispersal that
// would be a no-op is never sampled in the first place.
type Conditional struct {
	Habitat     habitat.Habitat
	Speciation  SpeciationProbability
	Dispersal   SeparableDispersal
	Coalescence coalescence.Conditional
	Emigration  EmigrationCheck
}

// SeparableDispersal mirrors dispersal.SeparableSampler's contract,
// declared locally to avoid importing the dispersal package's RejectionFree
// concern into this package's public surface.
type SeparableDispersal interface {
	SelfDispersalProbability(origin necsim.Location) float64
	SampleNonSelf(origin necsim.Location, rng *rand.Rand) necsim.Location
}

// occupantOtherThan returns the occupant at (loc, idx) in store, or nil if
// the slot is empty or held by the acting lineage itself. The acting
// lineage is still physically occupying its own slot when Sample is called
// (the caller removes it from the store only once the outcome is known),
// so that slot must never count as a coalescence partner for itself.
func occupantOtherThan(store *lineagestore.Coherent, loc necsim.Location, idx uint32, exclude necsim.GlobalReference) *necsim.Lineage {
	occ := store.OccupantAt(necsim.IndexedLocation{Location: loc, Index: idx})
	if occ != nil && occ.GlobalRef == exclude {
		return nil
	}
	return occ
}

// Sample evaluates the next event using the three-bin split.
func (c Conditional) Sample(lineage *necsim.Lineage, origin necsim.Location, priorTime, eventTime float64, store *lineagestore.Coherent, rng *rand.Rand) Outcome {
	nu := c.Speciation.At(origin)
	pSelf := c.Dispersal.SelfDispersalProbability(origin)

	capAtOrigin := c.Habitat.CapacityAt(origin)
	n := 0
	for idx := uint32(0); idx < capAtOrigin; idx++ {
		if occupantOtherThan(store, origin, idx, lineage.GlobalRef) != nil {
			n++
		}
	}
	pCoalGivenSelf := 0.0
	if capAtOrigin > 0 {
		pCoalGivenSelf = float64(n) / float64(capAtOrigin)
	}

	wSpeciation := nu
	wOutDispersal := (1 - nu) * (1 - pSelf)
	wInCoalescence := (1 - nu) * pSelf * pCoalGivenSelf

	u := rng.Float64() * (wSpeciation + wOutDispersal + wInCoalescence)

	switch {
	case u < wSpeciation:
		return Outcome{Event: necsim.Event{
			Kind: necsim.Speciation, Lineage: lineage.GlobalRef,
			Origin: origin, OriginIndex: lineage.IndexedLocation.Index,
			PriorTime: priorTime, EventTime: eventTime,
		}}
	case u < wSpeciation+wOutDispersal:
		target := c.Dispersal.SampleNonSelf(origin, rng)

		if c.Emigration != nil && c.Emigration.ShouldEmigrate(origin, target, rng) {
			return Outcome{
				Emigrate: true,
				Migrating: necsim.MigratingLineage{
					Lineage: lineage.Clone(), PriorTime: priorTime, EventTime: eventTime,
					Origin: origin, Target: target,
				},
			}
		}

		outcome := c.Coalescence.Sample(target, store, rng, lineage.GlobalRef)
		if outcome.Coalesced {
			return Outcome{Event: necsim.Event{
				Kind: necsim.Dispersal, Lineage: lineage.GlobalRef,
				Origin: origin, OriginIndex: lineage.IndexedLocation.Index, Target: target,
				PriorTime: priorTime, EventTime: eventTime,
				Interaction: necsim.Coalescence, Parent: outcome.Occupant.GlobalRef,
			}}
		}
		return Outcome{
			Event: necsim.Event{
				Kind: necsim.Dispersal, Lineage: lineage.GlobalRef,
				Origin: origin, OriginIndex: lineage.IndexedLocation.Index, Target: target,
				PriorTime: priorTime, EventTime: eventTime,
				Interaction: necsim.NoInteraction,
			},
			Dispersed:  true,
			NewIndexed: necsim.IndexedLocation{Location: target, Index: outcome.Index},
		}
	default:
		// In-coalescence: a self-dispersal that lands on an occupant.
		// Choose uniformly among the n occupants at origin other than the
		// acting lineage itself.
		choice := rng.Intn(n)
		seen := 0
		for idx := uint32(0); idx < capAtOrigin; idx++ {
			occ := occupantOtherThan(store, origin, idx, lineage.GlobalRef)
			if occ == nil {
				continue
			}
			if seen == choice {
				return Outcome{Event: necsim.Event{
					Kind: necsim.Dispersal, Lineage: lineage.GlobalRef,
					Origin: origin, OriginIndex: lineage.IndexedLocation.Index, Target: origin,
					PriorTime: priorTime, EventTime: eventTime,
					Interaction: necsim.Coalescence, Parent: occ.GlobalRef,
				}}
			}
			seen++
		}
		panic("unreachable: in-coalescence bin selected with no occupant at origin")
	}
}
