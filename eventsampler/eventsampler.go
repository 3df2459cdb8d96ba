// Package eventsampler implements the C7 event sampler cog: given a
// lineage at its prior location and the next event time, decides which of
// {speciation, dispersal-with-coalescence, dispersal-only, emigration}
// occurs. Grounded on interhost_process.go/
// intrahost_process.go's branch-on-rv.Binomial decision structure,
// generalized from a binary transmission decision to the four-way split.
package eventsampler

import (
	"math/rand"

	"github.com/kentwait/necsimgo/coalescence"
	"github.com/kentwait/necsimgo/dispersal"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"

	necsim "github.com/kentwait/necsimgo"
)

// EmigrationCheck is the minimal contract this package needs from the C8
// cog, avoiding an import of the partition package (which has no need to
// know about event sampling).
type EmigrationCheck interface {
	ShouldEmigrate(origin, target necsim.Location, rng *rand.Rand) bool
}

// Outcome is the result of evaluating one event for one lineage.
type Outcome struct {
	Event      necsim.Event
	Emigrate   bool // if true, Event is a zero Event and Migrating is populated
	Migrating  necsim.MigratingLineage
	Dispersed  bool // true if the lineage moved and must be re-inserted (non-terminal, non-emigrating dispersal)
	NewIndexed necsim.IndexedLocation
}

// Unconditional is the non-separable event sampler: draws a single
// u in [0,1), decides speciation vs dispersal, then consults the
// coalescence sampler (steps 1-2, then 4-5 without a
// conditional 3-way split).
type Unconditional struct {
	Habitat      habitat.Habitat
	Speciation   SpeciationProbability
	Dispersal    dispersal.Sampler
	Coalescence  coalescence.Sampler
	Emigration   EmigrationCheck
}

// SpeciationProbability mirrors habitat.SpeciationProbability's contract,
// declared locally to avoid a cyclic import.
type SpeciationProbability interface {
	At(loc necsim.Location) float64
}

// Sample evaluates the next event for lineage at priorTime/eventTime. It
// reads store but never mutates it: a non-terminal dispersal is reported
// through Outcome.Dispersed and Outcome.NewIndexed. The caller is
// responsible for updating store and for removing the lineage from the
// active-lineage sampler on speciation, coalescence, or emigration.
func (u Unconditional) Sample(lineage *necsim.Lineage, origin necsim.Location, priorTime, eventTime float64, store *lineagestore.Coherent, rng *rand.Rand) Outcome {
	uDraw := rng.Float64()
	nu := u.Speciation.At(origin)

	if uDraw < nu {
		return Outcome{Event: necsim.Event{
			Kind: necsim.Speciation, Lineage: lineage.GlobalRef,
			Origin: origin, OriginIndex: lineage.IndexedLocation.Index,
			PriorTime: priorTime, EventTime: eventTime,
		}}
	}

	target := u.Dispersal.Sample(origin, rng)

	if u.Emigration != nil && u.Emigration.ShouldEmigrate(origin, target, rng) {
		return Outcome{
			Emigrate: true,
			Migrating: necsim.MigratingLineage{
				Lineage: lineage.Clone(), PriorTime: priorTime, EventTime: eventTime,
				Origin: origin, Target: target,
			},
		}
	}

	outcome := u.Coalescence.Sample(target, store, rng, lineage.GlobalRef)
	if outcome.Coalesced {
		parent := outcome.Occupant.GlobalRef
		return Outcome{Event: necsim.Event{
			Kind: necsim.Dispersal, Lineage: lineage.GlobalRef,
			Origin: origin, OriginIndex: lineage.IndexedLocation.Index, Target: target,
			PriorTime: priorTime, EventTime: eventTime,
			Interaction: necsim.Coalescence, Parent: parent,
		}}
	}

	newIL := necsim.IndexedLocation{Location: target, Index: outcome.Index}
	return Outcome{
		Event: necsim.Event{
			Kind: necsim.Dispersal, Lineage: lineage.GlobalRef,
			Origin: origin, OriginIndex: lineage.IndexedLocation.Index, Target: target,
			PriorTime: priorTime, EventTime: eventTime,
			Interaction: necsim.NoInteraction,
		},
		Dispersed:  true,
		NewIndexed: newIL,
	}
}
