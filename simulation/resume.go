package simulation

import (
	"math/rand"

	"github.com/kentwait/necsimgo/coalescence"
	"github.com/kentwait/necsimgo/dispersal"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"

	necsim "github.com/kentwait/necsimgo"
)

// ResumeStrategy picks how a resumed lineage is placed back onto the
// landscape when its recorded slot is no longer free — the habitat may
// have been reconfigured between the pause and the resume, or another
// resumed lineage may already have claimed the slot.
type ResumeStrategy uint8

const (
	// ResumeAbort refuses to resume at all if any paused lineage's slot is
	// no longer available, reporting a ResumeInconsistencyError.
	ResumeAbort ResumeStrategy = iota
	// ResumeCoalescence treats the conflict as an immediate coalescence
	// with whichever lineage already holds the slot.
	ResumeCoalescence
	// ResumeDispersal redraws a fresh target from the lineage's recorded
	// origin via the configured dispersal kernel.
	ResumeDispersal
	// ResumeUniformDispersal redraws a fresh target uniformly across every
	// habitable location, ignoring the dispersal kernel entirely.
	ResumeUniformDispersal
)

// ResumePlacement is the outcome of placing one paused lineage back into a
// CoherentSimulation's store.
type ResumePlacement struct {
	// Coalesced reports whether the lineage was immediately coalesced
	// into an existing occupant rather than inserted: always under
	// ResumeCoalescence, and under ResumeDispersal/ResumeUniformDispersal
	// when the redrawn target's coalescence check finds an occupant.
	Coalesced bool
	Parent    necsim.GlobalReference
}

// ResumeCoherent reinserts every paused lineage into store (and, via
// reinsert, into sched) using strategy to resolve any slot conflict.
// Lineages terminated on resume (ResumeCoalescence hits) are reported via
// reinsert's caller; ResumeCoherent itself only mutates store.
func ResumeCoherent(
	paused []PausedLineage,
	strategy ResumeStrategy,
	h habitat.Habitat,
	store *lineagestore.Coherent,
	coalescer coalescence.Sampler,
	d dispersal.Sampler,
	rng *rand.Rand,
	reinsert func(ref necsim.GlobalReference),
) ([]ResumePlacement, error) {
	placements := make([]ResumePlacement, 0, len(paused))

	for _, p := range paused {
		lineage := p.Lineage
		if lineage.IndexedLocation == nil {
			return nil, necsim.NewSimError(necsim.ResumeInconsistencyError,
				"paused lineage %d has no recorded location", lineage.GlobalRef)
		}
		want := *lineage.IndexedLocation

		if !h.Contains(want.Location) || want.Index >= h.CapacityAt(want.Location) {
			width, height := h.Extent()
			return nil, necsim.NewSimError(necsim.ResumeInconsistencyError,
				necsim.OutOfExtentError, want.Location, width, height)
		}

		occ := store.OccupantAt(want)
		if occ == nil {
			l := lineage
			store.Insert(&l, want)
			reinsert(l.GlobalRef)
			placements = append(placements, ResumePlacement{})
			continue
		}

		switch strategy {
		case ResumeAbort:
			return nil, necsim.NewSimError(necsim.ResumeInconsistencyError,
				"slot %s is already occupied by lineage %d on resume", want, occ.GlobalRef)

		case ResumeCoalescence:
			placements = append(placements, ResumePlacement{Coalesced: true, Parent: occ.GlobalRef})

		case ResumeDispersal, ResumeUniformDispersal:
			target := want.Location
			if strategy == ResumeDispersal {
				target = d.Sample(want.Location, rng)
			} else {
				target = uniformHabitableLocation(h, rng)
			}
			outcome := coalescer.Sample(target, store, rng, 0)
			if outcome.Coalesced {
				placements = append(placements, ResumePlacement{Coalesced: true, Parent: outcome.Occupant.GlobalRef})
				continue
			}
			l := lineage
			il := necsim.IndexedLocation{Location: target, Index: outcome.Index}
			store.Insert(&l, il)
			reinsert(l.GlobalRef)
			placements = append(placements, ResumePlacement{})

		default:
			return nil, necsim.NewSimError(necsim.ConfigurationError, "unknown resume strategy %d", strategy)
		}
	}

	return placements, nil
}

// uniformHabitableLocation draws a location uniformly among every location
// with nonzero capacity, by rejection sampling over the full extent. Used
// only by ResumeUniformDispersal, an operation expected to run a handful of
// times per resumed run, so rejection sampling's worst case is immaterial.
func uniformHabitableLocation(h habitat.Habitat, rng *rand.Rand) necsim.Location {
	width, height := h.Extent()
	for {
		loc := necsim.Location{X: uint32(rng.Int63n(int64(width))), Y: uint32(rng.Int63n(int64(height)))}
		if h.CapacityAt(loc) > 0 {
			return loc
		}
	}
}

// ResumeIndependent reinserts every paused lineage into store and
// reschedules it; the Independent algorithm has no shared occupancy to
// conflict against, so no ResumeStrategy is needed; a lineage resumes
// exactly where it was paused.
func ResumeIndependent(paused []PausedLineage, store *lineagestore.Independent, reinsert func(ref necsim.GlobalReference)) {
	for _, p := range paused {
		l := p.Lineage
		store.Insert(&l)
		reinsert(l.GlobalRef)
	}
}
