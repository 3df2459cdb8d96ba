// Package scheduler implements the C10 active-lineage sampler cog: the
// four strategies (Classical, Gillespie, Event-Skipping Gillespie,
// Independent) that pick which lineage acts next and at what time.
package scheduler

import (
	necsim "github.com/kentwait/necsimgo"
)

// ActiveLineageSampler picks the next (lineage, time) pair to step, or
// reports the schedule is empty.
type ActiveLineageSampler interface {
	// PopNext returns the next lineage to act and its event time, or ok
	// == false if no lineage remains active.
	PopNext() (ref necsim.GlobalReference, eventTime float64, ok bool)
	// Reinsert schedules ref again at its (already updated) next event
	// time, called after a non-terminal dispersal.
	Reinsert(ref necsim.GlobalReference)
	// Remove drops ref from the schedule permanently (speciation,
	// coalescence, or emigration).
	Remove(ref necsim.GlobalReference)
	// Len reports how many lineages remain scheduled.
	Len() int
}
