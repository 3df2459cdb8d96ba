package simulation

import (
	"math/rand"

	"github.com/kentwait/necsimgo/coalescence"
	"github.com/kentwait/necsimgo/dispersal"
	"github.com/kentwait/necsimgo/eventsampler"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
	"github.com/kentwait/necsimgo/partition"
	"github.com/kentwait/necsimgo/reporter"
	"github.com/kentwait/necsimgo/scheduler"

	necsim "github.com/kentwait/necsimgo"
	necsimrng "github.com/kentwait/necsimgo/rng"
)

// EventSampler is the contract this package needs from the C7 cog;
// eventsampler.Unconditional and eventsampler.Conditional both satisfy it
// with a value receiver.
type EventSampler interface {
	Sample(lineage *necsim.Lineage, origin necsim.Location, priorTime, eventTime float64,
		store *lineagestore.Coherent, rng *rand.Rand) eventsampler.Outcome
}

// PausedLineage is a lineage set aside by a PauseBound, carrying exactly
// what Resume needs to reinsert it: the lineage's full state and the event
// time that was already drawn for it when the bound cut it off.
type PausedLineage struct {
	Lineage   necsim.Lineage
	EventTime float64
}

// CoherentSimulation drives the Classical, Gillespie, and Event-Skipping
// active-lineage samplers, all of which require a globally-coherent
// lineage store. It owns no cog itself; every field is one of the
// already-built cog implementations, wired together by the run loop.
type CoherentSimulation struct {
	Habitat     habitat.Habitat
	Store       *lineagestore.Coherent
	Scheduler   scheduler.ActiveLineageSampler
	EventSamp   EventSampler
	Coalescence coalescence.Sampler
	Emigration  partition.EmigrationExit
	Immigration partition.ImmigrationEntry
	Reporter    reporter.Reporter
	RNG         *rand.Rand
	Pause       *PauseBound

	// HaltAtMRCA stops Run once at most one lineage remains in the store.
	// With a zero speciation probability a lone survivor can neither
	// speciate nor coalesce, so its further dispersals carry no
	// genealogical information; the sample's history is complete at its
	// most recent common ancestor. Leave false whenever speciation is
	// possible — the last lineage still has to run until it speciates.
	HaltAtMRCA bool

	// Dispersal is consulted only when re-admitting paused lineages under
	// ResumeDispersal; nil is fine for the other strategies.
	Dispersal dispersal.Sampler
	// Resume picks how a re-admitted lineage is placed when its recorded
	// slot has been claimed in the meantime (by an immigrant, typically).
	Resume ResumeStrategy

	// Outbox receives a MigratingLineage whenever the emigration exit
	// decides a dispersal leaves this partition. Nil in monolithic mode,
	// where Emigration is partition.Never and Outbox is never called.
	Outbox func(necsim.MigratingLineage)

	paused []PausedLineage
}

// Run drains the active-lineage schedule, applying one event per
// iteration, until either the schedule empties or every remaining
// lineage has crossed the pause bound. It does not drain immigration
// itself; callers that partition across threads/processes call
// DrainImmigration between synchronisation points (see partition/threads.go).
func (s *CoherentSimulation) Run() error {
	if err := s.admitPaused(); err != nil {
		return err
	}

	for {
		if s.HaltAtMRCA && s.Store.Len() <= 1 {
			return nil
		}

		ref, eventTime, ok := s.Scheduler.PopNext()
		if !ok {
			return nil
		}

		lineage, ok := s.Store.ByReference(ref)
		if !ok {
			// Already consumed as someone else's coalescence partner.
			s.Scheduler.Remove(ref)
			continue
		}

		if s.Pause != nil && s.Pause.ShouldPause(eventTime) {
			// Set the lineage fully aside: it leaves the store as well as
			// the schedule, so occupancy-driven samplers stop re-drawing
			// events for it and Run can terminate.
			il := *lineage.IndexedLocation
			s.paused = append(s.paused, PausedLineage{Lineage: lineage.Clone(), EventTime: eventTime})
			s.Store.Remove(il)
			s.Scheduler.Remove(ref)
			continue
		}

		if err := s.step(lineage, eventTime); err != nil {
			return err
		}
	}
}

// admitPaused puts every set-aside lineage back onto the landscape before a
// run round starts, resolving slot conflicts (an immigrant may have claimed
// a paused lineage's slot between rounds) with the configured Resume
// strategy. A conflict resolved as a coalescence is emitted as a synthetic
// coalescence event at the lineage's recorded pause time.
func (s *CoherentSimulation) admitPaused() error {
	if len(s.paused) == 0 {
		return nil
	}
	paused := s.paused
	s.paused = nil

	placements, err := ResumeCoherent(paused, s.Resume, s.Habitat, s.Store, s.Coalescence, s.Dispersal, s.RNG,
		func(ref necsim.GlobalReference) { s.Scheduler.Reinsert(ref) })
	if err != nil {
		return err
	}

	for i, p := range placements {
		if !p.Coalesced {
			continue
		}
		l := paused[i].Lineage
		event := necsim.Event{
			Kind: necsim.Dispersal, Lineage: l.GlobalRef,
			Origin: l.IndexedLocation.Location, Target: l.IndexedLocation.Location,
			PriorTime: l.LastEventTime, EventTime: paused[i].EventTime,
			Interaction: necsim.Coalescence, Parent: p.Parent,
		}
		if s.Reporter != nil {
			if err := s.Reporter.Report(event); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *CoherentSimulation) step(lineage *necsim.Lineage, eventTime float64) error {
	origin := lineage.IndexedLocation.Location
	originIdx := lineage.IndexedLocation.Index
	priorTime := lineage.LastEventTime
	ref := lineage.GlobalRef

	outcome := s.EventSamp.Sample(lineage, origin, priorTime, eventTime, s.Store, s.RNG)

	if outcome.Emigrate {
		s.Store.Remove(necsim.IndexedLocation{Location: origin, Index: originIdx})
		s.Scheduler.Remove(ref)
		if s.Outbox != nil {
			s.Outbox(outcome.Migrating)
		}
		return nil
	}

	lineage.LastEventTime = eventTime

	switch {
	case outcome.Event.IsSpeciation():
		s.Store.Remove(necsim.IndexedLocation{Location: origin, Index: originIdx})
		s.Scheduler.Remove(ref)
	case outcome.Event.IsCoalescence():
		s.Store.Remove(necsim.IndexedLocation{Location: origin, Index: originIdx})
		s.Scheduler.Remove(ref)
	case outcome.Dispersed:
		s.Store.Remove(necsim.IndexedLocation{Location: origin, Index: originIdx})
		s.Store.Insert(lineage, outcome.NewIndexed)
		s.Scheduler.Reinsert(ref)
	default:
		// Self-dispersal onto the same, still-empty physical slot: no
		// store change, but the clock has still advanced.
		s.Scheduler.Reinsert(ref)
	}

	if s.Reporter != nil {
		return s.Reporter.Report(outcome.Event)
	}
	return nil
}

// ApplyImmigrant processes one lineage that has just arrived from another
// partition: it performs the coalescence check against the local store
// (deferred at emigration time, since the sending partition cannot see
// this partition's occupancy) and either reports a coalescence or inserts
// the lineage and schedules it.
func (s *CoherentSimulation) ApplyImmigrant(m necsim.MigratingLineage) error {
	outcome := s.Coalescence.Sample(m.Target, s.Store, s.RNG, 0)

	event := necsim.Event{
		Kind: necsim.Dispersal, Lineage: m.Lineage.GlobalRef,
		Origin: m.Origin, Target: m.Target,
		PriorTime: m.PriorTime, EventTime: m.EventTime,
	}
	if outcome.Coalesced {
		event.Interaction = necsim.Coalescence
		event.Parent = outcome.Occupant.GlobalRef
		if s.Reporter != nil {
			return s.Reporter.Report(event)
		}
		return nil
	}

	lineage := m.Lineage.Clone()
	lineage.LastEventTime = m.EventTime
	s.Store.Insert(&lineage, necsim.IndexedLocation{Location: m.Target, Index: outcome.Index})
	s.Scheduler.Reinsert(lineage.GlobalRef)

	if s.Reporter != nil {
		return s.Reporter.Report(event)
	}
	return nil
}

// DrainImmigration applies every lineage buffered by Immigration since the
// last call.
func (s *CoherentSimulation) DrainImmigration() error {
	for _, m := range s.Immigration.Drain() {
		if err := s.ApplyImmigrant(m); err != nil {
			return err
		}
	}
	return nil
}

// Paused returns the lineages set aside by the pause bound, for Resume.
func (s *CoherentSimulation) Paused() []PausedLineage { return s.paused }

// Len reports how many lineages remain active in this partition,
// including lineages set aside by the pause bound (they resume next
// round), satisfying partition.Threads's CoherentPartition contract.
func (s *CoherentSimulation) Len() int { return s.Scheduler.Len() + len(s.paused) }

// SetPauseBound installs (or replaces) the pause bound that gates Run,
// used by partition.Threads to advance a synchronisation barrier.
func (s *CoherentSimulation) SetPauseBound(before float64) { s.Pause = &PauseBound{Before: before} }

// Clock reports the partition's shared simulation clock, for the
// Averaging sync mode. Only Classical, Gillespie and EventSkipping expose
// one; for any other scheduler Clock returns 0.
func (s *CoherentSimulation) Clock() float64 {
	type clocked interface{ Clock() float64 }
	if c, ok := s.Scheduler.(clocked); ok {
		return c.Clock()
	}
	return 0
}

// IndependentSimulation drives the Independent active-lineage sampler: no
// cross-lineage occupancy is visible locally, so coalescence is detected
// out-of-band via a bounded dedup cache over (target slot, Δt time bucket
// of the event, chosen replacement slot) fingerprints.
type IndependentSimulation struct {
	Habitat     habitat.Habitat
	Speciation  habitat.SpeciationProbability
	Dispersal   dispersal.Sampler
	Store       *lineagestore.Independent
	Scheduler   *scheduler.Independent
	// Prime re-derives each event's per-(lineage, event-counter) RNG
	// stream, so the event decision (speciation vs dispersal, target,
	// replacement slot) is reproducible independent of which worker
	// simulates the lineage.
	Prime       *necsimrng.Primeable
	Emigration  partition.EmigrationExit
	Immigration partition.ImmigrationEntry
	Reporter    reporter.Reporter
	Pause       *PauseBound

	Outbox func(necsim.MigratingLineage)

	paused []PausedLineage
}

// Run drains the per-lineage min-heap schedule, applying one event per
// iteration.
func (s *IndependentSimulation) Run() error {
	// Re-admit lineages set aside by an earlier, lower pause bound at the
	// event times already drawn for them, so the continuation replays
	// exactly the stream an uninterrupted run would have produced.
	for _, p := range s.paused {
		s.Scheduler.ScheduleAt(p.Lineage.GlobalRef, p.EventTime)
	}
	s.paused = nil

	for {
		ref, eventTime, ok := s.Scheduler.PopNext()
		if !ok {
			return nil
		}

		lineage, ok := s.Store.ByReference(ref)
		if !ok {
			continue
		}

		if s.Pause != nil && s.Pause.ShouldPause(eventTime) {
			s.paused = append(s.paused, PausedLineage{Lineage: lineage.Clone(), EventTime: eventTime})
			continue
		}

		if err := s.step(lineage, eventTime); err != nil {
			return err
		}
	}
}

func (s *IndependentSimulation) step(lineage *necsim.Lineage, eventTime float64) error {
	ref := lineage.GlobalRef
	origin := lineage.IndexedLocation.Location
	priorTime := lineage.LastEventTime

	// The scheduler's waiting-time draw primed the even sub-key 2·ec; the
	// event decision primes the odd sibling so its draws are independent
	// of the waiting time rather than replaying the same stream prefix.
	ec := s.Scheduler.EventCounterOf(ref)
	rng := s.Prime.Prime(ref, ec<<1|1).Rand
	nu := s.Speciation.At(origin)

	if rng.Float64() < nu {
		lineage.LastEventTime = eventTime
		s.Store.Remove(ref)
		s.Scheduler.Remove(ref)
		if s.Reporter != nil {
			return s.Reporter.Report(necsim.Event{
				Kind: necsim.Speciation, Lineage: ref, Origin: origin,
				PriorTime: priorTime, EventTime: eventTime,
			})
		}
		return nil
	}

	target := s.Dispersal.Sample(origin, rng)

	if s.Emigration != nil && s.Emigration.ShouldEmigrate(origin, target, rng) {
		lineage.LastEventTime = eventTime
		s.Store.Remove(ref)
		s.Scheduler.Remove(ref)
		if s.Outbox != nil {
			s.Outbox(necsim.MigratingLineage{
				Lineage: lineage.Clone(), PriorTime: priorTime, EventTime: eventTime,
				Origin: origin, Target: target,
			})
		}
		return nil
	}

	cap := s.Habitat.CapacityAt(target)
	var slot uint32
	if cap > 0 {
		slot = uint32(rng.Int63n(int64(cap)))
	}
	il := necsim.IndexedLocation{Location: target, Index: slot}

	event := necsim.Event{
		Kind: necsim.Dispersal, Lineage: ref, Origin: origin, Target: target,
		PriorTime: priorTime, EventTime: eventTime,
	}

	if s.Scheduler.CheckCoalescence(il, s.Scheduler.TimeBucket(eventTime), uint64(slot)) {
		// The other side of this coalescence already claimed it: this
		// lineage yields.
		event.Interaction = necsim.Coalescence
		lineage.LastEventTime = eventTime
		s.Store.Remove(ref)
		s.Scheduler.Remove(ref)
		if s.Reporter != nil {
			return s.Reporter.Report(event)
		}
		return nil
	}

	lineage.LastEventTime = eventTime
	lineage.IndexedLocation = &il
	s.Scheduler.Reinsert(ref)

	if s.Reporter != nil {
		return s.Reporter.Report(event)
	}
	return nil
}

// Paused returns the lineages set aside by the pause bound, for Resume.
func (s *IndependentSimulation) Paused() []PausedLineage { return s.paused }

// Len reports how many lineages remain active in this partition,
// including lineages set aside by the pause bound.
func (s *IndependentSimulation) Len() int { return s.Scheduler.Len() + len(s.paused) }

// SetPauseBound installs (or replaces) the pause bound that gates Run.
func (s *IndependentSimulation) SetPauseBound(before float64) { s.Pause = &PauseBound{Before: before} }

// DrainImmigration applies every lineage buffered by Immigration since the
// last call: each arrives with a known target but no local occupancy
// concept to check, so it is simply (re)inserted and scheduled.
func (s *IndependentSimulation) DrainImmigration() error {
	for _, m := range s.Immigration.Drain() {
		l := m.Lineage
		l.LastEventTime = m.EventTime
		il := necsim.IndexedLocation{Location: m.Target}
		l.IndexedLocation = &il
		s.Store.Insert(&l)
		s.Scheduler.Reinsert(l.GlobalRef)
	}
	return nil
}
