package scheduler

import (
	"container/heap"
	"math"
	"math/rand"

	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
	necsimrng "github.com/kentwait/necsimgo/rng"

	necsim "github.com/kentwait/necsimgo"
)

// IndependentMode selects the inter-event waiting-time distribution for
// the Independent algorithm.
type IndependentMode int

const (
	// Exponential draws Exp(rate): the continuous-time default.
	Exponential IndependentMode = iota
	// Poisson draws a Poisson-distributed integer number of generations.
	Poisson
	// Constant advances by a fixed step every event, for deterministic
	// generation-clocked scenarios.
	Constant
)

// entry is one scheduled lineage in the per-lineage min-heap.
type entry struct {
	ref necsim.GlobalReference
	t   float64
}

// Independent is the Independent active-lineage sampler:
// each lineage advances on its own primeable RNG stream, independently of
// every other lineage, so the simulation can be partitioned arbitrarily
// with no coordination beyond re-deriving the same stream. Coalescence is
// not visible locally; it is detected out-of-band by deduplicating
// SpeciationSample fingerprints in a bounded LRU cache.
type Independent struct {
	prime    *necsimrng.Primeable
	store    *lineagestore.Independent
	dedup    *lineagestore.DedupLRU
	turnover habitat.TurnoverRate
	mode     IndependentMode
	// deltaT is the generation step size: the Exponential mode's rate
	// scale, the Poisson mode's grid spacing, and the Constant mode's
	// fixed step.
	deltaT float64

	eventCounter map[necsim.GlobalReference]uint64
	entries      []entry
	posOf        map[necsim.GlobalReference]int
}

// NewIndependent constructs an Independent sampler over store's current
// lineages, priming each one's first event draw. turnover supplies the
// per-location rate λ(loc) required by the Exponential and Poisson modes;
// it is consulted by location, not globally, so a heterogeneous landscape
// still advances each lineage at its own deme's rate. dedupCapacity bounds
// the coalescence-detection cache.
func NewIndependent(prime *necsimrng.Primeable, store *lineagestore.Independent, turnover habitat.TurnoverRate, mode IndependentMode, deltaT float64, dedupCapacity int) *Independent {
	s := &Independent{
		prime: prime, store: store, dedup: lineagestore.NewDedupLRU(dedupCapacity),
		turnover: turnover, mode: mode, deltaT: deltaT,
		eventCounter: make(map[necsim.GlobalReference]uint64),
		posOf:        make(map[necsim.GlobalReference]int),
	}
	for _, l := range store.All() {
		s.scheduleNext(l.GlobalRef, l.LastEventTime)
	}
	return s
}

// rateAt returns λ(loc), or 0 if no turnover rate was supplied.
func (s *Independent) rateAt(loc necsim.Location) float64 {
	if s.turnover == nil {
		return 0
	}
	return s.turnover.At(loc)
}

// nextEventTime computes the absolute next event time for a lineage
// currently at loc, last acted on at lastEventTime, per spec §4.4.4:
//
//   - Exponential: t_{k+1} = t_k + Exp(λ(loc)·Δt).
//   - Poisson: grid-aligned at multiples of Δt. The candidate boundary is
//     the first grid point strictly after t_k; it is accepted with
//     probability 1 - exp(-λ(loc)·Δt), and a rejection advances to the next
//     boundary and retries. The event time is the accepted boundary +
//     Exp(λ(loc)), an offset that may reach past the following grid point.
//   - Constant: t_{k+1} = t_k + Δt, ignoring λ entirely.
func (s *Independent) nextEventTime(r *rand.Rand, loc necsim.Location, lastEventTime float64) float64 {
	switch s.mode {
	case Poisson:
		lambda := s.rateAt(loc)
		if lambda <= 0 || s.deltaT <= 0 {
			return math.Inf(1)
		}
		accept := 1 - math.Exp(-lambda*s.deltaT)
		boundary := math.Ceil(lastEventTime/s.deltaT) * s.deltaT
		if boundary <= lastEventTime {
			boundary += s.deltaT
		}
		for {
			if r.Float64() < accept {
				return boundary + necsimrng.Exp(r, lambda)
			}
			boundary += s.deltaT
		}
	case Constant:
		return lastEventTime + s.deltaT
	default:
		return lastEventTime + necsimrng.Exp(r, s.rateAt(loc)*s.deltaT)
	}
}

// scheduleNext primes ref's stream at its current event counter, draws its
// next event time from lastEventTime at its current location, and pushes
// the resulting (ref, t) pair onto the heap. The waiting-time draw primes
// on the even sub-key 2·ec; the event decision itself primes on the odd
// sub-key 2·ec+1 (see simulation.IndependentSimulation), so the two are
// independent rather than replaying the same stream prefix.
func (s *Independent) scheduleNext(ref necsim.GlobalReference, lastEventTime float64) {
	ec := s.eventCounter[ref]
	src := s.prime.Prime(ref, ec<<1)
	loc := necsim.Location{}
	if l, ok := s.store.ByReference(ref); ok && l.IndexedLocation != nil {
		loc = l.IndexedLocation.Location
	}
	candidate := s.nextEventTime(src.Rand, loc, lastEventTime)
	t := necsimrng.NextEventTime(lastEventTime, candidate)
	s.eventCounter[ref] = ec + 1
	heap.Push(s, entry{ref: ref, t: t})
}

// PopNext pops the lineage with the earliest next event time.
func (s *Independent) PopNext() (necsim.GlobalReference, float64, bool) {
	if len(s.entries) == 0 {
		return 0, 0, false
	}
	e := heap.Pop(s).(entry)
	return e.ref, e.t, true
}

// Reinsert draws ref's next inter-event time (using its just-updated
// LastEventTime, as recorded in the backing store) and re-schedules it.
func (s *Independent) Reinsert(ref necsim.GlobalReference) {
	l, ok := s.store.ByReference(ref)
	last := 0.0
	if ok {
		last = l.LastEventTime
	}
	s.scheduleNext(ref, last)
}

// ScheduleAt pushes ref at a previously drawn event time without priming a
// fresh draw or advancing its event counter. Used when re-admitting a
// lineage that was set aside by a pause bound: the waiting-time draw it was
// popped with is replayed rather than re-rolled, keeping the continuation
// identical to an uninterrupted run.
func (s *Independent) ScheduleAt(ref necsim.GlobalReference, t float64) {
	heap.Push(s, entry{ref: ref, t: t})
}

// SetEventCounter restores ref's primeable-stream position, used when
// rebuilding a sampler from a persisted pause state.
func (s *Independent) SetEventCounter(ref necsim.GlobalReference, ec uint64) {
	s.eventCounter[ref] = ec
}

// Remove drops ref from the schedule permanently and forgets its event
// counter.
func (s *Independent) Remove(ref necsim.GlobalReference) {
	if i, ok := s.posOf[ref]; ok {
		heap.Remove(s, i)
	}
	delete(s.eventCounter, ref)
}

// Len returns the number of lineages currently scheduled.
func (s *Independent) Len() int { return len(s.entries) }

// EventCounterOf returns the event-counter value that was primed to draw
// ref's most recently popped event (eventCounter[ref]-1, since scheduleNext
// advances the stored counter immediately after priming it). Used by the
// simulation layer to build the out-of-band coalescence fingerprint for
// CheckCoalescence.
func (s *Independent) EventCounterOf(ref necsim.GlobalReference) uint64 {
	ec := s.eventCounter[ref]
	if ec == 0 {
		return 0
	}
	return ec - 1
}

// TimeBucket quantises an event time onto the Δt generation grid. Two
// lineages whose events land in the same bucket are treated as
// simultaneous for coalescence-fingerprint purposes. Constant-mode events
// starting from time 0 sit on this grid, so there the bucket is exact; in
// the Exponential and Poisson modes it is a Δt-wide window.
func (s *Independent) TimeBucket(t float64) uint64 {
	if s.deltaT <= 0 {
		return math.Float64bits(t)
	}
	return uint64(math.Ceil(t / s.deltaT))
}

// CheckCoalescence tests whether the fingerprint (il, timeBucket, draw)
// has already been observed from the other side of a coalescence. Every
// component of the key is a pure function of the landing slot and the
// event's position on the generation grid — never of the acting lineage's
// identity or its private RNG stream — so both lineages of a coalescing
// pair compute the identical triple. Returns true if this lineage's event
// must yield (the other side already claimed the coalescence).
func (s *Independent) CheckCoalescence(il necsim.IndexedLocation, timeBucket uint64, draw uint64) bool {
	key := necsim.SpeciationSample{IndexedLocation: il, EventCounter: timeBucket, Draw: draw}
	return !s.dedup.TryInsert(key)
}

// heap.Interface implementation, over s.entries keyed by event time.

func (s *Independent) Less(i, j int) bool { return s.entries[i].t < s.entries[j].t }

func (s *Independent) Swap(i, j int) {
	s.entries[i], s.entries[j] = s.entries[j], s.entries[i]
	s.posOf[s.entries[i].ref] = i
	s.posOf[s.entries[j].ref] = j
}

func (s *Independent) Push(x interface{}) {
	e := x.(entry)
	s.posOf[e.ref] = len(s.entries)
	s.entries = append(s.entries, e)
}

func (s *Independent) Pop() interface{} {
	n := len(s.entries)
	e := s.entries[n-1]
	s.entries = s.entries[:n-1]
	delete(s.posOf, e.ref)
	return e
}
