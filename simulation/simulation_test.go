package simulation

import (
	"math/rand"
	"testing"

	"github.com/kentwait/necsimgo/coalescence"
	"github.com/kentwait/necsimgo/dispersal"
	"github.com/kentwait/necsimgo/eventsampler"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
	"github.com/kentwait/necsimgo/scheduler"

	necsim "github.com/kentwait/necsimgo"
)

// TestCoherentSimulationNonSpatialRunTerminates drives a 1x1, capacity-4
// non-spatial deme through to completion: every lineage must eventually
// speciate or coalesce, event times must strictly increase, and the
// schedule must empty out with no lineage left stranded.
func TestCoherentSimulationNonSpatialRunTerminates(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 4)
	origin := necsim.Location{X: 0, Y: 0}

	m, err := dispersal.NewMatrix(h, []float64{1})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	d := dispersal.NewInMemoryAlias(m)

	nu, err := habitat.NewUniformSpeciationProbability(0.1)
	if err != nil {
		t.Fatalf("NewUniformSpeciationProbability: %v", err)
	}

	store := lineagestore.NewCoherent(h)
	refs := []necsim.GlobalReference{2, 3, 4, 5}
	for i, ref := range refs {
		l := &necsim.Lineage{GlobalRef: ref}
		store.Insert(l, necsim.IndexedLocation{Location: origin, Index: uint32(i)})
	}

	rng := rand.New(rand.NewSource(42))
	sched := scheduler.NewClassical(rng, refs)

	sampler := eventsampler.Unconditional{
		Habitat: h, Speciation: nu, Dispersal: d,
		Coalescence: coalescence.Unconditional{H: h},
	}

	sim := &CoherentSimulation{
		Habitat:     h,
		Store:       store,
		Scheduler:   sched,
		EventSamp:   sampler,
		Coalescence: coalescence.Unconditional{H: h},
		RNG:         rng,
	}

	var events []necsim.Event
	sim.Reporter = reportCollector(func(e necsim.Event) error {
		events = append(events, e)
		return nil
	})

	if err := sim.Run(); err != nil {
		t.Fatalf("Run() returned an error: %v", err)
	}

	if got := sim.Len(); got != 0 {
		t.Fatalf("Len() after Run() = %d, want 0 (schedule should be fully drained)", got)
	}
	if got := store.Len(); got != 0 {
		t.Fatalf("store.Len() after Run() = %d, want 0 (every lineage should terminate)", got)
	}

	lastTime := 0.0
	terminal := 0
	for _, e := range events {
		if e.EventTime < lastTime {
			t.Fatalf("event times went backwards: %v after %v", e.EventTime, lastTime)
		}
		lastTime = e.EventTime
		if e.IsSpeciation() || e.IsCoalescence() {
			terminal++
		}
	}
	if terminal == 0 {
		t.Fatal("expected at least one terminal (speciation or coalescence) event")
	}
}

// TestCoherentSimulationGillespieAllCoalesce drives a 2x2 habitat of
// capacity-1 demes with uniform dispersal and zero speciation: with
// nowhere to speciate, all four lineages must funnel into one through
// exactly three coalescence events.
func TestCoherentSimulationGillespieAllCoalesce(t *testing.T) {
	h, err := habitat.NewInMemoryGrid(2, 2, []uint32{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("NewInMemoryGrid: %v", err)
	}

	weights := make([]float64, 16)
	for i := range weights {
		weights[i] = 0.25
	}
	m, err := dispersal.NewMatrix(h, weights)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	d := dispersal.NewInMemoryAlias(m)

	nu, err := habitat.NewUniformSpeciationProbability(0.0)
	if err != nil {
		t.Fatalf("NewUniformSpeciationProbability: %v", err)
	}
	turnover, err := habitat.NewUniformTurnoverRate(1.0)
	if err != nil {
		t.Fatalf("NewUniformTurnoverRate: %v", err)
	}

	store := lineagestore.NewCoherent(h)
	refs := []necsim.GlobalReference{2, 3, 4, 5}
	locs := []necsim.Location{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	for i, ref := range refs {
		store.Insert(&necsim.Lineage{GlobalRef: ref}, necsim.IndexedLocation{Location: locs[i], Index: 0})
	}

	rng := rand.New(rand.NewSource(7))
	sim := &CoherentSimulation{
		Habitat: h, Store: store,
		Scheduler: scheduler.NewGillespie(rng, h, turnover, store),
		EventSamp: eventsampler.Unconditional{
			Habitat: h, Speciation: nu, Dispersal: d,
			Coalescence: coalescence.Unconditional{H: h},
		},
		Coalescence: coalescence.Unconditional{H: h},
		RNG:         rng,
		HaltAtMRCA:  true,
	}

	coalescences, speciations := 0, 0
	lastTime := 0.0
	sim.Reporter = reportCollector(func(e necsim.Event) error {
		if e.EventTime <= lastTime {
			t.Fatalf("event time %v did not strictly increase past %v", e.EventTime, lastTime)
		}
		lastTime = e.EventTime
		if e.IsSpeciation() {
			speciations++
		}
		if e.IsCoalescence() {
			coalescences++
		}
		return nil
	})

	if err := sim.Run(); err != nil {
		t.Fatalf("Run(): %v", err)
	}

	if speciations != 0 {
		t.Fatalf("speciation events = %d, want 0 with zero speciation probability", speciations)
	}
	if coalescences != 3 {
		t.Fatalf("coalescence events = %d, want 3 (four lineages into one)", coalescences)
	}
	if got := store.Len(); got != 1 {
		t.Fatalf("store.Len() after Run = %d, want the single surviving lineage", got)
	}
}

// TestCoherentSimulationPauseSetsAsideThenResumes pauses a run at a low
// time bound, checks the set-aside lineages left the store, then lifts the
// bound and re-runs: every origin must still be accounted for by a
// speciation, a coalescence, or survival to the end.
func TestCoherentSimulationPauseSetsAsideThenResumes(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 4)
	origin := necsim.Location{X: 0, Y: 0}

	m, err := dispersal.NewMatrix(h, []float64{1})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	d := dispersal.NewInMemoryAlias(m)

	nu, err := habitat.NewUniformSpeciationProbability(0.05)
	if err != nil {
		t.Fatalf("NewUniformSpeciationProbability: %v", err)
	}

	store := lineagestore.NewCoherent(h)
	refs := []necsim.GlobalReference{2, 3, 4, 5}
	for i, ref := range refs {
		store.Insert(&necsim.Lineage{GlobalRef: ref}, necsim.IndexedLocation{Location: origin, Index: uint32(i)})
	}

	rng := rand.New(rand.NewSource(7))
	sim := &CoherentSimulation{
		Habitat: h, Store: store,
		Scheduler: scheduler.NewClassical(rng, refs),
		EventSamp: eventsampler.Unconditional{
			Habitat: h, Speciation: nu, Dispersal: d,
			Coalescence: coalescence.Unconditional{H: h},
		},
		Coalescence: coalescence.Unconditional{H: h},
		Dispersal:   d,
		RNG:         rng,
		Pause:       &PauseBound{Before: 0.25},
	}

	terminal := 0
	sim.Reporter = reportCollector(func(e necsim.Event) error {
		if e.IsSpeciation() || e.IsCoalescence() {
			terminal++
		}
		return nil
	})

	if err := sim.Run(); err != nil {
		t.Fatalf("paused Run(): %v", err)
	}
	if len(sim.Paused())+terminal+store.Len() == 0 {
		t.Fatal("nothing paused, terminated, or stored after the bounded run")
	}
	for _, p := range sim.Paused() {
		if p.EventTime < 0.25 {
			t.Fatalf("lineage %d was set aside at %v, below the bound", p.Lineage.GlobalRef, p.EventTime)
		}
		if occ := store.OccupantAt(*p.Lineage.IndexedLocation); occ != nil {
			t.Fatalf("set-aside lineage %d still occupies its slot", p.Lineage.GlobalRef)
		}
	}

	sim.Pause = nil
	if err := sim.Run(); err != nil {
		t.Fatalf("resumed Run(): %v", err)
	}
	if got := sim.Len(); got != 0 {
		t.Fatalf("Len() after resume = %d, want 0", got)
	}
	if terminal != len(refs) {
		t.Fatalf("terminal events after resume = %d, want %d (mass conservation)", terminal, len(refs))
	}
}

// reportCollector adapts a plain function to the reporter.Reporter
// interface without needing a concrete reporter implementation.
type reportCollector func(necsim.Event) error

func (r reportCollector) Report(e necsim.Event) error { return r(e) }
func (r reportCollector) Close() error                { return nil }
