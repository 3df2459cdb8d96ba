package eventsampler

import (
	"math/rand"
	"testing"

	"github.com/kentwait/necsimgo/coalescence"
	"github.com/kentwait/necsimgo/dispersal"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"

	necsim "github.com/kentwait/necsimgo"
)

func singleLocationFixture(t *testing.T) (habitat.Habitat, *dispersal.InMemoryAlias, *lineagestore.Coherent) {
	t.Helper()
	h, err := habitat.NewInMemoryGrid(1, 1, []uint32{2})
	if err != nil {
		t.Fatalf("NewInMemoryGrid: %v", err)
	}
	m, err := dispersal.NewMatrix(h, []float64{1})
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	d := dispersal.NewInMemoryAlias(m)
	store := lineagestore.NewCoherent(h)
	return h, d, store
}

func TestUnconditionalSpeciatesWhenSpeciationProbabilityIsOne(t *testing.T) {
	h, d, store := singleLocationFixture(t)
	nu, err := habitat.NewUniformSpeciationProbability(1.0)
	if err != nil {
		t.Fatalf("NewUniformSpeciationProbability: %v", err)
	}
	u := Unconditional{Habitat: h, Speciation: nu, Dispersal: d, Coalescence: coalescence.Unconditional{H: h}}

	origin := necsim.Location{X: 0, Y: 0}
	l := &necsim.Lineage{GlobalRef: 1, IndexedLocation: &necsim.IndexedLocation{Location: origin, Index: 0}}
	store.Insert(l, *l.IndexedLocation)

	rng := rand.New(rand.NewSource(1))
	out := u.Sample(l, origin, 0, 1, store, rng)
	if out.Event.Kind != necsim.Speciation {
		t.Fatalf("Event.Kind = %v, want Speciation", out.Event.Kind)
	}
	if out.Emigrate || out.Dispersed {
		t.Fatal("a speciation outcome must not also emigrate or disperse")
	}
}

func TestUnconditionalDispersesOrCoalescesWhenSpeciationProbabilityIsZero(t *testing.T) {
	h, d, store := singleLocationFixture(t)
	nu, err := habitat.NewUniformSpeciationProbability(0.0)
	if err != nil {
		t.Fatalf("NewUniformSpeciationProbability: %v", err)
	}
	u := Unconditional{Habitat: h, Speciation: nu, Dispersal: d, Coalescence: coalescence.Unconditional{H: h}}

	origin := necsim.Location{X: 0, Y: 0}
	existing := &necsim.Lineage{GlobalRef: 1, IndexedLocation: &necsim.IndexedLocation{Location: origin, Index: 0}}
	store.Insert(existing, *existing.IndexedLocation)

	arriving := &necsim.Lineage{GlobalRef: 2, IndexedLocation: &necsim.IndexedLocation{Location: origin, Index: 1}}
	// Mirrors the real call pattern at CoherentSimulation.step: the acting
	// lineage is still occupying its own slot in store when its event is
	// sampled.
	store.Insert(arriving, *arriving.IndexedLocation)

	for seed := int64(0); seed < 20; seed++ {
		rng := rand.New(rand.NewSource(seed))
		out := u.Sample(arriving, origin, 0, 1, store, rng)
		if out.Event.Kind != necsim.Dispersal {
			t.Fatalf("seed %d: Event.Kind = %v, want Dispersal", seed, out.Event.Kind)
		}
		if out.Event.Interaction == necsim.Coalescence {
			if out.Event.Parent != existing.GlobalRef {
				t.Fatalf("seed %d: coalescence parent = %v, want %v", seed, out.Event.Parent, existing.GlobalRef)
			}
			if out.Event.Parent == arriving.GlobalRef {
				t.Fatalf("seed %d: arriving lineage coalesced with itself", seed)
			}
			if out.Dispersed {
				t.Fatalf("seed %d: a coalescing outcome must not also be marked Dispersed", seed)
			}
		} else if !out.Dispersed {
			t.Fatalf("seed %d: a non-coalescing dispersal outcome must be marked Dispersed", seed)
		}
	}
}

type alwaysEmigrate struct{}

func (alwaysEmigrate) ShouldEmigrate(necsim.Location, necsim.Location, *rand.Rand) bool { return true }

func TestUnconditionalEmigratesWhenEmigrationChecksTrue(t *testing.T) {
	h, d, store := singleLocationFixture(t)
	nu, err := habitat.NewUniformSpeciationProbability(0.0)
	if err != nil {
		t.Fatalf("NewUniformSpeciationProbability: %v", err)
	}
	u := Unconditional{
		Habitat: h, Speciation: nu, Dispersal: d,
		Coalescence: coalescence.Unconditional{H: h}, Emigration: alwaysEmigrate{},
	}

	origin := necsim.Location{X: 0, Y: 0}
	l := &necsim.Lineage{GlobalRef: 5, IndexedLocation: &necsim.IndexedLocation{Location: origin, Index: 0}}
	rng := rand.New(rand.NewSource(1))
	out := u.Sample(l, origin, 0, 1, store, rng)

	if !out.Emigrate {
		t.Fatal("expected Outcome.Emigrate to be true")
	}
	if out.Migrating.Lineage.GlobalRef != l.GlobalRef {
		t.Fatalf("Migrating.Lineage.GlobalRef = %v, want %v", out.Migrating.Lineage.GlobalRef, l.GlobalRef)
	}
	if out.Migrating.Origin != origin || out.Migrating.Target != origin {
		t.Fatalf("Migrating.Origin/Target = %v/%v, want both %v", out.Migrating.Origin, out.Migrating.Target, origin)
	}
}
