package coalescence

import (
	"math/rand"
	"testing"

	necsim "github.com/kentwait/necsimgo"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
)

func TestUnconditionalSettlesOnEmptySlot(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 1)
	store := lineagestore.NewCoherent(h)
	u := Unconditional{H: h}

	rng := rand.New(rand.NewSource(1))
	out := u.Sample(necsim.Location{}, store, rng, 0)
	if out.Coalesced {
		t.Fatal("expected no coalescence when the only slot is empty")
	}
	if out.Index != 0 {
		t.Errorf("Index = %d, want 0 for a capacity-1 deme", out.Index)
	}
}

func TestUnconditionalCoalescesWithOccupant(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 1)
	store := lineagestore.NewCoherent(h)
	occupant := &necsim.Lineage{GlobalRef: 2}
	store.Insert(occupant, necsim.IndexedLocation{Location: necsim.Location{}, Index: 0})

	u := Unconditional{H: h}
	rng := rand.New(rand.NewSource(1))
	out := u.Sample(necsim.Location{}, store, rng, 0)
	if !out.Coalesced {
		t.Fatal("expected coalescence against the sole occupant of a capacity-1 deme")
	}
	if out.Occupant != occupant {
		t.Errorf("Occupant = %v, want %v", out.Occupant, occupant)
	}
}

// TestUnconditionalNeverCoalescesWithExcludedSelf exercises the real call
// pattern at CoherentSimulation.step: the acting lineage is still in the
// store, occupying the only slot of a capacity-1 deme, when its own
// self-dispersal event is sampled. It must never be reported as its own
// coalescence partner.
func TestUnconditionalNeverCoalescesWithExcludedSelf(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 1)
	store := lineagestore.NewCoherent(h)
	acting := &necsim.Lineage{GlobalRef: 2}
	store.Insert(acting, necsim.IndexedLocation{Location: necsim.Location{}, Index: 0})

	u := Unconditional{H: h}
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 1000; i++ {
		if out := u.Sample(necsim.Location{}, store, rng, acting.GlobalRef); out.Coalesced {
			t.Fatal("Unconditional.Sample reported the acting lineage as its own coalescence partner")
		}
	}
}

func TestConditionalCoalescenceProbabilityMatchesOccupancyRatio(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 4)
	store := lineagestore.NewCoherent(h)
	for i, ref := range []necsim.GlobalReference{2, 3} {
		l := &necsim.Lineage{GlobalRef: ref}
		store.Insert(l, necsim.IndexedLocation{Location: necsim.Location{}, Index: uint32(i)})
	}

	c := Conditional{H: h}
	rng := rand.New(rand.NewSource(42))
	const n = 50000
	coalesced := 0
	for i := 0; i < n; i++ {
		out := c.Sample(necsim.Location{}, store, rng, 0)
		if out.Coalesced {
			coalesced++
		}
	}
	got := float64(coalesced) / float64(n)
	want := 2.0 / 4.0
	if d := got - want; d < -0.02 || d > 0.02 {
		t.Errorf("empirical coalescence rate %v too far from n/capacity = %v", got, want)
	}
}

func TestConditionalNeverCoalescesWhenEmpty(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 3)
	store := lineagestore.NewCoherent(h)
	c := Conditional{H: h}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		if out := c.Sample(necsim.Location{}, store, rng, 0); out.Coalesced {
			t.Fatal("Conditional.Sample coalesced against an entirely empty deme")
		}
	}
}

// TestConditionalExcludesSelfFromOccupancyRatio confirms the acting
// lineage's own slot is excluded from both the coalescence-probability
// denominator's numerator and the occupant search: with only the acting
// lineage present in a capacity-4 deme, Conditional must never report a
// coalescence (there is no other lineage to coalesce with), even though
// store.OccupancyCount still counts the acting lineage's own slot.
func TestConditionalExcludesSelfFromOccupancyRatio(t *testing.T) {
	h := habitat.NewUniformGrid(1, 1, 4)
	store := lineagestore.NewCoherent(h)
	acting := &necsim.Lineage{GlobalRef: 2}
	store.Insert(acting, necsim.IndexedLocation{Location: necsim.Location{}, Index: 0})

	c := Conditional{H: h}
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		if out := c.Sample(necsim.Location{}, store, rng, acting.GlobalRef); out.Coalesced {
			t.Fatal("Conditional.Sample coalesced the acting lineage with itself")
		}
	}
}
