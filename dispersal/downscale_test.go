package dispersal

import (
	"math"
	"math/rand"
	"testing"

	necsim "github.com/kentwait/necsimgo"
	"github.com/kentwait/necsimgo/habitat"
)

func uniformFineGrid(t *testing.T, side uint32) (habitat.Habitat, *InMemorySeparableAlias) {
	t.Helper()
	capacities := make([]uint32, side*side)
	for i := range capacities {
		capacities[i] = 1
	}
	h, err := habitat.NewInMemoryGrid(side, side, capacities)
	if err != nil {
		t.Fatalf("NewInMemoryGrid: %v", err)
	}
	n := int(side) * int(side)
	weights := make([]float64, n*n)
	for i := range weights {
		weights[i] = 1
	}
	m, err := NewMatrix(h, weights)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	return h, NewInMemorySeparableAlias(h, m)
}

func TestNewDownscaledRejectsInvalidArguments(t *testing.T) {
	_, fine := uniformFineGrid(t, 4)
	origins := []necsim.Location{{X: 0, Y: 0}}
	if _, err := NewDownscaled(fine, 0, origins, 100, 0.5); err == nil {
		t.Error("expected an error for a zero downscaling factor")
	}
	if _, err := NewDownscaled(fine, 2, origins, 0, 0.5); err == nil {
		t.Error("expected an error for a non-positive sample count")
	}
}

func TestDownscaledSelfDispersalProbabilityConvergesToFineKernelMass(t *testing.T) {
	_, fine := uniformFineGrid(t, 4)
	coarseOrigins := []necsim.Location{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}

	d, err := NewDownscaled(fine, 2, coarseOrigins, 20000, 0.5)
	if err != nil {
		t.Fatalf("NewDownscaled: %v", err)
	}

	// A uniform 4x4 fine kernel puts 4/16 = 0.25 of the mass from any
	// anchor cell into the 2x2 block that quantises back to the same
	// coarse origin.
	want := 0.25
	for _, origin := range coarseOrigins {
		got := d.SelfDispersalProbability(origin)
		if math.Abs(got-want) > 0.05 {
			t.Errorf("SelfDispersalProbability(%v) = %v, want close to %v", origin, got, want)
		}
		if !d.HasAliasTable(origin) {
			t.Errorf("expected a precomputed alias table for %v given the 0.5 rejection threshold", origin)
		}
	}
	if !d.RejectionFree() {
		t.Error("RejectionFree() should be true once every requested origin has an alias table")
	}
}

func TestDownscaledSampleNonSelfNeverReturnsOrigin(t *testing.T) {
	_, fine := uniformFineGrid(t, 4)
	coarseOrigins := []necsim.Location{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 1}, {X: 1, Y: 1}}
	d, err := NewDownscaled(fine, 2, coarseOrigins, 20000, 0.5)
	if err != nil {
		t.Fatalf("NewDownscaled: %v", err)
	}

	rng := rand.New(rand.NewSource(1))
	origin := necsim.Location{X: 0, Y: 0}
	for i := 0; i < 2000; i++ {
		target := d.SampleNonSelf(origin, rng)
		if target == origin {
			t.Fatalf("SampleNonSelf returned the origin on iteration %d", i)
		}
	}
}
