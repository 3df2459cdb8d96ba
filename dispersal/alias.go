package dispersal

import (
	"math/rand"

	necsim "github.com/kentwait/necsimgo"
)

// Sampler draws a target Location from the per-origin kernel.
type Sampler interface {
	Sample(origin necsim.Location, rng *rand.Rand) necsim.Location
}

// SeparableSampler additionally exposes the self-dispersal probability and
// conditional non-self-dispersal sampling required by the Event-Skipping
// active-lineage sampler.
type SeparableSampler interface {
	Sampler
	SelfDispersalProbability(origin necsim.Location) float64
	SampleNonSelf(origin necsim.Location, rng *rand.Rand) necsim.Location
	// RejectionFree reports whether SampleNonSelf is O(1) (true alias-table
	// backed) rather than rejection-based. The Event-Skipping active
	// lineage sampler requires RejectionFree() == true at configuration
	// time.
	RejectionFree() bool
}

// aliasRow is a single Vose alias table row: prob[i] is the probability of
// landing directly on atom i, alias[i] is the atom to use when the
// rejection draw misses.
type aliasRow struct {
	prob  []float64
	alias []int
}

// buildAliasRow constructs a Vose alias table for one row of weights in
// O(len(weights)). Grounded on the classic Vose alias method; no library
// in the retrieved corpus implements alias-method sampling, so this is
// hand-rolled.
func buildAliasRow(weights []float64) aliasRow {
	k := len(weights)
	row := aliasRow{prob: make([]float64, k), alias: make([]int, k)}
	if k == 0 {
		return row
	}

	sum := 0.0
	for _, w := range weights {
		sum += w
	}

	scaled := make([]float64, k)
	var small, large []int
	for i, w := range weights {
		if sum > 0 {
			scaled[i] = w * float64(k) / sum
		}
		if scaled[i] < 1.0 {
			small = append(small, i)
		} else {
			large = append(large, i)
		}
	}

	for len(small) > 0 && len(large) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		g := large[len(large)-1]
		large = large[:len(large)-1]

		row.prob[l] = scaled[l]
		row.alias[l] = g

		scaled[g] = scaled[g] + scaled[l] - 1.0
		if scaled[g] < 1.0 {
			small = append(small, g)
		} else {
			large = append(large, g)
		}
	}
	for len(large) > 0 {
		g := large[len(large)-1]
		large = large[:len(large)-1]
		row.prob[g] = 1.0
	}
	for len(small) > 0 {
		l := small[len(small)-1]
		small = small[:len(small)-1]
		row.prob[l] = 1.0
	}
	return row
}

// sample draws an atom index in O(1).
func (r aliasRow) sample(rng *rand.Rand) int {
	if len(r.prob) == 0 {
		return -1
	}
	i := rng.Intn(len(r.prob))
	if rng.Float64() < r.prob[i] {
		return i
	}
	return r.alias[i]
}

// InMemoryAlias is the base (non-separable) alias-table dispersal sampler:
// one Vose alias table per habitable origin row, built once at
// construction in O(N) per row.
type InMemoryAlias struct {
	matrix *Matrix
	rows   map[int]aliasRow // keyed by linearized origin index; absent == non-habitable
}

// NewInMemoryAlias builds an alias table for every row of m that has a
// positive weight sum (i.e. every habitable origin, per the Matrix
// contract already enforced by NewMatrix).
func NewInMemoryAlias(m *Matrix) *InMemoryAlias {
	a := &InMemoryAlias{matrix: m, rows: make(map[int]aliasRow)}
	for i := 0; i < m.N(); i++ {
		row := m.Row(i)
		sum := 0.0
		for _, w := range row {
			sum += w
		}
		if sum > 0 {
			a.rows[i] = buildAliasRow(row)
		}
	}
	return a
}

// Sample draws a target Location from the alias table at origin.
func (a *InMemoryAlias) Sample(origin necsim.Location, rng *rand.Rand) necsim.Location {
	idx := a.matrix.Index(origin)
	row := a.rows[idx]
	atom := row.sample(rng)
	return a.matrix.Location(atom)
}
