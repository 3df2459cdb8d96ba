package dispersal

import (
	"math/rand"
	"sort"

	necsim "github.com/kentwait/necsimgo"
)

// downscaleConstructionSeed is fixed so that every worker that builds a
// Downscaled wrapper for the same fine kernel/factor produces an
// identical table for the Monte Carlo self-dispersal estimate.
const downscaleConstructionSeed = 0x5ca1ab1e

// Downscaled coarsens a fine-grained SeparableSampler by an integer factor
// k: the effective habitat has demes of capacity k*k times the original.
// Dispersal is drawn at the fine scale and the target quantised back to the
// coarse grid.
type Downscaled struct {
	fine   SeparableSampler
	factor uint32

	// selfProb is the Monte-Carlo-estimated self-dispersal probability of
	// the coarse kernel.
	selfProb map[necsim.Location]float64
	// alias, when non-nil, is a compact alias table over the observed
	// non-self coarse offsets, used instead of rejection sampling when the
	// estimated self-dispersal probability is below rejectionThreshold.
	alias map[necsim.Location]aliasRow
	// offsets[loc] lists the coarse Location for each alias atom built for
	// that origin, parallel-indexed with alias[loc].
	offsets map[necsim.Location][]necsim.Location
}

// NewDownscaled builds a Downscaled wrapper over fine, coarsening by
// factor, estimating each coarse origin's self-dispersal probability with
// samples Monte Carlo draws, and switching to a precomputed alias table
// over the observed non-self offsets whenever the estimate falls below
// rejectionThreshold; origins at or above it have no table, and
// SampleNonSelf rejects self draws for them instead.
func NewDownscaled(fine SeparableSampler, factor uint32, coarseOrigins []necsim.Location, samples int, rejectionThreshold float64) (*Downscaled, error) {
	if factor == 0 {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			"downscaling factor must be > 0")
	}
	if samples <= 0 {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			"downscaling Monte Carlo sample count must be > 0")
	}

	d := &Downscaled{
		fine:     fine,
		factor:   factor,
		selfProb: make(map[necsim.Location]float64),
		alias:    make(map[necsim.Location]aliasRow),
		offsets:  make(map[necsim.Location][]necsim.Location),
	}

	rng := rand.New(rand.NewSource(downscaleConstructionSeed))

	for _, coarse := range coarseOrigins {
		fineOrigin := d.fineAnchor(coarse)

		selfHits := 0
		counts := make(map[necsim.Location]int)
		for i := 0; i < samples; i++ {
			fineTarget := fine.Sample(fineOrigin, rng)
			coarseTarget := d.quantize(fineTarget)
			if coarseTarget == coarse {
				selfHits++
			} else {
				counts[coarseTarget]++
			}
		}
		estimate := float64(selfHits) / float64(samples)
		d.selfProb[coarse] = estimate

		if estimate < rejectionThreshold {
			// Fix the atom order (map iteration is randomized) so two
			// workers build byte-identical tables.
			offs := make([]necsim.Location, 0, len(counts))
			for loc := range counts {
				offs = append(offs, loc)
			}
			sort.Slice(offs, func(i, j int) bool {
				if offs[i].Y != offs[j].Y {
					return offs[i].Y < offs[j].Y
				}
				return offs[i].X < offs[j].X
			})
			weights := make([]float64, len(offs))
			for i, loc := range offs {
				weights[i] = float64(counts[loc])
			}
			if len(weights) > 0 {
				d.alias[coarse] = buildAliasRow(weights)
				d.offsets[coarse] = offs
			}
		}
	}

	return d, nil
}

func (d *Downscaled) quantize(fine necsim.Location) necsim.Location {
	return necsim.Location{X: fine.X / d.factor, Y: fine.Y / d.factor}
}

func (d *Downscaled) fineAnchor(coarse necsim.Location) necsim.Location {
	return necsim.Location{X: coarse.X * d.factor, Y: coarse.Y * d.factor}
}

// Sample draws at the fine scale and quantises back to the coarse grid.
func (d *Downscaled) Sample(origin necsim.Location, rng *rand.Rand) necsim.Location {
	fineTarget := d.fine.Sample(d.fineAnchor(origin), rng)
	return d.quantize(fineTarget)
}

// SelfDispersalProbability returns the Monte-Carlo-estimated coarse
// self-dispersal probability computed at construction time.
func (d *Downscaled) SelfDispersalProbability(origin necsim.Location) float64 {
	return d.selfProb[origin]
}

// RejectionFree reports whether every coarse origin has a precomputed alias
// table; an origin without one falls back to rejection in SampleNonSelf.
func (d *Downscaled) RejectionFree() bool {
	// Only true once every requested origin has a table; callers that
	// need a hard per-origin guarantee should consult HasAliasTable.
	return len(d.offsets) == len(d.selfProb)
}

// HasAliasTable reports whether origin has a precomputed non-self alias
// table, as opposed to falling back to rejection sampling.
func (d *Downscaled) HasAliasTable(origin necsim.Location) bool {
	_, ok := d.alias[origin]
	return ok
}

// SampleNonSelf draws a non-self coarse target, using the precomputed alias
// table when available and falling back to rejection sampling against the
// fine kernel otherwise.
func (d *Downscaled) SampleNonSelf(origin necsim.Location, rng *rand.Rand) necsim.Location {
	if row, ok := d.alias[origin]; ok {
		atom := row.sample(rng)
		return d.offsets[origin][atom]
	}
	for {
		t := d.Sample(origin, rng)
		if t != origin {
			return t
		}
	}
}
