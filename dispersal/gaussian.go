package dispersal

import (
	"math"
	"math/rand"

	necsim "github.com/kentwait/necsimgo"
)

// GaussianKernel is an analytic "almost-infinite" dispersal kernel: instead
// of a pre-built alias table over a bounded extent, it draws an (dx, dy)
// offset from a 2D isotropic Gaussian with standard deviation Sigma and
// rounds to the nearest integer Location, with unsigned 32-bit wraparound
// of each coordinate.
// Grounded on original_source's almost_infinite scenario, which substitutes
// an analytic kernel for the in-memory matrix precisely because the extent
// is too large to materialise.
type GaussianKernel struct {
	Sigma float64
}

// NewGaussianKernel validates Sigma > 0.
func NewGaussianKernel(sigma float64) (*GaussianKernel, error) {
	if sigma <= 0 {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			necsim.InvalidFloatParameterError, "gaussian kernel sigma", sigma, "must be > 0")
	}
	return &GaussianKernel{Sigma: sigma}, nil
}

// Sample draws a target location offset from origin by an independent
// Gaussian in each axis, with unsigned 32-bit wraparound.
func (g *GaussianKernel) Sample(origin necsim.Location, rng *rand.Rand) necsim.Location {
	dx := rng.NormFloat64() * g.Sigma
	dy := rng.NormFloat64() * g.Sigma
	return necsim.Location{
		X: origin.X + int32ToUint32Offset(int64(math.Round(dx))),
		Y: origin.Y + int32ToUint32Offset(int64(math.Round(dy))),
	}
}

// SelfDispersalProbability returns the probability mass the continuous
// Gaussian places within the unit cell centred on origin, treating a draw
// that rounds to (0,0) offset as "self".
func (g *GaussianKernel) SelfDispersalProbability(necsim.Location) float64 {
	// P(|X| < 0.5) for X ~ N(0, sigma^2) in each of two independent axes.
	p1 := 2*gaussianCDF(0.5/g.Sigma) - 1
	return p1 * p1
}

// SampleNonSelf draws repeatedly until the offset is nonzero. The Gaussian
// kernel is not alias-table-backed, so this is rejection-based rather than
// O(1); RejectionFree reports false, so Event-Skipping rejects this kernel
// (and config validation rejects event_skipping with almost_infinite).
func (g *GaussianKernel) SampleNonSelf(origin necsim.Location, rng *rand.Rand) necsim.Location {
	for {
		t := g.Sample(origin, rng)
		if t != origin {
			return t
		}
	}
}

// RejectionFree returns false: SampleNonSelf retries until it misses self,
// so the Gaussian kernel is not eligible for the Event-Skipping sampler.
func (g *GaussianKernel) RejectionFree() bool { return false }

func int32ToUint32Offset(d int64) uint32 {
	return uint32(d)
}

// gaussianCDF is the standard normal CDF, via erf.
func gaussianCDF(x float64) float64 {
	return 0.5 * (1 + math.Erf(x/math.Sqrt2))
}
