package partition

import (
	"math/rand"

	necsim "github.com/kentwait/necsimgo"
)

// EmigrationExit is the C8 cog: decides whether a dispersal crossing a
// partition boundary stays local or is shipped to another partition.
type EmigrationExit interface {
	// ShouldEmigrate reports whether a dispersal from origin to target
	// (both locations, not necessarily on different partitions) should be
	// shipped to the owning partition of target rather than applied
	// locally.
	ShouldEmigrate(origin, target necsim.Location, rng *rand.Rand) bool
}

// Never is the identity exit: it never emigrates. Used in monolithic mode.
type Never struct{}

func (Never) ShouldEmigrate(necsim.Location, necsim.Location, *rand.Rand) bool { return false }

// Domain ships every dispersal that crosses a partition boundary, as
// determined by a Decomposition and this partition's own rank.
type Domain struct {
	Decomposition Decomposition
	LocalRank     uint32
}

func (d Domain) ShouldEmigrate(origin, target necsim.Location, _ *rand.Rand) bool {
	return d.Decomposition.RankOf(target) != d.LocalRank
}

// Probabilistic ships a cross-boundary dispersal with probability P;
// otherwise it is executed locally. Useful for the Independent algorithm,
// where visiting foreign locations is harmless.
type Probabilistic struct {
	Decomposition Decomposition
	LocalRank     uint32
	P             float64
}

func (p Probabilistic) ShouldEmigrate(origin, target necsim.Location, rng *rand.Rand) bool {
	if p.Decomposition.RankOf(target) == p.LocalRank {
		return false
	}
	return rng.Float64() < p.P
}

// Always ships every cross-boundary event unconditionally. Used by the
// Independent landscape mode.
type Always struct {
	Decomposition Decomposition
	LocalRank     uint32
}

func (a Always) ShouldEmigrate(origin, target necsim.Location, _ *rand.Rand) bool {
	return a.Decomposition.RankOf(target) != a.LocalRank
}
