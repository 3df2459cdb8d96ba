// Package rng implements the simulation's RNG stream discipline: per-
// partition sub-stream splitting from one seed, and the Independent
// algorithm's primeable per-lineage stream. Hand-rolled on math/rand.Rand
// because this needs an explicitly seeded, splittable, primeable contract
// that a convenience sampler drawing from a shared process-global source
// cannot give (see DESIGN.md).
package rng

import (
	"math/rand"

	necsim "github.com/kentwait/necsimgo"
)

// Source wraps a math/rand.Rand with the simulation's seeding discipline.
type Source struct {
	*rand.Rand
	seed uint64
}

// FromSeed constructs a Source directly from a 64-bit seed.
func FromSeed(seed uint64) *Source {
	return &Source{Rand: rand.New(rand.NewSource(int64(seed))), seed: seed}
}

// Seed returns the seed this Source was constructed from.
func (s *Source) Seed() uint64 { return s.seed }

// splitMix64 deterministically derives a new 64-bit seed from an existing
// one and a stream discriminator, giving well-separated sub-streams from a
// single root seed without maintaining per-rank global state.
func splitMix64(seed uint64, stream uint64) uint64 {
	z := seed + stream*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// SplitForPartition derives the sub-stream owned by partition `rank` out of
// `numPartitions`: each partition derives its sub-stream by splitting on
// the partition rank.
func SplitForPartition(rootSeed uint64, rank, numPartitions uint32) *Source {
	stream := uint64(rank)<<32 | uint64(numPartitions)
	return FromSeed(splitMix64(rootSeed, stream))
}

// Primeable is the Independent algorithm's RNG contract: deterministically
// re-derivable from a small immutable seed and a composite
// (global_reference, event_counter) key, so that two workers processing
// the same lineage observe identical draws regardless of which worker
// simulates it.
type Primeable struct {
	rootSeed uint64
}

// NewPrimeable constructs a Primeable keyed off rootSeed.
func NewPrimeable(rootSeed uint64) *Primeable {
	return &Primeable{rootSeed: rootSeed}
}

// Prime derives a fresh Source for (ref, eventCounter). Calling Prime twice
// with the same key always returns a Source in the same state.
func (p *Primeable) Prime(ref necsim.GlobalReference, eventCounter uint64) *Source {
	s1 := splitMix64(p.rootSeed, uint64(ref))
	s2 := splitMix64(s1, eventCounter)
	return FromSeed(s2)
}

// Exp draws an exponentially-distributed value with the given rate
// (mean 1/rate).
func Exp(rng *rand.Rand, rate float64) float64 {
	return rng.ExpFloat64() / rate
}
