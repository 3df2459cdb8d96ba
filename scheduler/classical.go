package scheduler

import (
	"math/rand"

	necsim "github.com/kentwait/necsimgo"
	necsimrng "github.com/kentwait/necsimgo/rng"
)

// Classical is the Classical active-lineage sampler:
// single shared clock over all N active lineages, next event time
// t_{k+1} = t_k + Exp(rate=0.5*N), lineage chosen uniformly, popped in
// O(1) by swap-remove. Applicable to a single partition, any
// locally-coherent store, uniform turnover.
type Classical struct {
	rng    *rand.Rand
	active []necsim.GlobalReference
	posOf  map[necsim.GlobalReference]int
	clock  float64
}

// NewClassical constructs a Classical sampler seeded with the given
// initially-active lineages.
func NewClassical(rng *rand.Rand, initial []necsim.GlobalReference) *Classical {
	c := &Classical{rng: rng, posOf: make(map[necsim.GlobalReference]int)}
	for _, ref := range initial {
		c.Reinsert(ref)
	}
	return c
}

// PopNext draws the next shared-clock event time and a uniformly chosen
// lineage, in O(1).
func (c *Classical) PopNext() (necsim.GlobalReference, float64, bool) {
	n := len(c.active)
	if n == 0 {
		return 0, 0, false
	}
	rate := 0.5 * float64(n)
	candidate := c.clock + necsimrng.Exp(c.rng, rate)
	t := necsimrng.NextEventTime(c.clock, candidate)
	c.clock = t

	i := c.rng.Intn(n)
	ref := c.active[i]
	last := n - 1
	c.active[i] = c.active[last]
	c.posOf[c.active[i]] = i
	c.active = c.active[:last]
	delete(c.posOf, ref)

	return ref, t, true
}

// Reinsert schedules ref again (after a non-terminal dispersal).
func (c *Classical) Reinsert(ref necsim.GlobalReference) {
	c.posOf[ref] = len(c.active)
	c.active = append(c.active, ref)
}

// Remove drops ref from the schedule if it is still present (used when a
// still-scheduled occupant is consumed as a coalescence partner by another
// lineage's event).
func (c *Classical) Remove(ref necsim.GlobalReference) {
	i, ok := c.posOf[ref]
	if !ok {
		return
	}
	last := len(c.active) - 1
	c.active[i] = c.active[last]
	c.posOf[c.active[i]] = i
	c.active = c.active[:last]
	delete(c.posOf, ref)
}

// Len reports how many lineages remain scheduled.
func (c *Classical) Len() int { return len(c.active) }

// Clock returns the shared simulation clock's current value.
func (c *Classical) Clock() float64 { return c.clock }
