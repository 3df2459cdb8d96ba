// Package partition implements the C8/C9 emigration/immigration cogs, the
// location->rank Decomposition, the partition wire format, the four
// parallelisation loops, and water-level event ordering.
package partition

import (
	"sort"

	necsim "github.com/kentwait/necsimgo"
	"github.com/kentwait/necsimgo/habitat"
)

// Decomposition assigns every habitable location to exactly one partition
// rank. Both strategies are deterministic, pure functions of
// (habitat, numPartitions), so every worker independently computes the
// same mapping.
type Decomposition interface {
	RankOf(loc necsim.Location) uint32
	NumPartitions() uint32
}

// mortonInterleave interleaves all 32 bits of x and y into a 64-bit
// Morton (Z-order) curve index, giving Equal-area decomposition spatial
// locality without needing to materialise the whole curve.
func mortonInterleave(x, y uint32) uint64 {
	spread := func(v uint32) uint64 {
		r := uint64(v) & 0xFFFFFFFF
		r = (r | (r << 16)) & 0x0000FFFF0000FFFF
		r = (r | (r << 8)) & 0x00FF00FF00FF00FF
		r = (r | (r << 4)) & 0x0F0F0F0F0F0F0F0F
		r = (r | (r << 2)) & 0x3333333333333333
		r = (r | (r << 1)) & 0x5555555555555555
		return r
	}
	return spread(x) | (spread(y) << 1)
}

// EqualArea distributes habitable locations round-robin by Morton-curve
// index: the location with the i-th smallest Morton index is assigned to
// partition i % numPartitions.
type EqualArea struct {
	rankOf        map[necsim.Location]uint32
	numPartitions uint32
}

// NewEqualArea builds an EqualArea decomposition over every habitable
// location in h.
func NewEqualArea(h habitat.Habitat, numPartitions uint32) *EqualArea {
	width, height := h.Extent()
	type entry struct {
		loc    necsim.Location
		morton uint64
	}
	var entries []entry
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			if h.CapacityAt(loc) == 0 {
				continue
			}
			entries = append(entries, entry{loc: loc, morton: mortonInterleave(x, y)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].morton < entries[j].morton })

	rankOf := make(map[necsim.Location]uint32, len(entries))
	for i, e := range entries {
		rankOf[e.loc] = uint32(i) % numPartitions
	}
	return &EqualArea{rankOf: rankOf, numPartitions: numPartitions}
}

func (d *EqualArea) RankOf(loc necsim.Location) uint32 { return d.rankOf[loc] }
func (d *EqualArea) NumPartitions() uint32             { return d.numPartitions }

// EqualWeight balances the sum of habitat capacities assigned to each
// partition: locations are visited in Morton order and greedily assigned
// to whichever partition currently holds the least total capacity.
type EqualWeight struct {
	rankOf        map[necsim.Location]uint32
	numPartitions uint32
}

// NewEqualWeight builds an EqualWeight decomposition over every habitable
// location in h.
func NewEqualWeight(h habitat.Habitat, numPartitions uint32) *EqualWeight {
	width, height := h.Extent()
	type entry struct {
		loc      necsim.Location
		capacity uint32
		morton   uint64
	}
	var entries []entry
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			cap := h.CapacityAt(loc)
			if cap == 0 {
				continue
			}
			entries = append(entries, entry{loc: loc, capacity: cap, morton: mortonInterleave(x, y)})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].morton < entries[j].morton })

	load := make([]uint64, numPartitions)
	rankOf := make(map[necsim.Location]uint32, len(entries))
	for _, e := range entries {
		best := uint32(0)
		for r := uint32(1); r < numPartitions; r++ {
			if load[r] < load[best] {
				best = r
			}
		}
		rankOf[e.loc] = best
		load[best] += uint64(e.capacity)
	}
	return &EqualWeight{rankOf: rankOf, numPartitions: numPartitions}
}

func (d *EqualWeight) RankOf(loc necsim.Location) uint32 { return d.rankOf[loc] }
func (d *EqualWeight) NumPartitions() uint32             { return d.numPartitions }
