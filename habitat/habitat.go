// Package habitat implements the Habitat, turnover rate, and speciation
// probability cogs: pure, read-only functions of Location built once at
// simulation start.
package habitat

import (
	necsim "github.com/kentwait/necsimgo"
)

// Habitat maps a Location to a nonnegative integer deme capacity. A
// capacity of 0 means the location is non-habitable.
type Habitat interface {
	// CapacityAt returns the deme capacity at loc. Callers must pre-check
	// loc is within Extent(); out-of-extent queries are a contract
	// violation.
	CapacityAt(loc necsim.Location) uint32
	// Extent returns the habitat's width and height.
	Extent() (width, height uint32)
	// Contains reports whether loc lies within the extent.
	Contains(loc necsim.Location) bool
	// TotalHabitableLocations returns the count of locations with
	// capacity > 0.
	TotalHabitableLocations() uint64
}

// InMemoryGrid is a dense Habitat backed by a row-major capacity grid.
type InMemoryGrid struct {
	width, height uint32
	capacity      []uint32 // row-major, len == width*height
}

// NewInMemoryGrid constructs an InMemoryGrid from a row-major capacity
// slice. len(capacities) must equal width*height.
func NewInMemoryGrid(width, height uint32, capacities []uint32) (*InMemoryGrid, error) {
	if uint64(len(capacities)) != uint64(width)*uint64(height) {
		return nil, necsim.NewSimError(necsim.HabitatContractError,
			"capacity slice has %d entries, expected %d for %dx%d extent",
			len(capacities), uint64(width)*uint64(height), width, height)
	}
	g := &InMemoryGrid{width: width, height: height, capacity: make([]uint32, len(capacities))}
	copy(g.capacity, capacities)
	return g, nil
}

func (g *InMemoryGrid) index(loc necsim.Location) int {
	return int(loc.Y)*int(g.width) + int(loc.X)
}

// Contains reports whether loc lies within the extent.
func (g *InMemoryGrid) Contains(loc necsim.Location) bool {
	return loc.X < g.width && loc.Y < g.height
}

// CapacityAt returns the deme capacity at loc.
func (g *InMemoryGrid) CapacityAt(loc necsim.Location) uint32 {
	return g.capacity[g.index(loc)]
}

// Extent returns the grid's width and height.
func (g *InMemoryGrid) Extent() (width, height uint32) {
	return g.width, g.height
}

// TotalHabitableLocations returns the count of locations with capacity > 0.
func (g *InMemoryGrid) TotalHabitableLocations() uint64 {
	var n uint64
	for _, c := range g.capacity {
		if c > 0 {
			n++
		}
	}
	return n
}

// UniformGrid is a Habitat where every location within the extent shares the
// same capacity. Used by the NonSpatial and SpatiallyImplicit scenarios.
type UniformGrid struct {
	width, height uint32
	capacity      uint32
}

// NewUniformGrid constructs a UniformGrid.
func NewUniformGrid(width, height, capacity uint32) *UniformGrid {
	return &UniformGrid{width: width, height: height, capacity: capacity}
}

func (g *UniformGrid) Contains(loc necsim.Location) bool { return loc.X < g.width && loc.Y < g.height }

func (g *UniformGrid) CapacityAt(loc necsim.Location) uint32 {
	if !g.Contains(loc) {
		return 0
	}
	return g.capacity
}

func (g *UniformGrid) Extent() (width, height uint32) { return g.width, g.height }

func (g *UniformGrid) TotalHabitableLocations() uint64 {
	if g.capacity == 0 {
		return 0
	}
	return uint64(g.width) * uint64(g.height)
}
