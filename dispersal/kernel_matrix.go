package dispersal

import (
	necsim "github.com/kentwait/necsimgo"
	"github.com/kentwait/necsimgo/habitat"
)

// Matrix is a dense, row-major dispersal weight matrix: Matrix[from*n+to]
// is the (unnormalized) weight of dispersing from location `from` to
// location `to`, where locations are linearized row-major over the
// habitat's extent. Grounded on network.go's adjacencyMatrix, repurposed
// from a sparse edge map to a dense per-row weight table suitable for
// alias-table construction.
type Matrix struct {
	n       int // number of locations = width*height
	width   uint32
	weights []float64 // n*n, row-major
}

// NewMatrix validates the dispersal-contract invariants and returns a
// Matrix:
//  1. the matrix must be square with side n = width*height
//  2. a row for a non-habitable origin may sum to zero; otherwise the row
//     must have >=1 positive weight on a habitable target
//  3. a non-habitable source with any nonzero entry is a contract violation
//  4. no entry may be negative
func NewMatrix(h habitat.Habitat, weights []float64) (*Matrix, error) {
	width, height := h.Extent()
	n := int(width) * int(height)
	if len(weights) != n*n {
		return nil, necsim.NewSimError(necsim.DispersalContractError,
			necsim.DimensionMismatchError, len(weights)/max(n, 1), n, width, height)
	}

	locAt := func(i int) necsim.Location {
		return necsim.Location{X: uint32(i) % width, Y: uint32(i) / width}
	}

	for from := 0; from < n; from++ {
		fromLoc := locAt(from)
		habitable := h.CapacityAt(fromLoc) > 0
		rowSum := 0.0
		for to := 0; to < n; to++ {
			w := weights[from*n+to]
			if w < 0 {
				return nil, necsim.NewSimError(necsim.DispersalContractError,
					necsim.NegativeWeightError, fromLoc, locAt(to), w)
			}
			if w > 0 && !habitable {
				return nil, necsim.NewSimError(necsim.DispersalContractError,
					necsim.NonzeroFromNonHabitableError, fromLoc, locAt(to))
			}
			if w > 0 && h.CapacityAt(locAt(to)) > 0 {
				rowSum += w
			}
		}
		if habitable && rowSum <= 0 {
			return nil, necsim.NewSimError(necsim.DispersalContractError,
				necsim.ZeroOutgoingWeightError, fromLoc)
		}
	}

	m := &Matrix{n: n, width: width, weights: make([]float64, len(weights))}
	copy(m.weights, weights)
	return m, nil
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Row returns the (unnormalized) weight row for the given origin index.
func (m *Matrix) Row(origin int) []float64 {
	return m.weights[origin*m.n : origin*m.n+m.n]
}

// N returns the number of locations (side length of the square matrix).
func (m *Matrix) N() int { return m.n }

// Width returns the number of columns used to linearize Location<->index.
func (m *Matrix) Width() uint32 { return m.width }

// Index linearizes a Location into a row/column index.
func (m *Matrix) Index(loc necsim.Location) int {
	return int(loc.Y)*int(m.width) + int(loc.X)
}

// Location returns the Location for a linearized index.
func (m *Matrix) Location(i int) necsim.Location {
	return necsim.Location{X: uint32(i) % m.width, Y: uint32(i) / m.width}
}
