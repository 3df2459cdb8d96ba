package dispersal

import (
	"testing"

	necsim "github.com/kentwait/necsimgo"
	"github.com/kentwait/necsimgo/habitat"
)

func uniform2x2(t *testing.T) habitat.Habitat {
	t.Helper()
	g, err := habitat.NewInMemoryGrid(2, 2, []uint32{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return g
}

func TestNewMatrixRejectsDimensionMismatch(t *testing.T) {
	h := uniform2x2(t)
	if _, err := NewMatrix(h, make([]float64, 3)); err == nil {
		t.Fatal("expected an error for a mismatched matrix size")
	}
}

func TestNewMatrixRejectsNegativeWeight(t *testing.T) {
	h := uniform2x2(t)
	w := make([]float64, 16)
	for i := range w {
		w[i] = 1
	}
	w[0] = -1
	if _, err := NewMatrix(h, w); err == nil {
		t.Fatal("expected an error for a negative weight")
	}
}

func TestNewMatrixRejectsZeroOutgoingWeightFromHabitableSource(t *testing.T) {
	h := uniform2x2(t)
	w := make([]float64, 16) // all zero
	if _, err := NewMatrix(h, w); err == nil {
		t.Fatal("expected an error for a habitable source with no outgoing weight")
	}
}

func TestNewMatrixRejectsNonzeroFromNonHabitableSource(t *testing.T) {
	g, err := habitat.NewInMemoryGrid(2, 1, []uint32{0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := []float64{
		0, 1, // row for (0,0): non-habitable source with a nonzero weight
		1, 0,
	}
	if _, err := NewMatrix(g, w); err == nil {
		t.Fatal("expected an error for a non-habitable source with nonzero weight")
	}
}

func TestNewMatrixAllowsAllZeroRowForNonHabitableSource(t *testing.T) {
	g, err := habitat.NewInMemoryGrid(2, 1, []uint32{0, 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w := []float64{
		0, 0, // row for (0,0): non-habitable, all zero, fine
		0, 1,
	}
	if _, err := NewMatrix(g, w); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMatrixIndexLocationRoundTrip(t *testing.T) {
	h := uniform2x2(t)
	w := []float64{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	m, err := NewMatrix(h, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for y := uint32(0); y < 2; y++ {
		for x := uint32(0); x < 2; x++ {
			loc := necsim.Location{X: x, Y: y}
			got := m.Location(m.Index(loc))
			if got != loc {
				t.Errorf("Location(Index(%v)) = %v, want %v", loc, got, loc)
			}
		}
	}
}
