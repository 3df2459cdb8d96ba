package dynamicalias

import (
	"math"
	"math/rand"
	"testing"
)

func TestDecomposeComposeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200000; i++ {
		// Build a random positive normal float64 by combining a random
		// mantissa with a random exponent within the normal range.
		exp := uint64(1 + rng.Intn(2046)) // 1..2046: normal, never subnormal/inf/nan
		mantissa := rng.Uint64() & ((uint64(1) << 52) - 1)
		bits := (exp << 52) | mantissa
		w := math.Float64frombits(bits)
		if w <= 0 || math.IsInf(w, 0) || math.IsNaN(w) {
			continue
		}

		e, m := Decompose(w)
		got := Compose(e, m)
		if got != w {
			t.Fatalf("round trip failed for %v (bits %#x): got %v", w, bits, got)
		}
	}
}

func TestDecomposeZeroAndNegative(t *testing.T) {
	e, m := Decompose(0)
	if m != 0 {
		t.Errorf("Decompose(0) mantissa = %d, want 0", m)
	}
	if got := Compose(e, m); got != 0 {
		t.Errorf("Compose of Decompose(0) = %v, want 0", got)
	}

	e, m = Decompose(-5)
	if m != 0 {
		t.Errorf("Decompose(-5) mantissa = %d, want 0", m)
	}
	if got := Compose(e, m); got != 0 {
		t.Errorf("Compose of Decompose(-5) = %v, want 0", got)
	}
}

func TestDecomposeMantissaTopBitAlwaysSet(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	for i := 0; i < 10000; i++ {
		w := rng.Float64()*1e6 + 1e-9
		_, m := Decompose(w)
		if m&(1<<63) == 0 {
			t.Fatalf("Decompose(%v) mantissa %#x does not have bit 63 set", w, m)
		}
	}
}
