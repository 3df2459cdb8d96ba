// Package dynamicalias implements the Gillespie family's dynamic alias
// sampler over locations: weights are decomposed into (exponent, mantissa)
// pairs, grouped by exponent, and sampled by drawing a group by aggregated
// weight and then rejection-sampling within the group.
// Grounded on
// original_source/necsim/impls/no-std/src/cogs/active_lineage_sampler/alias/dynamic/indexed/mod.rs;
// see DESIGN.md for why only the "indexed" variant is ported, not "stack".
package dynamicalias

import "math"

// Decompose splits a positive finite float64 weight into its IEEE-754
// exponent and a 64-bit mantissa with the leading (implicit) bit placed at
// bit 63, so bit 63 is always set — giving >=50% acceptance when rejection
// sampling against a fresh uniform 64-bit draw.
func Decompose(w float64) (exponent int16, mantissa uint64) {
	if w <= 0 {
		return math.MinInt16, 0
	}
	bits := math.Float64bits(w)
	biasedExp := (bits >> 52) & 0x7FF
	mantissaBits := bits & ((uint64(1) << 52) - 1)
	if biasedExp == 0 {
		// Subnormal: normalize by hand. Rates this small never occur in
		// practice (they would imply an astronomically long wait), but
		// handle it rather than silently misrepresenting the weight.
		shift := uint64(0)
		m := mantissaBits
		for m&(uint64(1)<<52) == 0 && shift < 52 {
			m <<= 1
			shift++
		}
		fullMantissa := m & ((uint64(1) << 53) - 1)
		return int16(-1022 - int(shift)), fullMantissa << 11
	}
	fullMantissa := (uint64(1) << 52) | mantissaBits
	return int16(int(biasedExp) - 1023), fullMantissa << 11
}

// Compose reconstructs the exact float64 weight from its decomposition.
// compose(decompose(w)) == w bit-exactly for every positive finite w.
func Compose(exponent int16, mantissa uint64) float64 {
	if mantissa == 0 {
		return 0
	}
	fullMantissa := mantissa >> 11
	if e := int(exponent) + 1023; e <= 0 {
		// Subnormal: undo Decompose's normalising shift.
		return math.Float64frombits(fullMantissa >> uint(1-e))
	}
	mantissaBits := fullMantissa & ((uint64(1) << 52) - 1)
	biasedExp := uint64(int(exponent) + 1023)
	bits := (biasedExp << 52) | mantissaBits
	return math.Float64frombits(bits)
}
