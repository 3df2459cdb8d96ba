package rng

import "math"

// NextEventTime enforces tie-break rule: if candidate does
// not strictly exceed previous, the next representable float64 above
// previous is used instead, preserving strict per-lineage monotonicity
// even when an exponential draw underflows to 0.
func NextEventTime(previous, candidate float64) float64 {
	if candidate > previous {
		return candidate
	}
	return math.Nextafter(previous, math.Inf(1))
}
