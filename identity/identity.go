// Package identity implements the species-identity plugin: a bijective
// 192-bit scramble of three packed 64-bit fields, used as a stable,
// order-independent name for a coalescence event that does not require
// communicating the winning lineage's reference back to every partition
// that ever held it. Grounded on
// original_source/necsim/plugins/species/src/identity.rs; the forward and
// inverse transforms must round-trip bit-exactly, so the byte
// shuffles and SeaHash diffusion constants are ported as-is rather than
// reinterpreted.
package identity

import (
	"encoding/binary"
	"math"

	necsim "github.com/kentwait/necsimgo"
)

// SpeciesIdentity is an opaque 24-byte scrambled identity.
type SpeciesIdentity [24]byte

func le64(x uint64) [8]byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], x)
	return b
}

func fromLE(b [8]byte) uint64 {
	return binary.LittleEndian.Uint64(b[:])
}

// seahashDiffuse is SeaHash's diffusion round: dynamic shifts determined by
// the input's own high bits, scattered upward by the following multiply.
func seahashDiffuse(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x *= 0x6eed0e9da4d94a4f
	a := x >> 32
	b := x >> 60
	x ^= a >> b
	x *= 0x6eed0e9da4d94a4f
	return x
}

// seahashUndiffuse inverts seahashDiffuse. 0x2f72b4215a3d8caf is the
// modular multiplicative inverse of the multiplier used there.
func seahashUndiffuse(x uint64) uint64 {
	x *= 0x2f72b4215a3d8caf
	a := x >> 32
	b := x >> 60
	x ^= a >> b
	x *= 0x2f72b4215a3d8caf
	x -= 0x9e3779b97f4a7c15
	return x
}

// fromRaw diffuses a, b, c independently, then shuffles and re-diffuses
// their bytes into three further 8-byte groups forming the 24-byte
// identity. The exact byte permutation is fixed so copyIntoRaw can invert
// it; see the original_source file cited above for its derivation.
func fromRaw(a, b, c uint64) SpeciesIdentity {
	ab := le64(seahashDiffuse(a))
	bb := le64(seahashDiffuse(b))
	cb := le64(seahashDiffuse(c))

	lower := le64(seahashDiffuse(fromLE([8]byte{
		ab[3], cb[0], bb[5], ab[1], cb[4], cb[7], cb[5], ab[5],
	})))
	middle := le64(seahashDiffuse(fromLE([8]byte{
		cb[6], bb[4], ab[0], ab[6], bb[2], bb[1], ab[7], bb[3],
	})))
	upper := le64(seahashDiffuse(fromLE([8]byte{
		ab[4], ab[2], cb[2], bb[0], cb[3], cb[1], bb[7], bb[6],
	})))

	var out SpeciesIdentity
	copy(out[0:8], lower[:])
	copy(out[8:16], middle[:])
	copy(out[16:24], upper[:])
	return out
}

// copyIntoRaw inverts fromRaw exactly.
func copyIntoRaw(s SpeciesIdentity) (a, b, c uint64) {
	var lb, mb, ub [8]byte
	copy(lb[:], s[0:8])
	copy(mb[:], s[8:16])
	copy(ub[:], s[16:24])

	lower := le64(seahashUndiffuse(fromLE(lb)))
	middle := le64(seahashUndiffuse(fromLE(mb)))
	upper := le64(seahashUndiffuse(fromLE(ub)))

	a = seahashUndiffuse(fromLE([8]byte{
		middle[2], lower[3], upper[1], lower[0], upper[0], lower[7], middle[3], middle[6],
	}))
	b = seahashUndiffuse(fromLE([8]byte{
		upper[3], middle[5], middle[4], middle[7], middle[1], lower[2], upper[7], upper[6],
	}))
	c = seahashUndiffuse(fromLE([8]byte{
		lower[1], upper[5], upper[2], upper[4], lower[4], lower[6], middle[0], lower[5],
	}))
	return
}

func positiveFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0) && x > 0
}

// FromSpeciation builds the identity a newly-speciated lineage is assigned:
// its IndexedLocation and the simulation time of speciation.
func FromSpeciation(origin necsim.IndexedLocation, time float64) SpeciesIdentity {
	location := uint64(origin.Location.Y)<<32 | uint64(origin.Location.X)
	index := uint64(origin.Index) << 16
	return fromRaw(location, index, math.Float64bits(time))
}

// TryIntoSpeciation recovers (origin, time) from an identity built by
// FromSpeciation, or ok==false if s does not decode as a speciation
// identity (the reserved index bits are non-zero, or the recovered time is
// not a positive finite float).
func TryIntoSpeciation(s SpeciesIdentity) (origin necsim.IndexedLocation, time float64, ok bool) {
	location, index, t := copyIntoRaw(s)
	if index&0xFFFF_0000_0000_FFFF != 0 {
		return necsim.IndexedLocation{}, 0, false
	}
	x := uint32(location & 0xFFFFFFFF)
	y := uint32((location >> 32) & 0xFFFFFFFF)
	i := uint32((index >> 16) & 0xFFFFFFFF)
	time = math.Float64frombits(t)
	if !positiveFinite(time) {
		return necsim.IndexedLocation{}, 0, false
	}
	return necsim.IndexedLocation{Location: necsim.Location{X: x, Y: y}, Index: i}, time, true
}

// FromUnspeciated builds the identity an as-yet-unresolved lineage carries:
// its own reference, the anchor lineage it is currently coalesced against
// (the earliest-known ancestor in its group), and the simulation time the
// lineage was last active. lineage and anchor must both be real references
// (> necsim.ReservedGlobalReference).
func FromUnspeciated(lineage necsim.GlobalReference, activity float64, anchor necsim.GlobalReference) SpeciesIdentity {
	l := uint64(lineage) - 2
	a := (uint64(anchor) - 2) << 1 | 0x1
	return fromRaw(l, a, math.Float64bits(activity))
}

// TryIntoUnspeciated recovers (lineage, activity, anchor) from an identity
// built by FromUnspeciated, or ok==false if s decodes as a speciation
// identity instead (the anchor tag bit is clear) or the recovered activity
// time is not a positive finite float.
func TryIntoUnspeciated(s SpeciesIdentity) (lineage necsim.GlobalReference, activity float64, anchor necsim.GlobalReference, ok bool) {
	l, a, act := copyIntoRaw(s)
	if a&0x1 == 0 {
		return 0, 0, 0, false
	}
	a >>= 1
	activity = math.Float64frombits(act)
	if !positiveFinite(activity) {
		return 0, 0, 0, false
	}
	return necsim.GlobalReference(l + 2), activity, necsim.GlobalReference(a + 2), true
}
