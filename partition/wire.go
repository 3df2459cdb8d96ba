package partition

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	necsim "github.com/kentwait/necsimgo"
)

// WireRecordSize is the fixed byte size of one encoded MigratingLineage
// record. encoding/binary is the right tool here; no pack dependency
// offers a fixed-width struct codec, and none is warranted for a single
// record shape.
const WireRecordSize = 8 + 8 + 1 + 4 + 4 + 4 + 8 + 8 + 4 + 4 + 4 + 4 + 1 + 8

// EncodeMigratingLineage writes a fixed-size binary representation of m to
// w. Layout: GlobalRef(u64) LastEventTime(f64) HasLocation(u8)
// Loc.X(u32) Loc.Y(u32) Loc.Index(u32) PriorTime(f64) EventTime(f64)
// Origin.X(u32) Origin.Y(u32) Target.X(u32) Target.Y(u32)
// HasCoalescence(u8) CoalescenceParent(u64).
func EncodeMigratingLineage(w io.Writer, m necsim.MigratingLineage) error {
	buf := make([]byte, 0, WireRecordSize)
	b8 := make([]byte, 8)

	putU64 := func(v uint64) { binary.BigEndian.PutUint64(b8, v); buf = append(buf, b8...) }
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }
	putU32 := func(v uint32) {
		var b4 [4]byte
		binary.BigEndian.PutUint32(b4[:], v)
		buf = append(buf, b4[:]...)
	}

	putU64(uint64(m.Lineage.GlobalRef))
	putF64(m.Lineage.LastEventTime)
	if m.Lineage.IndexedLocation != nil {
		buf = append(buf, 1)
		putU32(m.Lineage.IndexedLocation.Location.X)
		putU32(m.Lineage.IndexedLocation.Location.Y)
		putU32(m.Lineage.IndexedLocation.Index)
	} else {
		buf = append(buf, 0)
		putU32(0)
		putU32(0)
		putU32(0)
	}
	putF64(m.PriorTime)
	putF64(m.EventTime)
	putU32(m.Origin.X)
	putU32(m.Origin.Y)
	putU32(m.Target.X)
	putU32(m.Target.Y)
	if m.Coalescence != nil {
		buf = append(buf, 1)
		putU64(uint64(*m.Coalescence))
	} else {
		buf = append(buf, 0)
		putU64(0)
	}

	_, err := w.Write(buf)
	return err
}

// DecodeMigratingLineage reads one fixed-size record from r.
func DecodeMigratingLineage(r io.Reader) (necsim.MigratingLineage, error) {
	buf := make([]byte, WireRecordSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return necsim.MigratingLineage{}, err
	}
	br := bytes.NewReader(buf)

	readU64 := func() uint64 {
		var v uint64
		_ = binary.Read(br, binary.BigEndian, &v)
		return v
	}
	readF64 := func() float64 { return math.Float64frombits(readU64()) }
	readU32 := func() uint32 {
		var v uint32
		_ = binary.Read(br, binary.BigEndian, &v)
		return v
	}
	readByte := func() byte {
		b, _ := br.ReadByte()
		return b
	}

	var m necsim.MigratingLineage
	m.Lineage.GlobalRef = necsim.GlobalReference(readU64())
	m.Lineage.LastEventTime = readF64()
	hasLoc := readByte()
	x, y, idx := readU32(), readU32(), readU32()
	if hasLoc == 1 {
		m.Lineage.IndexedLocation = &necsim.IndexedLocation{
			Location: necsim.Location{X: x, Y: y}, Index: idx,
		}
	}
	m.PriorTime = readF64()
	m.EventTime = readF64()
	m.Origin = necsim.Location{X: readU32(), Y: readU32()}
	m.Target = necsim.Location{X: readU32(), Y: readU32()}
	hasCoal := readByte()
	parent := necsim.GlobalReference(readU64())
	if hasCoal == 1 {
		m.Coalescence = &parent
	}
	return m, nil
}
