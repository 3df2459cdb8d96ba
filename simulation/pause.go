// Package simulation owns the four cogs' runtime wiring and the main
// step loop: it does not implement any cog
// itself, only composes the already-built habitat/dispersal/coalescence/
// lineagestore/eventsampler/scheduler/partition packages into the two
// concrete simulation shapes the algorithm family needs (coherent-store
// backed, and independent-store backed). Grounded on
// migration_simulation.go's top-level Run loop shape.
package simulation

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"

	necsim "github.com/kentwait/necsimgo"
)

// PauseBound gates the active-lineage loop at a fixed simulation time:
// once a lineage's next event time reaches or exceeds Before, the run sets
// that lineage aside instead of processing it, so a later run can Resume
// from exactly this cut.
type PauseBound struct {
	Before float64
}

// ShouldPause reports whether eventTime falls at or beyond the bound.
func (p PauseBound) ShouldPause(eventTime float64) bool {
	return eventTime >= p.Before
}

// PauseState is the on-disk snapshot of a paused run: the root RNG seed,
// every set-aside lineage with its already-drawn event time, and (for the
// Independent algorithm) each lineage's primeable-stream event counter.
// Rebuilding the samplers from the same seed and replaying the recorded
// event times continues the run exactly where it stopped.
type PauseState struct {
	RootSeed      uint64
	Paused        []PausedLineage
	EventCounters map[necsim.GlobalReference]uint64
}

// pausedRecordSize is the fixed byte size of one encoded PausedLineage +
// event counter: GlobalRef(u64) LastEventTime(f64) HasLocation(u8)
// Loc.X(u32) Loc.Y(u32) Loc.Index(u32) EventTime(f64) EventCounter(u64).
const pausedRecordSize = 8 + 8 + 1 + 4 + 4 + 4 + 8 + 8

// Save writes the snapshot to w as fixed-size records behind a u64 seed
// and a u32 count header.
func (st PauseState) Save(w io.Writer) error {
	var b8 [8]byte
	buf := make([]byte, 0, 8+4+len(st.Paused)*pausedRecordSize)

	putU64 := func(v uint64) { binary.BigEndian.PutUint64(b8[:], v); buf = append(buf, b8[:]...) }
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }
	putU32 := func(v uint32) {
		var b4 [4]byte
		binary.BigEndian.PutUint32(b4[:], v)
		buf = append(buf, b4[:]...)
	}

	putU64(st.RootSeed)
	putU32(uint32(len(st.Paused)))
	for _, p := range st.Paused {
		putU64(uint64(p.Lineage.GlobalRef))
		putF64(p.Lineage.LastEventTime)
		if p.Lineage.IndexedLocation != nil {
			buf = append(buf, 1)
			putU32(p.Lineage.IndexedLocation.Location.X)
			putU32(p.Lineage.IndexedLocation.Location.Y)
			putU32(p.Lineage.IndexedLocation.Index)
		} else {
			buf = append(buf, 0)
			putU32(0)
			putU32(0)
			putU32(0)
		}
		putF64(p.EventTime)
		putU64(st.EventCounters[p.Lineage.GlobalRef])
	}

	if _, err := w.Write(buf); err != nil {
		return necsim.WrapSimError(necsim.IOError, err, "writing pause state")
	}
	return nil
}

// LoadPauseState reads a snapshot previously written by Save.
func LoadPauseState(r io.Reader) (PauseState, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return PauseState{}, necsim.WrapSimError(necsim.IOError, err, "reading pause state header")
	}
	st := PauseState{
		RootSeed:      binary.BigEndian.Uint64(header[:8]),
		EventCounters: make(map[necsim.GlobalReference]uint64),
	}
	count := binary.BigEndian.Uint32(header[8:])

	raw := make([]byte, pausedRecordSize)
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(r, raw); err != nil {
			return PauseState{}, necsim.WrapSimError(necsim.IOError, err, "reading pause state record")
		}
		br := bytes.NewReader(raw)
		readU64 := func() uint64 { var v uint64; _ = binary.Read(br, binary.BigEndian, &v); return v }
		readF64 := func() float64 { return math.Float64frombits(readU64()) }
		readU32 := func() uint32 { var v uint32; _ = binary.Read(br, binary.BigEndian, &v); return v }
		readByte := func() byte { b, _ := br.ReadByte(); return b }

		var p PausedLineage
		p.Lineage.GlobalRef = necsim.GlobalReference(readU64())
		p.Lineage.LastEventTime = readF64()
		hasLoc := readByte()
		x, y, idx := readU32(), readU32(), readU32()
		if hasLoc == 1 {
			p.Lineage.IndexedLocation = &necsim.IndexedLocation{
				Location: necsim.Location{X: x, Y: y}, Index: idx,
			}
		}
		p.EventTime = readF64()
		st.EventCounters[p.Lineage.GlobalRef] = readU64()
		st.Paused = append(st.Paused, p)
	}
	return st, nil
}
