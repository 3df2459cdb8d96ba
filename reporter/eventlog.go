package reporter

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/segmentio/ksuid"

	necsim "github.com/kentwait/necsimgo"
)

// eventRecordSize is the fixed byte size of one encoded Event: Kind(u8)
// Lineage(u64) Origin.X/Y(u32,u32) OriginIndex(u32) Target.X/Y(u32,u32)
// PriorTime(f64) EventTime(f64) Interaction(u8) Parent(u64).
const eventRecordSize = 1 + 8 + 4 + 4 + 4 + 4 + 4 + 8 + 8 + 1 + 8

func encodeEvent(buf []byte, e necsim.Event) []byte {
	var b8 [8]byte
	putU64 := func(v uint64) { binary.BigEndian.PutUint64(b8[:], v); buf = append(buf, b8[:]...) }
	putF64 := func(v float64) { putU64(math.Float64bits(v)) }
	putU32 := func(v uint32) {
		var b4 [4]byte
		binary.BigEndian.PutUint32(b4[:], v)
		buf = append(buf, b4[:]...)
	}

	buf = append(buf, byte(e.Kind))
	putU64(uint64(e.Lineage))
	putU32(e.Origin.X)
	putU32(e.Origin.Y)
	putU32(e.OriginIndex)
	putU32(e.Target.X)
	putU32(e.Target.Y)
	putF64(e.PriorTime)
	putF64(e.EventTime)
	buf = append(buf, byte(e.Interaction))
	putU64(uint64(e.Parent))
	return buf
}

func decodeEvent(r io.Reader) (necsim.Event, error) {
	raw := make([]byte, eventRecordSize)
	if _, err := io.ReadFull(r, raw); err != nil {
		return necsim.Event{}, err
	}
	br := bytes.NewReader(raw)
	readByte := func() byte { b, _ := br.ReadByte(); return b }
	readU64 := func() uint64 { var v uint64; _ = binary.Read(br, binary.BigEndian, &v); return v }
	readU32 := func() uint32 { var v uint32; _ = binary.Read(br, binary.BigEndian, &v); return v }
	readF64 := func() float64 { return math.Float64frombits(readU64()) }

	var e necsim.Event
	e.Kind = necsim.EventKind(readByte())
	e.Lineage = necsim.GlobalReference(readU64())
	e.Origin = necsim.Location{X: readU32(), Y: readU32()}
	e.OriginIndex = readU32()
	e.Target = necsim.Location{X: readU32(), Y: readU32()}
	e.PriorTime = readF64()
	e.EventTime = readF64()
	e.Interaction = necsim.Interaction(readByte())
	e.Parent = necsim.GlobalReference(readU64())
	return e, nil
}

// ChunkMetadata is the terminating metadata record that lets `replay` (and
// a resumed run) learn the state of the last two events recorded in a
// chunk file without re-scanning it.
type ChunkMetadata struct {
	LastParentPriorTime float64
	LastSpeciation      *necsim.Event
	LastDispersal       *necsim.Event
}

func encodeMetadata(m ChunkMetadata) []byte {
	buf := make([]byte, 0, 8+1+eventRecordSize+1+eventRecordSize)
	var b8 [8]byte
	binary.BigEndian.PutUint64(b8[:], math.Float64bits(m.LastParentPriorTime))
	buf = append(buf, b8[:]...)

	if m.LastSpeciation != nil {
		buf = append(buf, 1)
		buf = encodeEvent(buf, *m.LastSpeciation)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, eventRecordSize)...)
	}
	if m.LastDispersal != nil {
		buf = append(buf, 1)
		buf = encodeEvent(buf, *m.LastDispersal)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, eventRecordSize)...)
	}
	return buf
}

func decodeMetadata(r io.Reader) (ChunkMetadata, error) {
	var m ChunkMetadata
	var b8 [8]byte
	if _, err := io.ReadFull(r, b8[:]); err != nil {
		return m, err
	}
	m.LastParentPriorTime = math.Float64frombits(binary.BigEndian.Uint64(b8[:]))

	readOptionalEvent := func() (*necsim.Event, error) {
		var flag [1]byte
		if _, err := io.ReadFull(r, flag[:]); err != nil {
			return nil, err
		}
		e, err := decodeEvent(r)
		if err != nil {
			return nil, err
		}
		if flag[0] == 0 {
			return nil, nil
		}
		return &e, nil
	}

	spec, err := readOptionalEvent()
	if err != nil {
		return m, err
	}
	m.LastSpeciation = spec

	disp, err := readOptionalEvent()
	if err != nil {
		return m, err
	}
	m.LastDispersal = disp

	return m, nil
}

// Section tags distinguishing the record kinds inside a chunk file, so a
// reader never has to guess whether the next bytes are another batch or
// the terminating metadata.
const (
	sectionBatch    byte = 0
	sectionMetadata byte = 1
)

// ChunkWriter appends self-describing batches of events to one event-log
// chunk file: each batch is a tag byte, a u32 count, and that many
// fixed-size Event records; Close appends a tagged terminating
// ChunkMetadata record. Each sorted batch handed off by a partition's
// water-level buffer becomes one batch section.
type ChunkWriter struct {
	f    *os.File
	path string
}

// NewChunkWriter creates a new chunk file under dir for the given
// partition rank, named with a ksuid so filenames are both unique and
// lexically time-ordered.
func NewChunkWriter(dir string, partitionRank uint32) (*ChunkWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, necsim.WrapSimError(necsim.IOError, err, "creating event log directory "+dir)
	}
	name := fmt.Sprintf("partition-%03d-%s.nlog", partitionRank, ksuid.New().String())
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, necsim.WrapSimError(necsim.IOError, err, "creating event log chunk "+path)
	}
	return &ChunkWriter{f: f, path: path}, nil
}

// Path returns the chunk file's path.
func (w *ChunkWriter) Path() string { return w.path }

// WriteBatch appends a sorted batch of events to the chunk.
func (w *ChunkWriter) WriteBatch(events []necsim.Event) error {
	var header [5]byte
	header[0] = sectionBatch
	binary.BigEndian.PutUint32(header[1:], uint32(len(events)))
	if _, err := w.f.Write(header[:]); err != nil {
		return err
	}
	buf := make([]byte, 0, len(events)*eventRecordSize)
	for _, e := range events {
		buf = encodeEvent(buf, e)
	}
	_, err := w.f.Write(buf)
	return err
}

// Close writes the terminating metadata record and closes the chunk file.
func (w *ChunkWriter) Close(meta ChunkMetadata) error {
	if _, err := w.f.Write([]byte{sectionMetadata}); err != nil {
		return err
	}
	if _, err := w.f.Write(encodeMetadata(meta)); err != nil {
		return err
	}
	return w.f.Close()
}

// ReadChunk reads every event batch and the terminating metadata record
// from one chunk file, for `replay` and for resume-state recovery.
func ReadChunk(path string) ([]necsim.Event, ChunkMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ChunkMetadata{}, necsim.WrapSimError(necsim.IOError, err, "opening event log chunk "+path)
	}
	defer f.Close()

	var events []necsim.Event
	for {
		var tag [1]byte
		if _, err := io.ReadFull(f, tag[:]); err != nil {
			if err == io.EOF {
				// Truncated chunk (the run aborted before Close): the batches
				// read so far are still a consistent prefix.
				return events, ChunkMetadata{}, nil
			}
			return nil, ChunkMetadata{}, err
		}

		switch tag[0] {
		case sectionBatch:
			var countBuf [4]byte
			if _, err := io.ReadFull(f, countBuf[:]); err != nil {
				return nil, ChunkMetadata{}, err
			}
			count := binary.BigEndian.Uint32(countBuf[:])
			for i := uint32(0); i < count; i++ {
				e, err := decodeEvent(f)
				if err != nil {
					return nil, ChunkMetadata{}, err
				}
				events = append(events, e)
			}
		case sectionMetadata:
			meta, err := decodeMetadata(f)
			if err != nil {
				return nil, ChunkMetadata{}, err
			}
			return events, meta, nil
		default:
			return nil, ChunkMetadata{}, necsim.NewSimError(necsim.IOError,
				"event log chunk %s has unknown section tag %d", path, tag[0])
		}
	}
}

// ListChunks returns every "*.nlog" chunk file path under dir in
// lexical (ksuid time-sortable) order.
func ListChunks(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.nlog"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
