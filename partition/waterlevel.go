package partition

import (
	"sort"

	necsim "github.com/kentwait/necsimgo"
)

// Timed is anything with an event time plus the two tie-break keys spec.md
// §5 requires for cross-partition ordering: Rank, the producing partition's
// index, and Lineage, the acting lineage's global reference. WaterLevel can
// order arbitrary per-partition payloads (necsimgo.Event in practice) this
// way.
type Timed interface {
	Time() float64
	Rank() int
	Lineage() necsim.GlobalReference
}

// RankedEvent wraps a necsimgo.Event with the index of the partition that
// produced it, giving it the full (event_time, partition-rank,
// lineage-global-reference) tie-break key WaterLevel sorts by.
type RankedEvent struct {
	necsim.Event
	PartitionRank int
}

func (r RankedEvent) Rank() int                       { return r.PartitionRank }
func (r RankedEvent) Lineage() necsim.GlobalReference { return r.Event.Lineage }

// WaterLevel buffers events produced asynchronously by a partition and
// emits them to a sink in strict time order as the shared water-level
// horizon advances, bounding memory to events within one advance window.
// "Slow" events (below the current level) are merge-sorted
// and drained every Advance; "fast" events (at or above the new level) are
// held and re-bucketed. sort.Stable — not a specialised run-merger — is
// enough here: batches between advances are small, and no pack library
// offers a better fit for sorting an in-memory slice of one struct shape.
type WaterLevel[T Timed] struct {
	level float64
	slow  []T
	fast  []T
}

// NewWaterLevel constructs a WaterLevel starting at level 0.
func NewWaterLevel[T Timed]() *WaterLevel[T] {
	return &WaterLevel[T]{}
}

// Push buckets e into slow or fast depending on the current level.
func (w *WaterLevel[T]) Push(e T) {
	if e.Time() < w.level {
		w.slow = append(w.slow, e)
	} else {
		w.fast = append(w.fast, e)
	}
}

// Advance raises the water level to newLevel, merge-sorts and returns every
// buffered event below it (fully draining the slow buffer), and re-buckets
// whatever remains of the fast buffer against the new level.
func (w *WaterLevel[T]) Advance(newLevel float64) []T {
	if newLevel < w.level {
		newLevel = w.level
	}
	w.level = newLevel

	var stillFast []T
	for _, e := range w.fast {
		if e.Time() < w.level {
			w.slow = append(w.slow, e)
		} else {
			stillFast = append(stillFast, e)
		}
	}
	w.fast = stillFast

	sort.SliceStable(w.slow, func(i, j int) bool { return less(w.slow[i], w.slow[j]) })
	drained := w.slow
	w.slow = nil
	return drained
}

// less orders a before b by (event_time, partition-rank,
// lineage-global-reference), lexicographically, matching spec.md §5's
// cross-partition tie-break rule for events sharing an exact event_time.
func less[U Timed](a, b U) bool {
	if a.Time() != b.Time() {
		return a.Time() < b.Time()
	}
	if a.Rank() != b.Rank() {
		return a.Rank() < b.Rank()
	}
	return a.Lineage() < b.Lineage()
}

// Level returns the current water level.
func (w *WaterLevel[T]) Level() float64 { return w.level }

// Pending reports whether any event is still buffered (slow or fast).
func (w *WaterLevel[T]) Pending() bool { return len(w.slow) > 0 || len(w.fast) > 0 }
