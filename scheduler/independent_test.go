package scheduler

import (
	"math"
	"testing"

	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/lineagestore"
	necsimrng "github.com/kentwait/necsimgo/rng"

	necsim "github.com/kentwait/necsimgo"
)

func independentFixture(t *testing.T, mode IndependentMode, param float64) (*lineagestore.Independent, *Independent) {
	t.Helper()
	store := lineagestore.NewIndependent()
	loc := necsim.Location{X: 0, Y: 0}
	store.Insert(&necsim.Lineage{GlobalRef: 1, IndexedLocation: &necsim.IndexedLocation{Location: loc}})
	store.Insert(&necsim.Lineage{GlobalRef: 2, IndexedLocation: &necsim.IndexedLocation{Location: loc}})
	prime := necsimrng.NewPrimeable(11)
	turnover, err := habitat.NewUniformTurnoverRate(1.0)
	if err != nil {
		t.Fatalf("NewUniformTurnoverRate: %v", err)
	}
	s := NewIndependent(prime, store, turnover, mode, param, 16)
	return store, s
}

func TestIndependentPopNextDrainsAllLineages(t *testing.T) {
	_, s := independentFixture(t, Exponential, 1.0)
	if got := s.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	seen := make(map[necsim.GlobalReference]bool)
	lastTime := -1.0
	for i := 0; i < 2; i++ {
		ref, tm, ok := s.PopNext()
		if !ok {
			t.Fatalf("PopNext() returned ok=false on iteration %d", i)
		}
		if tm <= lastTime {
			t.Fatalf("event time %v did not strictly increase past %v", tm, lastTime)
		}
		lastTime = tm
		seen[ref] = true
	}
	if len(seen) != 2 {
		t.Fatalf("saw %d distinct lineages, want 2", len(seen))
	}
	if _, _, ok := s.PopNext(); ok {
		t.Fatal("PopNext() should report ok=false once the heap is drained")
	}
}

func TestIndependentPoissonModeIsGridAligned(t *testing.T) {
	_, s := independentFixture(t, Poisson, 0.25)
	seen := make(map[necsim.GlobalReference]bool)
	lastTime := -1.0
	for i := 0; i < 2; i++ {
		ref, tm, ok := s.PopNext()
		if !ok {
			t.Fatalf("PopNext() returned ok=false on iteration %d", i)
		}
		if tm <= lastTime {
			t.Fatalf("event time %v did not strictly increase past %v", tm, lastTime)
		}
		if tm < 0.25 {
			t.Fatalf("event time %v must land at or after the first grid boundary 0.25", tm)
		}
		lastTime = tm
		seen[ref] = true
	}
	if len(seen) != 2 {
		t.Fatalf("saw %d distinct lineages, want 2", len(seen))
	}
}

func TestIndependentModesRequireTurnoverForAFiniteDraw(t *testing.T) {
	store := lineagestore.NewIndependent()
	loc := necsim.Location{X: 0, Y: 0}
	store.Insert(&necsim.Lineage{GlobalRef: 1, IndexedLocation: &necsim.IndexedLocation{Location: loc}})
	prime := necsimrng.NewPrimeable(11)
	s := NewIndependent(prime, store, nil, Exponential, 1.0, 16)
	if _, tm, ok := s.PopNext(); ok && !math.IsInf(tm, 1) {
		t.Fatalf("Exponential mode with no turnover rate should yield an infinite wait, got %v", tm)
	}
}

func TestIndependentConstantModeAdvancesByFixedStep(t *testing.T) {
	_, s := independentFixture(t, Constant, 0.5)
	_, tm, ok := s.PopNext()
	if !ok {
		t.Fatal("expected a lineage to pop")
	}
	if tm != 0.5 {
		t.Fatalf("Constant-mode event time = %v, want 0.5", tm)
	}
}

func TestIndependentReinsertReschedulesFromLastEventTime(t *testing.T) {
	store, s := independentFixture(t, Constant, 1.0)
	ref, tm, ok := s.PopNext()
	if !ok {
		t.Fatal("expected a lineage to pop")
	}
	if got := s.Len(); got != 1 {
		t.Fatalf("Len() after one PopNext = %d, want 1", got)
	}

	l, _ := store.ByReference(ref)
	l.LastEventTime = tm
	s.Reinsert(ref)
	if got := s.Len(); got != 2 {
		t.Fatalf("Len() after Reinsert = %d, want 2", got)
	}

	// The fixture's other lineage is still scheduled at tm and pops first.
	s.PopNext()
	_, tm2, ok := s.PopNext()
	if ok && tm2 <= tm {
		t.Fatalf("re-scheduled event time %v did not advance past %v", tm2, tm)
	}
}

func TestIndependentRemoveForgetsLineage(t *testing.T) {
	_, s := independentFixture(t, Exponential, 1.0)
	s.Remove(necsim.GlobalReference(1))
	if got := s.Len(); got != 1 {
		t.Fatalf("Len() after Remove = %d, want 1", got)
	}
}

func TestIndependentCheckCoalescenceDetectsDuplicateFingerprint(t *testing.T) {
	_, s := independentFixture(t, Exponential, 1.0)
	il := necsim.IndexedLocation{Location: necsim.Location{X: 0, Y: 0}, Index: 0}
	if yield := s.CheckCoalescence(il, 3, 7); yield {
		t.Fatal("first observation of a fingerprint must not yield")
	}
	if yield := s.CheckCoalescence(il, 3, 7); !yield {
		t.Fatal("second observation of the same fingerprint must yield")
	}
}

func TestIndependentTimeBucketAlignsToGrid(t *testing.T) {
	_, s := independentFixture(t, Poisson, 0.5)
	if a, b := s.TimeBucket(0.3), s.TimeBucket(0.45); a != b {
		t.Fatalf("times in the same generation bucketed apart: %d vs %d", a, b)
	}
	if a, b := s.TimeBucket(0.3), s.TimeBucket(0.6); a == b {
		t.Fatalf("times in different generations shared bucket %d", a)
	}
}

func TestIndependentScheduleAtReplaysExactTime(t *testing.T) {
	// Exponential mode, so the two fixture lineages do not tie in time.
	_, s := independentFixture(t, Exponential, 1.0)
	ref, tm, ok := s.PopNext()
	if !ok {
		t.Fatal("expected a lineage to pop")
	}
	ecBefore := s.EventCounterOf(ref)

	s.ScheduleAt(ref, tm)
	ref2, tm2, ok := s.PopNext()
	if !ok {
		t.Fatal("expected the re-scheduled lineage to pop")
	}
	if ref2 != ref || tm2 != tm {
		t.Fatalf("PopNext() = (%d, %v), want the replayed (%d, %v)", ref2, tm2, ref, tm)
	}
	if got := s.EventCounterOf(ref); got != ecBefore {
		t.Fatalf("ScheduleAt advanced the event counter to %d, want %d", got, ecBefore)
	}
}

func TestIndependentSetEventCounterRestoresStreamPosition(t *testing.T) {
	_, s := independentFixture(t, Exponential, 1.0)
	s.SetEventCounter(necsim.GlobalReference(1), 5)
	if got := s.EventCounterOf(necsim.GlobalReference(1)); got != 4 {
		t.Fatalf("EventCounterOf after SetEventCounter(5) = %d, want 4", got)
	}
}

func TestIndependentEventCounterOfAdvancesPerDraw(t *testing.T) {
	_, s := independentFixture(t, Exponential, 1.0)
	ref, _, ok := s.PopNext()
	if !ok {
		t.Fatal("expected a lineage to pop")
	}
	if got := s.EventCounterOf(ref); got != 0 {
		t.Fatalf("EventCounterOf after the first draw = %d, want 0", got)
	}
}
