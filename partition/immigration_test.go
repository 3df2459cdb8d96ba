package partition

import (
	"sync"
	"testing"

	necsim "github.com/kentwait/necsimgo"
)

func TestNeverImmigrationDrainsNothing(t *testing.T) {
	var n NeverImmigration
	if got := n.Drain(); got != nil {
		t.Fatalf("Drain() = %v, want nil", got)
	}
}

func TestBufferedImmigrationPushDrain(t *testing.T) {
	b := NewBufferedImmigration()
	if b.Pending() {
		t.Fatal("a freshly constructed buffer should have nothing pending")
	}

	m1 := necsim.MigratingLineage{Lineage: necsim.Lineage{GlobalRef: 1}}
	m2 := necsim.MigratingLineage{Lineage: necsim.Lineage{GlobalRef: 2}}
	b.Push(m1)
	b.Push(m2)
	if !b.Pending() {
		t.Fatal("buffer should report pending after a Push")
	}

	got := b.Drain()
	if len(got) != 2 {
		t.Fatalf("Drain() returned %d records, want 2", len(got))
	}
	if b.Pending() {
		t.Fatal("buffer should report not-pending immediately after Drain")
	}
	if empty := b.Drain(); empty != nil {
		t.Fatalf("second Drain() = %v, want nil", empty)
	}
}

func TestBufferedImmigrationConcurrentPush(t *testing.T) {
	b := NewBufferedImmigration()
	var wg sync.WaitGroup
	const n = 100
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(ref necsim.GlobalReference) {
			defer wg.Done()
			b.Push(necsim.MigratingLineage{Lineage: necsim.Lineage{GlobalRef: ref}})
		}(necsim.GlobalReference(i))
	}
	wg.Wait()
	if got := len(b.Drain()); got != n {
		t.Fatalf("Drain() returned %d records, want %d", got, n)
	}
}
