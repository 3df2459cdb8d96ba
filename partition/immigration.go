package partition

import (
	"sync"

	necsim "github.com/kentwait/necsimgo"
)

// ImmigrationEntry is the C9 cog: receives lineages arriving from other
// partitions into the local schedule.
type ImmigrationEntry interface {
	// Drain returns every MigratingLineage received since the last Drain
	// call, clearing the internal buffer. Called at scheduled
	// synchronisation points.
	Drain() []necsim.MigratingLineage
}

// NeverImmigration is used in monolithic mode: it never has anything to
// drain.
type NeverImmigration struct{}

func (NeverImmigration) Drain() []necsim.MigratingLineage { return nil }

// BufferedImmigration is a thread-safe single-producer/single-consumer-per-
// pair buffered queue, drained at scheduled synchronisation points in
// partitioned modes. Grounded on migration_simulation.go's
// channel-plus-mutex collector idiom, generalized from a single
// per-generation channel drain to a persistent buffer accumulated between
// synchronisation points.
type BufferedImmigration struct {
	mu     sync.Mutex
	buffer []necsim.MigratingLineage
}

// NewBufferedImmigration constructs an empty BufferedImmigration queue.
func NewBufferedImmigration() *BufferedImmigration {
	return &BufferedImmigration{}
}

// Push appends an incoming MigratingLineage, called by the transport layer
// (threads or MPI) when a message for this partition arrives.
func (b *BufferedImmigration) Push(m necsim.MigratingLineage) {
	b.mu.Lock()
	b.buffer = append(b.buffer, m)
	b.mu.Unlock()
}

// Drain returns and clears the buffer.
func (b *BufferedImmigration) Drain() []necsim.MigratingLineage {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.buffer
	b.buffer = nil
	return out
}

// Pending reports whether the buffer currently holds anything, used by the
// has-pending-buffer half of the termination all-reduce.
func (b *BufferedImmigration) Pending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffer) > 0
}
