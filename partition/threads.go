package partition

import (
	"sync"

	necsim "github.com/kentwait/necsimgo"
)

// CoherentPartition is the contract partition.Threads needs from a
// simulation partition: run until the local schedule or pause bound is
// exhausted, apply whatever immigrated since the last sync point, and
// report whether any lineage remains active. Declared locally (rather
// than importing package simulation, which already imports partition) to
// avoid a import cycle; *simulation.CoherentSimulation and
// *simulation.IndependentSimulation both satisfy it.
type CoherentPartition interface {
	Run() error
	DrainImmigration() error
	Len() int
}

// SyncMode selects how partitions interleave between migration
// synchronisation points ("Threads{n, migration-interval,
// progress-interval}").
type SyncMode uint8

const (
	// Lockstep advances every partition to the same simulation-time
	// boundary before any of them is allowed past it, via a WaitGroup
	// barrier each round. Strongest ordering guarantee, lowest
	// throughput.
	Lockstep SyncMode = iota
	// Optimistic lets each partition run as far ahead as it likes,
	// draining immigration opportunistically without ever blocking on
	// its peers. Highest throughput, weakest ordering guarantee (only
	// the final result, after all partitions settle, is meaningful).
	Optimistic
	// OptimisticLockstep is driven exactly like Lockstep: a barrier every
	// MigrationStep of simulation time. No partition runs ahead of the
	// shared bound between barriers.
	OptimisticLockstep
	// Averaging advances the shared barrier to the mean of all
	// partitions' local clocks each round rather than a fixed step,
	// smoothing out uneven per-partition event rates.
	Averaging
)

// Threads drives a fixed set of CoherentPartition workers, one goroutine
// each, synchronising their pause bounds according to mode and routing
// emigrated lineages to the partition that owns their target location.
// Grounded on migration_simulation.go's per-generation
// goroutine-plus-WaitGroup-plus-channel round structure, generalized from
// a fixed generation count to a run-to-exhaustion loop over a dynamic
// number of rounds.
type Threads struct {
	Mode          SyncMode
	Decomposition Decomposition
	Partitions    []CoherentPartition
	Immigration   []*BufferedImmigration
	MigrationStep float64

	// SetBound advances partition i's PauseBound to the given time; the
	// caller supplies this because Threads has no visibility into which
	// concrete simulation type backs each partition.
	SetBound func(partitionIndex int, before float64)
	// ClockOf reports partition i's current local simulation clock, used
	// by the Averaging sync mode.
	ClockOf func(partitionIndex int) float64

	// MaxBound, when > 0, is the user's pause-before time: no partition's
	// bound is advanced past it, and the run finishes (with lineages still
	// set aside) once every partition has been driven to it and all
	// migration buffers are empty.
	MaxBound float64
}

// Outbox, as a method value, is suitable for a partition's Outbox field: it
// looks up the owning partition via t.Decomposition and pushes m onto
// that partition's immigration buffer.
func (t *Threads) Outbox(m necsim.MigratingLineage) {
	rank := t.Decomposition.RankOf(m.Target)
	if int(rank) >= len(t.Immigration) {
		return
	}
	t.Immigration[rank].Push(m)
}

// Run drives every partition to exhaustion, synchronising according to
// Mode. It returns the first error any partition's Run reports.
func (t *Threads) Run() error {
	switch t.Mode {
	case Lockstep, OptimisticLockstep, Averaging:
		return t.runBarriered()
	default:
		return t.runOptimistic()
	}
}

// runOptimistic lets every partition run to local exhaustion concurrently
// with no shared time bound. Termination is a vote between rounds: a round
// runs every partition until it is locally quiescent, then the partitions
// are checked together — if any still holds a lineage or an undrained
// immigration buffer (a migrant may arrive after its target went quiet),
// another round is run. Only when every partition is empty and every
// buffer drained in the same vote does the run finish.
func (t *Threads) runOptimistic() error {
	if t.MaxBound > 0 && t.SetBound != nil {
		for i := range t.Partitions {
			t.SetBound(i, t.MaxBound)
		}
	}

	for {
		var wg sync.WaitGroup
		errs := make([]error, len(t.Partitions))

		wg.Add(len(t.Partitions))
		for i, p := range t.Partitions {
			go func(i int, p CoherentPartition) {
				defer wg.Done()
				for {
					if err := p.Run(); err != nil {
						errs[i] = err
						return
					}
					if !t.Immigration[i].Pending() {
						// Locally quiescent; the vote below decides whether
						// a peer's late migrant forces another round.
						return
					}
					if err := p.DrainImmigration(); err != nil {
						errs[i] = err
						return
					}
				}
			}(i, p)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return err
			}
		}

		done := true
		pending := false
		for i, p := range t.Partitions {
			if err := p.DrainImmigration(); err != nil {
				return err
			}
			if p.Len() > 0 {
				done = false
			}
			if t.Immigration[i].Pending() {
				done = false
				pending = true
			}
		}
		if done {
			return nil
		}
		// Every partition has been driven to the pause bound; what remains
		// is set-aside state for a later resume, not runnable work.
		if t.MaxBound > 0 && !pending {
			return nil
		}
	}
}

// runBarriered advances every partition's pause bound by one step, runs
// them concurrently to that bound, barriers on a WaitGroup, drains
// immigration, and repeats until every partition is both empty and
// immigration-quiescent. Lockstep uses a fixed MigrationStep; Averaging
// recomputes the next bound from the mean of all partitions' clocks;
// OptimisticLockstep takes the same fixed-step path as Lockstep. The bound
// is enforced by each concrete simulation's PauseBound check.
func (t *Threads) runBarriered() error {
	bound := t.MigrationStep
	if t.MaxBound > 0 && bound > t.MaxBound {
		bound = t.MaxBound
	}

	for {
		var wg sync.WaitGroup
		errs := make([]error, len(t.Partitions))

		wg.Add(len(t.Partitions))
		for i, p := range t.Partitions {
			t.SetBound(i, bound)
			go func(i int, p CoherentPartition) {
				defer wg.Done()
				errs[i] = p.Run()
			}(i, p)
		}
		wg.Wait()

		for _, err := range errs {
			if err != nil {
				return err
			}
		}

		for _, p := range t.Partitions {
			if err := p.DrainImmigration(); err != nil {
				return err
			}
		}

		done := true
		pending := false
		for i, p := range t.Partitions {
			if p.Len() > 0 {
				done = false
			}
			if t.Immigration[i].Pending() {
				done = false
				pending = true
			}
		}
		if done {
			return nil
		}
		if t.MaxBound > 0 && bound >= t.MaxBound && !pending {
			return nil
		}

		switch t.Mode {
		case Averaging:
			var sum float64
			for i := range t.Partitions {
				sum += t.ClockOf(i)
			}
			mean := sum / float64(len(t.Partitions))
			bound = mean + t.MigrationStep
		default:
			bound += t.MigrationStep
		}
		if t.MaxBound > 0 && bound > t.MaxBound {
			bound = t.MaxBound
		}
	}
}
