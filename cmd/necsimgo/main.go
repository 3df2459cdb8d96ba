// Command necsimgo runs a spatially-explicit neutral coalescence
// simulation from a declarative TOML configuration file, or replays a
// previously recorded event log through a fresh set of reporters.
// Grounded on bin/contagion/main.go's flag-then-load-then-dispatch shape.
package main

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"math"
	mrand "math/rand"
	"os"
	"strings"
	"time"

	"github.com/kentwait/necsimgo/coalescence"
	"github.com/kentwait/necsimgo/config"
	"github.com/kentwait/necsimgo/dispersal"
	"github.com/kentwait/necsimgo/eventsampler"
	"github.com/kentwait/necsimgo/habitat"
	"github.com/kentwait/necsimgo/identity"
	"github.com/kentwait/necsimgo/lineagestore"
	"github.com/kentwait/necsimgo/partition"
	"github.com/kentwait/necsimgo/reporter"
	"github.com/kentwait/necsimgo/scheduler"
	"github.com/kentwait/necsimgo/simulation"

	necsim "github.com/kentwait/necsimgo"
	necsimrng "github.com/kentwait/necsimgo/rng"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "simulate":
		runSimulate(os.Args[2:])
	case "replay":
		runReplay(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  necsimgo simulate <config.toml>")
	fmt.Fprintln(os.Stderr, "  necsimgo replay <event-log-dir> <reporter>...")
	os.Exit(2)
}

func runSimulate(args []string) {
	fs := flag.NewFlagSet("simulate", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 1 {
		log.Fatal("simulate: a config file path is required")
	}

	cfg, err := config.Load(fs.Arg(0))
	if err != nil {
		log.Fatal(err)
	}

	h, err := buildHabitat(cfg.Scenario)
	if err != nil {
		log.Fatal(err)
	}
	speciation, err := buildSpeciation(cfg.Speciation, cfg.Scenario)
	if err != nil {
		log.Fatal(err)
	}
	disp, err := buildDispersal(cfg.Scenario)
	if err != nil {
		log.Fatal(err)
	}

	root, err := buildRNGSource(cfg.RNG)
	if err != nil {
		log.Fatal(err)
	}

	rep, err := buildReporters(cfg.Reporters)
	if err != nil {
		log.Fatal(err)
	}
	defer rep.Close()

	start := time.Now()
	threaded := cfg.Partitioning.Kind == "threads"
	switch {
	case cfg.Algorithm.Kind == "independent" && threaded:
		err = runIndependentThreads(cfg, h, speciation, disp, root, rep)
	case cfg.Algorithm.Kind == "independent":
		err = runIndependent(cfg, h, speciation, disp, root, rep)
	case threaded:
		err = runCoherentThreads(cfg, h, speciation, disp, root, rep)
	default:
		err = runCoherent(cfg, h, speciation, disp, root, rep)
	}
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("simulation finished in %s", time.Since(start))
}

// buildFineHabitat constructs the Habitat cog at the scenario's native
// resolution. Spatially implicit and non-spatial scenarios both collapse
// to a single uniform deme; almost-infinite scenarios use a habitat large
// enough that the Gaussian kernel's samples essentially never escape it.
func buildFineHabitat(s config.ScenarioConfig) (habitat.Habitat, error) {
	switch s.Kind {
	case "spatially_explicit":
		if len(s.Capacities) > 0 {
			return habitat.NewInMemoryGrid(s.Width, s.Height, s.Capacities)
		}
		return habitat.NewUniformGrid(s.Width, s.Height, s.CapacityOrDefault()), nil
	case "spatially_implicit":
		return habitat.NewUniformGrid(s.Width, s.Height, s.CapacityOrDefault()), nil
	case "non_spatial":
		return habitat.NewUniformGrid(1, 1, s.Deme), nil
	case "almost_infinite":
		width, height := almostInfiniteExtent(s)
		return habitat.NewUniformGrid(width, height, 1), nil
	default:
		return nil, necsim.NewSimError(necsim.ConfigurationError, "unknown scenario.kind %q", s.Kind)
	}
}

// buildHabitat returns the habitat the simulation actually runs on: the
// fine habitat, or its coarsened form when downscaling is configured
// (demes of capacity factor*factor times the original).
func buildHabitat(s config.ScenarioConfig) (habitat.Habitat, error) {
	h, err := buildFineHabitat(s)
	if err != nil || s.DownscaleFactor <= 1 {
		return h, err
	}
	k := s.DownscaleFactor
	return habitat.NewUniformGrid(s.Width/k, s.Height/k, s.CapacityOrDefault()*k*k), nil
}

// almostInfiniteExtent sizes a bounded square grid, starting at (0,0),
// spanning 16 standard deviations of the configured sigma plus the sample
// diameter (at least 3 cells per side). centre_x/centre_y are not used here.
func almostInfiniteExtent(s config.ScenarioConfig) (width, height uint32) {
	span := uint32(s.Sigma*16) + 2*s.SampleRadius + 1
	if span < 3 {
		span = 3
	}
	return span, span
}

func buildSpeciation(nu float64, s config.ScenarioConfig) (habitat.SpeciationProbability, error) {
	if len(s.TurnoverByLocation) > 0 {
		// A per-location turnover table implies a per-location speciation
		// probability table is also plausible, but this build only
		// exposes a single global speciation value; every location shares
		// it.
		_ = s.TurnoverByLocation
	}
	return habitat.NewUniformSpeciationProbability(nu)
}

func buildTurnover(s config.ScenarioConfig, h habitat.Habitat) (habitat.TurnoverRate, error) {
	if len(s.TurnoverByLocation) > 0 {
		table := make(map[necsim.Location]float64, len(s.TurnoverByLocation))
		for key, v := range s.TurnoverByLocation {
			loc, err := parseLocationKey(key)
			if err != nil {
				return nil, err
			}
			table[loc] = v
		}
		return habitat.NewMapTurnoverRate(h, table)
	}
	rate := s.Turnover
	if rate <= 0 {
		rate = 0.5
	}
	return habitat.NewUniformTurnoverRate(rate)
}

func parseLocationKey(key string) (necsim.Location, error) {
	var x, y uint32
	if _, err := fmt.Sscanf(key, "%d,%d", &x, &y); err != nil {
		return necsim.Location{}, necsim.NewSimError(necsim.ConfigurationError,
			"scenario.turnover_by_location key %q is not \"x,y\"", key)
	}
	return necsim.Location{X: x, Y: y}, nil
}

// buildDispersalMatrix validates and builds the dense dispersal matrix
// against the scenario's fine habitat.
func buildDispersalMatrix(s config.ScenarioConfig) (habitat.Habitat, *dispersal.Matrix, error) {
	if len(s.Dispersal) == 0 {
		return nil, nil, necsim.NewSimError(necsim.ConfigurationError,
			"scenario.dispersal matrix is required for scenario %q", s.Kind)
	}
	fine, err := buildFineHabitat(s)
	if err != nil {
		return nil, nil, err
	}
	m, err := dispersal.NewMatrix(fine, s.Dispersal)
	if err != nil {
		return nil, nil, err
	}
	return fine, m, nil
}

// buildDownscaled wraps the fine-scale separable alias kernel in the
// coarsening wrapper, estimating each coarse origin's self-dispersal
// probability by Monte Carlo at construction (fixed seed, so every worker
// builds an identical table).
func buildDownscaled(fine habitat.Habitat, m *dispersal.Matrix, s config.ScenarioConfig) (*dispersal.Downscaled, error) {
	k := s.DownscaleFactor
	samples := s.DownscaleSamples
	if samples <= 0 {
		samples = 10000
	}
	threshold := s.DownscaleThreshold
	if threshold <= 0 {
		// Always precompute the non-self alias table: keeps SampleNonSelf
		// rejection-free, which the Event-Skipping sampler requires.
		threshold = 1
	}
	var origins []necsim.Location
	for y := uint32(0); y < s.Height/k; y++ {
		for x := uint32(0); x < s.Width/k; x++ {
			origins = append(origins, necsim.Location{X: x, Y: y})
		}
	}
	return dispersal.NewDownscaled(dispersal.NewInMemorySeparableAlias(fine, m), k, origins, samples, threshold)
}

// buildDispersal constructs the dispersal sampler appropriate to the
// scenario: an in-memory alias table from a dense matrix for spatially
// explicit/implicit scenarios (coarsened through the downscaling wrapper
// when configured), or an analytic Gaussian kernel for almost-infinite
// ones.
func buildDispersal(s config.ScenarioConfig) (dispersal.Sampler, error) {
	if s.Kind == "almost_infinite" {
		return dispersal.NewGaussianKernel(s.Sigma)
	}
	fine, m, err := buildDispersalMatrix(s)
	if err != nil {
		return nil, err
	}
	if s.DownscaleFactor > 1 {
		return buildDownscaled(fine, m, s)
	}
	return dispersal.NewInMemoryAlias(m), nil
}

// buildSeparableDispersal is used only by the Event-Skipping algorithm,
// which needs RejectionFree() == true.
func buildSeparableDispersal(s config.ScenarioConfig) (dispersal.SeparableSampler, error) {
	if s.Kind == "almost_infinite" {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			"algorithm.kind \"event_skipping\" requires a rejection-free separable kernel; the Gaussian almost_infinite kernel is rejection-based")
	}
	fine, m, err := buildDispersalMatrix(s)
	if err != nil {
		return nil, err
	}
	if s.DownscaleFactor > 1 {
		return buildDownscaled(fine, m, s)
	}
	return dispersal.NewInMemorySeparableAlias(fine, m), nil
}

// buildRNGSource seeds the root RNG source per the configured discipline.
// Sponge/state modes hex-decode the supplied bytes and use the first 8 of
// them (zero-padded if fewer) as a big-endian 64-bit seed, since a raw byte
// blob has no canonical wider RNG state to resume here.
func buildRNGSource(c config.RNGConfig) (*necsimrng.Source, error) {
	switch c.Mode {
	case "", "entropy":
		var b [8]byte
		if _, err := rand.Read(b[:]); err != nil {
			return nil, necsim.WrapSimError(necsim.IOError, err, "reading entropy for rng seed")
		}
		return necsimrng.FromSeed(binary.BigEndian.Uint64(b[:])), nil
	case "seed":
		return necsimrng.FromSeed(c.Seed), nil
	case "sponge":
		seed, err := seedFromHex(c.SpongeHex)
		if err != nil {
			return nil, err
		}
		return necsimrng.FromSeed(seed), nil
	case "state":
		seed, err := seedFromHex(c.StateHex)
		if err != nil {
			return nil, err
		}
		return necsimrng.FromSeed(seed), nil
	case "state_else_sponge":
		hexStr := c.StateHex
		if hexStr == "" {
			hexStr = c.SpongeHex
		}
		seed, err := seedFromHex(hexStr)
		if err != nil {
			return nil, err
		}
		return necsimrng.FromSeed(seed), nil
	default:
		return nil, necsim.NewSimError(necsim.ConfigurationError, "unknown rng.mode %q", c.Mode)
	}
}

func seedFromHex(s string) (uint64, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return 0, necsim.WrapSimError(necsim.ConfigurationError, err, "decoding rng hex bytes")
	}
	var b [8]byte
	copy(b[:], raw)
	return binary.BigEndian.Uint64(b[:]), nil
}

// buildReporters parses each "<kind>:<path>" descriptor in specs and
// fans them out through a reporter.Multi.
func buildReporters(specs []string) (reporter.Reporter, error) {
	if len(specs) == 0 {
		return reporter.Discard{}, nil
	}
	var multi reporter.Multi
	for _, spec := range specs {
		kind, path, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, necsim.NewSimError(necsim.ConfigurationError,
				"reporter descriptor %q must be \"kind:path\"", spec)
		}
		switch kind {
		case "csv":
			r, err := reporter.NewCSVReporter(path)
			if err != nil {
				return nil, err
			}
			multi = append(multi, r)
		case "sqlite":
			r, err := reporter.NewSQLiteReporter(path)
			if err != nil {
				return nil, err
			}
			multi = append(multi, r)
		case "eventlog":
			w, err := reporter.NewChunkWriter(path, 0)
			if err != nil {
				return nil, err
			}
			multi = append(multi, &chunkReporter{w: w})
		default:
			return nil, necsim.NewSimError(necsim.ConfigurationError, "unknown reporter kind %q", kind)
		}
	}
	return multi, nil
}

// chunkReporter adapts a reporter.ChunkWriter (batch-oriented) to the
// per-event Reporter contract, buffering every event in memory and
// flushing it as a single batch on Close. Acceptable for the CLI's
// single-process, single-partition run; a partitioned deployment would
// flush per water-level batch instead (see partition.Threads).
type chunkReporter struct {
	w      *reporter.ChunkWriter
	events []necsim.Event
}

func (c *chunkReporter) Report(e necsim.Event) error {
	c.events = append(c.events, e)
	return nil
}

func (c *chunkReporter) Close() error {
	if err := c.w.WriteBatch(c.events); err != nil {
		return err
	}
	var meta reporter.ChunkMetadata
	for i := range c.events {
		e := c.events[i]
		if e.IsSpeciation() {
			meta.LastSpeciation = &e
		} else {
			meta.LastDispersal = &e
		}
	}
	return c.w.Close(meta)
}

// seedCoherent populates store with one lineage per sampled occupied
// slot, independently drawing each slot's inclusion with probability
// sample.Percentage.
func seedCoherent(h habitat.Habitat, store *lineagestore.Coherent, alloc *necsim.GlobalReferenceAllocator, sample config.SampleConfig, rng *mrand.Rand) ([]necsim.GlobalReference, error) {
	if sample.Origin == "list" {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			"sample.origin \"list\": reading an external sample-location file is an external-collaborator contract")
	}
	width, height := h.Extent()
	var refs []necsim.GlobalReference
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			cap := h.CapacityAt(loc)
			for idx := uint32(0); idx < cap; idx++ {
				if rng.Float64() >= sample.Percentage {
					continue
				}
				ref := alloc.Next()
				l := &necsim.Lineage{GlobalRef: ref, Active: true}
				store.Insert(l, necsim.IndexedLocation{Location: loc, Index: idx})
				refs = append(refs, ref)
			}
		}
	}
	return refs, nil
}

// seedIndependent populates store the same way as seedCoherent, but one
// lineage per habitable location rather than per slot, since the
// Independent algorithm's store carries no per-slot occupancy.
func seedIndependent(h habitat.Habitat, store *lineagestore.Independent, alloc *necsim.GlobalReferenceAllocator, sample config.SampleConfig, rng *mrand.Rand) error {
	if sample.Origin == "list" {
		return necsim.NewSimError(necsim.ConfigurationError,
			"sample.origin \"list\": reading an external sample-location file is an external-collaborator contract")
	}
	width, height := h.Extent()
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			if h.CapacityAt(loc) == 0 {
				continue
			}
			if rng.Float64() >= sample.Percentage {
				continue
			}
			ref := alloc.Next()
			il := necsim.IndexedLocation{Location: loc}
			l := &necsim.Lineage{GlobalRef: ref, Active: true, IndexedLocation: &il}
			store.Insert(l)
		}
	}
	return nil
}

func buildDecomposition(p config.PartitionConfig, h habitat.Habitat) (partition.Decomposition, error) {
	switch p.Decomposition {
	case "", "equal_area":
		return partition.NewEqualArea(h, uint32(p.Threads)), nil
	case "equal_weight":
		return partition.NewEqualWeight(h, uint32(p.Threads)), nil
	default:
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			"unknown partitioning.decomposition %q", p.Decomposition)
	}
}

func syncModeOf(p config.PartitionConfig) partition.SyncMode {
	switch p.Sync {
	case "lockstep":
		return partition.Lockstep
	case "optimistic_lockstep":
		return partition.OptimisticLockstep
	case "averaging":
		return partition.Averaging
	default:
		return partition.Optimistic
	}
}

// collectingReporter buffers one partition's events in memory so they can
// be globally time-ordered through a water level after the partitions
// settle. Each partition goroutine owns exactly one, so no locking.
type collectingReporter struct {
	rank   int
	events []partition.RankedEvent
}

func (c *collectingReporter) Report(e necsim.Event) error {
	c.events = append(c.events, partition.RankedEvent{Event: e, PartitionRank: c.rank})
	return nil
}

func (c *collectingReporter) Close() error { return nil }

// mergeAndReport drains every partition's collected events through a
// water level, so the final stream handed to rep is strictly ordered by
// (event_time, partition rank, lineage reference).
func mergeAndReport(collectors []*collectingReporter, rep reporter.Reporter) error {
	wl := partition.NewWaterLevel[partition.RankedEvent]()
	for _, c := range collectors {
		for _, e := range c.events {
			wl.Push(e)
		}
	}
	for _, e := range wl.Advance(math.Inf(1)) {
		if err := rep.Report(e.Event); err != nil {
			return err
		}
	}
	return nil
}

// runCoherent wires and drives the Classical, Gillespie, or Event-Skipping
// active-lineage sampler over a single, monolithic partition. Partitioned
// runs over OS threads are wired by runCoherentThreads instead.
func runCoherent(cfg *config.Config, h habitat.Habitat, speciation habitat.SpeciationProbability, disp dispersal.Sampler, root *necsimrng.Source, rep reporter.Reporter) error {
	store := lineagestore.NewCoherent(h)
	alloc := necsim.NewGlobalReferenceAllocator()
	initial, err := seedCoherent(h, store, alloc, cfg.Sample, root.Rand)
	if err != nil {
		return err
	}

	turnover, err := buildTurnover(cfg.Scenario, h)
	if err != nil {
		return err
	}

	var sched scheduler.ActiveLineageSampler
	var samp simulation.EventSampler
	var coal coalescence.Sampler

	switch cfg.Algorithm.Kind {
	case "event_skipping":
		sep, err := buildSeparableDispersal(cfg.Scenario)
		if err != nil {
			return err
		}
		es, err := scheduler.NewEventSkipping(root.Rand, h, turnover, sep, store)
		if err != nil {
			return err
		}
		sched = es
		samp = eventsampler.Conditional{Habitat: h, Speciation: speciation, Dispersal: sep, Coalescence: coalescence.Conditional{H: h}}
		coal = coalescence.Conditional{H: h}
	case "gillespie":
		sched = scheduler.NewGillespie(root.Rand, h, turnover, store)
		samp = eventsampler.Unconditional{Habitat: h, Speciation: speciation, Dispersal: disp, Coalescence: coalescence.Unconditional{H: h}}
		coal = coalescence.Unconditional{H: h}
	default:
		sched = scheduler.NewClassical(root.Rand, initial)
		samp = eventsampler.Unconditional{Habitat: h, Speciation: speciation, Dispersal: disp, Coalescence: coalescence.Unconditional{H: h}}
		coal = coalescence.Unconditional{H: h}
	}

	sim := &simulation.CoherentSimulation{
		Habitat: h, Store: store, Scheduler: sched, EventSamp: samp,
		Coalescence: coal, Emigration: partition.Never{}, Immigration: partition.NeverImmigration{},
		Reporter: rep, RNG: root.Rand,
	}
	if cfg.Pause != nil {
		sim.SetPauseBound(cfg.Pause.Before)
	}
	return sim.Run()
}

// runIndependent wires and drives the Independent active-lineage
// sampler.
func runIndependent(cfg *config.Config, h habitat.Habitat, speciation habitat.SpeciationProbability, disp dispersal.Sampler, root *necsimrng.Source, rep reporter.Reporter) error {
	store := lineagestore.NewIndependent()
	alloc := necsim.NewGlobalReferenceAllocator()
	if err := seedIndependent(h, store, alloc, cfg.Sample, root.Rand); err != nil {
		return err
	}

	turnover, err := buildTurnover(cfg.Scenario, h)
	if err != nil {
		return err
	}

	mode := scheduler.Exponential
	switch cfg.Algorithm.IndependentMode {
	case "poisson":
		mode = scheduler.Poisson
	case "constant":
		mode = scheduler.Constant
	}
	deltaT := cfg.Algorithm.DeltaT
	if deltaT <= 0 {
		deltaT = 1
	}
	dedupCapacity := cfg.Algorithm.DedupCapacity
	if dedupCapacity <= 0 {
		dedupCapacity = 1 << 16
	}

	prime := necsimrng.NewPrimeable(root.Seed())
	sched := scheduler.NewIndependent(prime, store, turnover, mode, deltaT, dedupCapacity)

	sim := &simulation.IndependentSimulation{
		Habitat: h, Speciation: speciation, Dispersal: disp,
		Store: store, Scheduler: sched, Prime: prime,
		Emigration: partition.Never{}, Immigration: partition.NeverImmigration{},
		Reporter: rep,
	}
	if cfg.Pause != nil {
		sim.SetPauseBound(cfg.Pause.Before)
	}
	return sim.Run()
}

// runCoherentThreads wires one CoherentSimulation per configured thread,
// each owning the lineages whose initial location the decomposition
// assigns to its rank, and drives them through partition.Threads with the
// configured sync mode. The sample is drawn from the root stream exactly
// as in the monolithic run (so the same seed samples the same slots
// regardless of thread count) and routed to the owning partition; each
// partition then advances on its own split sub-stream.
func runCoherentThreads(cfg *config.Config, h habitat.Habitat, speciation habitat.SpeciationProbability, disp dispersal.Sampler, root *necsimrng.Source, rep reporter.Reporter) error {
	n := cfg.Partitioning.Threads
	decomp, err := buildDecomposition(cfg.Partitioning, h)
	if err != nil {
		return err
	}
	turnover, err := buildTurnover(cfg.Scenario, h)
	if err != nil {
		return err
	}

	stores := make([]*lineagestore.Coherent, n)
	for i := range stores {
		stores[i] = lineagestore.NewCoherent(h)
	}

	alloc := necsim.NewGlobalReferenceAllocator()
	initial := make([][]necsim.GlobalReference, n)
	width, height := h.Extent()
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			cap := h.CapacityAt(loc)
			for idx := uint32(0); idx < cap; idx++ {
				if root.Float64() >= cfg.Sample.Percentage {
					continue
				}
				rank := decomp.RankOf(loc)
				ref := alloc.Next()
				l := &necsim.Lineage{GlobalRef: ref, Active: true}
				stores[rank].Insert(l, necsim.IndexedLocation{Location: loc, Index: idx})
				initial[rank] = append(initial[rank], ref)
			}
		}
	}

	sims := make([]*simulation.CoherentSimulation, n)
	parts := make([]partition.CoherentPartition, n)
	imms := make([]*partition.BufferedImmigration, n)
	collectors := make([]*collectingReporter, n)

	interval := cfg.Partitioning.MigrationInterval
	if interval <= 0 {
		interval = 1
	}
	thr := &partition.Threads{
		Mode:          syncModeOf(cfg.Partitioning),
		Decomposition: decomp,
		Immigration:   imms,
		MigrationStep: interval,
	}
	if cfg.Pause != nil {
		thr.MaxBound = cfg.Pause.Before
	}

	for rank := 0; rank < n; rank++ {
		sub := necsimrng.SplitForPartition(root.Seed(), uint32(rank), uint32(n))
		store := stores[rank]
		exit := partition.Domain{Decomposition: decomp, LocalRank: uint32(rank)}
		imms[rank] = partition.NewBufferedImmigration()
		collectors[rank] = &collectingReporter{rank: rank}

		var sched scheduler.ActiveLineageSampler
		var samp simulation.EventSampler
		var coal coalescence.Sampler

		switch cfg.Algorithm.Kind {
		case "event_skipping":
			sep, err := buildSeparableDispersal(cfg.Scenario)
			if err != nil {
				return err
			}
			es, err := scheduler.NewEventSkipping(sub.Rand, h, turnover, sep, store)
			if err != nil {
				return err
			}
			sched = es
			samp = eventsampler.Conditional{Habitat: h, Speciation: speciation, Dispersal: sep, Coalescence: coalescence.Conditional{H: h}, Emigration: exit}
			coal = coalescence.Conditional{H: h}
		case "gillespie":
			sched = scheduler.NewGillespie(sub.Rand, h, turnover, store)
			samp = eventsampler.Unconditional{Habitat: h, Speciation: speciation, Dispersal: disp, Coalescence: coalescence.Unconditional{H: h}, Emigration: exit}
			coal = coalescence.Unconditional{H: h}
		default:
			sched = scheduler.NewClassical(sub.Rand, initial[rank])
			samp = eventsampler.Unconditional{Habitat: h, Speciation: speciation, Dispersal: disp, Coalescence: coalescence.Unconditional{H: h}, Emigration: exit}
			coal = coalescence.Unconditional{H: h}
		}

		sims[rank] = &simulation.CoherentSimulation{
			Habitat: h, Store: store, Scheduler: sched, EventSamp: samp,
			Coalescence: coal, Emigration: exit, Immigration: imms[rank],
			Reporter: collectors[rank], RNG: sub.Rand,
			Dispersal: disp, Resume: simulation.ResumeDispersal,
			Outbox: thr.Outbox,
		}
		parts[rank] = sims[rank]
	}

	thr.Partitions = parts
	thr.SetBound = func(i int, before float64) { sims[i].SetPauseBound(before) }
	thr.ClockOf = func(i int) float64 { return sims[i].Clock() }

	if err := thr.Run(); err != nil {
		return err
	}
	return mergeAndReport(collectors, rep)
}

// runIndependentThreads partitions the Independent algorithm's lineages by
// their initial location and drives one IndependentSimulation per thread.
// Cross-partition coalescence is impossible by construction, so each
// partition keeps dedup as a pure-local filter; dispersals that leave the
// partition's own territory are shipped whole to the owner.
func runIndependentThreads(cfg *config.Config, h habitat.Habitat, speciation habitat.SpeciationProbability, disp dispersal.Sampler, root *necsimrng.Source, rep reporter.Reporter) error {
	n := cfg.Partitioning.Threads
	decomp, err := buildDecomposition(cfg.Partitioning, h)
	if err != nil {
		return err
	}
	turnover, err := buildTurnover(cfg.Scenario, h)
	if err != nil {
		return err
	}

	mode := scheduler.Exponential
	switch cfg.Algorithm.IndependentMode {
	case "poisson":
		mode = scheduler.Poisson
	case "constant":
		mode = scheduler.Constant
	}
	deltaT := cfg.Algorithm.DeltaT
	if deltaT <= 0 {
		deltaT = 1
	}
	dedupCapacity := cfg.Algorithm.DedupCapacity
	if dedupCapacity <= 0 {
		dedupCapacity = 1 << 16
	}

	stores := make([]*lineagestore.Independent, n)
	for i := range stores {
		stores[i] = lineagestore.NewIndependent()
	}

	alloc := necsim.NewGlobalReferenceAllocator()
	width, height := h.Extent()
	for y := uint32(0); y < height; y++ {
		for x := uint32(0); x < width; x++ {
			loc := necsim.Location{X: x, Y: y}
			if h.CapacityAt(loc) == 0 {
				continue
			}
			if root.Float64() >= cfg.Sample.Percentage {
				continue
			}
			il := necsim.IndexedLocation{Location: loc}
			l := &necsim.Lineage{GlobalRef: alloc.Next(), Active: true, IndexedLocation: &il}
			stores[decomp.RankOf(loc)].Insert(l)
		}
	}

	prime := necsimrng.NewPrimeable(root.Seed())
	sims := make([]*simulation.IndependentSimulation, n)
	parts := make([]partition.CoherentPartition, n)
	imms := make([]*partition.BufferedImmigration, n)
	collectors := make([]*collectingReporter, n)

	interval := cfg.Partitioning.MigrationInterval
	if interval <= 0 {
		interval = 1
	}
	thr := &partition.Threads{
		Mode:          syncModeOf(cfg.Partitioning),
		Decomposition: decomp,
		Immigration:   imms,
		MigrationStep: interval,
	}
	if cfg.Pause != nil {
		thr.MaxBound = cfg.Pause.Before
	}

	for rank := 0; rank < n; rank++ {
		exit := partition.Always{Decomposition: decomp, LocalRank: uint32(rank)}
		imms[rank] = partition.NewBufferedImmigration()
		collectors[rank] = &collectingReporter{rank: rank}
		sched := scheduler.NewIndependent(prime, stores[rank], turnover, mode, deltaT, dedupCapacity)
		sims[rank] = &simulation.IndependentSimulation{
			Habitat: h, Speciation: speciation, Dispersal: disp,
			Store: stores[rank], Scheduler: sched, Prime: prime,
			Emigration: exit, Immigration: imms[rank],
			Reporter: collectors[rank],
			Outbox:   thr.Outbox,
		}
		parts[rank] = sims[rank]
	}

	thr.Partitions = parts
	thr.SetBound = func(i int, before float64) { sims[i].SetPauseBound(before) }
	thr.ClockOf = func(int) float64 { return 0 }

	if err := thr.Run(); err != nil {
		return err
	}
	return mergeAndReport(collectors, rep)
}

// runReplay reads every chunk in dir and re-streams its events through a
// fresh set of reporters, computing and logging each speciation event's
// SpeciesIdentity along the way.
func runReplay(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() < 2 {
		log.Fatal("replay: an event-log directory and at least one reporter descriptor are required")
	}

	dir := fs.Arg(0)
	rep, err := buildReporters(fs.Args()[1:])
	if err != nil {
		log.Fatal(err)
	}
	defer rep.Close()

	chunks, err := reporter.ListChunks(dir)
	if err != nil {
		log.Fatal(err)
	}

	for _, chunk := range chunks {
		events, _, err := reporter.ReadChunk(chunk)
		if err != nil {
			log.Fatal(err)
		}
		for _, e := range events {
			if e.IsSpeciation() {
				id := identity.FromSpeciation(necsim.IndexedLocation{Location: e.Origin, Index: e.OriginIndex}, e.EventTime)
				log.Printf("speciation lineage=%d origin=%s time=%g identity=%x", e.Lineage, e.Origin, e.EventTime, id)
			}
			if err := rep.Report(e); err != nil {
				log.Fatal(err)
			}
		}
	}
}
