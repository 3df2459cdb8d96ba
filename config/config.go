// Package config implements the declarative simulation document: a single
// TOML document describing speciation probability, the
// sample to trace, the RNG source, the spatial scenario, the active-
// lineage sampler algorithm, the partitioning strategy, the event-log
// directory, reporters, and an optional pause bound. Grounded on
// evoepi_config.go's section-struct-with-Validate shape.
package config

import necsim "github.com/kentwait/necsimgo"

// Config is the top-level declarative document.
type Config struct {
	Speciation    float64        `toml:"speciation"`
	Sample        SampleConfig   `toml:"sample"`
	RNG           RNGConfig      `toml:"rng"`
	Scenario      ScenarioConfig `toml:"scenario"`
	Algorithm     AlgorithmConfig `toml:"algorithm"`
	Partitioning  PartitionConfig `toml:"partitioning"`
	Log           string         `toml:"log"`
	Reporters     []string       `toml:"reporters"`
	Pause         *PauseConfig   `toml:"pause"`

	validated bool
}

// SampleConfig describes which lineages to trace.
type SampleConfig struct {
	// Percentage of each deme's occupants to sample, in [0,1].
	Percentage float64 `toml:"percentage"`
	// Origin is "habitat" (sample uniformly over the whole habitat; also the
	// meaning of "") or "list" (sample the locations listed in the file at
	// OriginListPath). Reading the list file is an external-collaborator
	// concern; this field only records the choice.
	Origin string `toml:"origin"`
	// OriginListPath is set when Origin == "list".
	OriginListPath string `toml:"origin_list_path"`
}

// RNGConfig selects the root RNG source (Entropy | Seed(u64) | Sponge(bytes)
// | State(bytes) | StateElseSponge(bytes)). The concrete PRNG primitive
// itself is an external-collaborator contract; this configures only the
// seeding discipline this repository's rng package implements on top of
// math/rand.
type RNGConfig struct {
	Mode string `toml:"mode"` // entropy | seed | sponge | state | state_else_sponge
	Seed uint64 `toml:"seed"`
	// SpongeHex / StateHex are hex-encoded byte strings for the Sponge and
	// State/StateElseSponge modes.
	SpongeHex string `toml:"sponge"`
	StateHex  string `toml:"state"`
}

// ScenarioConfig selects the spatial scenario (SpatiallyExplicit | NonSpatial | SpatiallyImplicit | AlmostInfinite(...)).
type ScenarioConfig struct {
	Kind string `toml:"kind"`

	// SpatiallyExplicit / SpatiallyImplicit
	Width       uint32 `toml:"width"`
	Height      uint32 `toml:"height"`
	Capacity    uint32 `toml:"capacity"`    // uniform capacity, used when capacities is empty; 0 means 1
	Capacities  []uint32 `toml:"capacities"` // row-major, len == width*height, when non-uniform
	Dispersal   []float64 `toml:"dispersal"` // row-major width*height square matrix, in-memory kernel

	// NonSpatial
	Deme uint32 `toml:"deme"`

	// AlmostInfinite
	Sigma        float64 `toml:"sigma"`
	SampleRadius uint32  `toml:"sample_radius"`
	CentreX      uint32  `toml:"centre_x"`
	CentreY      uint32  `toml:"centre_y"`

	Turnover          float64            `toml:"turnover"`
	TurnoverByLocation map[string]float64 `toml:"turnover_by_location"`

	// Downscaling coarsens the habitat by an integer factor: the effective
	// habitat has demes of capacity factor*factor times the original, and
	// dispersal is drawn at the fine scale then quantised back.
	DownscaleFactor    uint32  `toml:"downscale_factor"`    // 0 or 1 disables
	DownscaleSamples   int     `toml:"downscale_samples"`   // Monte Carlo draws per coarse origin; 0 means default
	DownscaleThreshold float64 `toml:"downscale_threshold"` // self-dispersal probability below which a non-self alias table is precomputed; 0 means always
}

// AlgorithmConfig selects the active-lineage sampler (Classical | Gillespie | EventSkipping | Independent | Cuda(...)).
type AlgorithmConfig struct {
	Kind string `toml:"kind"`

	// Independent
	IndependentMode string  `toml:"independent_mode"` // exponential | poisson | constant
	DeltaT          float64 `toml:"delta_t"`
	DedupCapacity   int     `toml:"dedup_capacity"`
}

// PartitionConfig selects the partitioning strategy (Monolithic | Threads{n, migration-interval, progress-interval} | MPI).
type PartitionConfig struct {
	Kind              string  `toml:"kind"`
	Threads           int     `toml:"threads"`
	MigrationInterval float64 `toml:"migration_interval"`
	ProgressInterval  float64 `toml:"progress_interval"`
	Decomposition     string  `toml:"decomposition"` // equal_area | equal_weight
	Sync              string  `toml:"sync"`          // optimistic | lockstep | optimistic_lockstep | averaging
}

// PauseConfig is the optional outer-loop cancellation bound.
type PauseConfig struct {
	Before float64 `toml:"before"`
}

// CapacityOrDefault returns the configured uniform deme capacity,
// defaulting to 1 when unset, for scenarios that describe capacity as a
// single scalar rather than a per-location table.
func (s ScenarioConfig) CapacityOrDefault() uint32 {
	if s.Capacity == 0 {
		return 1
	}
	return s.Capacity
}

// Validate checks every numeric bound and cross-field contract, returning
// a typed ConfigurationError on the first violation. Grounded on
// evoepi_config.go's Validate() chain.
func (c *Config) Validate() error {
	if c.Speciation <= 0 || c.Speciation > 1 {
		return necsim.NewSimError(necsim.ConfigurationError,
			necsim.InvalidFloatParameterError, "speciation", c.Speciation, "must be in (0,1]")
	}
	if c.Sample.Percentage < 0 || c.Sample.Percentage > 1 {
		return necsim.NewSimError(necsim.ConfigurationError,
			necsim.InvalidFloatParameterError, "sample.percentage", c.Sample.Percentage, "must be in [0,1]")
	}
	switch c.Sample.Origin {
	case "", "habitat", "list":
	default:
		return necsim.NewSimError(necsim.ConfigurationError,
			"unknown sample.origin %q: must be \"habitat\" or \"list\"", c.Sample.Origin)
	}

	switch c.RNG.Mode {
	case "entropy", "seed", "sponge", "state", "state_else_sponge":
	default:
		return necsim.NewSimError(necsim.ConfigurationError,
			"unknown rng.mode %q", c.RNG.Mode)
	}

	switch c.Scenario.Kind {
	case "spatially_explicit", "spatially_implicit":
		if c.Scenario.Width == 0 || c.Scenario.Height == 0 {
			return necsim.NewSimError(necsim.ConfigurationError,
				"scenario.width and scenario.height must be > 0 for %s", c.Scenario.Kind)
		}
	case "non_spatial":
		if c.Scenario.Deme == 0 {
			return necsim.NewSimError(necsim.ConfigurationError,
				"scenario.deme must be > 0 for non_spatial")
		}
	case "almost_infinite":
		if c.Scenario.Sigma <= 0 {
			return necsim.NewSimError(necsim.ConfigurationError,
				necsim.InvalidFloatParameterError, "scenario.sigma", c.Scenario.Sigma, "must be > 0")
		}
	default:
		return necsim.NewSimError(necsim.ConfigurationError,
			"unknown scenario.kind %q", c.Scenario.Kind)
	}

	if k := c.Scenario.DownscaleFactor; k > 1 {
		if c.Scenario.Kind != "spatially_explicit" && c.Scenario.Kind != "spatially_implicit" {
			return necsim.NewSimError(necsim.ConfigurationError,
				"scenario.downscale_factor requires a spatially explicit or implicit scenario, not %q", c.Scenario.Kind)
		}
		if len(c.Scenario.Capacities) > 0 {
			return necsim.NewSimError(necsim.ConfigurationError,
				"scenario.downscale_factor supports only a uniform scenario.capacity, not a per-location capacities table")
		}
		if c.Scenario.Width%k != 0 || c.Scenario.Height%k != 0 {
			return necsim.NewSimError(necsim.ConfigurationError,
				"scenario.downscale_factor %d must evenly divide the %dx%d extent", k, c.Scenario.Width, c.Scenario.Height)
		}
		if c.Scenario.DownscaleSamples < 0 {
			return necsim.NewSimError(necsim.ConfigurationError,
				necsim.InvalidIntParameterError, "scenario.downscale_samples", c.Scenario.DownscaleSamples, "must be >= 0")
		}
		if c.Scenario.DownscaleThreshold < 0 || c.Scenario.DownscaleThreshold > 1 {
			return necsim.NewSimError(necsim.ConfigurationError,
				necsim.InvalidFloatParameterError, "scenario.downscale_threshold", c.Scenario.DownscaleThreshold, "must be in [0,1]")
		}
	}

	switch c.Algorithm.Kind {
	case "classical", "gillespie":
	case "event_skipping":
		if c.Scenario.Kind != "spatially_explicit" && c.Scenario.Kind != "spatially_implicit" {
			return necsim.NewSimError(necsim.ConfigurationError,
				"event_skipping requires a separable dispersal kernel, unavailable for scenario %q", c.Scenario.Kind)
		}
	case "independent":
		switch c.Algorithm.IndependentMode {
		case "", "exponential", "poisson", "constant":
		default:
			return necsim.NewSimError(necsim.ConfigurationError,
				"unknown algorithm.independent_mode %q", c.Algorithm.IndependentMode)
		}
	case "cuda":
		return necsim.NewSimError(necsim.ConfigurationError,
			"algorithm \"cuda\" is recognized but out of scope for this build: GPU/PTX kernel linkage is an external-collaborator contract")
	default:
		return necsim.NewSimError(necsim.ConfigurationError,
			"unknown algorithm.kind %q", c.Algorithm.Kind)
	}

	switch c.Partitioning.Kind {
	case "", "monolithic":
	case "threads":
		if c.Partitioning.Threads <= 0 {
			return necsim.NewSimError(necsim.ConfigurationError,
				"partitioning.threads must be > 0 for threads partitioning")
		}
		switch c.Partitioning.Sync {
		case "", "optimistic", "lockstep", "optimistic_lockstep", "averaging":
		default:
			return necsim.NewSimError(necsim.ConfigurationError,
				"unknown partitioning.sync %q", c.Partitioning.Sync)
		}
	case "mpi":
		return necsim.NewSimError(necsim.ConfigurationError,
			"partitioning \"mpi\" is recognized but out of scope for this build: MPI process transport is an external-collaborator contract")
	default:
		return necsim.NewSimError(necsim.ConfigurationError,
			"unknown partitioning.kind %q", c.Partitioning.Kind)
	}

	if c.Pause != nil && c.Pause.Before < 0 {
		return necsim.NewSimError(necsim.ConfigurationError,
			necsim.InvalidFloatParameterError, "pause.before", c.Pause.Before, "must be >= 0")
	}

	c.validated = true
	return nil
}

// Validated reports whether Validate has succeeded on this Config.
func (c *Config) Validated() bool { return c.validated }
