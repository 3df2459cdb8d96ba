package config

import "testing"

func validBaseConfig() Config {
	return Config{
		Speciation: 0.1,
		Sample:     SampleConfig{Percentage: 1.0, Origin: "habitat"},
		RNG:        RNGConfig{Mode: "seed", Seed: 42},
		Scenario:   ScenarioConfig{Kind: "non_spatial", Deme: 4},
		Algorithm:  AlgorithmConfig{Kind: "classical"},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	c := validBaseConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !c.Validated() {
		t.Fatal("Validated() should be true after a successful Validate()")
	}
}

func TestValidateRejectsSpeciationOutOfRange(t *testing.T) {
	for _, v := range []float64{0, -0.1, 1.5} {
		c := validBaseConfig()
		c.Speciation = v
		if err := c.Validate(); err == nil {
			t.Errorf("speciation=%v: expected an error", v)
		}
	}
}

func TestValidateRejectsSamplePercentageOutOfRange(t *testing.T) {
	c := validBaseConfig()
	c.Sample.Percentage = 1.5
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for sample.percentage > 1")
	}
}

func TestValidateRejectsUnknownSampleOrigin(t *testing.T) {
	c := validBaseConfig()
	c.Sample.Origin = "nowhere"
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for an unknown sample.origin")
	}
}

func TestValidateRejectsUnknownRNGMode(t *testing.T) {
	c := validBaseConfig()
	c.RNG.Mode = "quantum"
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for an unknown rng.mode")
	}
}

func TestValidateScenarioDimensions(t *testing.T) {
	c := validBaseConfig()
	c.Scenario = ScenarioConfig{Kind: "spatially_explicit"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for zero width/height in spatially_explicit")
	}
	c.Scenario = ScenarioConfig{Kind: "spatially_explicit", Width: 4, Height: 4}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error for a valid spatially_explicit scenario: %v", err)
	}

	c2 := validBaseConfig()
	c2.Scenario = ScenarioConfig{Kind: "non_spatial", Deme: 0}
	if err := c2.Validate(); err == nil {
		t.Fatal("expected an error for non_spatial with deme == 0")
	}

	c3 := validBaseConfig()
	c3.Scenario = ScenarioConfig{Kind: "almost_infinite", Sigma: 0}
	if err := c3.Validate(); err == nil {
		t.Fatal("expected an error for almost_infinite with sigma <= 0")
	}

	c4 := validBaseConfig()
	c4.Scenario = ScenarioConfig{Kind: "unknown_scenario"}
	if err := c4.Validate(); err == nil {
		t.Fatal("expected an error for an unknown scenario.kind")
	}
}

func TestValidateDownscaleOptions(t *testing.T) {
	base := func() Config {
		c := validBaseConfig()
		c.Scenario = ScenarioConfig{Kind: "spatially_explicit", Width: 4, Height: 4, DownscaleFactor: 2}
		return c
	}

	c := base()
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error for a well-formed downscale config: %v", err)
	}

	c2 := validBaseConfig()
	c2.Scenario.DownscaleFactor = 2 // non_spatial
	if err := c2.Validate(); err == nil {
		t.Fatal("expected an error: downscaling requires a spatially explicit or implicit scenario")
	}

	c3 := base()
	c3.Scenario.Capacities = []uint32{1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1}
	if err := c3.Validate(); err == nil {
		t.Fatal("expected an error: downscaling supports only a uniform capacity")
	}

	c4 := base()
	c4.Scenario.Width = 5
	if err := c4.Validate(); err == nil {
		t.Fatal("expected an error: the factor must evenly divide the extent")
	}

	c5 := base()
	c5.Scenario.DownscaleThreshold = 1.5
	if err := c5.Validate(); err == nil {
		t.Fatal("expected an error for a downscale threshold outside [0,1]")
	}
}

func TestValidateEventSkippingRequiresSeparableScenario(t *testing.T) {
	c := validBaseConfig()
	c.Scenario = ScenarioConfig{Kind: "non_spatial", Deme: 4}
	c.Algorithm = AlgorithmConfig{Kind: "event_skipping"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error: non_spatial has no separable dispersal kernel for event_skipping")
	}

	c2 := validBaseConfig()
	c2.Scenario = ScenarioConfig{Kind: "spatially_explicit", Width: 2, Height: 2}
	c2.Algorithm = AlgorithmConfig{Kind: "event_skipping"}
	if err := c2.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateIndependentModeOptions(t *testing.T) {
	c := validBaseConfig()
	c.Algorithm = AlgorithmConfig{Kind: "independent", IndependentMode: "poisson"}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c2 := validBaseConfig()
	c2.Algorithm = AlgorithmConfig{Kind: "independent", IndependentMode: "bogus"}
	if err := c2.Validate(); err == nil {
		t.Fatal("expected an error for an unknown independent_mode")
	}
}

func TestValidateRejectsCudaAndUnknownAlgorithm(t *testing.T) {
	c := validBaseConfig()
	c.Algorithm = AlgorithmConfig{Kind: "cuda"}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error: cuda is recognized but out of scope")
	}

	c2 := validBaseConfig()
	c2.Algorithm = AlgorithmConfig{Kind: "bogus"}
	if err := c2.Validate(); err == nil {
		t.Fatal("expected an error for an unknown algorithm.kind")
	}
}

func TestValidatePartitioningOptions(t *testing.T) {
	c := validBaseConfig()
	c.Partitioning = PartitionConfig{Kind: "threads", Threads: 0}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for threads partitioning with Threads == 0")
	}

	c2 := validBaseConfig()
	c2.Partitioning = PartitionConfig{Kind: "threads", Threads: 4}
	if err := c2.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, sync := range []string{"", "optimistic", "lockstep", "optimistic_lockstep", "averaging"} {
		cs := validBaseConfig()
		cs.Partitioning = PartitionConfig{Kind: "threads", Threads: 2, Sync: sync}
		if err := cs.Validate(); err != nil {
			t.Errorf("sync=%q: unexpected error: %v", sync, err)
		}
	}
	cBad := validBaseConfig()
	cBad.Partitioning = PartitionConfig{Kind: "threads", Threads: 2, Sync: "psychic"}
	if err := cBad.Validate(); err == nil {
		t.Fatal("expected an error for an unknown partitioning.sync")
	}

	c3 := validBaseConfig()
	c3.Partitioning = PartitionConfig{Kind: "mpi"}
	if err := c3.Validate(); err == nil {
		t.Fatal("expected an error: mpi is recognized but out of scope")
	}

	c4 := validBaseConfig()
	c4.Partitioning = PartitionConfig{Kind: "bogus"}
	if err := c4.Validate(); err == nil {
		t.Fatal("expected an error for an unknown partitioning.kind")
	}
}

func TestValidateRejectsNegativePauseBefore(t *testing.T) {
	c := validBaseConfig()
	c.Pause = &PauseConfig{Before: -1}
	if err := c.Validate(); err == nil {
		t.Fatal("expected an error for a negative pause.before")
	}
}
