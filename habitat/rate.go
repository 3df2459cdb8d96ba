package habitat

import (
	necsim "github.com/kentwait/necsimgo"
)

// TurnoverRate is the per-location death rate λ(x): a pure function of
// Location, constant for the simulation's lifetime.
type TurnoverRate interface {
	At(loc necsim.Location) float64
}

// SpeciationProbability is the per-event probability ν(x) that a
// replacement is a speciation rather than a dispersal.
type SpeciationProbability interface {
	At(loc necsim.Location) float64
}

// UniformTurnoverRate returns the same rate everywhere.
type UniformTurnoverRate struct {
	Rate float64
}

// NewUniformTurnoverRate validates rate >= 0 and returns a UniformTurnoverRate.
func NewUniformTurnoverRate(rate float64) (*UniformTurnoverRate, error) {
	if rate < 0 {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			necsim.InvalidFloatParameterError, "turnover rate", rate, "rate < 0")
	}
	return &UniformTurnoverRate{Rate: rate}, nil
}

func (u *UniformTurnoverRate) At(necsim.Location) float64 { return u.Rate }

// MapTurnoverRate looks turnover up in a per-location table. Habitat
// construction must verify every habitable location has a nonzero entry.
type MapTurnoverRate struct {
	h    Habitat
	rate map[necsim.Location]float64
}

// NewMapTurnoverRate validates the table against h: every habitable
// location must have a positive turnover entry.
func NewMapTurnoverRate(h Habitat, rate map[necsim.Location]float64) (*MapTurnoverRate, error) {
	w, ht := h.Extent()
	for y := uint32(0); y < ht; y++ {
		for x := uint32(0); x < w; x++ {
			loc := necsim.Location{X: x, Y: y}
			if h.CapacityAt(loc) == 0 {
				continue
			}
			if r, ok := rate[loc]; !ok || r <= 0 {
				return nil, necsim.NewSimError(necsim.HabitatContractError, necsim.ZeroTurnoverError, loc)
			}
		}
	}
	return &MapTurnoverRate{h: h, rate: rate}, nil
}

func (m *MapTurnoverRate) At(loc necsim.Location) float64 { return m.rate[loc] }

// UniformSpeciationProbability returns the same probability everywhere.
type UniformSpeciationProbability struct {
	P float64
}

// NewUniformSpeciationProbability validates p in [0,1]. The configuration
// document additionally requires a strictly positive global speciation
// value (a run that can never speciate with a finite deme would spin
// forever), but the cog itself is a closed-unit probability: zero is a
// legal per-location value.
func NewUniformSpeciationProbability(p float64) (*UniformSpeciationProbability, error) {
	if p < 0 || p > 1 {
		return nil, necsim.NewSimError(necsim.ConfigurationError,
			necsim.InvalidFloatParameterError, "speciation probability", p, "must be in [0,1]")
	}
	return &UniformSpeciationProbability{P: p}, nil
}

func (u *UniformSpeciationProbability) At(necsim.Location) float64 { return u.P }

// MapSpeciationProbability looks speciation probability up per-location.
type MapSpeciationProbability struct {
	p map[necsim.Location]float64
}

// NewMapSpeciationProbability validates every value is in [0,1].
func NewMapSpeciationProbability(p map[necsim.Location]float64) (*MapSpeciationProbability, error) {
	for loc, v := range p {
		if v < 0 || v > 1 {
			return nil, necsim.NewSimError(necsim.ConfigurationError,
				necsim.InvalidFloatParameterError, "speciation probability at "+loc.String(), v, "must be in [0,1]")
		}
	}
	return &MapSpeciationProbability{p: p}, nil
}

func (m *MapSpeciationProbability) At(loc necsim.Location) float64 { return m.p[loc] }
