// Package rng supplies the uniform variate streams behind a simulation run.
// Every stochastic source in a system maps to one logical stream per
// scenario, and an integration step consumes exactly one variate per
// (step, source) pair. Two kinds are offered: Pseudo, independent PCG
// streams keyed by (seed, scenario, source), and Quasi, a Sobol
// low-discrepancy sequence where each scenario is one point and each
// (step, source) pair is one coordinate of that point.
package rng

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// Kind selects the variate generation strategy for a run.
type Kind uint8

const (
	Pseudo Kind = iota
	Quasi
)

func (k Kind) String() string {
	switch k {
	case Pseudo:
		return "pseudo"
	case Quasi:
		return "quasi"
	}
	return "unknown"
}

// ParseKind maps a config string onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "pseudo", "":
		return Pseudo, nil
	case "quasi", "sobol":
		return Quasi, nil
	}
	return Pseudo, fmt.Errorf("unknown rng kind %q (want pseudo or quasi)", s)
}

// Provider hands out per-scenario streams and tracks how many variates the
// run consumed in total. Scenario may be called concurrently; each returned
// Stream belongs to a single goroutine.
type Provider interface {
	Scenario(scenario int) Stream
	Draws() uint64
}

// Stream yields the uniforms for one scenario. Values lie in the open
// interval (0, 1) so quantile transforms stay finite. Pseudo streams must be
// consumed in nondecreasing step order; quasi streams are random access.
type Stream interface {
	Uniform(step, source int) float64
}

// New builds a Provider. sources is the number of stochastic sources in the
// system and steps the number of time increments; quasi generation needs
// both to lay out its coordinate space, pseudo only the source count.
func New(kind Kind, seed uint64, sources, steps int) (Provider, error) {
	switch kind {
	case Pseudo:
		return &pseudoProvider{seed: seed, sources: sources}, nil
	case Quasi:
		return newSobolProvider(sources, steps)
	}
	return nil, fmt.Errorf("unknown rng kind %d", kind)
}

// minUniform keeps quantile transforms finite at the bottom edge; Float64
// and Sobol coordinates never reach 1 from above.
const minUniform = 0x1p-64

type pseudoProvider struct {
	seed    uint64
	sources int
	draws   atomic.Uint64
}

func (p *pseudoProvider) Draws() uint64 { return p.draws.Load() }

func (p *pseudoProvider) Scenario(scenario int) Stream {
	gens := make([]*rand.Rand, p.sources)
	for i := range gens {
		lo := mix(p.seed, uint64(scenario), uint64(i), 0)
		hi := mix(p.seed, uint64(scenario), uint64(i), 1)
		gens[i] = rand.New(rand.NewPCG(lo, hi))
	}
	return &pseudoStream{provider: p, gens: gens}
}

type pseudoStream struct {
	provider *pseudoProvider
	gens     []*rand.Rand
}

func (s *pseudoStream) Uniform(step, source int) float64 {
	_ = step // pseudo streams advance sequentially
	s.provider.draws.Add(1)
	u := s.gens[source].Float64()
	if u < minUniform {
		u = minUniform
	}
	return u
}

// mix folds the given words into a single seed with splitmix64 finalization
// rounds. Distinct inputs give statistically independent PCG seeds.
func mix(words ...uint64) uint64 {
	var state uint64 = 0x9e3779b97f4a7c15
	for _, w := range words {
		state ^= w
		state = splitmix64(state)
	}
	return state
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
