// Package sim runs Monte Carlo path simulations of compiled SDE systems. A
// run fans independent scenarios out over a bounded worker pool; every
// scenario owns its state vector and variate streams exclusively, so the
// numerical result never depends on scheduling. The assembled output is one
// row per (scenario, time point), scenario-ascending then time-ascending.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"github.com/sdewalk/sdewalk/internal/equation"
	"github.com/sdewalk/sdewalk/internal/rng"
)

// Scheme selects the integration recipe for a run.
type Scheme uint8

const (
	// FirstOrder is the Euler–Maruyama scheme.
	FirstOrder Scheme = iota
	// Corrected adds a Milstein/Platen-style support-point correction to
	// every diffusion term.
	Corrected
)

func (s Scheme) String() string {
	switch s {
	case FirstOrder:
		return "first_order"
	case Corrected:
		return "corrected"
	}
	return "unknown"
}

// ParseScheme maps a config string onto a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "first_order", "euler", "":
		return FirstOrder, nil
	case "corrected", "milstein":
		return Corrected, nil
	}
	return FirstOrder, fmt.Errorf("unknown scheme %q (want first_order or corrected)", s)
}

// Config describes one simulation run. It is immutable once handed to Run
// and shared read-only across all scenario workers.
type Config struct {
	// Equations are the system declarations, one dName = ... per entry.
	Equations []string

	// Times is the simulation grid, strictly increasing, length >= 2.
	Times []float64

	// Scenarios is the number of independent paths, >= 1.
	Scenarios int

	// Initial maps every declared process to its value at Times[0].
	Initial map[string]float64

	// Method selects pseudo- or quasi-random variate generation.
	Method rng.Kind

	// Scheme selects the integration scheme.
	Scheme Scheme

	// Seed drives pseudo-random generation. Quasi generation is seedless.
	Seed uint64

	// Workers bounds the scenario pool; 0 means GOMAXPROCS.
	Workers int
}

// Row is one assembled output row: a scenario's full state at one time
// point, values in process declaration order.
type Row struct {
	Scenario int
	Time     float64
	Values   []float64
}

// Result is a completed run. Rows holds Scenarios * len(Times) entries in
// canonical order; Draws counts the uniform variates consumed.
type Result struct {
	Processes []string
	Times     []float64
	Scenarios int
	Rows      []Row
	Draws     uint64
}

// Validate compiles the equations and checks the full configuration without
// performing any simulation work or random draws. It returns the compiled
// system on success.
func Validate(cfg Config) (*equation.System, error) {
	if len(cfg.Times) < 2 {
		return nil, &ValidationError{Field: "times", Reason: "need at least two time points"}
	}
	for i := 1; i < len(cfg.Times); i++ {
		if !(cfg.Times[i] > cfg.Times[i-1]) {
			return nil, &ValidationError{Field: "times",
				Reason: fmt.Sprintf("not strictly increasing at index %d (%g after %g)", i, cfg.Times[i], cfg.Times[i-1])}
		}
	}
	for i, t := range cfg.Times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil, &ValidationError{Field: "times", Reason: fmt.Sprintf("non-finite value at index %d", i)}
		}
	}
	if cfg.Scenarios < 1 {
		return nil, &ValidationError{Field: "scenarios", Reason: fmt.Sprintf("must be >= 1, got %d", cfg.Scenarios)}
	}
	if cfg.Workers < 0 {
		return nil, &ValidationError{Field: "workers", Reason: fmt.Sprintf("must be >= 0, got %d", cfg.Workers)}
	}

	sys, err := equation.Compile(cfg.Equations)
	if err != nil {
		var dup *equation.DuplicateProcessError
		if errors.As(err, &dup) {
			return nil, &ValidationError{Field: "equations", Reason: dup.Error()}
		}
		return nil, err
	}

	for _, p := range sys.Processes {
		v, ok := cfg.Initial[p.Name]
		if !ok {
			return nil, &ValidationError{Field: "initial_values", Reason: fmt.Sprintf("missing value for process %q", p.Name)}
		}
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &ValidationError{Field: "initial_values", Reason: fmt.Sprintf("non-finite value for process %q", p.Name)}
		}
	}
	if len(cfg.Initial) > len(sys.Processes) {
		declared := map[string]bool{}
		for _, p := range sys.Processes {
			declared[p.Name] = true
		}
		for name := range cfg.Initial {
			if !declared[name] {
				return nil, &ValidationError{Field: "initial_values", Reason: fmt.Sprintf("%q is not a declared process", name)}
			}
		}
	}
	return sys, nil
}

// Run validates, simulates, and assembles a full run. Either every scenario
// completes and the canonical row set is returned, or the first error aborts
// the run with no partial results.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	sys, err := Validate(cfg)
	if err != nil {
		return nil, err
	}

	steps := len(cfg.Times) - 1
	provider, err := rng.New(cfg.Method, cfg.Seed, len(sys.Sources), steps)
	if err != nil {
		return nil, &ValidationError{Field: "method", Reason: err.Error()}
	}

	initial := make([]float64, len(sys.Processes))
	for i, p := range sys.Processes {
		initial[i] = cfg.Initial[p.Name]
	}

	workers := cfg.Workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > cfg.Scenarios {
		workers = cfg.Scenarios
	}

	trajectories, err := runScenarios(ctx, sys, cfg, provider, initial, workers)
	if err != nil {
		return nil, err
	}

	return assemble(sys, cfg, trajectories, provider.Draws()), nil
}

// assemble merges per-scenario trajectories into the canonical row order:
// scenario ascending, then time ascending, one row per (scenario, time
// point).
func assemble(sys *equation.System, cfg Config, trajectories [][][]float64, draws uint64) *Result {
	rows := make([]Row, 0, cfg.Scenarios*len(cfg.Times))
	for scenario, traj := range trajectories {
		for i, t := range cfg.Times {
			rows = append(rows, Row{Scenario: scenario, Time: t, Values: traj[i]})
		}
	}
	return &Result{
		Processes: sys.Names(),
		Times:     cfg.Times,
		Scenarios: cfg.Scenarios,
		Rows:      rows,
		Draws:     draws,
	}
}
