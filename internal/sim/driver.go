package sim

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/sdewalk/sdewalk/internal/equation"
	"github.com/sdewalk/sdewalk/internal/rng"
)

// runScenarios fans scenario ids out over a bounded worker pool.
// Trajectories land in a slice indexed by scenario id, so the output order
// is independent of completion order. The first failure wins; remaining
// scenarios are skipped and no partial result escapes.
func runScenarios(ctx context.Context, sys *equation.System, cfg Config, provider rng.Provider, initial []float64, workers int) ([][][]float64, error) {
	trajectories := make([][][]float64, cfg.Scenarios)

	ids := make(chan int)
	var (
		wg       sync.WaitGroup
		failed   atomic.Bool
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		failed.Store(true)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := newStepper(sys, cfg.Scheme)
			for id := range ids {
				if failed.Load() {
					continue
				}
				if err := ctx.Err(); err != nil {
					fail(err)
					continue
				}
				traj, err := runScenario(st, cfg, provider.Scenario(id), id, initial)
				if err != nil {
					fail(err)
					continue
				}
				trajectories[id] = traj
			}
		}()
	}

	for id := 0; id < cfg.Scenarios; id++ {
		ids <- id
	}
	close(ids)
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return trajectories, nil
}

// runScenario walks one path across the full time grid. The stepper is
// reused across scenarios on the same worker; the stream is exclusive to
// this scenario.
func runScenario(st *stepper, cfg Config, stream rng.Stream, scenario int, initial []float64) ([][]float64, error) {
	traj := make([][]float64, len(cfg.Times))
	state := append([]float64(nil), initial...)
	traj[0] = state

	for step := 0; step < len(cfg.Times)-1; step++ {
		t := cfg.Times[step]
		dt := cfg.Times[step+1] - t
		next, err := st.advance(state, step, t, dt, stream)
		if err != nil {
			return nil, &EvaluationError{Scenario: scenario, Step: step + 1, Time: t, Err: err}
		}
		state = append([]float64(nil), next...)
		traj[step+1] = state
	}
	return traj, nil
}
