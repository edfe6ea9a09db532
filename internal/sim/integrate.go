package sim

import (
	"fmt"
	"math"

	"github.com/sdewalk/sdewalk/internal/equation"
	"github.com/sdewalk/sdewalk/internal/rng"
)

// stepper advances one scenario's state vector. All buffers are owned by a
// single goroutine and reused across steps; nothing here is shared.
type stepper struct {
	sys    *equation.System
	scheme Scheme

	uniforms []float64   // one uniform per source, redrawn each step
	wiener   []float64   // dW per source, derived from uniforms
	coeffs   [][]float64 // per process, per term: coefficient at the prior snapshot
	support  []float64   // corrected scheme's support point state
	next     []float64
}

func newStepper(sys *equation.System, scheme Scheme) *stepper {
	s := &stepper{
		sys:      sys,
		scheme:   scheme,
		uniforms: make([]float64, len(sys.Sources)),
		wiener:   make([]float64, len(sys.Sources)),
		coeffs:   make([][]float64, len(sys.Processes)),
		support:  make([]float64, len(sys.Processes)),
		next:     make([]float64, len(sys.Processes)),
	}
	for i, p := range sys.Processes {
		s.coeffs[i] = make([]float64, len(p.Terms))
	}
	return s
}

// advance computes the state at t+dt from the state at t. Every coefficient
// is evaluated against the prior step's full snapshot, so the update is
// synchronous: no process observes another's in-progress value. The returned
// slice aliases the stepper's buffer; callers must copy before the next
// step.
func (s *stepper) advance(state []float64, step int, t, dt float64, stream rng.Stream) ([]float64, error) {
	sqrtDt := math.Sqrt(dt)

	for i := range s.sys.Sources {
		s.uniforms[i] = stream.Uniform(step, i)
		if !s.sys.Sources[i].Jump {
			s.wiener[i] = rng.Normal(s.uniforms[i]) * sqrtDt
		}
	}

	// Pass 1: every coefficient at the prior snapshot, plus the support
	// points if the corrected scheme needs them.
	for pi := range s.sys.Processes {
		p := &s.sys.Processes[pi]
		sup := state[p.Slot]
		for ti := range p.Terms {
			c, err := p.Terms[ti].Coeff.Eval(state, t)
			if err != nil {
				return nil, err
			}
			s.coeffs[pi][ti] = c
			switch p.Terms[ti].Kind {
			case equation.TermDrift:
				sup += c * dt
			case equation.TermWiener:
				sup += c * sqrtDt
			}
		}
		s.support[pi] = sup
	}

	// Pass 2: accumulate the increments.
	for pi := range s.sys.Processes {
		p := &s.sys.Processes[pi]
		x := state[p.Slot]
		for ti := range p.Terms {
			term := &p.Terms[ti]
			c := s.coeffs[pi][ti]
			switch term.Kind {
			case equation.TermDrift:
				x += c * dt

			case equation.TermWiener:
				dW := s.wiener[term.Source]
				x += c * dW
				if s.scheme == Corrected {
					cs, err := term.Coeff.Eval(s.support, t+dt)
					if err != nil {
						return nil, err
					}
					x += 0.5 * (cs - c) * (dW*dW - dt) / sqrtDt
				}

			case equation.TermJump:
				count := rng.PoissonInv(term.Lambda*dt, s.uniforms[term.Source])
				x += c * count
			}
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("process %q reached a non-finite value", p.Name)
		}
		s.next[p.Slot] = x
	}
	return s.next, nil
}
