package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/stat"

	"github.com/sdewalk/sdewalk/internal/equation"
	"github.com/sdewalk/sdewalk/internal/expr"
	"github.com/sdewalk/sdewalk/internal/rng"
)

// grid returns n+1 equally spaced time points spanning [t0, t1].
func grid(t0, t1 float64, n int) []float64 {
	times := make([]float64, n+1)
	for i := range times {
		times[i] = t0 + (t1-t0)*float64(i)/float64(n)
	}
	return times
}

func run(t *testing.T, cfg Config) *Result {
	t.Helper()
	res, err := Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return res
}

// terminal returns the last-time-point value of the named process for each
// scenario.
func terminal(t *testing.T, res *Result, process string) []float64 {
	t.Helper()
	col := -1
	for i, name := range res.Processes {
		if name == process {
			col = i
		}
	}
	if col < 0 {
		t.Fatalf("process %q not in result", process)
	}
	values := make([]float64, 0, res.Scenarios)
	last := res.Times[len(res.Times)-1]
	for _, row := range res.Rows {
		if row.Time == last {
			values = append(values, row.Values[col])
		}
	}
	return values
}

func TestRun_ExponentialDecay(t *testing.T) {
	// dX = -X*dt has the analytic solution X(t) = exp(-t). With zero
	// diffusion both schemes are deterministic and first-order: halving
	// dt roughly halves the terminal error.
	errAt := func(steps int, scheme Scheme) float64 {
		res := run(t, Config{
			Equations: []string{"dX = -X*dt"},
			Times:     grid(0, 1, steps),
			Scenarios: 1,
			Initial:   map[string]float64{"X": 1},
			Scheme:    scheme,
		})
		got := terminal(t, res, "X")[0]
		return math.Abs(got - math.Exp(-1))
	}

	for _, scheme := range []Scheme{FirstOrder, Corrected} {
		coarse := errAt(10, scheme)
		fine := errAt(20, scheme)
		if coarse > 0.05 {
			t.Errorf("%v: error %g at 10 steps is too large", scheme, coarse)
		}
		ratio := fine / coarse
		if ratio < 0.3 || ratio > 0.7 {
			t.Errorf("%v: halving dt changed error by factor %g, want about 0.5", scheme, ratio)
		}
	}
}

func TestRun_MutualReferenceTrace(t *testing.T) {
	// Two mutually referencing processes, dt = 0.1, hand-computed under
	// the synchronous snapshot rule: every evaluation reads the prior
	// step's values for both processes.
	res := run(t, Config{
		Equations: []string{"dA = B*dt", "dB = -A*dt"},
		Times:     []float64{0, 0.1, 0.2},
		Scenarios: 1,
		Initial:   map[string]float64{"A": 1, "B": 0},
	})

	want := [][]float64{
		{1, 0},
		{1, -0.1},
		{0.99, -0.2},
	}
	for i, row := range res.Rows {
		for j := range want[i] {
			if math.Abs(row.Values[j]-want[i][j]) > 1e-12 {
				t.Errorf("row %d value %d = %g, want %g", i, j, row.Values[j], want[i][j])
			}
		}
	}
}

func TestRun_RowCountAndOrder(t *testing.T) {
	cfg := Config{
		Equations: []string{"dX = 0.1*X*dt + 0.2*dW"},
		Times:     grid(0, 1, 4),
		Scenarios: 3,
		Initial:   map[string]float64{"X": 1},
		Seed:      7,
	}
	for _, method := range []rng.Kind{rng.Pseudo, rng.Quasi} {
		cfg.Method = method
		res := run(t, cfg)
		if len(res.Rows) != 3*5 {
			t.Fatalf("%v: got %d rows, want %d", method, len(res.Rows), 3*5)
		}
		i := 0
		for scenario := 0; scenario < 3; scenario++ {
			for _, tm := range cfg.Times {
				row := res.Rows[i]
				if row.Scenario != scenario || row.Time != tm {
					t.Fatalf("%v: row %d = (scenario %d, t=%g), want (scenario %d, t=%g)",
						method, i, row.Scenario, row.Time, scenario, tm)
				}
				i++
			}
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	cfg := Config{
		Equations: []string{"dX = 0.05*X*dt + 0.2*X*dW"},
		Times:     grid(0, 1, 20),
		Scenarios: 8,
		Initial:   map[string]float64{"X": 1},
		Method:    rng.Pseudo,
		Seed:      123,
	}
	a := run(t, cfg)
	b := run(t, cfg)
	for i := range a.Rows {
		for j := range a.Rows[i].Values {
			if a.Rows[i].Values[j] != b.Rows[i].Values[j] {
				t.Fatalf("row %d value %d differs between identical runs", i, j)
			}
		}
	}
	if a.Draws != b.Draws {
		t.Errorf("draw counts differ: %d vs %d", a.Draws, b.Draws)
	}
}

func TestRun_WorkerCountInvariance(t *testing.T) {
	cfg := Config{
		Equations: []string{"dX = 0.05*X*dt + 0.2*X*dW", "dY = X*dt + 0.1*dW"},
		Times:     grid(0, 1, 10),
		Scenarios: 16,
		Initial:   map[string]float64{"X": 1, "Y": 0},
		Method:    rng.Pseudo,
		Seed:      99,
	}
	cfg.Workers = 1
	serial := run(t, cfg)
	cfg.Workers = 8
	parallel := run(t, cfg)
	for i := range serial.Rows {
		for j := range serial.Rows[i].Values {
			if serial.Rows[i].Values[j] != parallel.Rows[i].Values[j] {
				t.Fatalf("row %d value %d depends on worker count", i, j)
			}
		}
	}
}

func TestRun_DrawCount(t *testing.T) {
	// One uniform per (scenario, source, step): 4 scenarios, 2 private
	// sources, 5 steps.
	res := run(t, Config{
		Equations: []string{"dX = 0.1*dt + 0.2*dW", "dY = 0.1*dt + 0.2*dW"},
		Times:     grid(0, 1, 5),
		Scenarios: 4,
		Initial:   map[string]float64{"X": 0, "Y": 0},
		Seed:      5,
	})
	if want := uint64(4 * 2 * 5); res.Draws != want {
		t.Errorf("Draws = %d, want %d", res.Draws, want)
	}
}

func TestRun_SharedSourceGivesIdenticalIncrements(t *testing.T) {
	// A and B integrate the same named source with unit coefficient, so
	// their paths coincide exactly; C uses a private source and departs.
	res := run(t, Config{
		Equations: []string{"dA = dW1", "dB = dW1", "dC = dW"},
		Times:     grid(0, 1, 10),
		Scenarios: 4,
		Initial:   map[string]float64{"A": 0, "B": 0, "C": 0},
		Seed:      3,
	})
	departed := false
	for _, row := range res.Rows {
		if row.Values[0] != row.Values[1] {
			t.Fatalf("scenario %d t=%g: A=%g B=%g, want identical paths", row.Scenario, row.Time, row.Values[0], row.Values[1])
		}
		if row.Values[2] != row.Values[0] {
			departed = true
		}
	}
	if !departed {
		t.Error("private source C never departed from shared source A")
	}
}

func TestRun_CorrectionVanishesForConstantDiffusion(t *testing.T) {
	// With state-independent diffusion the support-point correction is
	// identically zero, so both schemes agree bit for bit.
	cfg := Config{
		Equations: []string{"dX = 0.1*dt + 0.2*dW"},
		Times:     grid(0, 1, 10),
		Scenarios: 4,
		Initial:   map[string]float64{"X": 1},
		Seed:      11,
	}
	cfg.Scheme = FirstOrder
	euler := run(t, cfg)
	cfg.Scheme = Corrected
	corrected := run(t, cfg)
	for i := range euler.Rows {
		if euler.Rows[i].Values[0] != corrected.Rows[i].Values[0] {
			t.Fatalf("row %d: schemes differ for constant diffusion", i)
		}
	}
}

func TestRun_GBMTerminalMean(t *testing.T) {
	// Geometric Brownian motion has E[X_T] = X0 * exp(mu*T).
	res := run(t, Config{
		Equations: []string{"dX = 0.05*X*dt + 0.2*X*dW"},
		Times:     grid(0, 1, 50),
		Scenarios: 2000,
		Initial:   map[string]float64{"X": 1},
		Method:    rng.Pseudo,
		Seed:      2024,
	})
	mean := stat.Mean(terminal(t, res, "X"), nil)
	want := math.Exp(0.05)
	if math.Abs(mean-want) > 0.02 {
		t.Errorf("terminal mean = %g, want %g within 0.02", mean, want)
	}
}

func TestRun_JumpWithZeroIntensityIsInert(t *testing.T) {
	res := run(t, Config{
		Equations: []string{"dX = 0.5*dJ(0)"},
		Times:     grid(0, 1, 5),
		Scenarios: 2,
		Initial:   map[string]float64{"X": 1},
		Seed:      1,
	})
	for _, row := range res.Rows {
		if row.Values[0] != 1 {
			t.Fatalf("scenario %d t=%g: X = %g, want constant 1", row.Scenario, row.Time, row.Values[0])
		}
	}
}

func TestRun_EvaluationErrorAbortsRun(t *testing.T) {
	_, err := Run(context.Background(), Config{
		Equations: []string{"dX = sqrt(X)*dt"},
		Times:     []float64{0, 0.5, 1},
		Scenarios: 2,
		Initial:   map[string]float64{"X": -1},
	})
	var everr *EvaluationError
	if !errors.As(err, &everr) {
		t.Fatalf("error %v is not an EvaluationError", err)
	}
	if everr.Step != 1 || everr.Time != 0 {
		t.Errorf("failure located at step %d t=%g, want step 1 t=0", everr.Step, everr.Time)
	}
	var derr *expr.DomainError
	if !errors.As(err, &derr) {
		t.Errorf("EvaluationError does not wrap the domain error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	base := func() Config {
		return Config{
			Equations: []string{"dX = -X*dt"},
			Times:     []float64{0, 0.5, 1},
			Scenarios: 1,
			Initial:   map[string]float64{"X": 1},
		}
	}
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"too few times", func(c *Config) { c.Times = []float64{0} }, "times"},
		{"non-monotone times", func(c *Config) { c.Times = []float64{0, 1, 0.5} }, "times"},
		{"repeated time", func(c *Config) { c.Times = []float64{0, 1, 1} }, "times"},
		{"zero scenarios", func(c *Config) { c.Scenarios = 0 }, "scenarios"},
		{"negative workers", func(c *Config) { c.Workers = -1 }, "workers"},
		{"duplicate process", func(c *Config) { c.Equations = []string{"dX = -X*dt", "dX = X*dt"} }, "equations"},
		{"missing initial", func(c *Config) { c.Initial = map[string]float64{} }, "initial_values"},
		{"extra initial", func(c *Config) { c.Initial = map[string]float64{"X": 1, "Z": 2} }, "initial_values"},
		{"nan initial", func(c *Config) { c.Initial = map[string]float64{"X": math.NaN()} }, "initial_values"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			_, err := Validate(cfg)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error %v is not a ValidationError", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %q, want %q", verr.Field, tt.field)
			}
		})
	}
}

func TestValidate_PassesThroughCompileErrors(t *testing.T) {
	cfg := Config{
		Equations: []string{"dX = alpha*dt"},
		Times:     []float64{0, 1},
		Scenarios: 1,
		Initial:   map[string]float64{"X": 1},
	}
	_, err := Validate(cfg)
	var uerr *equation.UnresolvedSymbolError
	if !errors.As(err, &uerr) {
		t.Fatalf("error %v is not an UnresolvedSymbolError", err)
	}

	cfg.Equations = []string{"dX = (0.1*dt"}
	_, err = Validate(cfg)
	var perr *expr.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("error %v is not a ParseError", err)
	}
}
