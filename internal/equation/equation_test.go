package equation

import (
	"errors"
	"testing"

	"github.com/sdewalk/sdewalk/internal/expr"
)

func compile(t *testing.T, equations ...string) *System {
	t.Helper()
	sys, err := Compile(equations)
	if err != nil {
		t.Fatalf("Compile(%v): %v", equations, err)
	}
	return sys
}

func evalCoeff(t *testing.T, term Term, state []float64, tm float64) float64 {
	t.Helper()
	v, err := term.Coeff.Eval(state, tm)
	if err != nil {
		t.Fatalf("Eval(%q): %v", term.Coeff.Source(), err)
	}
	return v
}

func TestCompile_DriftOnly(t *testing.T) {
	sys := compile(t, "dX = -X*dt")

	if len(sys.Processes) != 1 || len(sys.Sources) != 0 {
		t.Fatalf("got %d processes, %d sources; want 1, 0", len(sys.Processes), len(sys.Sources))
	}
	p := sys.Processes[0]
	if p.Name != "X" || p.Slot != 0 {
		t.Errorf("process = %q slot %d, want X slot 0", p.Name, p.Slot)
	}
	if len(p.Terms) != 1 || p.Terms[0].Kind != TermDrift || p.Terms[0].Source != -1 {
		t.Fatalf("terms = %+v, want a single drift term", p.Terms)
	}
	if got := evalCoeff(t, p.Terms[0], []float64{2}, 0); got != -2 {
		t.Errorf("coeff at X=2 is %g, want -2", got)
	}
}

func TestCompile_MultiTerm(t *testing.T) {
	sys := compile(t, "dX = 0.05*X*dt + 0.2*X*dW1 + 0.1*X*dJ1(0.25)")

	p := sys.Processes[0]
	if len(p.Terms) != 3 {
		t.Fatalf("got %d terms, want 3", len(p.Terms))
	}
	wantKinds := []TermKind{TermDrift, TermWiener, TermJump}
	for i, k := range wantKinds {
		if p.Terms[i].Kind != k {
			t.Errorf("term %d kind = %v, want %v", i, p.Terms[i].Kind, k)
		}
	}
	if p.Terms[2].Lambda != 0.25 {
		t.Errorf("jump intensity = %g, want 0.25", p.Terms[2].Lambda)
	}

	if len(sys.Sources) != 2 {
		t.Fatalf("got %d sources, want 2", len(sys.Sources))
	}
	if sys.Sources[0].Label != "dW1" || sys.Sources[0].Jump {
		t.Errorf("source 0 = %+v, want Wiener dW1", sys.Sources[0])
	}
	if sys.Sources[1].Label != "dJ1" || !sys.Sources[1].Jump {
		t.Errorf("source 1 = %+v, want jump dJ1", sys.Sources[1])
	}
}

func TestCompile_SharedNamedSource(t *testing.T) {
	sys := compile(t,
		"dX = 0.1*dt + 0.2*dW1",
		"dY = 0.3*dt + 0.4*dW1",
	)
	if len(sys.Sources) != 1 {
		t.Fatalf("got %d sources, want dW1 shared as one", len(sys.Sources))
	}
	if sx, sy := sys.Processes[0].Terms[1].Source, sys.Processes[1].Terms[1].Source; sx != sy {
		t.Errorf("dW1 resolved to sources %d and %d, want the same index", sx, sy)
	}
}

func TestCompile_BareSourcesArePrivate(t *testing.T) {
	sys := compile(t,
		"dX = 0.1*dt + dW",
		"dY = 0.1*dt + dW",
	)
	if len(sys.Sources) != 2 {
		t.Fatalf("got %d sources, want a private stream per process", len(sys.Sources))
	}
	if sys.Sources[0].Label == sys.Sources[1].Label {
		t.Errorf("private sources share label %q", sys.Sources[0].Label)
	}
}

func TestCompile_ImplicitUnitCoefficient(t *testing.T) {
	sys := compile(t, "dX = 0.1*dt + dW - dW1")
	terms := sys.Processes[0].Terms
	if got := evalCoeff(t, terms[1], []float64{0}, 0); got != 1 {
		t.Errorf("bare dW coefficient = %g, want 1", got)
	}
	if got := evalCoeff(t, terms[2], []float64{0}, 0); got != -1 {
		t.Errorf("-dW1 coefficient = %g, want -1", got)
	}
}

func TestCompile_MutualReference(t *testing.T) {
	// Y is referenced before it is declared; binding runs after all
	// declarations are collected.
	sys := compile(t,
		"dX = Y*dt",
		"dY = -X*dt",
	)
	if got := evalCoeff(t, sys.Processes[0].Terms[0], []float64{0, 3}, 0); got != 3 {
		t.Errorf("dX drift at Y=3 is %g, want 3", got)
	}
	if got := evalCoeff(t, sys.Processes[1].Terms[0], []float64{5, 0}, 0); got != -5 {
		t.Errorf("dY drift at X=5 is %g, want -5", got)
	}
}

func TestCompile_TimeDependentCoefficient(t *testing.T) {
	sys := compile(t, "dX = sin(t)*dt + 0.5*t*dW")
	if got := evalCoeff(t, sys.Processes[0].Terms[1], []float64{0}, 4); got != 2 {
		t.Errorf("diffusion coefficient at t=4 is %g, want 2", got)
	}
}

func TestCompile_SyntaxErrors(t *testing.T) {
	inputs := []string{
		"X = 0.1*dt",          // missing differential on the left
		"dX 0.1*dt",           // missing =
		"dX =",                // empty right-hand side
		"dX = 0.1",            // no increment
		"dX = 0.1*dQ",         // unknown increment kind
		"dX = 0.1*dt(2)",      // dt takes no parameter
		"dX = 0.1*dW1(2)",     // dW takes no parameter
		"dX = 0.1*dJ1",        // missing jump intensity
		"dX = 0.1*dJ1(-1)",    // negative intensity
		"dX = 0.1*dJ1(a)",     // non-numeric intensity
		"dX = (0.1 + ) * dt",  // malformed coefficient
	}
	for _, input := range inputs {
		_, err := Compile([]string{input})
		if err == nil {
			t.Errorf("Compile(%q): expected error, got none", input)
			continue
		}
		var perr *expr.ParseError
		if !errors.As(err, &perr) {
			t.Errorf("Compile(%q): error %v is not a ParseError", input, err)
		}
	}
}

func TestCompile_DuplicateProcess(t *testing.T) {
	_, err := Compile([]string{"dX = 0.1*dt", "dX = 0.2*dt"})
	var derr *DuplicateProcessError
	if !errors.As(err, &derr) {
		t.Fatalf("error %v is not a DuplicateProcessError", err)
	}
	if derr.Name != "X" {
		t.Errorf("duplicate name = %q, want X", derr.Name)
	}
}

func TestCompile_UnresolvedSymbol(t *testing.T) {
	_, err := Compile([]string{"dX = alpha*X*dt"})
	var uerr *UnresolvedSymbolError
	if !errors.As(err, &uerr) {
		t.Fatalf("error %v is not an UnresolvedSymbolError", err)
	}
	if uerr.Name != "alpha" {
		t.Errorf("offending symbol = %q, want alpha", uerr.Name)
	}
	if uerr.Equation != "dX = alpha*X*dt" {
		t.Errorf("equation = %q", uerr.Equation)
	}
}

func TestNames_DeclarationOrder(t *testing.T) {
	sys := compile(t, "dB = 0.1*dt", "dA = B*dt")
	got := sys.Names()
	if len(got) != 2 || got[0] != "B" || got[1] != "A" {
		t.Errorf("Names() = %v, want [B A]", got)
	}
}
