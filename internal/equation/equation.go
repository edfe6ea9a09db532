// Package equation compiles textual SDE declarations into an executable
// System. Each declaration has the form
//
//	dName = coeff*dt + coeff*dW1 + coeff*dJ1(0.25)
//
// where every coefficient is an expression over declared process names and
// the time symbol t. dt terms contribute drift, dW terms diffusion against a
// Wiener source, and dJ terms jumps against a Poisson source with the given
// intensity per unit time. A bare dW or dJ denotes a source private to that
// process; a suffixed name such as dW1 is shared by every equation that
// mentions it.
package equation

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sdewalk/sdewalk/internal/expr"
)

// TermKind distinguishes how a term's coefficient enters the integration
// step.
type TermKind uint8

const (
	TermDrift TermKind = iota
	TermWiener
	TermJump
)

func (k TermKind) String() string {
	switch k {
	case TermDrift:
		return "drift"
	case TermWiener:
		return "wiener"
	case TermJump:
		return "jump"
	}
	return "unknown"
}

// Term is one additive component of a process's right-hand side.
type Term struct {
	Kind   TermKind
	Coeff  *expr.Expr
	Source int     // index into System.Sources; -1 for drift terms
	Lambda float64 // Poisson intensity per unit time; jump terms only
}

// Process is one compiled equation. Slot is the process's index in the state
// vector, which follows declaration order.
type Process struct {
	Name  string
	Slot  int
	Terms []Term
}

// Source is one stochastic increment stream shared by the terms that
// reference it. Private sources carry a synthesized label that cannot clash
// with user-written ones.
type Source struct {
	Label string
	Jump  bool
}

// System is a compiled set of coupled equations. It is immutable after
// Compile and safe to share across scenario goroutines.
type System struct {
	Processes []Process
	Sources   []Source
}

// Names returns the process names in declaration order.
func (s *System) Names() []string {
	names := make([]string, len(s.Processes))
	for i, p := range s.Processes {
		names[i] = p.Name
	}
	return names
}

// DuplicateProcessError reports two equations declaring the same process.
type DuplicateProcessError struct {
	Name string
}

func (e *DuplicateProcessError) Error() string {
	return fmt.Sprintf("process %q declared more than once", e.Name)
}

// UnresolvedSymbolError reports a coefficient symbol that matches no
// declared process and is not the time variable t.
type UnresolvedSymbolError struct {
	Name     string
	Equation string
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("unresolved symbol %q in equation %q", e.Name, e.Equation)
}

var (
	lhsRe       = regexp.MustCompile(`^\s*d([A-Za-z_][A-Za-z0-9_]*)\s*$`)
	incrementRe = regexp.MustCompile(`^d(t|[WJ][A-Za-z0-9_]*)\s*(\(\s*([^()]*?)\s*\))?$`)
)

// Compile parses and links a set of equation declarations. Coefficients may
// reference any declared process, including ones declared later and the
// process being defined, so compilation runs in two phases: parse every
// declaration, then bind all coefficients against the full name set.
func Compile(equations []string) (*System, error) {
	if len(equations) == 0 {
		return nil, &expr.ParseError{Input: "", Pos: -1, Msg: "no equations"}
	}

	sys := &System{Processes: make([]Process, 0, len(equations))}
	sourceIndex := map[string]int{}
	slots := make(map[string]int, len(equations))

	for _, eq := range equations {
		name, rhs, err := splitDeclaration(eq)
		if err != nil {
			return nil, err
		}
		if _, dup := slots[name]; dup {
			return nil, &DuplicateProcessError{Name: name}
		}
		slot := len(sys.Processes)
		slots[name] = slot

		rawTerms, err := expr.SplitTerms(rhs)
		if err != nil {
			return nil, err
		}
		proc := Process{Name: name, Slot: slot, Terms: make([]Term, 0, len(rawTerms))}
		for _, raw := range rawTerms {
			term, err := parseTerm(eq, raw, name, sys, sourceIndex)
			if err != nil {
				return nil, err
			}
			proc.Terms = append(proc.Terms, term)
		}
		sys.Processes = append(sys.Processes, proc)
	}

	for i, p := range sys.Processes {
		for _, term := range p.Terms {
			if err := term.Coeff.Bind(slots); err != nil {
				var uerr *expr.UnboundSymbolError
				if errors.As(err, &uerr) {
					return nil, &UnresolvedSymbolError{Name: uerr.Name, Equation: equations[i]}
				}
				return nil, err
			}
		}
	}
	return sys, nil
}

func splitDeclaration(eq string) (name, rhs string, err error) {
	i := strings.Index(eq, "=")
	if i < 0 {
		return "", "", &expr.ParseError{Input: eq, Pos: -1, Msg: "equation must have the form dName = ..."}
	}
	m := lhsRe.FindStringSubmatch(eq[:i])
	if m == nil {
		return "", "", &expr.ParseError{Input: eq, Pos: 0, Msg: "left-hand side must be a differential dName"}
	}
	rhs = strings.TrimSpace(eq[i+1:])
	if rhs == "" {
		return "", "", &expr.ParseError{Input: eq, Pos: i + 1, Msg: "empty right-hand side"}
	}
	return m[1], rhs, nil
}

// parseTerm splits one additive term into a coefficient expression and its
// trailing increment token, registering the term's noise source as a side
// effect.
func parseTerm(eq, raw, procName string, sys *System, sourceIndex map[string]int) (Term, error) {
	coeffText, incText, ok := splitIncrement(raw)
	if !ok {
		return Term{}, &expr.ParseError{Input: eq, Pos: -1,
			Msg: fmt.Sprintf("term %q has no trailing dt, dW, or dJ increment", raw)}
	}

	m := incrementRe.FindStringSubmatch(incText)
	if m == nil {
		return Term{}, &expr.ParseError{Input: eq, Pos: -1,
			Msg: fmt.Sprintf("malformed increment %q", incText)}
	}
	token, paramed, param := m[1], m[2] != "", m[3]

	coeff, err := expr.Parse(coeffText)
	if err != nil {
		return Term{}, err
	}

	switch token[0] {
	case 't':
		if paramed {
			return Term{}, &expr.ParseError{Input: eq, Pos: -1, Msg: "dt takes no parameter"}
		}
		return Term{Kind: TermDrift, Coeff: coeff, Source: -1}, nil

	case 'W':
		if paramed {
			return Term{}, &expr.ParseError{Input: eq, Pos: -1,
				Msg: fmt.Sprintf("Wiener increment d%s takes no parameter", token)}
		}
		src := resolveSource(sys, sourceIndex, "d"+token, procName, false)
		return Term{Kind: TermWiener, Coeff: coeff, Source: src}, nil

	default: // 'J'
		if !paramed {
			return Term{}, &expr.ParseError{Input: eq, Pos: -1,
				Msg: fmt.Sprintf("jump increment d%s requires an intensity, e.g. d%s(0.5)", token, token)}
		}
		lambda, err := strconv.ParseFloat(param, 64)
		if err != nil || lambda < 0 {
			return Term{}, &expr.ParseError{Input: eq, Pos: -1,
				Msg: fmt.Sprintf("jump intensity %q must be a non-negative number", param)}
		}
		src := resolveSource(sys, sourceIndex, "d"+token, procName, true)
		return Term{Kind: TermJump, Coeff: coeff, Source: src, Lambda: lambda}, nil
	}
}

// splitIncrement locates the term's final increment token. It is either the
// operand after the last top-level '*', or the whole term when the
// coefficient is an implicit 1 (as in "dX = mu*dt + dW").
func splitIncrement(raw string) (coeff, inc string, ok bool) {
	depth, last := 0, -1
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '(':
			depth++
		case ')':
			depth--
		case '*':
			if depth == 0 {
				last = i
			}
		}
	}
	if last >= 0 {
		tail := strings.TrimSpace(raw[last+1:])
		if incrementRe.MatchString(tail) {
			return strings.TrimSpace(raw[:last]), tail, true
		}
	}
	whole := strings.TrimSpace(raw)
	if incrementRe.MatchString(whole) {
		return "1", whole, true
	}
	if strings.HasPrefix(whole, "-") {
		rest := strings.TrimSpace(whole[1:])
		if incrementRe.MatchString(rest) {
			return "-1", rest, true
		}
	}
	return "", "", false
}

// resolveSource returns the index of the stream a term draws from, creating
// it on first reference. Bare dW/dJ tokens get a per-process label; the
// parentheses keep it disjoint from anything an equation can spell.
func resolveSource(sys *System, sourceIndex map[string]int, label, procName string, jump bool) int {
	if label == "dW" || label == "dJ" {
		label = label + "(" + procName + ")"
	}
	if i, ok := sourceIndex[label]; ok {
		return i
	}
	i := len(sys.Sources)
	sys.Sources = append(sys.Sources, Source{Label: label, Jump: jump})
	sourceIndex[label] = i
	return i
}
