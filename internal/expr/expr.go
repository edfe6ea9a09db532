// Package expr implements the coefficient expression language used in SDE
// equations. Expressions are parsed once into a small tagged-variant tree
// (literal, time symbol, process reference, binary operator, unary function)
// and evaluated against a state snapshot on every simulation step, so no
// text is re-interpreted on the hot path.
package expr

import (
	"fmt"
	"math"
)

// op identifies a tree node variant.
type op uint8

const (
	opLit  op = iota // numeric literal
	opTime           // the time symbol t
	opProc           // reference to a process value, resolved to a state slot
	opName           // unresolved symbol; only present before Bind
	opNeg
	opAdd
	opSub
	opMul
	opDiv
	opPow
	opCall // unary elementary function
)

// fn identifies an elementary function for opCall nodes.
type fn uint8

const (
	fnExp fn = iota
	fnLog
	fnSqrt
	fnSin
	fnCos
)

var fnNames = map[string]fn{
	"exp":  fnExp,
	"log":  fnLog,
	"sqrt": fnSqrt,
	"sin":  fnSin,
	"cos":  fnCos,
}

// node is one vertex of the expression tree. Which fields are meaningful
// depends on the op tag.
type node struct {
	op   op
	lit  float64 // opLit
	name string  // opName, until bound
	slot int     // opProc: index into the state vector
	fn   fn      // opCall
	l, r *node
}

// Expr is a compiled coefficient expression. It is immutable after Bind and
// safe for concurrent evaluation from many scenario goroutines.
type Expr struct {
	root   *node
	source string
}

// Source returns the original expression text.
func (e *Expr) Source() string { return e.source }

// Symbols returns the distinct unresolved symbol names referenced by the
// expression, in first-appearance order. After Bind it returns nil.
func (e *Expr) Symbols() []string {
	var names []string
	seen := map[string]bool{}
	var walk func(n *node)
	walk = func(n *node) {
		if n == nil {
			return
		}
		if n.op == opName && !seen[n.name] {
			seen[n.name] = true
			names = append(names, n.name)
		}
		walk(n.l)
		walk(n.r)
	}
	walk(e.root)
	return names
}

// Bind resolves every symbol reference to a state-vector slot. Symbols not
// present in slots produce an UnboundSymbolError naming the first offender.
func (e *Expr) Bind(slots map[string]int) error {
	var walk func(n *node) error
	walk = func(n *node) error {
		if n == nil {
			return nil
		}
		if n.op == opName {
			slot, ok := slots[n.name]
			if !ok {
				return &UnboundSymbolError{Name: n.name, Expr: e.source}
			}
			n.op = opProc
			n.slot = slot
			n.name = ""
			return nil
		}
		if err := walk(n.l); err != nil {
			return err
		}
		return walk(n.r)
	}
	return walk(e.root)
}

// Eval evaluates the expression against a state snapshot and time. The state
// slice is indexed by the slots established at Bind time. Arithmetic domain
// violations are surfaced as *DomainError rather than NaN.
func (e *Expr) Eval(state []float64, t float64) (float64, error) {
	v, err := eval(e.root, state, t)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &DomainError{Op: "expression", Detail: "non-finite result", Expr: e.source}
	}
	return v, nil
}

func eval(n *node, state []float64, t float64) (float64, error) {
	switch n.op {
	case opLit:
		return n.lit, nil
	case opTime:
		return t, nil
	case opProc:
		return state[n.slot], nil
	case opNeg:
		v, err := eval(n.l, state, t)
		return -v, err
	case opCall:
		v, err := eval(n.l, state, t)
		if err != nil {
			return 0, err
		}
		return evalFn(n.fn, v)
	}

	l, err := eval(n.l, state, t)
	if err != nil {
		return 0, err
	}
	r, err := eval(n.r, state, t)
	if err != nil {
		return 0, err
	}

	switch n.op {
	case opAdd:
		return l + r, nil
	case opSub:
		return l - r, nil
	case opMul:
		return l * r, nil
	case opDiv:
		if r == 0 {
			return 0, &DomainError{Op: "/", Detail: "division by zero"}
		}
		return l / r, nil
	case opPow:
		v := math.Pow(l, r)
		if math.IsNaN(v) {
			return 0, &DomainError{Op: "^", Detail: fmt.Sprintf("undefined power %g^%g", l, r)}
		}
		return v, nil
	}
	return 0, fmt.Errorf("expr: unknown op %d", n.op)
}

func evalFn(f fn, v float64) (float64, error) {
	switch f {
	case fnExp:
		return math.Exp(v), nil
	case fnLog:
		if v <= 0 {
			return 0, &DomainError{Op: "log", Detail: fmt.Sprintf("log of non-positive value %g", v)}
		}
		return math.Log(v), nil
	case fnSqrt:
		if v < 0 {
			return 0, &DomainError{Op: "sqrt", Detail: fmt.Sprintf("sqrt of negative value %g", v)}
		}
		return math.Sqrt(v), nil
	case fnSin:
		return math.Sin(v), nil
	case fnCos:
		return math.Cos(v), nil
	}
	return 0, fmt.Errorf("expr: unknown function %d", f)
}
