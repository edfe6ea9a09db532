package expr

import "fmt"

// ParseError reports a syntax problem in an expression or equation. Pos is a
// byte offset into Input; -1 when no single position applies.
type ParseError struct {
	Input string
	Pos   int
	Msg   string
}

func (e *ParseError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("parse %q: %s at offset %d", e.Input, e.Msg, e.Pos)
	}
	return fmt.Sprintf("parse %q: %s", e.Input, e.Msg)
}

// UnboundSymbolError reports a symbol that resolved to neither a declared
// process nor the time variable.
type UnboundSymbolError struct {
	Name string
	Expr string
}

func (e *UnboundSymbolError) Error() string {
	return fmt.Sprintf("unresolved symbol %q in expression %q", e.Name, e.Expr)
}

// DomainError reports an arithmetic domain violation during evaluation, such
// as the square root of a negative value or division by zero.
type DomainError struct {
	Op     string
	Detail string
	Expr   string
}

func (e *DomainError) Error() string {
	if e.Expr != "" {
		return fmt.Sprintf("domain error in %q: %s", e.Expr, e.Detail)
	}
	return fmt.Sprintf("domain error: %s", e.Detail)
}
