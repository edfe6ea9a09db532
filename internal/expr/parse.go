package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Parse compiles an expression string into an Expr. Symbols other than t and
// the elementary function names stay unresolved until Bind.
func Parse(input string) (*Expr, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	root, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok.pos, "unexpected %q", tok.text)
	}
	return &Expr{root: root, source: strings.TrimSpace(input)}, nil
}

// SplitTerms splits an expression string at its top-level additive
// operators, keeping each term's sign. "a*dt + b*dW" becomes ["a*dt",
// "b*dW"]; "-X*dt - 0.5*dW" becomes ["-X*dt", "-0.5*dW"]. Operators inside
// parentheses, unary signs, and exponent suffixes like 1e-3 do not split.
func SplitTerms(input string) ([]string, error) {
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	var terms []string
	depth := 0
	start := 0
	prev := tokEOF
	for _, tok := range toks {
		switch tok.kind {
		case tokLParen:
			depth++
		case tokRParen:
			depth--
		case tokPlus, tokMinus:
			// Only an infix +/- at depth zero separates terms.
			infix := prev == tokNum || prev == tokIdent || prev == tokRParen
			if depth == 0 && infix {
				terms = append(terms, strings.TrimSpace(input[start:tok.pos]))
				if tok.kind == tokMinus {
					start = tok.pos // keep the sign with the next term
				} else {
					start = tok.pos + 1
				}
			}
		case tokEOF:
			last := strings.TrimSpace(input[start:])
			if last == "" {
				return nil, &ParseError{Input: input, Pos: tok.pos, Msg: "empty term"}
			}
			terms = append(terms, last)
		}
		prev = tok.kind
	}
	for _, term := range terms {
		if term == "" || term == "-" {
			return nil, &ParseError{Input: input, Pos: -1, Msg: "empty term"}
		}
	}
	return terms, nil
}

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokCaret
	tokLParen
	tokRParen
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

func lex(input string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(input) {
		c := input[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(input) && (input[j] >= '0' && input[j] <= '9' || input[j] == '.') {
				j++
			}
			// Exponent suffix, e.g. 1e-3.
			if j < len(input) && (input[j] == 'e' || input[j] == 'E') {
				k := j + 1
				if k < len(input) && (input[k] == '+' || input[k] == '-') {
					k++
				}
				if k < len(input) && input[k] >= '0' && input[k] <= '9' {
					for k < len(input) && input[k] >= '0' && input[k] <= '9' {
						k++
					}
					j = k
				}
			}
			v, err := strconv.ParseFloat(input[i:j], 64)
			if err != nil {
				return nil, &ParseError{Input: input, Pos: i, Msg: "malformed number " + input[i:j]}
			}
			toks = append(toks, token{kind: tokNum, text: input[i:j], num: v, pos: i})
			i = j
		case isIdentStart(rune(c)):
			j := i
			for j < len(input) && isIdentPart(rune(input[j])) {
				j++
			}
			toks = append(toks, token{kind: tokIdent, text: input[i:j], pos: i})
			i = j
		default:
			kind := tokEOF
			switch c {
			case '+':
				kind = tokPlus
			case '-':
				kind = tokMinus
			case '*':
				kind = tokStar
			case '/':
				kind = tokSlash
			case '^':
				kind = tokCaret
			case '(':
				kind = tokLParen
			case ')':
				kind = tokRParen
			default:
				return nil, &ParseError{Input: input, Pos: i, Msg: "unexpected character " + strconv.QuoteRune(rune(c))}
			}
			toks = append(toks, token{kind: kind, text: string(c), pos: i})
			i++
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(input)})
	return toks, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type parser struct {
	input string
	toks  []token
	next  int
}

func (p *parser) peek() token { return p.toks[p.next] }

func (p *parser) advance() token {
	tok := p.toks[p.next]
	if tok.kind != tokEOF {
		p.next++
	}
	return tok
}

func (p *parser) errorf(pos int, format string, args ...any) error {
	return &ParseError{Input: p.input, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// binding powers: + - < * / < unary minus < ^
func leftPower(k tokKind) int {
	switch k {
	case tokPlus, tokMinus:
		return 10
	case tokStar, tokSlash:
		return 20
	case tokCaret:
		return 40
	}
	return 0
}

// parseExpr is a Pratt parser over the token stream. minPower bounds which
// infix operators this call may consume.
func (p *parser) parseExpr(minPower int) (*node, error) {
	left, err := p.parsePrefix()
	if err != nil {
		return nil, err
	}

	for {
		tok := p.peek()
		power := leftPower(tok.kind)
		if power == 0 || power <= minPower {
			break
		}
		p.advance()

		// ^ is right-associative; everything else left-associative.
		rightMin := power
		if tok.kind == tokCaret {
			rightMin = power - 1
		}
		right, err := p.parseExpr(rightMin)
		if err != nil {
			return nil, err
		}

		var o op
		switch tok.kind {
		case tokPlus:
			o = opAdd
		case tokMinus:
			o = opSub
		case tokStar:
			o = opMul
		case tokSlash:
			o = opDiv
		case tokCaret:
			o = opPow
		}
		left = &node{op: o, l: left, r: right}
	}
	return left, nil
}

func (p *parser) parsePrefix() (*node, error) {
	tok := p.advance()
	switch tok.kind {
	case tokNum:
		return &node{op: opLit, lit: tok.num}, nil

	case tokMinus:
		// Unary minus binds tighter than * and / but looser than ^,
		// so -x^2 parses as -(x^2).
		operand, err := p.parseExpr(30)
		if err != nil {
			return nil, err
		}
		return &node{op: opNeg, l: operand}, nil

	case tokLParen:
		inner, err := p.parseExpr(0)
		if err != nil {
			return nil, err
		}
		if closing := p.advance(); closing.kind != tokRParen {
			return nil, p.errorf(closing.pos, "expected closing parenthesis")
		}
		return inner, nil

	case tokIdent:
		if p.peek().kind == tokLParen {
			f, ok := fnNames[tok.text]
			if !ok {
				return nil, p.errorf(tok.pos, "unknown function %q", tok.text)
			}
			p.advance() // consume (
			arg, err := p.parseExpr(0)
			if err != nil {
				return nil, err
			}
			if closing := p.advance(); closing.kind != tokRParen {
				return nil, p.errorf(closing.pos, "expected closing parenthesis after %s argument", tok.text)
			}
			return &node{op: opCall, fn: f, l: arg}, nil
		}
		if tok.text == "t" {
			return &node{op: opTime}, nil
		}
		return &node{op: opName, name: tok.text}, nil

	case tokEOF:
		return nil, p.errorf(tok.pos, "unexpected end of expression")
	}
	return nil, p.errorf(tok.pos, "unexpected %q", tok.text)
}
