package service

import (
	"fmt"
	"strconv"
	"strings"
)

// ApplyFormula renders a computed Y value through a display template. The
// template carries exactly one substitution span delimited by braces whose
// inner text is an arithmetic expression over the bound variable "val"
// (operators + - * / and parentheses); everything outside the span passes
// through literally, so "$ {val / 100}" yields "$ 123.45" for 12345.
//
// An empty template is the identity passthrough. A malformed template never
// fails the pipeline: the plain numeric value is returned alongside the
// error so the caller can surface a warning.
func ApplyFormula(template string, value float64) (string, error) {
	plain := formatNumber(value)
	if template == "" {
		return plain, nil
	}

	open := strings.Index(template, "{")
	closeIdx := strings.LastIndex(template, "}")
	if open == -1 || closeIdx == -1 || closeIdx < open {
		return plain, fmt.Errorf("formula %q: unbalanced braces", template)
	}
	inner := template[open+1 : closeIdx]
	if strings.ContainsAny(inner, "{}") {
		return plain, fmt.Errorf("formula %q: nested braces", template)
	}

	result, err := evalExpression(inner, value)
	if err != nil {
		return plain, fmt.Errorf("formula %q: %w", template, err)
	}

	return template[:open] + formatNumber(result) + template[closeIdx+1:], nil
}

// formatNumber renders a float without trailing zeros ("12345", "123.45").
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// ============================================================================
// Expression evaluation
// ============================================================================
// Deliberately tiny and sandboxed: a tokenizer plus a recursive-descent
// parser over + - * / ( ) and the single variable "val". No general
// expression engine is invoked.

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokVal
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	num  float64
	op   byte
}

func evalExpression(expr string, val float64) (float64, error) {
	tokens, err := tokenize(expr)
	if err != nil {
		return 0, err
	}
	if len(tokens) == 0 {
		return 0, fmt.Errorf("empty expression")
	}
	p := &exprParser{tokens: tokens, val: val}
	result, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("unexpected trailing input")
	}
	return result, nil
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(expr) {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokLParen})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokRParen})
			i++
		case c == '+' || c == '-' || c == '*' || c == '/':
			tokens = append(tokens, token{kind: tokOp, op: c})
			i++
		case c >= '0' && c <= '9' || c == '.':
			j := i
			for j < len(expr) && (expr[j] >= '0' && expr[j] <= '9' || expr[j] == '.') {
				j++
			}
			n, err := strconv.ParseFloat(expr[i:j], 64)
			if err != nil {
				return nil, fmt.Errorf("bad number %q", expr[i:j])
			}
			tokens = append(tokens, token{kind: tokNumber, num: n})
			i = j
		case strings.HasPrefix(expr[i:], "val"):
			tokens = append(tokens, token{kind: tokVal})
			i += 3
		default:
			return nil, fmt.Errorf("unexpected character %q", string(c))
		}
	}
	return tokens, nil
}

type exprParser struct {
	tokens []token
	pos    int
	val    float64
}

func (p *exprParser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

// parseExpr handles + and -.
func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.op != '+' && t.op != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if t.op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles * and /.
func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.op != '*' && t.op != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		if t.op == '*' {
			left *= right
		} else {
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		}
	}
}

// parseFactor handles numbers, val, unary minus, and parentheses.
func (p *exprParser) parseFactor() (float64, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}
	switch t.kind {
	case tokNumber:
		p.pos++
		return t.num, nil
	case tokVal:
		p.pos++
		return p.val, nil
	case tokOp:
		if t.op == '-' {
			p.pos++
			v, err := p.parseFactor()
			if err != nil {
				return 0, err
			}
			return -v, nil
		}
	case tokLParen:
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		next, ok := p.peek()
		if !ok || next.kind != tokRParen {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	}
	return 0, fmt.Errorf("unexpected token")
}
