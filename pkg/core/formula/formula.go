// Package formula evaluates the restricted arithmetic expressions that
// operator rules use for episode offsets, e.g. "EP+12" or "@*2-1".
// Only digits, + - * / % and parentheses are accepted; anything else is
// rejected so rule files can never execute arbitrary code.
package formula

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/angelospk/animatch/pkg/core/errors"
)

// Eval evaluates expr after substituting every occurrence of the EP
// placeholder with base. Accepted shapes:
//
//	"EP+12"   -> base+12
//	"@*2"     -> base*2 (leading @ is the rule-file marker)
//	"*2+1"    -> base*2+1 (operator-prefixed, base is implied)
//	"5"       -> 5 (plain reassignment)
func Eval(expr string, base int) (int, error) {
	clean := strings.TrimPrefix(strings.TrimSpace(expr), "@")
	clean = strings.ToUpper(strings.TrimSpace(clean))
	if clean == "" {
		return 0, fmt.Errorf("%w: empty expression", apperrors.ErrBadFormula)
	}

	if strings.Contains(clean, "EP") {
		clean = strings.ReplaceAll(clean, "EP", strconv.Itoa(base))
	} else if strings.ContainsAny(string(clean[0]), "+-*/%") {
		clean = strconv.Itoa(base) + clean
	}

	return EvalArithmetic(clean)
}

// EvalArithmetic evaluates a pure arithmetic expression with no
// placeholders. The result is truncated to an int.
func EvalArithmetic(expr string) (int, error) {
	p := &parser{input: expr}
	v, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	p.skipSpaces()
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("%w: unexpected %q at offset %d", apperrors.ErrBadFormula, p.input[p.pos], p.pos)
	}
	return int(v), nil
}

// parser is a minimal recursive-descent evaluator over float64 so that
// intermediate divisions keep precision before the final truncation.
type parser struct {
	input string
	pos   int
}

func (p *parser) skipSpaces() {
	for p.pos < len(p.input) && p.input[p.pos] == ' ' {
		p.pos++
	}
}

func (p *parser) peek() (byte, bool) {
	p.skipSpaces()
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

// parseExpr handles + and -.
func (p *parser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '+' && c != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if c == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

// parseTerm handles *, / and %.
func (p *parser) parseTerm() (float64, error) {
	left, err := p.parseFactor()
	if err != nil {
		return 0, err
	}
	for {
		c, ok := p.peek()
		if !ok || (c != '*' && c != '/' && c != '%') {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return 0, err
		}
		switch c {
		case '*':
			left *= right
		case '/':
			if right == 0 {
				return 0, fmt.Errorf("%w: division by zero", apperrors.ErrBadFormula)
			}
			left /= right
		case '%':
			if int(right) == 0 {
				return 0, fmt.Errorf("%w: modulo by zero", apperrors.ErrBadFormula)
			}
			left = float64(int(left) % int(right))
		}
	}
}

// parseFactor handles numbers, unary minus and parentheses.
func (p *parser) parseFactor() (float64, error) {
	c, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("%w: unexpected end of expression", apperrors.ErrBadFormula)
	}
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		c, ok = p.peek()
		if !ok || c != ')' {
			return 0, fmt.Errorf("%w: missing closing parenthesis", apperrors.ErrBadFormula)
		}
		p.pos++
		return v, nil
	case c == '-':
		p.pos++
		v, err := p.parseFactor()
		return -v, err
	case c >= '0' && c <= '9', c == '.':
		start := p.pos
		for p.pos < len(p.input) && (p.input[p.pos] >= '0' && p.input[p.pos] <= '9' || p.input[p.pos] == '.') {
			p.pos++
		}
		v, err := strconv.ParseFloat(p.input[start:p.pos], 64)
		if err != nil {
			return 0, fmt.Errorf("%w: bad number %q", apperrors.ErrBadFormula, p.input[start:p.pos])
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: unexpected %q", apperrors.ErrBadFormula, c)
	}
}
