package rules

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lysyi3m/listing-comb/app/model"
)

const allowedFormulaChars = "0123456789+-*/(). \t\n\r"

type tokenKind int

const (
	tokNumber tokenKind = iota
	tokOp
	tokLParen
	tokRParen
)

type token struct {
	kind  tokenKind
	op    byte
	value float64
}

// EvaluateFormula substitutes the named variable into formula and evaluates the
// result as arithmetic over + - * / and parentheses. Anything else, including
// division by zero, is rejected.
func EvaluateFormula(formula, variable string, value float64) (float64, error) {
	if strings.TrimSpace(formula) == "" {
		return 0, fmt.Errorf("%w: empty formula", model.ErrRuleEvaluation)
	}

	expr := formula
	if variable != "" {
		ref := regexp.MustCompile(`\b` + regexp.QuoteMeta(variable) + `\b`)
		expr = ref.ReplaceAllString(expr, "("+formatNumber(value)+")")
	}

	for _, r := range expr {
		if !strings.ContainsRune(allowedFormulaChars, r) {
			return 0, fmt.Errorf("%w: formula %q contains disallowed token %q", model.ErrRuleEvaluation, formula, r)
		}
	}

	tokens, err := tokenize(expr)
	if err != nil {
		return 0, fmt.Errorf("%w: formula %q: %v", model.ErrRuleEvaluation, formula, err)
	}

	p := &parser{tokens: tokens}
	result, err := p.expression()
	if err != nil {
		return 0, fmt.Errorf("%w: formula %q: %v", model.ErrRuleEvaluation, formula, err)
	}
	if p.pos != len(p.tokens) {
		return 0, fmt.Errorf("%w: formula %q: unexpected trailing input", model.ErrRuleEvaluation, formula)
	}
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0, fmt.Errorf("%w: formula %q: result is not finite", model.ErrRuleEvaluation, formula)
	}

	return result, nil
}

func tokenize(expr string) ([]token, error) {
	var tokens []token
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
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
			start := i
			for i < len(expr) && (expr[i] >= '0' && expr[i] <= '9' || expr[i] == '.') {
				i++
			}
			v, err := strconv.ParseFloat(expr[start:i], 64)
			if err != nil {
				return nil, fmt.Errorf("invalid number %q", expr[start:i])
			}
			tokens = append(tokens, token{kind: tokNumber, value: v})
		default:
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens")
	}
	return tokens, nil
}

// parser is a recursive-descent evaluator:
//
//	expression = term { ("+" | "-") term }
//	term       = factor { ("*" | "/") factor }
//	factor     = ("+" | "-") factor | number | "(" expression ")"
type parser struct {
	tokens []token
	pos    int
	depth  int
}

const maxFormulaDepth = 64

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.tokens) {
		return token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) expression() (float64, error) {
	left, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.op != '+' && t.op != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.term()
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

func (p *parser) term() (float64, error) {
	left, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.op != '*' && t.op != '/') {
			return left, nil
		}
		p.pos++
		right, err := p.factor()
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

func (p *parser) factor() (float64, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxFormulaDepth {
		return 0, fmt.Errorf("expression nested too deeply")
	}

	t, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	switch t.kind {
	case tokNumber:
		p.pos++
		return t.value, nil
	case tokOp:
		if t.op != '+' && t.op != '-' {
			return 0, fmt.Errorf("unexpected operator %q", t.op)
		}
		p.pos++
		v, err := p.factor()
		if err != nil {
			return 0, err
		}
		if t.op == '-' {
			return -v, nil
		}
		return v, nil
	case tokLParen:
		p.pos++
		v, err := p.expression()
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing.kind != tokRParen {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	default:
		return 0, fmt.Errorf("unexpected ')'")
	}
}
