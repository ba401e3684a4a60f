package logic

import (
	"fmt"
	"strings"
)

// functional connective forms, e.g. Implies(P(a), Q(a))
var functional = map[string]Kind{
	"And":        KindAnd,
	"Or":         KindOr,
	"Not":        KindNot,
	"Xor":        KindXor,
	"Implies":    KindImplies,
	"Iff":        KindIff,
	"Equivalent": KindIff,
	"ForAll":     KindForAll,
	"Forall":     KindForAll,
	"Exists":     KindExists,
}

type parser struct {
	input  string
	tokens []token
	pos    int
}

// Parse parses a single formula
func Parse(input string) (*Formula, error) {
	if strings.TrimSpace(input) == "" {
		return nil, &SyntaxError{Input: input, Msg: "empty formula"}
	}
	tokens, err := tokenize(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, tokens: tokens}
	f, err := p.parseIff()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s %q after complete formula", tok.kind, tok.text)
	}
	return f, nil
}

// ParseAll parses every formula, stopping at the first failure
func ParseAll(inputs []string) ([]*Formula, error) {
	out := make([]*Formula, len(inputs))
	for i, in := range inputs {
		f, err := Parse(in)
		if err != nil {
			return nil, fmt.Errorf("formula %d %q: %w", i+1, in, err)
		}
		out[i] = f
	}
	return out, nil
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		if tok.kind == tokEOF {
			return tok, p.errorf(tok, "expected %s but formula ended", kind)
		}
		return tok, p.errorf(tok, "expected %s, found %q", kind, tok.text)
	}
	return tok, nil
}

func (p *parser) errorf(tok token, format string, args ...interface{}) error {
	return &SyntaxError{Input: p.input, Pos: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseIff() (*Formula, error) {
	left, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	for p.peek().kind == tokIff {
		p.next()
		right, err := p.parseImplies()
		if err != nil {
			return nil, err
		}
		left = nary(KindIff, []*Formula{left, right})
	}
	return left, nil
}

func (p *parser) parseImplies() (*Formula, error) {
	left, err := p.parseXor()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokImplies {
		return left, nil
	}
	p.next()
	right, err := p.parseImplies()
	if err != nil {
		return nil, err
	}
	return nary(KindImplies, []*Formula{left, right}), nil
}

func (p *parser) parseXor() (*Formula, error) {
	return p.parseChain(tokXor, KindXor, p.parseOr)
}

func (p *parser) parseOr() (*Formula, error) {
	return p.parseChain(tokOr, KindOr, p.parseAnd)
}

func (p *parser) parseAnd() (*Formula, error) {
	return p.parseChain(tokAnd, KindAnd, p.parseUnary)
}

func (p *parser) parseChain(op tokenKind, kind Kind, operand func() (*Formula, error)) (*Formula, error) {
	first, err := operand()
	if err != nil {
		return nil, err
	}
	subs := []*Formula{first}
	for p.peek().kind == op {
		p.next()
		f, err := operand()
		if err != nil {
			return nil, err
		}
		subs = append(subs, f)
	}
	if len(subs) == 1 {
		return first, nil
	}
	return nary(kind, subs), nil
}

func (p *parser) parseUnary() (*Formula, error) {
	tok := p.peek()
	switch tok.kind {
	case tokNot:
		p.next()
		f, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return Not(f), nil
	case tokForAll, tokExists:
		p.next()
		kind := KindForAll
		if tok.kind == tokExists {
			kind = KindExists
		}
		return p.parseQuantifier(kind)
	case tokIdent:
		if (tok.text == "forall" || tok.text == "exists") && p.peekAt(1).kind == tokIdent {
			p.next()
			kind := KindForAll
			if tok.text == "exists" {
				kind = KindExists
			}
			return p.parseQuantifier(kind)
		}
		return p.parseIdent()
	case tokLParen:
		p.next()
		f, err := p.parseIff()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return f, nil
	case tokEOF:
		return nil, p.errorf(tok, "formula ended where an operand was expected")
	default:
		return nil, p.errorf(tok, "dangling %s %q", tok.kind, tok.text)
	}
}

// parseQuantifier handles "∀x φ", "∀x, y φ" and "∀x. φ"; the dot form extends
// the scope to the end of the enclosing formula.
func (p *parser) parseQuantifier(kind Kind) (*Formula, error) {
	vars, err := p.parseVarList()
	if err != nil {
		return nil, err
	}
	var body *Formula
	if p.peek().kind == tokDot {
		p.next()
		body, err = p.parseIff()
	} else {
		body, err = p.parseUnary()
	}
	if err != nil {
		return nil, err
	}
	return quantify(kind, vars, body), nil
}

func (p *parser) parseVarList() ([]string, error) {
	first, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	vars := []string{first.text}
	for p.peek().kind == tokComma && p.peekAt(1).kind == tokIdent {
		p.next()
		vars = append(vars, p.next().text)
	}
	return vars, nil
}

func quantify(kind Kind, vars []string, body *Formula) *Formula {
	for i := len(vars) - 1; i >= 0; i-- {
		body = &Formula{Kind: kind, Var: vars[i], Subs: []*Formula{body}}
	}
	return body
}

func (p *parser) parseIdent() (*Formula, error) {
	tok := p.next()
	hasArgs := p.peek().kind == tokLParen

	if kind, ok := functional[tok.text]; ok && hasArgs {
		return p.parseFunctional(tok, kind)
	}
	if !hasArgs && p.peek().kind != tokEq && p.peek().kind != tokNeq {
		switch tok.text {
		case "True", "true", "⊤":
			return Const(true), nil
		case "False", "false", "⊥":
			return Const(false), nil
		}
	}

	term := Term{Name: tok.text}
	if hasArgs {
		args, err := p.parseTermArgs()
		if err != nil {
			return nil, err
		}
		term.Args = args
	}

	switch p.peek().kind {
	case tokEq, tokNeq:
		op := p.next()
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		eq := &Formula{Kind: KindEq, Terms: []Term{term, rhs}}
		if op.kind == tokNeq {
			return Not(eq), nil
		}
		return eq, nil
	}
	return Atom(term.Name, term.Args...), nil
}

func (p *parser) parseTerm() (Term, error) {
	tok, err := p.expect(tokIdent)
	if err != nil {
		return Term{}, err
	}
	t := Term{Name: tok.text}
	if p.peek().kind == tokLParen {
		args, err := p.parseTermArgs()
		if err != nil {
			return Term{}, err
		}
		t.Args = args
	}
	return t, nil
}

func (p *parser) parseTermArgs() ([]Term, error) {
	open, err := p.expect(tokLParen)
	if err != nil {
		return nil, err
	}
	if p.peek().kind == tokRParen {
		return nil, p.errorf(open, "empty argument list")
	}
	var args []Term
	for {
		t, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		args = append(args, t)
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return args, nil
	}
}

func (p *parser) parseFunctional(name token, kind Kind) (*Formula, error) {
	p.next() // (

	if kind == KindForAll || kind == KindExists {
		vars, err := p.parseBinderVars()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokComma); err != nil {
			return nil, err
		}
		body, err := p.parseIff()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return quantify(kind, vars, body), nil
	}

	var args []*Formula
	for {
		f, err := p.parseIff()
		if err != nil {
			return nil, err
		}
		args = append(args, f)
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		break
	}

	switch kind {
	case KindNot:
		if len(args) != 1 {
			return nil, p.errorf(name, "Not takes 1 argument, got %d", len(args))
		}
		return Not(args[0]), nil
	case KindImplies, KindXor, KindIff:
		if len(args) != 2 {
			return nil, p.errorf(name, "%s takes 2 arguments, got %d", name.text, len(args))
		}
		return nary(kind, args), nil
	default:
		if len(args) == 1 {
			return args[0], nil
		}
		return nary(kind, args), nil
	}
}

func (p *parser) parseBinderVars() ([]string, error) {
	if p.peek().kind != tokLBracket {
		tok, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		return []string{tok.text}, nil
	}
	p.next()
	var vars []string
	for {
		tok, err := p.expect(tokIdent)
		if err != nil {
			return nil, err
		}
		vars = append(vars, tok.text)
		if p.peek().kind == tokComma {
			p.next()
			continue
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return nil, err
		}
		return vars, nil
	}
}
