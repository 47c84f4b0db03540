package formula

import (
	"sort"
	"strconv"
)

// parser is a precedence-climbing parser over a token slice. It does not rely
// on the validator and reports the same error taxonomy, but when a list holds
// several faults it reports the leftmost one while the validator checks
// grouping first. Engine.Parse validates before parsing, so its error is the
// one callers see.
type parser struct {
	toks []Token
	cat  *Catalog
	pos  int
	// open holds the groups entered and not yet closed.
	open []group
	vars map[string]bool
}

func parse(tokens []Token, cat *Catalog) (*Tree, error) {
	if len(tokens) == 0 {
		return nil, emptyFormula()
	}
	p := &parser{toks: tokens, cat: cat, vars: make(map[string]bool)}
	root, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.toks) {
		// expr only stops early on a close or separator.
		tok := p.toks[p.pos]
		if tok.Side == SideClose {
			return nil, unbalanced(p.pos, tok, "close bracket "+strconv.Quote(tok.Symbol)+" with no open bracket")
		}
		return nil, malformed(p.pos, tok, "separator outside function call")
	}
	t := &Tree{Root: root, Variables: make([]string, 0, len(p.vars)), cat: p.cat}
	for name := range p.vars {
		t.Variables = append(t.Variables, name)
	}
	sort.Strings(t.Variables)
	return t, nil
}

// expr parses operands joined by binary operators binding at least as
// tightly as min. It stops before a close bracket, a separator, the end of
// input, or a looser operator.
func (p *parser) expr(min int) (*Node, error) {
	lhs, err := p.operand()
	if err != nil {
		return nil, err
	}
	for p.pos < len(p.toks) {
		tok := p.toks[p.pos]
		switch tok.Kind {
		case KindOperator:
			op, ok := p.cat.Binary(tok.Symbol)
			if !ok {
				if _, ok := p.cat.Unary(tok.Symbol); ok {
					return nil, malformed(p.pos, tok, "unary operator "+strconv.Quote(tok.Symbol)+" after an operand")
				}
				return nil, unknown(p.pos, tok)
			}
			if op.Prec < min {
				return lhs, nil
			}
			at := p.pos
			p.pos++
			next := op.Prec + 1
			if op.Right {
				next = op.Prec
			}
			rhs, err := p.expr(next)
			if err != nil {
				return nil, err
			}
			lhs = &Node{
				Kind:     NodeBinary,
				Symbol:   op.Symbol,
				Display:  displayOf(tok, op),
				Pos:      at,
				Children: []*Node{lhs, rhs},
				op:       op,
			}
		case KindGrouping:
			if tok.Side == SideOpen {
				return nil, malformed(p.pos, tok, "missing operator before group")
			}
			return lhs, nil
		default:
			return nil, malformed(p.pos, tok, "missing operator before "+tok.Kind.String()+" "+strconv.Quote(tok.Symbol))
		}
	}
	return lhs, nil
}

// operand parses a leaf, a unary operation, a call, or a bracketed group.
func (p *parser) operand() (*Node, error) {
	if p.pos >= len(p.toks) {
		return nil, p.missing()
	}
	at := p.pos
	tok := p.toks[at]
	switch tok.Kind {
	case KindConstant:
		v, k, ok := p.cat.literal(tok.Symbol)
		if !ok {
			return nil, unknown(at, tok)
		}
		p.pos++
		n := &Node{Kind: NodeNumber, Symbol: tok.Symbol, Display: tok.Text(), Value: v, Pos: at}
		if k != nil {
			n.Kind, n.k = NodeConstant, k
		}
		return n, nil

	case KindVariable:
		if tok.Symbol == "" {
			return nil, unknown(at, tok)
		}
		p.pos++
		p.vars[tok.Symbol] = true
		return &Node{Kind: NodeVariable, Symbol: tok.Symbol, Display: tok.Text(), Pos: at}, nil

	case KindOperator:
		op, ok := p.cat.Unary(tok.Symbol)
		if !ok {
			if _, ok := p.cat.Binary(tok.Symbol); ok {
				return nil, missingOperand(at, tok)
			}
			return nil, unknown(at, tok)
		}
		p.pos++
		// Unary operators bind tighter than any binary operator, so the
		// operand is a single operand rather than an expression.
		x, err := p.operand()
		if err != nil {
			return nil, err
		}
		return &Node{Kind: NodeUnary, Symbol: op.Symbol, Display: displayOf(tok, op), Pos: at, Children: []*Node{x}, op: op}, nil

	case KindFunction:
		return p.call()

	case KindGrouping:
		if tok.Side != SideOpen {
			return nil, p.missing()
		}
		if !isOpenBracket(tok.Symbol) {
			return nil, unknown(at, tok)
		}
		p.pos++
		p.open = append(p.open, group{pos: at})
		inner, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if err := p.close(tok); err != nil {
			return nil, err
		}
		return inner, nil

	default:
		return nil, malformed(at, tok, "invalid token kind")
	}
}

// call parses name(arg, ...) starting at the function token.
func (p *parser) call() (*Node, error) {
	at := p.pos
	tok := p.toks[at]
	fn, ok := p.cat.Function(tok.Symbol)
	if !ok {
		return nil, unknown(at, tok)
	}
	p.pos++
	if p.pos >= len(p.toks) || !isOpen(p.toks[p.pos]) {
		return nil, callNeedsGroup(at, tok)
	}
	openAt := p.pos
	open := p.toks[openAt]
	if !isOpenBracket(open.Symbol) {
		return nil, unknown(openAt, open)
	}
	p.pos++
	p.open = append(p.open, group{call: true, fn: fn, pos: at})

	var args []*Node
	if p.pos >= len(p.toks) || p.toks[p.pos].Side != SideClose || p.toks[p.pos].Kind != KindGrouping {
		for {
			arg, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.pos < len(p.toks) && p.toks[p.pos].Side == SideSeparator {
				p.pos++
				continue
			}
			break
		}
	}
	if err := p.close(open); err != nil {
		return nil, err
	}
	if !fn.Arity.Accepts(len(args)) {
		return nil, callArity(at, tok, fn, len(args))
	}
	return &Node{Kind: NodeCall, Symbol: fn.Name, Display: tok.Text(), Pos: at, Children: args, fn: fn}, nil
}

// close consumes the bracket closing the innermost open group.
func (p *parser) close(open Token) error {
	if p.pos >= len(p.toks) {
		return p.unclosed()
	}
	tok := p.toks[p.pos]
	switch {
	case tok.Kind != KindGrouping:
		return malformed(p.pos, tok, "expected close bracket")
	case tok.Side == SideSeparator:
		return malformed(p.pos, tok, "separator outside function call")
	case tok.Side != SideClose:
		return malformed(p.pos, tok, "expected close bracket")
	case !isCloseBracket(tok.Symbol):
		return unknown(p.pos, tok)
	case !closes(open.Symbol, tok.Symbol):
		return unbalanced(p.pos, tok, "mismatched brackets "+open.Symbol+" "+tok.Symbol)
	}
	p.pos++
	p.open = p.open[:len(p.open)-1]
	return nil
}

// missing reports why no operand starts at p.pos: the preceding operator is
// short an operand, a group or argument is empty, or brackets are unbalanced.
func (p *parser) missing() error {
	var prev Token
	if p.pos > 0 {
		prev = p.toks[p.pos-1]
	}
	if prev.Kind == KindOperator {
		return missingOperand(p.pos-1, prev)
	}
	if p.pos >= len(p.toks) {
		if len(p.open) > 0 {
			return p.unclosed()
		}
		return malformed(len(p.toks)-1, p.toks[len(p.toks)-1], "formula ends without an operand")
	}
	tok := p.toks[p.pos]
	inCall := len(p.open) > 0 && p.open[len(p.open)-1].call
	switch {
	case tok.Side == SideClose && len(p.open) == 0:
		return unbalanced(p.pos, tok, "close bracket "+strconv.Quote(tok.Symbol)+" with no open bracket")
	case tok.Side == SideSeparator && !inCall:
		return malformed(p.pos, tok, "separator outside function call")
	case inCall:
		return emptyArgument(p.pos, tok)
	default:
		return malformed(p.pos, tok, "empty group")
	}
}

// unclosed reports the outermost group still open at the end of input.
func (p *parser) unclosed() error {
	g := p.open[0]
	at := g.pos
	if g.call {
		at++
	}
	tok := p.toks[at]
	return unbalanced(at, tok, "open bracket "+strconv.Quote(tok.Symbol)+" with no close bracket")
}

func displayOf(tok Token, op *Operator) string {
	if tok.Display != "" {
		return tok.Display
	}
	if tok.Symbol != op.Symbol {
		// An alias such as "×" is its own display text.
		return tok.Symbol
	}
	return op.Display
}
