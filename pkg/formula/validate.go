package formula

import "strconv"

// validate statically checks a token list without building a tree. Checks run
// in order and stop at the first failure: empty input, grouping balance,
// arity in immediate context, then symbol resolution. Variables are never
// rejected here since their values arrive with the bindings.
func validate(tokens []Token, cat *Catalog) error {
	if len(tokens) == 0 {
		return emptyFormula()
	}
	if err := checkGrouping(tokens); err != nil {
		return err
	}
	if err := checkArity(tokens, cat); err != nil {
		return err
	}
	return checkSymbols(tokens, cat)
}

// checkGrouping matches brackets with a stack of open positions. An unclosed
// group is reported at the outermost open bracket left on the stack.
func checkGrouping(tokens []Token) error {
	var opens []int
	for i, tok := range tokens {
		if tok.Kind != KindGrouping {
			continue
		}
		switch tok.Side {
		case SideOpen:
			if !isOpenBracket(tok.Symbol) {
				return unknown(i, tok)
			}
			opens = append(opens, i)
		case SideClose:
			if !isCloseBracket(tok.Symbol) {
				return unknown(i, tok)
			}
			if len(opens) == 0 {
				return unbalanced(i, tok, "close bracket "+strconv.Quote(tok.Symbol)+" with no open bracket")
			}
			open := tokens[opens[len(opens)-1]]
			if !closes(open.Symbol, tok.Symbol) {
				return unbalanced(i, tok, "mismatched brackets "+open.Symbol+" "+tok.Symbol)
			}
			opens = opens[:len(opens)-1]
		case SideSeparator:
			if tok.Symbol != "," {
				return unknown(i, tok)
			}
		default:
			return malformed(i, tok, "grouping token without a side")
		}
	}
	if len(opens) > 0 {
		i := opens[0]
		return unbalanced(i, tokens[i], "open bracket "+strconv.Quote(tokens[i].Symbol)+" with no close bracket")
	}
	return nil
}

// group tracks an open bracket while checking arity. fn is set for call
// groups; it is nil for plain groups and for calls to unknown functions,
// whose names checkSymbols reports.
type group struct {
	call bool
	fn   *Function
	pos  int
	args int
}

// checkArity walks the tokens tracking whether an operand is expected next.
// It assumes grouping is balanced.
func checkArity(tokens []Token, cat *Catalog) error {
	var groups []group
	operand := true
	for i, tok := range tokens {
		last := i == len(tokens)-1
		switch tok.Kind {
		case KindConstant, KindVariable:
			if !operand {
				return malformed(i, tok, "missing operator before "+strconv.Quote(tok.Symbol))
			}
			operand = false

		case KindOperator:
			if operand {
				if _, ok := cat.Unary(tok.Symbol); !ok {
					if _, ok := cat.Binary(tok.Symbol); ok {
						return missingOperand(i, tok)
					}
				}
			}
			if last || endsOperand(tokens[i+1]) {
				return missingOperand(i, tok)
			}
			operand = true

		case KindFunction:
			if !operand {
				return malformed(i, tok, "missing operator before function "+strconv.Quote(tok.Symbol))
			}
			if last || !isOpen(tokens[i+1]) {
				return callNeedsGroup(i, tok)
			}

		case KindGrouping:
			switch tok.Side {
			case SideOpen:
				if !operand {
					return malformed(i, tok, "missing operator before group")
				}
				g := group{pos: i}
				if i > 0 && tokens[i-1].Kind == KindFunction {
					g.call = true
					g.pos = i - 1
					g.fn, _ = cat.Function(tokens[i-1].Symbol)
				}
				groups = append(groups, g)
				operand = true
			case SideClose:
				g := groups[len(groups)-1]
				groups = groups[:len(groups)-1]
				if operand {
					switch {
					case !g.call:
						return malformed(i, tok, "empty group")
					case tokens[i-1].Side == SideSeparator:
						return emptyArgument(i, tok)
					}
				} else {
					g.args++
				}
				if g.fn != nil && !g.fn.Arity.Accepts(g.args) {
					return callArity(g.pos, tokens[g.pos], g.fn, g.args)
				}
				operand = false
			case SideSeparator:
				if len(groups) == 0 || !groups[len(groups)-1].call {
					return malformed(i, tok, "separator outside function call")
				}
				if operand {
					return emptyArgument(i, tok)
				}
				groups[len(groups)-1].args++
				operand = true
			}

		default:
			return malformed(i, tok, "invalid token kind")
		}
	}
	if operand {
		i := len(tokens) - 1
		return malformed(i, tokens[i], "formula ends without an operand")
	}
	return nil
}

func checkSymbols(tokens []Token, cat *Catalog) error {
	for i, tok := range tokens {
		switch tok.Kind {
		case KindConstant:
			if _, _, ok := cat.literal(tok.Symbol); !ok {
				return unknown(i, tok)
			}
		case KindVariable:
			if tok.Symbol == "" {
				return unknown(i, tok)
			}
		case KindOperator:
			_, bin := cat.Binary(tok.Symbol)
			_, un := cat.Unary(tok.Symbol)
			if !bin && !un {
				return unknown(i, tok)
			}
		case KindFunction:
			if _, ok := cat.Function(tok.Symbol); !ok {
				return unknown(i, tok)
			}
		}
	}
	return nil
}

func isOpen(tok Token) bool {
	return tok.Kind == KindGrouping && tok.Side == SideOpen
}

// endsOperand reports whether tok cannot start an operand.
func endsOperand(tok Token) bool {
	return tok.Kind == KindGrouping && (tok.Side == SideClose || tok.Side == SideSeparator)
}

func callNeedsGroup(pos int, tok Token) *Error {
	err := errAt(CodeArityMismatch, pos, tok, "function "+strconv.Quote(tok.Symbol)+" must be followed by an open bracket")
	err.Func = tok.Symbol
	return err
}

func emptyArgument(pos int, tok Token) *Error {
	return errAt(CodeArityMismatch, pos, tok, "empty function argument")
}
