package formula

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Rendering is the text produced for a parsed formula.
type Rendering struct {
	// Display is for people: it keeps the authored display texts.
	Display string `json:"display"`
	// Expression is ASCII-only and executable by expression engines that
	// understand + - * / ^ and call syntax, given the catalog functions and
	// constants.
	Expression string `json:"expression"`
	LaTeX      string `json:"latex"`
	// Identifiers maps each variable to its name in Expression. Names that
	// are already plain identifiers free of catalog names and expression
	// keywords map to themselves; the rest get generated names v0, v1, ...
	Identifiers map[string]string `json:"identifiers"`
}

// RenderTree renders a parsed tree. A child is parenthesised only when the
// tree requires it, so redundant authored brackets are dropped.
func RenderTree(t *Tree) Rendering {
	ids := identifiers(t)
	return Rendering{
		Display:     plain(t.Root, displayStyle),
		Expression:  plain(t.Root, exprStyle(ids)),
		LaTeX:       latex(t.Root),
		Identifiers: ids,
	}
}

// exprKeywords are words the expression language reads as operators or
// literals rather than identifiers.
var exprKeywords = map[string]bool{
	"and": true, "or": true, "not": true, "in": true, "let": true,
	"matches": true, "contains": true, "startsWith": true, "endsWith": true,
	"true": true, "false": true, "nil": true,
}

func identifiers(t *Tree) map[string]string {
	cat := t.catalog()
	taken := make(map[string]bool, len(cat.constants)+len(cat.functions))
	for _, k := range cat.constants {
		taken[k.Expr] = true
	}
	for name := range cat.functions {
		taken[name] = true
	}

	ids := make(map[string]string, len(t.Variables))
	var renamed []string
	for _, name := range t.Variables {
		if !plainIdent(name) || exprKeywords[name] || taken[name] {
			renamed = append(renamed, name)
			continue
		}
		ids[name] = name
		taken[name] = true
	}
	next := 0
	for _, name := range renamed {
		id := "v" + strconv.Itoa(next)
		for taken[id] {
			next++
			id = "v" + strconv.Itoa(next)
		}
		next++
		ids[name] = id
		taken[id] = true
	}
	return ids
}

func plainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_' || 'a' <= r && r <= 'z' || 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}

// Concat joins the tokens' display texts as authored, without parsing.
func Concat(tokens []Token) string {
	var b strings.Builder
	for i, tok := range tokens {
		if i > 0 && spaced(tokens[i-1], tok) {
			b.WriteByte(' ')
		}
		b.WriteString(tok.Text())
	}
	return b.String()
}

func spaced(prev, tok Token) bool {
	switch {
	case prev.Kind == KindFunction:
		return false
	case prev.Kind == KindGrouping && prev.Side == SideOpen:
		return false
	case tok.Kind == KindGrouping && tok.Side != SideOpen:
		return false
	}
	return true
}

type style struct {
	leaf   func(n *Node) string
	binary func(n *Node) string
	unary  func(n *Node) string
	call   func(n *Node) string
}

var displayStyle = style{
	leaf:   func(n *Node) string { return n.Display },
	binary: func(n *Node) string { return n.Display },
	unary:  func(n *Node) string { return n.Display },
	call:   func(n *Node) string { return n.Display },
}

func exprStyle(ids map[string]string) style {
	return style{
		leaf: func(n *Node) string {
			switch n.Kind {
			case NodeConstant:
				return n.k.Expr
			case NodeNumber:
				return strconv.FormatFloat(n.Value, 'g', -1, 64)
			}
			return ids[n.Symbol]
		},
		binary: func(n *Node) string { return n.op.Symbol },
		unary:  func(n *Node) string { return n.op.Symbol },
		call:   func(n *Node) string { return n.fn.Name },
	}
}

func plain(n *Node, st style) string {
	var b strings.Builder
	writePlain(&b, n, st)
	return b.String()
}

func writePlain(b *strings.Builder, n *Node, st style) {
	switch n.Kind {
	case NodeBinary:
		for i, c := range n.Children {
			if i > 0 {
				b.WriteByte(' ')
				b.WriteString(st.binary(n))
				b.WriteByte(' ')
			}
			grouped(b, c, parenthesise(n, c, i == 1), st)
		}
	case NodeUnary:
		b.WriteString(st.unary(n))
		c := n.Children[0]
		grouped(b, c, !c.Kind.Leaf() && c.Kind != NodeCall || negative(c), st)
	case NodeCall:
		b.WriteString(st.call(n))
		b.WriteByte('(')
		for i, c := range n.Children {
			if i > 0 {
				b.WriteString(", ")
			}
			writePlain(b, c, st)
		}
		b.WriteByte(')')
	default:
		b.WriteString(st.leaf(n))
	}
}

func grouped(b *strings.Builder, n *Node, paren bool, st style) {
	if paren {
		b.WriteByte('(')
	}
	writePlain(b, n, st)
	if paren {
		b.WriteByte(')')
	}
}

// parenthesise reports whether child c of binary node parent needs brackets.
// right tells which side of parent c is on.
func parenthesise(parent, c *Node, right bool) bool {
	switch {
	case c.Kind == NodeBinary:
		if c.op.Prec != parent.op.Prec {
			return c.op.Prec < parent.op.Prec
		}
		// Equal precedence only needs brackets on the side the parent does
		// not associate towards: a - (b - c), (a ^ b) ^ c.
		return right != parent.op.Right
	case c.Kind == NodeUnary || negative(c):
		// -a + b is unambiguous, but a - -b and -a ^ b are not.
		return right || parent.op.Right
	}
	return false
}

func negative(n *Node) bool {
	return n.Kind == NodeNumber && strings.HasPrefix(n.Symbol, "-")
}

func latex(n *Node) string {
	var b strings.Builder
	writeLaTeX(&b, n)
	return b.String()
}

func writeLaTeX(b *strings.Builder, n *Node) {
	switch n.Kind {
	case NodeNumber:
		b.WriteString(n.Symbol)
	case NodeConstant:
		b.WriteString(n.k.LaTeX)
	case NodeVariable:
		if utf8.RuneCountInString(n.Symbol) == 1 {
			b.WriteString(n.Symbol)
		} else {
			b.WriteString(`\mathit{` + n.Symbol + `}`)
		}
	case NodeUnary:
		b.WriteString(n.op.LaTeX)
		c := n.Children[0]
		latexGrouped(b, c, !c.Kind.Leaf() && c.Kind != NodeCall || negative(c))
	case NodeBinary:
		l, r := n.Children[0], n.Children[1]
		switch n.op.Symbol {
		case "/":
			b.WriteString(`\frac{`)
			writeLaTeX(b, l)
			b.WriteString(`}{`)
			writeLaTeX(b, r)
			b.WriteByte('}')
		case "^":
			b.WriteByte('{')
			latexGrouped(b, l, parenthesise(n, l, false))
			b.WriteString(`}^{`)
			writeLaTeX(b, r)
			b.WriteByte('}')
		default:
			latexGrouped(b, l, parenthesise(n, l, false))
			b.WriteString(" " + n.op.LaTeX + " ")
			latexGrouped(b, r, parenthesise(n, r, true))
		}
	case NodeCall:
		latexCall(b, n)
	}
}

func latexCall(b *strings.Builder, n *Node) {
	args := n.Children
	switch n.fn.Name {
	case "sqrt":
		b.WriteString(`\sqrt{`)
		writeLaTeX(b, args[0])
		b.WriteByte('}')
		return
	case "root":
		b.WriteString(`\sqrt[`)
		writeLaTeX(b, args[1])
		b.WriteString(`]{`)
		writeLaTeX(b, args[0])
		b.WriteByte('}')
		return
	case "abs":
		b.WriteString(`\left|`)
		writeLaTeX(b, args[0])
		b.WriteString(`\right|`)
		return
	case "fact":
		latexGrouped(b, args[0], !args[0].Kind.Leaf())
		b.WriteByte('!')
		return
	}
	if n.fn.LaTeX != "" {
		b.WriteString(n.fn.LaTeX)
	} else {
		b.WriteString(`\operatorname{` + n.fn.Name + `}`)
	}
	b.WriteString(`\left(`)
	for i, c := range args {
		if i > 0 {
			b.WriteString(", ")
		}
		writeLaTeX(b, c)
	}
	b.WriteString(`\right)`)
}

func latexGrouped(b *strings.Builder, n *Node, paren bool) {
	if paren {
		b.WriteString(`\left(`)
	}
	writeLaTeX(b, n)
	if paren {
		b.WriteString(`\right)`)
	}
}
