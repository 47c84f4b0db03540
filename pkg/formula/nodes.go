package formula

import (
	"fmt"
	"strings"
)

// NodeKind tags a node of a parsed tree.
type NodeKind uint8

const (
	NodeInvalid NodeKind = iota
	NodeNumber
	NodeConstant
	NodeVariable
	NodeUnary
	NodeBinary
	NodeCall
)

var nodeKindNames = [...]string{
	NodeInvalid:  "invalid",
	NodeNumber:   "number",
	NodeConstant: "constant",
	NodeVariable: "variable",
	NodeUnary:    "unary",
	NodeBinary:   "binary",
	NodeCall:     "call",
}

func (k NodeKind) String() string {
	if int(k) < len(nodeKindNames) {
		return nodeKindNames[k]
	}
	return fmt.Sprintf("NodeKind(%d)", uint8(k))
}

// MarshalText encodes the node kind by name.
func (k NodeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Leaf reports whether nodes of this kind have no children.
func (k NodeKind) Leaf() bool {
	return k == NodeNumber || k == NodeConstant || k == NodeVariable
}

// Node is a node of a parsed expression tree.
type Node struct {
	Kind NodeKind `json:"kind"`
	// Symbol is the canonical symbol: the literal text for numbers, the
	// catalog name for constants and functions, the operator symbol.
	Symbol  string `json:"symbol"`
	Display string `json:"display"`
	// Value is set for numbers and constants.
	Value float64 `json:"value,omitempty"`
	// Pos is the index of the token the node came from.
	Pos      int     `json:"position"`
	Children []*Node `json:"children,omitempty"`

	op *Operator
	fn *Function
	k  *Constant
}

// Tree is a parsed formula.
type Tree struct {
	Root *Node `json:"root"`
	// Variables lists the distinct variable names, sorted.
	Variables []string `json:"variables"`

	cat *Catalog
}

func (t *Tree) catalog() *Catalog {
	if t.cat == nil {
		return defaultCatalog
	}
	return t.cat
}

// String renders the tree in fully parenthesised prefix form, which makes the
// structure visible in test failures and logs.
func (t *Tree) String() string {
	var b strings.Builder
	t.Root.sexpr(&b)
	return b.String()
}

func (n *Node) sexpr(b *strings.Builder) {
	if n.Kind.Leaf() {
		b.WriteString(n.Symbol)
		return
	}
	b.WriteByte('(')
	b.WriteString(n.Symbol)
	for _, c := range n.Children {
		b.WriteByte(' ')
		c.sexpr(b)
	}
	b.WriteByte(')')
}
