package formula

import (
	"fmt"
	"strings"
)

// Kind is the kind of a formula token.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindConstant
	KindVariable
	KindOperator
	KindFunction
	KindGrouping
)

var kindNames = [...]string{
	KindInvalid:  "invalid",
	KindConstant: "constant",
	KindVariable: "variable",
	KindOperator: "operator",
	KindFunction: "function",
	KindGrouping: "grouping",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	if k == KindInvalid || int(k) >= len(kindNames) {
		return nil, fmt.Errorf("formula: cannot marshal token kind %d", uint8(k))
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText decodes a kind name. Unknown names are an error.
func (k *Kind) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i := KindConstant; int(i) < len(kindNames); i++ {
		if kindNames[i] == name {
			*k = i
			return nil
		}
	}
	return fmt.Errorf("formula: unknown token kind %q", text)
}

// Side discriminates grouping tokens.
type Side uint8

const (
	SideNone Side = iota
	SideOpen
	SideClose
	SideSeparator
)

var sideNames = [...]string{
	SideNone:      "",
	SideOpen:      "open",
	SideClose:     "close",
	SideSeparator: "separator",
}

func (s Side) String() string {
	if int(s) < len(sideNames) {
		return sideNames[s]
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) {
	if int(s) >= len(sideNames) {
		return nil, fmt.Errorf("formula: cannot marshal grouping side %d", uint8(s))
	}
	return []byte(sideNames[s]), nil
}

// UnmarshalText decodes a side name.
func (s *Side) UnmarshalText(text []byte) error {
	name := strings.ToLower(string(text))
	for i := range sideNames {
		if sideNames[i] == name {
			*s = Side(i)
			return nil
		}
	}
	return fmt.Errorf("formula: unknown grouping side %q", text)
}

// Token is the atomic element of an authored formula. Tokens are plain values
// and compare with ==.
type Token struct {
	Kind    Kind   `json:"kind" yaml:"kind"`
	Symbol  string `json:"symbol" yaml:"symbol"`
	Display string `json:"display,omitempty" yaml:"display,omitempty"`
	// Side is only meaningful for grouping tokens.
	Side Side `json:"side,omitempty" yaml:"side,omitempty"`
}

// Text returns the display text of the token, falling back to its symbol.
func (t Token) Text() string {
	if t.Display != "" {
		return t.Display
	}
	return t.Symbol
}

func (t Token) String() string {
	if t.Kind == KindGrouping {
		return t.Kind.String() + ":" + t.Side.String() + ":" + t.Symbol
	}
	return t.Kind.String() + ":" + t.Symbol
}

// Num returns a numeric literal constant token.
func Num(literal string) Token { return Token{Kind: KindConstant, Symbol: literal} }

// Const returns a named constant token.
func Const(name string) Token { return Token{Kind: KindConstant, Symbol: name} }

// Var returns a variable token.
func Var(name string) Token { return Token{Kind: KindVariable, Symbol: name} }

// Op returns an operator token. Display forms such as "×" are mapped to
// their canonical symbol and kept as display text.
func Op(symbol string) Token {
	if canon, ok := operatorAliases[symbol]; ok {
		return Token{Kind: KindOperator, Symbol: canon, Display: symbol}
	}
	return Token{Kind: KindOperator, Symbol: symbol}
}

// Fn returns a function token.
func Fn(name string) Token { return Token{Kind: KindFunction, Symbol: name} }

// Open returns an opening grouping token; bracket defaults to "(".
func Open(bracket ...string) Token {
	sym := "("
	if len(bracket) > 0 {
		sym = bracket[0]
	}
	return Token{Kind: KindGrouping, Symbol: sym, Side: SideOpen}
}

// Close returns a closing grouping token; bracket defaults to ")".
func Close(bracket ...string) Token {
	sym := ")"
	if len(bracket) > 0 {
		sym = bracket[0]
	}
	return Token{Kind: KindGrouping, Symbol: sym, Side: SideClose}
}

// Comma returns the argument separator token.
func Comma() Token { return Token{Kind: KindGrouping, Symbol: ",", Side: SideSeparator} }

var operatorAliases = map[string]string{
	"×": "*",
	"÷": "/",
	"−": "-",
}

var bracketPairs = map[string]string{
	"(": ")",
	"[": "]",
	"{": "}",
}

// closes reports whether close is the matching bracket for open.
func closes(open, close string) bool {
	return bracketPairs[open] == close
}

func isOpenBracket(sym string) bool {
	_, ok := bracketPairs[sym]
	return ok
}

func isCloseBracket(sym string) bool {
	for _, c := range bracketPairs {
		if c == sym {
			return true
		}
	}
	return false
}
