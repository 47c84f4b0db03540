package formula

import (
	"strconv"
)

// Code classifies formula failures.
type Code string

const (
	CodeUnbalancedGrouping Code = "UnbalancedGrouping"
	CodeArityMismatch      Code = "ArityMismatch"
	CodeUnknownSymbol      Code = "UnknownSymbol"
	CodeEmptyFormula       Code = "EmptyFormula"
	CodeMalformedStructure Code = "MalformedStructure"
	CodeUnboundVariable    Code = "UnboundVariable"
	CodeDivisionByZero     Code = "DivisionByZero"
	CodeDomainError        Code = "DomainError"
	CodeNumericOverflow    Code = "NumericOverflow"
)

// Structural reports whether the code is detected before evaluation, i.e. it
// depends only on the token list and never on bindings.
func (c Code) Structural() bool {
	switch c {
	case CodeUnbalancedGrouping, CodeArityMismatch, CodeUnknownSymbol,
		CodeEmptyFormula, CodeMalformedStructure:
		return true
	}
	return false
}

// Error is a formula failure. Every error returned by this package for bad
// input or bad bindings is an *Error.
type Error struct {
	Code Code `json:"code"`
	// Pos is the 0-based index of the offending token, or -1.
	Pos int `json:"position"`
	// Symbol is the offending token's symbol, if any.
	Symbol string `json:"symbol,omitempty"`
	// Func is the function name for DomainError and call arity errors.
	Func string `json:"function,omitempty"`
	// Value is the out-of-domain argument for DomainError.
	Value *float64 `json:"value,omitempty"`
	// Detail is a short human-readable explanation.
	Detail string `json:"message"`
}

func (err *Error) Error() string {
	var b []byte
	if err.Pos >= 0 {
		b = strconv.AppendInt(b, int64(err.Pos), 10)
		b = append(b, ": "...)
	}
	b = append(b, err.Code...)
	if err.Detail != "" {
		b = append(b, ": "...)
		b = append(b, err.Detail...)
	}
	return string(b)
}

// Is matches errors by code, so errors.Is(err, ErrDivisionByZero) works for
// any division by zero regardless of position.
func (err *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == err.Code
}

// Sentinels for errors.Is.
var (
	ErrUnbalancedGrouping = &Error{Code: CodeUnbalancedGrouping, Pos: -1}
	ErrArityMismatch      = &Error{Code: CodeArityMismatch, Pos: -1}
	ErrUnknownSymbol      = &Error{Code: CodeUnknownSymbol, Pos: -1}
	ErrEmptyFormula       = &Error{Code: CodeEmptyFormula, Pos: -1}
	ErrMalformedStructure = &Error{Code: CodeMalformedStructure, Pos: -1}
	ErrUnboundVariable    = &Error{Code: CodeUnboundVariable, Pos: -1}
	ErrDivisionByZero     = &Error{Code: CodeDivisionByZero, Pos: -1}
	ErrDomainError        = &Error{Code: CodeDomainError, Pos: -1}
	ErrNumericOverflow    = &Error{Code: CodeNumericOverflow, Pos: -1}
)

func errAt(code Code, pos int, tok Token, detail string) *Error {
	return &Error{Code: code, Pos: pos, Symbol: tok.Symbol, Detail: detail}
}

func unbalanced(pos int, tok Token, detail string) *Error {
	return errAt(CodeUnbalancedGrouping, pos, tok, detail)
}

func malformed(pos int, tok Token, detail string) *Error {
	return errAt(CodeMalformedStructure, pos, tok, detail)
}

func unknown(pos int, tok Token) *Error {
	return errAt(CodeUnknownSymbol, pos, tok, "unknown "+tok.Kind.String()+" "+strconv.Quote(tok.Symbol))
}

func missingOperand(pos int, tok Token) *Error {
	return errAt(CodeArityMismatch, pos, tok, "operator "+strconv.Quote(tok.Symbol)+" is missing an operand")
}

func callArity(pos int, tok Token, fn *Function, got int) *Error {
	err := errAt(CodeArityMismatch, pos, tok,
		"cannot call "+tok.Symbol+" with "+strconv.Itoa(got)+" arguments, want "+fn.Arity.String())
	err.Func = fn.Name
	return err
}

// outOfDomain is returned by function implementations; the evaluator fills in
// the function name and position.
func outOfDomain(x float64) error {
	return &Error{Code: CodeDomainError, Pos: -1, Value: &x}
}

func emptyFormula() *Error {
	return &Error{Code: CodeEmptyFormula, Pos: -1, Detail: "no tokens"}
}
