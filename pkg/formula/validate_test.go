package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var structuralCases = []struct {
	name   string
	tokens []Token
	code   Code
	pos    int
}{
	{"unclosed open", toks(Open(), Num("2"), Op("+"), Num("3")), CodeUnbalancedGrouping, 0},
	{"close without open", toks(Num("2"), Op("+"), Num("3"), Close()), CodeUnbalancedGrouping, 3},
	{"mismatched pair", toks(Open(), Num("2"), Close("]")), CodeUnbalancedGrouping, 2},
	{"outermost unclosed", toks(Open(), Open(), Num("2"), Close()), CodeUnbalancedGrouping, 0},
	{"unclosed call", toks(Fn("pow"), Open(), Num("2"), Comma(), Num("3")), CodeUnbalancedGrouping, 1},
	{"trailing operator", toks(Num("2"), Op("+")), CodeArityMismatch, 1},
	{"binary operator first", toks(Op("*"), Num("2")), CodeArityMismatch, 0},
	{"operator before close", toks(Open(), Num("2"), Op("+"), Close()), CodeArityMismatch, 2},
	{"function without group", toks(Fn("sqrt"), Var("x")), CodeArityMismatch, 0},
	{"function at end", toks(Num("1"), Op("+"), Fn("sqrt")), CodeArityMismatch, 2},
	{"too few arguments", toks(Fn("pow"), Open(), Num("2"), Close()), CodeArityMismatch, 0},
	{"too many arguments", toks(Fn("sqrt"), Open(), Num("2"), Comma(), Num("3"), Close()), CodeArityMismatch, 0},
	{"no arguments", toks(Fn("max"), Open(), Close()), CodeArityMismatch, 0},
	{"empty last argument", toks(Fn("pow"), Open(), Num("2"), Comma(), Close()), CodeArityMismatch, 4},
	{"empty first argument", toks(Fn("pow"), Open(), Comma(), Num("2"), Close()), CodeArityMismatch, 2},
	{"unknown function", toks(Fn("foo"), Open(), Num("2"), Close()), CodeUnknownSymbol, 0},
	{"unknown constant", toks(Num("2"), Op("+"), Const("tau2")), CodeUnknownSymbol, 2},
	{"non-finite literal", toks(Const("Inf")), CodeUnknownSymbol, 0},
	{"unknown operator", toks(Num("2"), Op("%"), Num("3")), CodeUnknownSymbol, 1},
	{"unknown bracket", toks(Open("<"), Num("2"), Close(">")), CodeUnknownSymbol, 0},
	{"empty variable name", toks(Var("")), CodeUnknownSymbol, 0},
	{"adjacent operands", toks(Num("2"), Num("3")), CodeMalformedStructure, 1},
	{"operand before group", toks(Num("2"), Open(), Num("3"), Close()), CodeMalformedStructure, 1},
	{"operand before call", toks(Var("x"), Fn("sin"), Open(), Var("x"), Close()), CodeMalformedStructure, 1},
	{"separator outside call", toks(Open(), Num("2"), Comma(), Num("3"), Close()), CodeMalformedStructure, 2},
	{"top-level separator", toks(Num("2"), Comma(), Num("3")), CodeMalformedStructure, 1},
	{"empty group", toks(Open(), Close()), CodeMalformedStructure, 1},
	{"empty group in call", toks(Fn("sqrt"), Open(), Open(), Close(), Close()), CodeMalformedStructure, 3},
	{"invalid kind", toks(Token{Symbol: "2"}), CodeMalformedStructure, 0},
}

func TestValidate_StructuralErrors(t *testing.T) {
	for _, tc := range structuralCases {
		t.Run(tc.name, func(t *testing.T) {
			res := Validate(tc.tokens)

			assert.False(t, res.Valid)
			require.NotNil(t, res.Error)
			assert.Equal(t, tc.code, res.Error.Code, "error: %v", res.Error)
			assert.Equal(t, tc.pos, res.Error.Pos, "error: %v", res.Error)
		})
	}
}

// The parser must reach the same verdict without the validator's help.
func TestParse_AgreesWithValidator(t *testing.T) {
	for _, tc := range structuralCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(tc.tokens, DefaultCatalog())

			fe := requireCode(t, err, tc.code)
			assert.Equal(t, tc.pos, fe.Pos, "error: %v", err)
		})
	}
}

func TestValidate_Empty(t *testing.T) {
	res := Validate(nil)

	assert.False(t, res.Valid)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeEmptyFormula, res.Error.Code)
	assert.Equal(t, -1, res.Error.Pos)

	_, err := parse(nil, DefaultCatalog())
	requireCode(t, err, CodeEmptyFormula)
}

func TestValidate_WellFormed(t *testing.T) {
	cases := map[string][]Token{
		"unbound variables":  toks(Var("x"), Op("+"), Num("1")),
		"double negation":    toks(Op("-"), Op("-"), Var("x")),
		"negated group":      toks(Op("−"), Open(), Var("a"), Op("+"), Var("b"), Close()),
		"variadic call":      toks(Fn("max"), Open(), Num("1"), Comma(), Num("2"), Comma(), Num("3"), Close()),
		"nested calls":       toks(Fn("pow"), Open(), Fn("sqrt"), Open(), Var("x"), Close(), Comma(), Open(), Num("1"), Op("+"), Num("1"), Close(), Close()),
		"square brackets":    toks(Open("["), Num("2"), Op("+"), Num("3"), Close("]"), Op("×"), Open("{"), Num("4"), Close("}")),
		"named constants":    toks(Num("2"), Op("×"), Const("π"), Op("×"), Const("e")),
		"exponent literal":   toks(Num("6.02e23"), Op("÷"), Num("-1.5")),
		"unary after power":  toks(Num("2"), Op("^"), Op("-"), Num("1")),
		"call in unary":      toks(Op("-"), Fn("abs"), Open(), Var("x"), Close()),
		"display aliases":    toks(Var("a"), Op("×"), Var("b"), Op("÷"), Var("c"), Op("−"), Var("d")),
		"single variable":    toks(Var("radius")),
		"grouped everything": toks(Open(), Open(), Var("x"), Close(), Close()),
	}
	for name, tokens := range cases {
		t.Run(name, func(t *testing.T) {
			res := Validate(tokens)
			assert.True(t, res.Valid, "error: %v", res.Error)
			assert.Nil(t, res.Error)

			_, err := parse(tokens, DefaultCatalog())
			assert.NoError(t, err)
		})
	}
}
