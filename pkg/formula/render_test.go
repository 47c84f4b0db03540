package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Brackets(t *testing.T) {
	cases := []struct {
		name    string
		tokens  []Token
		display string
		expr    string
	}{
		{"no brackets needed", toks(Num("2"), Op("+"), Num("3"), Op("×"), Num("4")), "2 + 3 × 4", "2 + 3 * 4"},
		{"redundant brackets dropped", toks(Open(), Num("2"), Op("×"), Num("3"), Close(), Op("+"), Num("1")), "2 × 3 + 1", "2 * 3 + 1"},
		{"lower precedence child", toks(Open(), Num("2"), Op("+"), Num("3"), Close(), Op("×"), Num("4")), "(2 + 3) × 4", "(2 + 3) * 4"},
		{"right operand of minus", toks(Var("a"), Op("-"), Open(), Var("b"), Op("-"), Var("c"), Close()), "a - (b - c)", "a - (b - c)"},
		{"left operand of minus", toks(Open(), Var("a"), Op("-"), Var("b"), Close(), Op("-"), Var("c")), "a - b - c", "a - b - c"},
		{"right operand of divide", toks(Var("a"), Op("÷"), Open(), Var("b"), Op("×"), Var("c"), Close()), "a ÷ (b × c)", "a / (b * c)"},
		{"right associative power", toks(Num("2"), Op("^"), Num("3"), Op("^"), Num("2")), "2 ^ 3 ^ 2", "2 ^ 3 ^ 2"},
		{"left nested power", toks(Open(), Num("2"), Op("^"), Num("3"), Close(), Op("^"), Num("2")), "(2 ^ 3) ^ 2", "(2 ^ 3) ^ 2"},
		{"negated base", toks(Op("-"), Num("2"), Op("^"), Num("2")), "(-2) ^ 2", "(-2) ^ 2"},
		{"negated right operand", toks(Num("2"), Op("×"), Op("-"), Num("3")), "2 × (-3)", "2 * (-3)"},
		{"negated left operand", toks(Op("-"), Var("a"), Op("+"), Var("b")), "-a + b", "-a + b"},
		{"negated group", toks(Op("-"), Open(), Var("a"), Op("+"), Var("b"), Close()), "-(a + b)", "-(a + b)"},
		{"negated call", toks(Op("-"), Fn("abs"), Open(), Var("x"), Close()), "-abs(x)", "-abs(x)"},
		{"negative literal operand", toks(Num("2"), Op("-"), Num("-1")), "2 - (-1)", "2 - (-1)"},
		{"call arguments", toks(Fn("pow"), Open(), Var("x"), Op("+"), Num("1"), Comma(), Num("2"), Close()), "pow(x + 1, 2)", "pow(x + 1, 2)"},
		{"constants", toks(Num("2"), Op("×"), Const("π")), "2 × π", "2 * pi"},
		{"literal formatting", toks(Num("2.50"), Op("×"), Var("x")), "2.50 × x", "2.5 * x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Render(tc.tokens)

			require.NoError(t, err)
			assert.Equal(t, tc.display, r.Display)
			assert.Equal(t, tc.expr, r.Expression)
		})
	}
}

func TestRender_DisplayTextIsKept(t *testing.T) {
	tokens := toks(Token{Kind: KindVariable, Symbol: "r", Display: "radius"}, Op("÷"), Num("2"))

	r, err := Render(tokens)

	require.NoError(t, err)
	assert.Equal(t, "radius ÷ 2", r.Display)
	assert.Equal(t, "r / 2", r.Expression)
}

func TestRender_Identifiers(t *testing.T) {
	tokens := toks(Var("side a"), Op("+"), Var("v0"), Op("+"), Var("sqrt"), Op("+"), Var("in"), Op("+"), Var("x"))

	r, err := Render(tokens)

	require.NoError(t, err)
	assert.Equal(t, "side a + v0 + sqrt + in + x", r.Display)
	assert.Equal(t, "v2 + v0 + v3 + v1 + x", r.Expression)
	assert.Equal(t, map[string]string{"in": "v1", "side a": "v2", "sqrt": "v3", "v0": "v0", "x": "x"}, r.Identifiers)
}

func TestRender_IdentifiersAvoidCatalogConstants(t *testing.T) {
	e := NewEngine(WithCatalog(DefaultCatalog().WithConstants(map[string]float64{"g": 9.81})))

	r, err := e.Render(toks(Var("g"), Op("×"), Const("g"), Op("+"), Var("pi")))

	require.NoError(t, err)
	assert.Equal(t, "v0 * g + v1", r.Expression)
	assert.Equal(t, map[string]string{"g": "v0", "pi": "v1"}, r.Identifiers)
}

func TestRender_LaTeX(t *testing.T) {
	cases := []struct {
		name   string
		tokens []Token
		want   string
	}{
		{"fraction", toks(Var("a"), Op("÷"), Var("b")), `\frac{a}{b}`},
		{"fraction drops brackets", toks(Open(), Var("a"), Op("+"), Num("1"), Close(), Op("÷"), Num("2")), `\frac{a + 1}{2}`},
		{"product", toks(Num("2"), Op("×"), Const("π")), `2 \times \pi`},
		{"power", toks(Var("x"), Op("^"), Num("2")), `{x}^{2}`},
		{"power of sum", toks(Open(), Var("x"), Op("+"), Num("1"), Close(), Op("^"), Num("2")), `{\left(x + 1\right)}^{2}`},
		{"negated base", toks(Op("-"), Num("2"), Op("^"), Num("2")), `{\left(-2\right)}^{2}`},
		{"sqrt", call("sqrt", Var("x")), `\sqrt{x}`},
		{"root", call("root", Var("x"), Num("3")), `\sqrt[3]{x}`},
		{"abs", call("abs", Var("x")), `\left|x\right|`},
		{"factorial", call("fact", Var("n")), `n!`},
		{"factorial of sum", toks(Fn("fact"), Open(), Var("n"), Op("+"), Num("1"), Close()), `\left(n + 1\right)!`},
		{"sin", call("sin", Var("x")), `\sin\left(x\right)`},
		{"operator name", call("pow", Num("2"), Num("3")), `\operatorname{pow}\left(2, 3\right)`},
		{"long variable", toks(Var("radius")), `\mathit{radius}`},
		{"negated group", toks(Op("-"), Open(), Var("a"), Op("-"), Var("b"), Close()), `-\left(a - b\right)`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Render(tc.tokens)

			require.NoError(t, err)
			assert.Equal(t, tc.want, r.LaTeX)
		})
	}
}

// Rendering must preserve meaning: the exported expression evaluates to the
// same value as the tree it came from.
func TestRender_ExpressionPreservesValue(t *testing.T) {
	vars := Bindings{"a": 7, "b": 3, "c": 2}
	cases := [][]Token{
		toks(Var("a"), Op("-"), Open(), Var("b"), Op("-"), Var("c"), Close()),
		toks(Var("a"), Op("÷"), Open(), Var("b"), Op("×"), Var("c"), Close()),
		toks(Open(), Var("a"), Op("^"), Var("c"), Close(), Op("^"), Var("c")),
		toks(Op("-"), Var("c"), Op("^"), Var("c")),
		toks(Var("a"), Op("-"), Op("-"), Var("b")),
	}
	for _, tokens := range cases {
		res, err := CrossCheck(tokens, vars)

		require.NoError(t, err, Concat(tokens))
		assert.True(t, res.Agree, "%s: engine %v, exported %v", res.Expression, res.Result, res.Exported)
	}
}

func TestConcat(t *testing.T) {
	assert.Equal(t, "(2 + 3) × 4", Concat(toks(Open(), Num("2"), Op("+"), Num("3"), Close(), Op("×"), Num("4"))))
	assert.Equal(t, "pow(2, 3)", Concat(call("pow", Num("2"), Num("3"))))
	assert.Equal(t, "- x", Concat(toks(Op("-"), Var("x"))))
	assert.Equal(t, "2 3", Concat(toks(Num("2"), Num("3"))))
	assert.Equal(t, "", Concat(nil))
}
