package formula

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toks(t ...Token) []Token { return t }

func requireCode(t *testing.T, err error, code Code) *Error {
	t.Helper()
	require.Error(t, err)
	var fe *Error
	require.True(t, errors.As(err, &fe), "expected *Error, got %T: %v", err, err)
	require.Equal(t, code, fe.Code, "error: %v", err)
	return fe
}

func TestExecute_OperatorPrecedence(t *testing.T) {
	res, err := Execute(toks(Num("2"), Op("+"), Num("3"), Op("×"), Num("4")), nil)

	require.NoError(t, err)
	assert.Equal(t, 14.0, res.Result)
}

func TestExecute_PowerIsRightAssociative(t *testing.T) {
	res, err := Execute(toks(Num("2"), Op("^"), Num("3"), Op("^"), Num("2")), nil)

	require.NoError(t, err)
	assert.Equal(t, 512.0, res.Result)
}

func TestExecute_DivisionByZero(t *testing.T) {
	_, err := Execute(toks(Num("10"), Op("÷"), Var("x")), Bindings{"x": 0})

	fe := requireCode(t, err, CodeDivisionByZero)
	assert.Equal(t, 1, fe.Pos)
	assert.True(t, errors.Is(err, ErrDivisionByZero))
}

func TestExecute_UnboundVariable(t *testing.T) {
	_, err := Execute(toks(Var("x"), Op("+"), Num("1")), Bindings{})

	fe := requireCode(t, err, CodeUnboundVariable)
	assert.Equal(t, "x", fe.Symbol)
	assert.Equal(t, 0, fe.Pos)
}

func TestExecute_DomainError(t *testing.T) {
	_, err := Execute(toks(Fn("sqrt"), Open(), Var("x"), Close()), Bindings{"x": -4})

	fe := requireCode(t, err, CodeDomainError)
	assert.Equal(t, "sqrt", fe.Func)
	require.NotNil(t, fe.Value)
	assert.Equal(t, -4.0, *fe.Value)
}

func TestExecute_FunctionArity(t *testing.T) {
	res, err := Execute(toks(Fn("pow"), Open(), Num("2"), Comma(), Num("3"), Close()), nil)
	require.NoError(t, err)
	assert.Equal(t, 8.0, res.Result)

	oneArg := toks(Fn("pow"), Open(), Num("2"), Close())
	v := Validate(oneArg)
	assert.False(t, v.Valid)
	require.NotNil(t, v.Error)
	assert.Equal(t, CodeArityMismatch, v.Error.Code)

	_, err = Parse(oneArg)
	fe := requireCode(t, err, CodeArityMismatch)
	assert.Equal(t, "pow", fe.Func)
}

func TestExecute_ValidFormulaFailsPerBinding(t *testing.T) {
	tokens := toks(Num("1"), Op("/"), Open(), Var("a"), Op("-"), Var("b"), Close())

	require.True(t, Validate(tokens).Valid)

	res, err := Execute(tokens, Bindings{"a": 3, "b": 1})
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Result)

	_, err = Execute(tokens, Bindings{"a": 2, "b": 2})
	requireCode(t, err, CodeDivisionByZero)
}

func TestExecute_Deterministic(t *testing.T) {
	tokens := toks(Fn("sin"), Open(), Var("x"), Close(), Op("*"), Const("π"), Op("+"), Var("y"))
	vars := Bindings{"x": 0.7, "y": -3}

	first, err := Execute(tokens, vars)
	require.NoError(t, err)
	second, err := Execute(tokens, vars)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExecute_AngleModeIsPerCall(t *testing.T) {
	tokens := toks(Fn("sin"), Open(), Num("30"), Close())

	deg, err := Execute(tokens, nil, WithAngleMode(Degrees))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, deg.Result, 1e-12)

	rad, err := Execute(tokens, nil)
	require.NoError(t, err)
	assert.InDelta(t, -0.9880316240928618, rad.Result, 1e-12)
}

func TestEngine_Defaults(t *testing.T) {
	e := NewEngine(WithDefaults(EvalConfig{Angle: Degrees}))
	tokens := toks(Fn("cos"), Open(), Num("180"), Close())

	res, err := e.Execute(tokens, nil)
	require.NoError(t, err)
	assert.Equal(t, -1.0, res.Result)

	res, err = e.Execute(tokens, nil, WithAngleMode(Radians))
	require.NoError(t, err)
	assert.InDelta(t, -0.5984600690578581, res.Result, 1e-12)
}

func TestEngine_ConcurrentExecute(t *testing.T) {
	e := NewEngine(WithCache(NewCache(16)))
	tokens := toks(Var("r"), Op("^"), Num("2"), Op("×"), Const("pi"))

	var wg sync.WaitGroup
	results := make([]float64, 64)
	errs := make([]error, 64)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Execute(tokens, Bindings{"r": float64(i)})
			results[i], errs[i] = res.Result, err
		}(i)
	}
	wg.Wait()

	for i, r := range results {
		require.NoError(t, errs[i])
		assert.InDelta(t, float64(i*i)*3.141592653589793, r, 1e-9)
	}
	assert.Equal(t, 1, e.cache.Len())
}

func TestRender_RoundTrip(t *testing.T) {
	r, err := Render(toks(Num("2"), Op("+"), Num("3"), Op("×"), Num("4")))
	require.NoError(t, err)
	assert.Equal(t, "2 + 3 × 4", r.Display)
	assert.Equal(t, "2 + 3 * 4", r.Expression)

	r, err = Render(toks(Open(), Num("2"), Op("+"), Num("3"), Close(), Op("×"), Num("4")))
	require.NoError(t, err)
	assert.Equal(t, "(2 + 3) × 4", r.Display)
	assert.Equal(t, "(2 + 3) * 4", r.Expression)
}

func TestRender_StructuralError(t *testing.T) {
	_, err := Render(toks(Num("2"), Op("+")))

	requireCode(t, err, CodeArityMismatch)
}

func BenchmarkEngine_Execute(b *testing.B) {
	e := NewEngine(WithCache(NewCache(8)))
	tokens := toks(
		Open(), Var("electricity_kwh"), Op("*"), Var("rate_per_kwh"), Close(),
		Op("+"), Open(), Var("labor_hours"), Op("*"), Var("labor_rate"), Close(),
		Op("+"), Var("overhead"),
	)
	vars := Bindings{
		"electricity_kwh": 100,
		"rate_per_kwh":    1.5,
		"labor_hours":     8,
		"labor_rate":      25,
		"overhead":        50,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Execute(tokens, vars)
	}
}
