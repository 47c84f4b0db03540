package formula

import (
	"errors"
	"fmt"
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
)

// ErrExport reports that an exported expression string failed to compile or
// run although the engine evaluated the tree.
var ErrExport = errors.New("exported expression failed")

// CrossCheckResult compares the engine with an independent evaluation of the
// rendered expression string.
type CrossCheckResult struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
	Exported   float64 `json:"exported_result"`
	Agree      bool    `json:"agree"`
}

// CrossCheck renders tokens to their executable expression string, runs that
// string through expr-lang with the same bindings and catalog, and compares
// the result with the engine's own evaluation. It verifies that exported
// expressions mean what the tree means.
func (e *Engine) CrossCheck(tokens []Token, vars Bindings, opts ...EvalOption) (CrossCheckResult, error) {
	t, err := e.Parse(tokens)
	if err != nil {
		return CrossCheckResult{}, err
	}
	cfg := e.Config(opts...)
	want, err := Evaluate(t, vars, cfg)
	if err != nil {
		return CrossCheckResult{}, err
	}
	r := RenderTree(t)
	exported := make(Bindings, len(t.Variables))
	for _, name := range t.Variables {
		exported[r.Identifiers[name]] = vars[name]
	}
	got, err := e.RunExpression(r.Expression, exported, cfg)
	if err != nil {
		return CrossCheckResult{}, fmt.Errorf("%w: %v", ErrExport, err)
	}
	return CrossCheckResult{
		Expression: r.Expression,
		Result:     want,
		Exported:   got,
		Agree:      closeEnough(want, got),
	}, nil
}

// RunExpression evaluates an exported expression string with expr-lang. The
// environment holds the catalog constants, the bindings keyed by expression
// identifier, and the catalog functions evaluated under cfg. Integer literals
// are read as floats so products cannot wrap.
func (e *Engine) RunExpression(expression string, vars Bindings, cfg EvalConfig) (float64, error) {
	env := make(map[string]interface{}, len(vars)+8)
	for _, k := range e.catalog.constants {
		env[k.Expr] = k.Value
	}
	for name, v := range vars {
		env[name] = v
	}
	options := []expr.Option{
		expr.Env(env),
		expr.DisableAllBuiltins(),
		expr.Patch(floatLiterals{}),
		expr.AsFloat64(),
	}
	for _, fn := range e.catalog.functions {
		options = append(options, expr.Function(fn.Name, exprFunc(fn, cfg)))
	}

	program, err := expr.Compile(expression, options...)
	if err != nil {
		return 0, fmt.Errorf("failed to compile expression '%s': %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return 0, fmt.Errorf("failed to evaluate expression: %w", err)
	}

	v, ok := result.(float64)
	if !ok {
		return 0, fmt.Errorf("unexpected result type: %T", result)
	}
	return v, nil
}

type floatLiterals struct{}

func (floatLiterals) Visit(node *ast.Node) {
	if n, ok := (*node).(*ast.IntegerNode); ok {
		ast.Patch(node, &ast.FloatNode{Value: float64(n.Value)})
	}
}

func exprFunc(fn *Function, cfg EvalConfig) func(params ...interface{}) (interface{}, error) {
	return func(params ...interface{}) (interface{}, error) {
		if !fn.Arity.Accepts(len(params)) {
			return nil, fmt.Errorf("%s: got %d arguments, want %s", fn.Name, len(params), fn.Arity)
		}
		args := make([]float64, len(params))
		for i, p := range params {
			x, ok := toFloat(p)
			if !ok {
				return nil, fmt.Errorf("%s: argument %d is %T, not a number", fn.Name, i+1, p)
			}
			args[i] = x
		}
		v, err := fn.Impl(args, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", fn.Name, err)
		}
		return v, nil
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	}
	return 0, false
}

func closeEnough(a, b float64) bool {
	if a == b {
		return true
	}
	return math.Abs(a-b) <= 1e-9*math.Max(math.Abs(a), math.Abs(b))
}
