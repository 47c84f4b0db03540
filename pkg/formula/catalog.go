package formula

import (
	"math"
	"sort"
	"strconv"
)

// Variadic marks an arity without an upper bound.
const Variadic = -1

// Arity is the accepted argument count of a function.
type Arity struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Fixed returns an arity of exactly n.
func Fixed(n int) Arity { return Arity{n, n} }

// AtLeast returns a variadic arity with a lower bound.
func AtLeast(n int) Arity { return Arity{n, Variadic} }

// Accepts reports whether n arguments satisfy the arity.
func (a Arity) Accepts(n int) bool {
	return n >= a.Min && (a.Max == Variadic || n <= a.Max)
}

func (a Arity) String() string {
	switch {
	case a.Max == Variadic:
		return "at least " + strconv.Itoa(a.Min)
	case a.Min == a.Max:
		return strconv.Itoa(a.Min)
	default:
		return strconv.Itoa(a.Min) + " to " + strconv.Itoa(a.Max)
	}
}

// Impl is a function implementation. args has a length accepted by the
// function's arity. Domain violations are reported with outOfDomain.
type Impl func(args []float64, cfg EvalConfig) (float64, error)

// Function is a catalog function.
type Function struct {
	Name  string `json:"name"`
	Arity Arity  `json:"arity"`
	Doc   string `json:"description"`
	// LaTeX is the command used when rendering, e.g. `\sin`. Empty means
	// \operatorname{name}.
	LaTeX string `json:"-"`
	Impl  Impl   `json:"-"`
}

// Operator is a catalog operator.
type Operator struct {
	Symbol string `json:"symbol"`
	Arity  int    `json:"arity"`
	// Prec is the binding strength; higher binds tighter.
	Prec  int    `json:"precedence"`
	Right bool   `json:"right_associative"`
	// Display is the default display text when a token carries none.
	Display string `json:"display"`
	LaTeX   string `json:"-"`

	unary  func(x float64) float64
	binary func(l, r float64) (float64, error)
}

// Constant is a named catalog constant.
type Constant struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	// Expr is the identifier used in the executable expression string.
	Expr  string `json:"-"`
	LaTeX string `json:"-"`
}

// Catalog is the authoritative table of operators, functions and constants.
// A Catalog is read-only once built and safe for concurrent use.
type Catalog struct {
	binary    map[string]*Operator
	unary     map[string]*Operator
	functions map[string]*Function
	constants map[string]*Constant
}

// Binary looks up a binary operator. Display aliases such as "×" resolve to
// their canonical operator.
func (c *Catalog) Binary(sym string) (*Operator, bool) {
	op, ok := c.binary[canonical(sym)]
	return op, ok
}

// Unary looks up a unary operator.
func (c *Catalog) Unary(sym string) (*Operator, bool) {
	op, ok := c.unary[canonical(sym)]
	return op, ok
}

func canonical(sym string) string {
	if canon, ok := operatorAliases[sym]; ok {
		return canon
	}
	return sym
}

// Function looks up a function by name.
func (c *Catalog) Function(name string) (*Function, bool) {
	fn, ok := c.functions[name]
	return fn, ok
}

// Constant looks up a named constant.
func (c *Catalog) Constant(name string) (*Constant, bool) {
	k, ok := c.constants[name]
	return k, ok
}

// literal resolves a constant token: a catalog name or a finite numeric
// literal. k is nil for literals.
func (c *Catalog) literal(sym string) (v float64, k *Constant, ok bool) {
	if k, ok := c.constants[sym]; ok {
		return k.Value, k, true
	}
	v, err := strconv.ParseFloat(sym, 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, nil, false
	}
	return v, nil, true
}

// IsKnownFunction returns the arity of a function, if it exists.
func (c *Catalog) IsKnownFunction(name string) (Arity, bool) {
	fn, ok := c.functions[name]
	if !ok {
		return Arity{}, false
	}
	return fn.Arity, true
}

// IsKnownConstant returns the value of a named constant, if it exists.
func (c *Catalog) IsKnownConstant(name string) (float64, bool) {
	k, ok := c.constants[name]
	if !ok {
		return 0, false
	}
	return k.Value, true
}

// Functions lists the catalog functions sorted by name.
func (c *Catalog) Functions() []*Function {
	fns := make([]*Function, 0, len(c.functions))
	for _, fn := range c.functions {
		fns = append(fns, fn)
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].Name < fns[j].Name })
	return fns
}

// Operators lists the binary operators by precedence, then the unary ones.
func (c *Catalog) Operators() []*Operator {
	ops := make([]*Operator, 0, len(c.binary)+len(c.unary))
	for _, op := range c.binary {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Prec != ops[j].Prec {
			return ops[i].Prec < ops[j].Prec
		}
		return ops[i].Symbol < ops[j].Symbol
	})
	n := len(ops)
	for _, op := range c.unary {
		ops = append(ops, op)
	}
	sort.Slice(ops[n:], func(i, j int) bool { return ops[n+i].Symbol < ops[n+j].Symbol })
	return ops
}

// Constants lists the catalog constants sorted by name. Aliases appear once
// per name.
func (c *Catalog) Constants() []*Constant {
	ks := make([]*Constant, 0, len(c.constants))
	for name, k := range c.constants {
		ks = append(ks, &Constant{Name: name, Value: k.Value, Expr: k.Expr, LaTeX: k.LaTeX})
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].Name < ks[j].Name })
	return ks
}

// WithConstants returns a copy of c extended by the given constants. Existing
// names are replaced. c itself is not modified.
func (c *Catalog) WithConstants(extra map[string]float64) *Catalog {
	out := &Catalog{
		binary:    c.binary,
		unary:     c.unary,
		functions: c.functions,
		constants: make(map[string]*Constant, len(c.constants)+len(extra)),
	}
	for k, v := range c.constants {
		out.constants[k] = v
	}
	for name, v := range extra {
		out.constants[name] = &Constant{Name: name, Value: v, Expr: name, LaTeX: `\mathrm{` + name + `}`}
	}
	return out
}

// DefaultCatalog returns the built-in catalog. The result is shared and must
// not be modified.
func DefaultCatalog() *Catalog { return defaultCatalog }

var defaultCatalog = newDefaultCatalog()

const (
	precAdditive       = 1
	precMultiplicative = 2
	precPower          = 3
	precUnary          = 4
)

func newDefaultCatalog() *Catalog {
	c := &Catalog{
		binary:    make(map[string]*Operator),
		unary:     make(map[string]*Operator),
		functions: make(map[string]*Function),
		constants: make(map[string]*Constant),
	}
	for _, op := range []*Operator{
		{Symbol: "+", Arity: 2, Prec: precAdditive, LaTeX: "+", binary: func(l, r float64) (float64, error) { return l + r, nil }},
		{Symbol: "-", Arity: 2, Prec: precAdditive, LaTeX: "-", binary: func(l, r float64) (float64, error) { return l - r, nil }},
		{Symbol: "*", Arity: 2, Prec: precMultiplicative, Display: "×", LaTeX: `\times`, binary: func(l, r float64) (float64, error) { return l * r, nil }},
		{Symbol: "/", Arity: 2, Prec: precMultiplicative, Display: "÷", LaTeX: `\div`, binary: divide},
		{Symbol: "^", Arity: 2, Prec: precPower, Right: true, LaTeX: "^", binary: func(l, r float64) (float64, error) { return math.Pow(l, r), nil }},
	} {
		if op.Display == "" {
			op.Display = op.Symbol
		}
		c.binary[op.Symbol] = op
	}
	c.unary["-"] = &Operator{Symbol: "-", Arity: 1, Prec: precUnary, Right: true, Display: "-", LaTeX: "-", unary: func(x float64) float64 { return -x }}

	for _, fn := range builtinFunctions() {
		c.functions[fn.Name] = fn
	}

	pi := &Constant{Name: "π", Value: math.Pi, Expr: "pi", LaTeX: `\pi`}
	tau := &Constant{Name: "τ", Value: 2 * math.Pi, Expr: "tau", LaTeX: `\tau`}
	phi := &Constant{Name: "φ", Value: math.Phi, Expr: "phi", LaTeX: `\varphi`}
	e := &Constant{Name: "e", Value: math.E, Expr: "e", LaTeX: "e"}
	for name, k := range map[string]*Constant{
		"π": pi, "pi": pi,
		"τ": tau, "tau": tau,
		"φ": phi, "phi": phi,
		"e": e,
	} {
		c.constants[name] = k
	}
	return c
}

func divide(l, r float64) (float64, error) {
	if r == 0 {
		return 0, errDivZero
	}
	return l / r, nil
}

// errDivZero is translated by the evaluator into a positioned error.
var errDivZero = &Error{Code: CodeDivisionByZero, Pos: -1}

func monadic(name, doc string, f func(float64) float64) *Function {
	return &Function{Name: name, Arity: Fixed(1), Doc: doc, Impl: func(args []float64, _ EvalConfig) (float64, error) {
		return f(args[0]), nil
	}}
}

// guarded wraps a one-argument function with a domain predicate.
func guarded(name, doc string, ok func(float64) bool, f func(float64) float64) *Function {
	return &Function{Name: name, Arity: Fixed(1), Doc: doc, Impl: func(args []float64, _ EvalConfig) (float64, error) {
		if !ok(args[0]) {
			return 0, outOfDomain(args[0])
		}
		return f(args[0]), nil
	}}
}

func builtinFunctions() []*Function {
	positive := func(x float64) bool { return x > 0 }
	unit := func(x float64) bool { return x >= -1 && x <= 1 }
	fns := []*Function{
		guarded("sqrt", "square root", func(x float64) bool { return x >= 0 }, math.Sqrt),
		monadic("cbrt", "cube root", math.Cbrt),
		monadic("abs", "absolute value", math.Abs),
		monadic("exp", "e raised to the argument", math.Exp),
		guarded("ln", "natural logarithm", positive, math.Log),
		guarded("log", "base-10 logarithm", positive, math.Log10),
		guarded("log2", "base-2 logarithm", positive, math.Log2),
		monadic("sinh", "hyperbolic sine", math.Sinh),
		monadic("cosh", "hyperbolic cosine", math.Cosh),
		monadic("tanh", "hyperbolic tangent", math.Tanh),
		monadic("floor", "round down", math.Floor),
		monadic("ceil", "round up", math.Ceil),
		monadic("round", "round half away from zero", math.Round),
		{Name: "sin", Arity: Fixed(1), Doc: "sine", LaTeX: `\sin`, Impl: func(a []float64, cfg EvalConfig) (float64, error) {
			return sinAngle(a[0], cfg.Angle), nil
		}},
		{Name: "cos", Arity: Fixed(1), Doc: "cosine", LaTeX: `\cos`, Impl: func(a []float64, cfg EvalConfig) (float64, error) {
			return cosAngle(a[0], cfg.Angle), nil
		}},
		{Name: "tan", Arity: Fixed(1), Doc: "tangent", LaTeX: `\tan`, Impl: func(a []float64, cfg EvalConfig) (float64, error) {
			c := cosAngle(a[0], cfg.Angle)
			if c == 0 {
				return 0, outOfDomain(a[0])
			}
			return sinAngle(a[0], cfg.Angle) / c, nil
		}},
		{Name: "asin", Arity: Fixed(1), Doc: "inverse sine", LaTeX: `\arcsin`, Impl: func(a []float64, cfg EvalConfig) (float64, error) {
			if !unit(a[0]) {
				return 0, outOfDomain(a[0])
			}
			return fromRadians(math.Asin(a[0]), cfg.Angle), nil
		}},
		{Name: "acos", Arity: Fixed(1), Doc: "inverse cosine", LaTeX: `\arccos`, Impl: func(a []float64, cfg EvalConfig) (float64, error) {
			if !unit(a[0]) {
				return 0, outOfDomain(a[0])
			}
			return fromRadians(math.Acos(a[0]), cfg.Angle), nil
		}},
		{Name: "atan", Arity: Fixed(1), Doc: "inverse tangent", LaTeX: `\arctan`, Impl: func(a []float64, cfg EvalConfig) (float64, error) {
			return fromRadians(math.Atan(a[0]), cfg.Angle), nil
		}},
		{Name: "fact", Arity: Fixed(1), Doc: "factorial of a non-negative integer", Impl: factorial},
		{Name: "pow", Arity: Fixed(2), Doc: "first argument raised to the second", Impl: func(a []float64, _ EvalConfig) (float64, error) {
			return math.Pow(a[0], a[1]), nil
		}},
		{Name: "root", Arity: Fixed(2), Doc: "n-th root: root(x, n)", Impl: nthRoot},
		{Name: "mod", Arity: Fixed(2), Doc: "remainder of truncated division", Impl: func(a []float64, _ EvalConfig) (float64, error) {
			if a[1] == 0 {
				return 0, errDivZero
			}
			return math.Mod(a[0], a[1]), nil
		}},
		{Name: "hypot", Arity: Fixed(2), Doc: "length of the hypotenuse", Impl: func(a []float64, _ EvalConfig) (float64, error) {
			return math.Hypot(a[0], a[1]), nil
		}},
		{Name: "min", Arity: AtLeast(1), Doc: "smallest argument", Impl: func(a []float64, _ EvalConfig) (float64, error) {
			m := a[0]
			for _, x := range a[1:] {
				m = math.Min(m, x)
			}
			return m, nil
		}},
		{Name: "max", Arity: AtLeast(1), Doc: "largest argument", Impl: func(a []float64, _ EvalConfig) (float64, error) {
			m := a[0]
			for _, x := range a[1:] {
				m = math.Max(m, x)
			}
			return m, nil
		}},
		{Name: "avg", Arity: AtLeast(1), Doc: "arithmetic mean", Impl: func(a []float64, _ EvalConfig) (float64, error) {
			var sum float64
			for _, x := range a {
				sum += x
			}
			return sum / float64(len(a)), nil
		}},
	}
	latex := map[string]string{
		"sqrt": `\sqrt`, "exp": `\exp`, "ln": `\ln`, "log": `\log`,
		"sinh": `\sinh`, "cosh": `\cosh`, "tanh": `\tanh`,
		"min": `\min`, "max": `\max`,
	}
	for _, fn := range fns {
		if fn.LaTeX == "" {
			fn.LaTeX = latex[fn.Name]
		}
	}
	return fns
}

func factorial(a []float64, _ EvalConfig) (float64, error) {
	n := a[0]
	if n < 0 || n != math.Trunc(n) {
		return 0, outOfDomain(n)
	}
	// Gamma is exact for small integers and overflows to +Inf past 170!, which
	// the evaluator reports as overflow.
	return math.Round(math.Gamma(n + 1)), nil
}

func nthRoot(a []float64, _ EvalConfig) (float64, error) {
	x, n := a[0], a[1]
	if n == 0 {
		return 0, outOfDomain(n)
	}
	if x >= 0 {
		return math.Pow(x, 1/n), nil
	}
	// Negative radicands only have real odd roots.
	if n != math.Trunc(n) || math.Mod(n, 2) == 0 {
		return 0, outOfDomain(x)
	}
	return -math.Pow(-x, 1/n), nil
}
