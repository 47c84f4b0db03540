// Package formula implements the user-defined formula engine: a token model
// and catalog, a validator, a precedence-climbing parser, an evaluator and a
// renderer.
//
// Formulas arrive as ordered token lists built by the calculator generator,
// not as text. The four operations are Validate, Parse, Execute and Render;
// all of them are pure and safe to call concurrently.
//
//	tokens := []formula.Token{formula.Num("2"), formula.Op("+"), formula.Num("3"), formula.Op("×"), formula.Num("4")}
//	res, err := formula.Execute(tokens, nil) // res.Result == 14
package formula

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	Valid bool   `json:"valid"`
	Error *Error `json:"error,omitempty"`
}

// ExecutionResult is the outcome of a successful Execute.
type ExecutionResult struct {
	Result float64 `json:"result"`
}

// Engine bundles a catalog, an optional tree cache and the default
// evaluation config. An Engine is immutable and safe for concurrent use.
type Engine struct {
	catalog  *Catalog
	cache    *Cache
	defaults EvalConfig
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCatalog replaces the default catalog.
func WithCatalog(c *Catalog) EngineOption {
	return func(e *Engine) { e.catalog = c }
}

// WithCache caches parsed trees, keyed by token content.
func WithCache(c *Cache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithDefaults sets the evaluation config used when Execute is given no
// options.
func WithDefaults(cfg EvalConfig) EngineOption {
	return func(e *Engine) { e.defaults = cfg }
}

// NewEngine creates an engine over the default catalog without a cache.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{catalog: DefaultCatalog()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog { return e.catalog }

// CachedTrees returns the number of trees in the engine's cache.
func (e *Engine) CachedTrees() int {
	if e.cache == nil {
		return 0
	}
	return e.cache.Len()
}

// Validate statically checks a token list.
func (e *Engine) Validate(tokens []Token) ValidationResult {
	if err := validate(tokens, e.catalog); err != nil {
		return ValidationResult{Error: err.(*Error)}
	}
	return ValidationResult{Valid: true}
}

// Parse builds the tree for a token list. Validation runs first so that
// Parse and Validate report the same error for the same input. The returned
// tree may be shared through the cache and must not be modified.
func (e *Engine) Parse(tokens []Token) (*Tree, error) {
	var key string
	if e.cache != nil {
		key = Key(tokens)
		if t, ok := e.cache.Get(key); ok {
			return t, nil
		}
	}
	if err := validate(tokens, e.catalog); err != nil {
		return nil, err
	}
	t, err := parse(tokens, e.catalog)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		t = e.cache.Put(key, t)
	}
	return t, nil
}

// Execute parses and evaluates a token list. A formula that parses can still
// fail here, depending on the bindings.
func (e *Engine) Execute(tokens []Token, vars Bindings, opts ...EvalOption) (ExecutionResult, error) {
	t, err := e.Parse(tokens)
	if err != nil {
		return ExecutionResult{}, err
	}
	v, err := Evaluate(t, vars, e.Config(opts...))
	if err != nil {
		return ExecutionResult{}, err
	}
	return ExecutionResult{Result: v}, nil
}

// Config returns the engine defaults with opts applied.
func (e *Engine) Config(opts ...EvalOption) EvalConfig {
	cfg := e.defaults
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Render parses a token list and renders the tree.
func (e *Engine) Render(tokens []Token) (Rendering, error) {
	t, err := e.Parse(tokens)
	if err != nil {
		return Rendering{}, err
	}
	return RenderTree(t), nil
}

// DefaultEngine is the engine used by the package-level functions.
var DefaultEngine = NewEngine()

// Validate checks tokens with DefaultEngine.
func Validate(tokens []Token) ValidationResult {
	return DefaultEngine.Validate(tokens)
}

// Parse parses tokens with DefaultEngine.
func Parse(tokens []Token) (*Tree, error) {
	return DefaultEngine.Parse(tokens)
}

// Execute evaluates tokens with DefaultEngine.
func Execute(tokens []Token, vars Bindings, opts ...EvalOption) (ExecutionResult, error) {
	return DefaultEngine.Execute(tokens, vars, opts...)
}

// Render renders tokens with DefaultEngine.
func Render(tokens []Token) (Rendering, error) {
	return DefaultEngine.Render(tokens)
}

// CrossCheck cross-checks tokens with DefaultEngine.
func CrossCheck(tokens []Token, vars Bindings, opts ...EvalOption) (CrossCheckResult, error) {
	return DefaultEngine.CrossCheck(tokens, vars, opts...)
}
