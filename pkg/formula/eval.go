package formula

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AngleMode selects the unit of trigonometric arguments and results.
type AngleMode uint8

const (
	Radians AngleMode = iota
	Degrees
)

func (m AngleMode) String() string {
	if m == Degrees {
		return "degrees"
	}
	return "radians"
}

// MarshalText encodes the angle mode by name.
func (m AngleMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText accepts "radians"/"rad" and "degrees"/"deg". An empty string
// means radians.
func (m *AngleMode) UnmarshalText(text []byte) error {
	mode, err := ParseAngleMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseAngleMode parses an angle mode name.
func ParseAngleMode(s string) (AngleMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rad", "radians":
		return Radians, nil
	case "deg", "degrees":
		return Degrees, nil
	}
	return Radians, fmt.Errorf("formula: unknown angle mode %q", s)
}

// EvalConfig is the per-call evaluation configuration.
type EvalConfig struct {
	Angle AngleMode `json:"angle_mode" yaml:"angle_mode"`
}

// EvalOption adjusts an EvalConfig for a single evaluation.
type EvalOption func(*EvalConfig)

// WithAngleMode evaluates trigonometric functions in the given unit.
func WithAngleMode(m AngleMode) EvalOption {
	return func(c *EvalConfig) { c.Angle = m }
}

// Bindings maps variable names to values.
type Bindings map[string]float64

// Evaluate evaluates a parsed tree. It is pure: the same tree, bindings and
// config always give the same result, and nothing is modified.
func Evaluate(t *Tree, vars Bindings, cfg EvalConfig) (float64, error) {
	if t == nil || t.Root == nil {
		return 0, emptyFormula()
	}
	return eval(t.Root, vars, cfg)
}

func eval(n *Node, vars Bindings, cfg EvalConfig) (float64, error) {
	switch n.Kind {
	case NodeNumber, NodeConstant:
		return n.Value, nil

	case NodeVariable:
		v, ok := vars[n.Symbol]
		if !ok {
			return 0, &Error{Code: CodeUnboundVariable, Pos: n.Pos, Symbol: n.Symbol, Detail: "no value bound to " + strconv.Quote(n.Symbol)}
		}
		return finite(v, n)

	case NodeUnary:
		x, err := eval(n.Children[0], vars, cfg)
		if err != nil {
			return 0, err
		}
		return finite(n.op.unary(x), n)

	case NodeBinary:
		l, err := eval(n.Children[0], vars, cfg)
		if err != nil {
			return 0, err
		}
		r, err := eval(n.Children[1], vars, cfg)
		if err != nil {
			return 0, err
		}
		v, err := n.op.binary(l, r)
		if err != nil {
			return 0, locate(err, n, "")
		}
		return finite(v, n)

	case NodeCall:
		args := make([]float64, len(n.Children))
		for i, c := range n.Children {
			v, err := eval(c, vars, cfg)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		v, err := n.fn.Impl(args, cfg)
		if err != nil {
			return 0, locate(err, n, n.fn.Name)
		}
		return finite(v, n)
	}
	return 0, &Error{Code: CodeMalformedStructure, Pos: n.Pos, Symbol: n.Symbol, Detail: "invalid node kind " + n.Kind.String()}
}

// locate copies an error raised by an operator or function implementation
// and attaches the node's position.
func locate(err error, n *Node, fn string) error {
	var fe *Error
	if !errors.As(err, &fe) {
		return fmt.Errorf("%s: %w", n.Symbol, err)
	}
	out := *fe
	out.Pos = n.Pos
	out.Symbol = n.Symbol
	out.Func = fn
	switch out.Code {
	case CodeDivisionByZero:
		out.Detail = "division by zero"
	case CodeDomainError:
		if out.Value != nil {
			out.Detail = strconv.FormatFloat(*out.Value, 'g', -1, 64) + " outside domain of " + fn
		}
	}
	return &out
}

func finite(v float64, n *Node) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &Error{Code: CodeNumericOverflow, Pos: n.Pos, Symbol: n.Symbol, Detail: "result of " + strconv.Quote(n.Symbol) + " is not a finite number"}
	}
	return v, nil
}

func toRadians(x float64, m AngleMode) float64 {
	if m == Degrees {
		return x * math.Pi / 180
	}
	return x
}

func fromRadians(x float64, m AngleMode) float64 {
	if m == Degrees {
		return x * 180 / math.Pi
	}
	return x
}

// sinAngle and cosAngle return exact values at multiples of 90 degrees, where
// converting through radians would leave rounding residue such as
// sin(180°) = 1.2e-16.
func sinAngle(x float64, m AngleMode) float64 {
	if m == Degrees {
		if q, ok := quadrant(x); ok {
			return [4]float64{0, 1, 0, -1}[q]
		}
	}
	return math.Sin(toRadians(x, m))
}

func cosAngle(x float64, m AngleMode) float64 {
	if m == Degrees {
		if q, ok := quadrant(x); ok {
			return [4]float64{1, 0, -1, 0}[q]
		}
	}
	return math.Cos(toRadians(x, m))
}

func quadrant(deg float64) (int, bool) {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if math.Mod(r, 90) != 0 {
		return 0, false
	}
	return int(r/90) % 4, true
}
