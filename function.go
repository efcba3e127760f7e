package formula

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// ============================================================
// Function: named application with fixed arity
// ============================================================

// Function applies a named function to a fixed number of argument slots.
// The slot id of an argument is its index.
type Function[F Field] struct {
	slot[F]
	name string
	args []Node[F]
}

// NewFunction returns name(args...), taking ownership of every argument.
// The arity is fixed at len(args).
func NewFunction[F Field](name string, args ...Node[F]) *Function[F] {
	f := &Function[F]{name: name, args: make([]Node[F], len(args))}
	for i, a := range args {
		f.set(i, a)
	}
	return f
}

func (f *Function[F]) Kind() Kind        { return KindFunction }
func (f *Function[F]) Name() string      { return f.name }
func (f *Function[F]) Arity() int        { return len(f.args) }
func (f *Function[F]) Arg(i int) Node[F] { return f.args[i] }

func (f *Function[F]) set(id int, n Node[F]) {
	if n == nil {
		panic("formula: function argument cannot be nil")
	}
	attach[F](n, f, id)
	f.args[id] = n
}

func (f *Function[F]) ReplaceByID(id int, n Node[F]) error {
	if id < 0 || id >= len(f.args) {
		return fmt.Errorf("%w: %s has no argument %d", ErrInvalidSlot, f.name, id)
	}
	if n == nil {
		return f.RemoveByID(id)
	}
	if n.Owner() != nil {
		return fmt.Errorf("%w: replacing %s argument %d", ErrAlreadyOwned, f.name, id)
	}
	detach(f.args[id])
	f.set(id, n)
	return nil
}

// RemoveByID always fails: the arity of a function is fixed.
func (f *Function[F]) RemoveByID(id int) error {
	return fmt.Errorf("%w: %s argument %d cannot be removed", ErrInvalidSlot, f.name, id)
}

func (f *Function[F]) Clone() Node[F] {
	args := make([]Node[F], len(f.args))
	for i, a := range f.args {
		args[i] = a.Clone()
	}
	return NewFunction(f.name, args...)
}

func (f *Function[F]) Evaluate(bindings map[string]Node[F]) Node[F] {
	args := make([]Node[F], len(f.args))
	for i, a := range f.args {
		args[i] = a.Evaluate(bindings)
	}
	return NewFunction(f.name, args...)
}

// NEvaluate evaluates the arguments and applies the registered numeric
// implementation of the function in float64.
func (f *Function[F]) NEvaluate(bindings map[string]F, precision int) (F, error) {
	impl, ok := lookupFunction(f.name)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownFunction, f.name)
	}
	if impl.Arity >= 0 && impl.Arity != len(f.args) {
		return 0, fmt.Errorf("%w: %s takes %d, got %d", ErrArity, f.name, impl.Arity, len(f.args))
	}
	vals := make([]float64, len(f.args))
	for i, a := range f.args {
		v, err := a.NEvaluate(bindings, precision)
		if err != nil {
			return 0, err
		}
		vals[i] = float64(v)
	}
	out, err := impl.Eval(vals)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", f.name, err)
	}
	if math.IsNaN(out) || math.IsInf(out, 0) {
		return 0, fmt.Errorf("%w: %s = %v", ErrDomain, f.name, out)
	}
	return F(out), nil
}

func (f *Function[F]) Key() string {
	keys := make([]string, len(f.args))
	for i, a := range f.args {
		keys[i] = a.Key()
	}
	return "~fn:" + f.name + "(" + strings.Join(keys, ",") + ")"
}

func (f *Function[F]) SimilarityKey(Combiner) string { return f.Key() }

func (f *Function[F]) String() string {
	parts := make([]string, len(f.args))
	for i, a := range f.args {
		parts[i] = a.String()
	}
	return f.name + "(" + strings.Join(parts, ",") + ")"
}

func (f *Function[F]) CompareWithField(F) bool            { return false }
func (f *Function[F]) CompareWithString(name string) bool { return f.name == name }

func (f *Function[F]) Simplify() (Node[F], error) { return commit(Node[F](f), Node[F].simplifyOwned) }
func (f *Function[F]) Collect() (Node[F], error)  { return commit(Node[F](f), Node[F].collectOwned) }

func (f *Function[F]) simplifyOwned(rw *rewriter[F]) (Node[F], error) { return f.rewrite(rw, false) }
func (f *Function[F]) collectOwned(rw *rewriter[F]) (Node[F], error)  { return f.rewrite(rw, true) }

func (f *Function[F]) rewrite(rw *rewriter[F], collect bool) (Node[F], error) {
	if err := rw.step(); err != nil {
		return nil, err
	}
	for i, a := range f.args {
		out, err := rewriteChild(a, rw, collect)
		if err != nil {
			return nil, err
		}
		if out != a {
			detach(a)
			detach(out)
			f.set(i, out)
		}
	}
	return f, nil
}

func (f *Function[F]) adopt(other Node[F]) bool {
	o, ok := other.(*Function[F])
	if !ok || len(o.args) != len(f.args) {
		return false
	}
	if o == f {
		return true
	}
	f.name = o.name
	for i, a := range o.args {
		detach(a)
		detach(f.args[i])
		f.set(i, a)
	}
	return true
}

// ============================================================
// Numeric function registry
// ============================================================

// NumericFunc is the float64 implementation of a named function. Arity -1
// accepts any number of arguments.
type NumericFunc struct {
	Arity int
	Eval  func(args []float64) (float64, error)
}

var (
	registryMu sync.RWMutex
	registry   = map[string]NumericFunc{}
)

// RegisterFunction installs or replaces the numeric implementation of name.
func RegisterFunction(name string, fn NumericFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// RegisteredFunctions returns the sorted names of all registered functions.
func RegisteredFunctions() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookupFunction(name string) (NumericFunc, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	return fn, ok
}

func unary(fn func(float64) float64) NumericFunc {
	return NumericFunc{Arity: 1, Eval: func(a []float64) (float64, error) { return fn(a[0]), nil }}
}

func binary(fn func(float64, float64) float64) NumericFunc {
	return NumericFunc{Arity: 2, Eval: func(a []float64) (float64, error) { return fn(a[0], a[1]), nil }}
}

func fold(fn func(float64, float64) float64) NumericFunc {
	return NumericFunc{Arity: -1, Eval: func(a []float64) (float64, error) {
		if len(a) == 0 {
			return 0, fmt.Errorf("%w: need at least one argument", ErrArity)
		}
		acc := a[0]
		for _, v := range a[1:] {
			acc = fn(acc, v)
		}
		return acc, nil
	}}
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func init() {
	for name, fn := range map[string]func(float64) float64{
		"sin":   math.Sin,
		"cos":   math.Cos,
		"tan":   math.Tan,
		"exp":   math.Exp,
		"ln":    math.Log,
		"sqrt":  math.Sqrt,
		"abs":   math.Abs,
		"asin":  math.Asin,
		"acos":  math.Acos,
		"atan":  math.Atan,
		"sinh":  math.Sinh,
		"cosh":  math.Cosh,
		"tanh":  math.Tanh,
		"floor": math.Floor,
		"ceil":  math.Ceil,
		"sign":  sign,
	} {
		RegisterFunction(name, unary(fn))
	}
	RegisterFunction("atan2", binary(math.Atan2))
	RegisterFunction("pow", binary(math.Pow))
	RegisterFunction("min", fold(math.Min))
	RegisterFunction("max", fold(math.Max))
}
