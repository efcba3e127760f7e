package formula

import "fmt"

// ============================================================
// Constant: field value
// ============================================================

type Constant[F Field] struct {
	slot[F]
	value F
}

// C returns a detached constant.
func C[F Field](v F) *Constant[F] { return &Constant[F]{value: v} }

func (c *Constant[F]) Kind() Kind     { return KindConstant }
func (c *Constant[F]) Value() F       { return c.value }
func (c *Constant[F]) Clone() Node[F] { return C(c.value) }
func (c *Constant[F]) String() string { return formatValue(c.value) }
func (c *Constant[F]) Key() string    { return "#" + formatValue(c.value) }

func (c *Constant[F]) SimilarityKey(Combiner) string { return c.Key() }

func (c *Constant[F]) Evaluate(map[string]Node[F]) Node[F] { return C(c.value) }

func (c *Constant[F]) NEvaluate(map[string]F, int) (F, error) { return c.value, nil }

func (c *Constant[F]) Simplify() (Node[F], error) { return c, nil }
func (c *Constant[F]) Collect() (Node[F], error)  { return c, nil }

func (c *Constant[F]) CompareWithField(v F) bool     { return c.value == v }
func (c *Constant[F]) CompareWithString(string) bool { return false }

func (c *Constant[F]) simplifyOwned(*rewriter[F]) (Node[F], error) { return c, nil }
func (c *Constant[F]) collectOwned(*rewriter[F]) (Node[F], error)  { return c, nil }

func (c *Constant[F]) adopt(other Node[F]) bool {
	o, ok := other.(*Constant[F])
	if ok {
		c.value = o.value
	}
	return ok
}

func formatValue[F Field](v F) string { return fmt.Sprint(v) }

// isConstant reports whether n is a Constant equal to v.
func isConstant[F Field](n Node[F], v F) bool {
	return n != nil && n.Kind() == KindConstant && n.CompareWithField(v)
}

// ============================================================
// Variable: named symbol
// ============================================================

type Variable[F Field] struct {
	slot[F]
	name string
}

// V returns a detached variable.
func V[F Field](name string) *Variable[F] { return &Variable[F]{name: name} }

func (v *Variable[F]) Kind() Kind     { return KindVariable }
func (v *Variable[F]) Name() string   { return v.name }
func (v *Variable[F]) Clone() Node[F] { return V[F](v.name) }
func (v *Variable[F]) String() string { return v.name }
func (v *Variable[F]) Key() string    { return v.name }

func (v *Variable[F]) SimilarityKey(Combiner) string { return v.name }

func (v *Variable[F]) Evaluate(bindings map[string]Node[F]) Node[F] {
	if donor, ok := bindings[v.name]; ok && donor != nil {
		return donor.Clone()
	}
	return V[F](v.name)
}

func (v *Variable[F]) NEvaluate(bindings map[string]F, _ int) (F, error) {
	val, ok := bindings[v.name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnboundVariable, v.name)
	}
	return val, nil
}

func (v *Variable[F]) Simplify() (Node[F], error) { return v, nil }
func (v *Variable[F]) Collect() (Node[F], error)  { return v, nil }

func (v *Variable[F]) CompareWithField(F) bool           { return false }
func (v *Variable[F]) CompareWithString(name string) bool { return v.name == name }

func (v *Variable[F]) simplifyOwned(*rewriter[F]) (Node[F], error) { return v, nil }
func (v *Variable[F]) collectOwned(*rewriter[F]) (Node[F], error)  { return v, nil }

func (v *Variable[F]) adopt(other Node[F]) bool {
	o, ok := other.(*Variable[F])
	if ok {
		v.name = o.name
	}
	return ok
}
