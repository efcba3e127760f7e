package formula

import (
	"fmt"
	"math"
)

// Slot ids of Power.
const (
	SlotBase = iota
	SlotExponent
)

// ============================================================
// Power: base^exponent
// ============================================================

type Power[F Field] struct {
	slot[F]
	base     Node[F]
	exponent Node[F]
}

// NewPower returns base^exponent, taking ownership of both.
func NewPower[F Field](base, exponent Node[F]) *Power[F] {
	p := &Power[F]{}
	p.set(SlotBase, base)
	p.set(SlotExponent, exponent)
	return p
}

func (p *Power[F]) Kind() Kind        { return KindPower }
func (p *Power[F]) Base() Node[F]     { return p.base }
func (p *Power[F]) Exponent() Node[F] { return p.exponent }

func (p *Power[F]) set(id int, n Node[F]) {
	if n == nil {
		panic("formula: power slot cannot be nil")
	}
	attach[F](n, p, id)
	if id == SlotBase {
		p.base = n
	} else {
		p.exponent = n
	}
}

func (p *Power[F]) get(id int) Node[F] {
	if id == SlotBase {
		return p.base
	}
	return p.exponent
}

func (p *Power[F]) ReplaceByID(id int, n Node[F]) error {
	if id != SlotBase && id != SlotExponent {
		return fmt.Errorf("%w: power has no slot %d", ErrInvalidSlot, id)
	}
	if n == nil {
		return p.RemoveByID(id)
	}
	if n.Owner() != nil {
		return fmt.Errorf("%w: replacing power slot %d", ErrAlreadyOwned, id)
	}
	detach(p.get(id))
	p.set(id, n)
	return nil
}

// RemoveByID always fails: a power cannot lose a slot.
func (p *Power[F]) RemoveByID(id int) error {
	return fmt.Errorf("%w: power slot %d cannot be removed", ErrInvalidSlot, id)
}

func (p *Power[F]) Clone() Node[F] { return NewPower(p.base.Clone(), p.exponent.Clone()) }

func (p *Power[F]) Evaluate(bindings map[string]Node[F]) Node[F] {
	return NewPower(p.base.Evaluate(bindings), p.exponent.Evaluate(bindings))
}

// NEvaluate raises by repeated squaring when the exponent is integral and
// falls back to math.Pow otherwise. precision is not consulted.
func (p *Power[F]) NEvaluate(bindings map[string]F, precision int) (F, error) {
	b, err := p.base.NEvaluate(bindings, precision)
	if err != nil {
		return 0, err
	}
	e, err := p.exponent.NEvaluate(bindings, precision)
	if err != nil {
		return 0, err
	}
	ef := float64(e)
	if ef == math.Trunc(ef) {
		if ef < 0 {
			if b == 0 {
				return 0, fmt.Errorf("%w: %s raised to %v", ErrDivisionByZero, p.base, e)
			}
			den := intPow(b, uint64(-ef))
			if !isFloatField[F]() && den != 1 && den != -1 {
				return 0, fmt.Errorf("%w: %s raised to %v is not integral", ErrDomain, p.base, e)
			}
			return checkFinite(1/den, "power")
		}
		return checkFinite(intPow(b, uint64(ef)), "power")
	}
	return checkFinite(F(math.Pow(float64(b), ef)), "power")
}

func intPow[F Field](b F, e uint64) F {
	var acc F = 1
	for e > 0 {
		if e&1 == 1 {
			acc *= b
		}
		b *= b
		e >>= 1
	}
	return acc
}

func (p *Power[F]) Key() string {
	return "~power(" + p.base.Key() + "," + p.exponent.Key() + ")"
}

// SimilarityKey under Multiplication is the base's key, so x, x^2 and x^3
// sort next to each other in a Product.
func (p *Power[F]) SimilarityKey(c Combiner) string {
	if c == Multiplication {
		return p.base.Key()
	}
	return p.Key()
}

func (p *Power[F]) String() string {
	return "{" + p.base.String() + "}^{" + p.exponent.String() + "}"
}

func (p *Power[F]) CompareWithField(F) bool       { return false }
func (p *Power[F]) CompareWithString(string) bool { return false }

func (p *Power[F]) Simplify() (Node[F], error) { return commit(Node[F](p), Node[F].simplifyOwned) }
func (p *Power[F]) Collect() (Node[F], error)  { return commit(Node[F](p), Node[F].collectOwned) }

func (p *Power[F]) simplifyOwned(rw *rewriter[F]) (Node[F], error) { return p.rewrite(rw, false) }
func (p *Power[F]) collectOwned(rw *rewriter[F]) (Node[F], error)  { return p.rewrite(rw, true) }

func (p *Power[F]) rewrite(rw *rewriter[F], collect bool) (Node[F], error) {
	if err := rw.step(); err != nil {
		return nil, err
	}
	for _, id := range [...]int{SlotBase, SlotExponent} {
		child := p.get(id)
		out, err := rewriteChild(child, rw, collect)
		if err != nil {
			return nil, err
		}
		if out != child {
			detach(child)
			detach(out)
			p.set(id, out)
		}
	}
	return p.normalize(rw, collect)
}

// normalize applies the power rules:
//
//	x^0 -> 1, x^1 -> x, 1^x -> 1, 0^k -> 0 (k > 0), c^k folds for k >= 0,
//	(b^e1)^e2 -> b^(e1*e2), (a*b)^k -> a^k * b^k
func (p *Power[F]) normalize(rw *rewriter[F], collect bool) (Node[F], error) {
	if isConstant(p.exponent, 0) {
		return C[F](1), nil
	}
	if isConstant(p.exponent, 1) {
		base := p.base
		detach(base)
		return base, nil
	}
	if isConstant(p.base, 1) {
		return C[F](1), nil
	}
	if e, ok := p.exponent.(*Constant[F]); ok {
		ef := float64(e.value)
		if b, ok := p.base.(*Constant[F]); ok && ef >= 0 && ef == math.Trunc(ef) {
			return C(intPow(b.value, uint64(ef))), nil
		}
		if isConstant(p.base, 0) && ef > 0 {
			return C[F](0), nil
		}
	}

	switch base := p.base.(type) {
	case *Power[F]:
		inner, innerExp, outerExp := base.base, base.exponent, p.exponent
		detach(inner)
		detach(innerExp)
		detach(outerExp)
		return rewriteChild[F](NewPower[F](inner, NewProduct[F](innerExp, outerExp)), rw, collect)
	case *Collection[F]:
		if base.op != Multiplication {
			break
		}
		factors := base.takeChildren()
		dist := NewProduct[F]()
		for _, f := range factors {
			dist.Append(NewPower[F](f, p.exponent.Clone()))
		}
		return rewriteChild[F](dist, rw, collect)
	}
	return p, nil
}

func (p *Power[F]) adopt(other Node[F]) bool {
	o, ok := other.(*Power[F])
	if !ok {
		return false
	}
	if o == p {
		return true
	}
	base, exp := o.base, o.exponent
	detach(base)
	detach(exp)
	detach(p.base)
	detach(p.exponent)
	p.set(SlotBase, base)
	p.set(SlotExponent, exp)
	return true
}
