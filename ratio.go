package formula

import (
	"fmt"
	"math"
)

// Slot ids of Ratio.
const (
	SlotNumerator = iota
	SlotDenominator
)

// ============================================================
// Ratio: numerator / denominator
// ============================================================

type Ratio[F Field] struct {
	slot[F]
	numerator   Node[F]
	denominator Node[F]
}

// NewRatio returns numerator/denominator, taking ownership of both.
func NewRatio[F Field](numerator, denominator Node[F]) *Ratio[F] {
	r := &Ratio[F]{}
	r.set(SlotNumerator, numerator)
	r.set(SlotDenominator, denominator)
	return r
}

func (r *Ratio[F]) Kind() Kind           { return KindRatio }
func (r *Ratio[F]) Numerator() Node[F]   { return r.numerator }
func (r *Ratio[F]) Denominator() Node[F] { return r.denominator }

func (r *Ratio[F]) set(id int, n Node[F]) {
	if n == nil {
		panic("formula: ratio slot cannot be nil")
	}
	attach[F](n, r, id)
	if id == SlotNumerator {
		r.numerator = n
	} else {
		r.denominator = n
	}
}

func (r *Ratio[F]) get(id int) Node[F] {
	if id == SlotNumerator {
		return r.numerator
	}
	return r.denominator
}

func (r *Ratio[F]) ReplaceByID(id int, n Node[F]) error {
	if id != SlotNumerator && id != SlotDenominator {
		return fmt.Errorf("%w: ratio has no slot %d", ErrInvalidSlot, id)
	}
	if n == nil {
		return r.RemoveByID(id)
	}
	if n.Owner() != nil {
		return fmt.Errorf("%w: replacing ratio slot %d", ErrAlreadyOwned, id)
	}
	detach(r.get(id))
	r.set(id, n)
	return nil
}

// RemoveByID always fails: a ratio cannot lose a slot.
func (r *Ratio[F]) RemoveByID(id int) error {
	return fmt.Errorf("%w: ratio slot %d cannot be removed", ErrInvalidSlot, id)
}

func (r *Ratio[F]) Clone() Node[F] {
	return NewRatio(r.numerator.Clone(), r.denominator.Clone())
}

func (r *Ratio[F]) Evaluate(bindings map[string]Node[F]) Node[F] {
	return NewRatio(r.numerator.Evaluate(bindings), r.denominator.Evaluate(bindings))
}

func (r *Ratio[F]) NEvaluate(bindings map[string]F, precision int) (F, error) {
	num, err := r.numerator.NEvaluate(bindings, precision)
	if err != nil {
		return 0, err
	}
	den, err := r.denominator.NEvaluate(bindings, precision)
	if err != nil {
		return 0, err
	}
	if den == 0 {
		return 0, fmt.Errorf("%w: denominator %s", ErrDivisionByZero, r.denominator)
	}
	return num / den, nil
}

func (r *Ratio[F]) Key() string {
	return "~ratio(" + r.numerator.Key() + "," + r.denominator.Key() + ")"
}

func (r *Ratio[F]) SimilarityKey(Combiner) string { return r.Key() }

func (r *Ratio[F]) String() string {
	return `\frac{` + r.numerator.String() + "}{" + r.denominator.String() + "}"
}

func (r *Ratio[F]) CompareWithField(F) bool       { return false }
func (r *Ratio[F]) CompareWithString(string) bool { return false }

func (r *Ratio[F]) Simplify() (Node[F], error) { return commit(Node[F](r), Node[F].simplifyOwned) }
func (r *Ratio[F]) Collect() (Node[F], error)  { return commit(Node[F](r), Node[F].collectOwned) }

func (r *Ratio[F]) simplifyOwned(rw *rewriter[F]) (Node[F], error) { return r.rewrite(rw, false) }
func (r *Ratio[F]) collectOwned(rw *rewriter[F]) (Node[F], error)  { return r.rewrite(rw, true) }

func (r *Ratio[F]) rewrite(rw *rewriter[F], collect bool) (Node[F], error) {
	if err := rw.step(); err != nil {
		return nil, err
	}
	for _, id := range [...]int{SlotNumerator, SlotDenominator} {
		child := r.get(id)
		out, err := rewriteChild(child, rw, collect)
		if err != nil {
			return nil, err
		}
		if out != child {
			detach(child)
			detach(out)
			r.set(id, out)
		}
	}
	return r.normalize(), nil
}

// normalize: x/1 -> x, 0/x -> 0, and constant/constant folds in
// floating-point fields.
func (r *Ratio[F]) normalize() Node[F] {
	if isConstant(r.denominator, 1) {
		num := r.numerator
		detach(num)
		return num
	}
	if isConstant(r.numerator, 0) {
		return C[F](0)
	}
	n, nok := r.numerator.(*Constant[F])
	d, dok := r.denominator.(*Constant[F])
	if nok && dok && isFloatField[F]() && d.value != 0 {
		return C(n.value / d.value)
	}
	return r
}

func (r *Ratio[F]) adopt(other Node[F]) bool {
	o, ok := other.(*Ratio[F])
	if !ok {
		return false
	}
	if o == r {
		return true
	}
	num, den := o.numerator, o.denominator
	detach(num)
	detach(den)
	detach(r.numerator)
	detach(r.denominator)
	r.set(SlotNumerator, num)
	r.set(SlotDenominator, den)
	return true
}

// isFloatField reports whether F is a floating-point type.
func isFloatField[F Field]() bool {
	var one F = 1
	return one/2 != 0
}

// checkFinite rejects NaN and infinities in floating-point fields.
func checkFinite[F Field](v F, what string) (F, error) {
	f := float64(v)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%w: %s = %v", ErrDomain, what, f)
	}
	return v, nil
}
