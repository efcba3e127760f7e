package formula

import (
	"fmt"
	"sort"
)

// ============================================================
// Intersect: structural common part of two subtrees
// ============================================================

// Intersection is the result of Intersect. When Common is nil the operands
// share nothing and the remainders are clones of the operands.
type Intersection[F Field] struct {
	Common     Node[F]
	Remainder1 Node[F]
	Remainder2 Node[F]
}

// Intersect factors out the structural overlap of a and b as seen by a
// collection merging with c. All returned nodes are fresh and detached;
// neither operand is modified.
//
// Under Addition the common part is a shared factor: a = Common*Remainder1
// and b = Common*Remainder2. Products are walked factor by factor, a Sum
// shares a factor with an atom only when the factor divides every term, and
// two Sums intersect only when they are identical.
//
// Under Multiplication the common part is a shared base: a = Common^Remainder1
// and b = Common^Remainder2. Two Products intersect only when identical. Any
// other operand, a Sum included, is its own base unless it is a Power, so
// (x+y) and (x+z) share nothing.
//
// Ratio and Function operands are opaque single factors under either
// combiner. Every pair of node kinds is therefore defined; only a nil
// operand or an unknown combiner is malformed.
//
// Constants never contribute to a common part.
func Intersect[F Field](a, b Node[F], c Combiner) (Intersection[F], error) {
	if a == nil || b == nil {
		return Intersection[F]{}, fmt.Errorf("%w: nil operand", ErrMalformedIntersect)
	}
	if !c.valid() {
		return Intersection[F]{}, fmt.Errorf("%w: %s", ErrMalformedIntersect, c)
	}
	if !knownKind(a.Kind()) || !knownKind(b.Kind()) {
		return Intersection[F]{}, fmt.Errorf("%w: %s with %s", ErrMalformedIntersect, a.Kind(), b.Kind())
	}
	if a.Kind() == KindConstant || b.Kind() == KindConstant {
		return disjoint(a, b), nil
	}
	if c == Addition {
		return intersectFactors(a, b), nil
	}
	return intersectPowers(a, b), nil
}

func knownKind(k Kind) bool { return k <= KindFunction }

func disjoint[F Field](a, b Node[F]) Intersection[F] {
	return Intersection[F]{Remainder1: a.Clone(), Remainder2: b.Clone()}
}

func whole[F Field](a Node[F], identity F) Intersection[F] {
	return Intersection[F]{Common: a.Clone(), Remainder1: C(identity), Remainder2: C(identity)}
}

// ------------------------------------------------------------
// Addition: shared factors
// ------------------------------------------------------------

func intersectFactors[F Field](a, b Node[F]) Intersection[F] {
	ka, kb := a.Kind(), b.Kind()
	switch {
	case ka == KindSum && kb == KindSum:
		if a.Key() == b.Key() {
			return whole(a, F(1))
		}
		return disjoint(a, b)
	case ka == KindSum && isAtom(kb):
		return intersectSumAtom(a.(*Collection[F]), b)
	case kb == KindSum && isAtom(ka):
		res := intersectSumAtom(b.(*Collection[F]), a)
		res.Remainder1, res.Remainder2 = res.Remainder2, res.Remainder1
		return res
	}
	return walkFactors(a, b)
}

func isAtom(k Kind) bool { return !k.IsCollection() && k != KindConstant }

// walkFactors merges the sorted factor lists of a and b on exact keys.
func walkFactors[F Field](a, b Node[F]) Intersection[F] {
	consts1, fs1 := factorsOf(a)
	consts2, fs2 := factorsOf(b)
	var common, rest1, rest2 []Node[F]
	i, j := 0, 0
	for i < len(fs1) && j < len(fs2) {
		k1, k2 := fs1[i].Key(), fs2[j].Key()
		switch {
		case k1 == k2:
			common = append(common, fs1[i].Clone())
			i++
			j++
		case k1 < k2:
			rest1 = append(rest1, fs1[i].Clone())
			i++
		default:
			rest2 = append(rest2, fs2[j].Clone())
			j++
		}
	}
	for ; i < len(fs1); i++ {
		rest1 = append(rest1, fs1[i].Clone())
	}
	for ; j < len(fs2); j++ {
		rest2 = append(rest2, fs2[j].Clone())
	}
	if len(common) == 0 {
		return disjoint(a, b)
	}
	return Intersection[F]{
		Common:     productOf(common),
		Remainder1: productOf(append(consts1, rest1...)),
		Remainder2: productOf(append(consts2, rest2...)),
	}
}

// factorsOf splits n into cloned constant factors and its other factors
// sorted by exact key. The other factors are not cloned.
func factorsOf[F Field](n Node[F]) (consts, others []Node[F]) {
	p, ok := n.(*Collection[F])
	if !ok || p.op != Multiplication {
		return nil, []Node[F]{n}
	}
	for _, ch := range p.children {
		if ch.Kind() == KindConstant {
			consts = append(consts, ch.Clone())
			continue
		}
		others = append(others, ch)
	}
	sort.SliceStable(others, func(i, j int) bool { return others[i].Key() < others[j].Key() })
	return consts, others
}

// productOf wraps detached factors: one factor stands alone, none is 1.
func productOf[F Field](factors []Node[F]) Node[F] {
	switch len(factors) {
	case 0:
		return C[F](1)
	case 1:
		return factors[0]
	}
	return NewProduct(factors...)
}

// intersectSumAtom finds the largest factor of atom dividing every term of
// sum.
func intersectSumAtom[F Field](sum *Collection[F], atom Node[F]) Intersection[F] {
	if len(sum.children) == 0 {
		return disjoint[F](sum, atom)
	}
	g := atom.Clone()
	for _, term := range sum.children {
		res := intersectFactors(term, g)
		if res.Common == nil {
			return disjoint[F](sum, atom)
		}
		g = res.Common
	}
	terms := make([]Node[F], 0, len(sum.children))
	for _, term := range sum.children {
		terms = append(terms, intersectFactors(term, g).Remainder1)
	}
	return Intersection[F]{
		Common:     g,
		Remainder1: NewSum(terms...),
		Remainder2: intersectFactors(atom, g).Remainder1,
	}
}

// ------------------------------------------------------------
// Multiplication: shared bases
// ------------------------------------------------------------

func intersectPowers[F Field](a, b Node[F]) Intersection[F] {
	if a.Kind() == KindProduct || b.Kind() == KindProduct {
		if a.Key() == b.Key() {
			return whole(a, F(1))
		}
		return disjoint(a, b)
	}
	base1, exp1 := splitPower(a)
	base2, exp2 := splitPower(b)
	if base1.Key() != base2.Key() {
		return disjoint(a, b)
	}
	return Intersection[F]{Common: base1.Clone(), Remainder1: exp1, Remainder2: exp2}
}

// splitPower returns n as base^exponent with a fresh exponent; a non-power
// has exponent 1.
func splitPower[F Field](n Node[F]) (Node[F], Node[F]) {
	if p, ok := n.(*Power[F]); ok {
		return p.base, p.exponent.Clone()
	}
	return n, C[F](1)
}
