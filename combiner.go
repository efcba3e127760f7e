package formula

import "fmt"

// ============================================================
// Combiner: Addition / Multiplication strategy
// ============================================================

// Combiner selects the binary operation a Collection merges its children
// with. It is stateless; the numeric and structural halves of the strategy
// are the generic helpers below.
type Combiner uint8

const (
	Addition Combiner = iota
	Multiplication
)

// Symbol is the infix operator used when rendering.
func (c Combiner) Symbol() string {
	switch c {
	case Addition:
		return "+"
	case Multiplication:
		return "*"
	}
	return "?"
}

// Opposite returns the other combiner.
func (c Combiner) Opposite() Combiner {
	if c == Addition {
		return Multiplication
	}
	return Addition
}

func (c Combiner) String() string {
	switch c {
	case Addition:
		return "addition"
	case Multiplication:
		return "multiplication"
	}
	return fmt.Sprintf("combiner(%d)", uint8(c))
}

func (c Combiner) valid() bool { return c == Addition || c == Multiplication }

// kind is the collection kind merged by c.
func (c Combiner) kind() Kind {
	if c == Addition {
		return KindSum
	}
	return KindProduct
}

// Identity returns the neutral element of c: 0 for Addition, 1 for
// Multiplication.
func Identity[F Field](c Combiner) F {
	if c == Multiplication {
		return 1
	}
	return 0
}

// CombineValues folds two field values with c.
func CombineValues[F Field](c Combiner, a, b F) F {
	if c == Multiplication {
		return a * b
	}
	return a + b
}

// CombineTerms builds the single representative of two repeated terms that
// share common, given each term's remainder.
//
// Multiplication merges multiplicities: common*(r1+r2). Addition merges
// exponents: common^(r1+r2). All three inputs must be detached; they become
// owned by the result.
func CombineTerms[F Field](c Combiner, common, r1, r2 Node[F]) Node[F] {
	merged := NewSum[F](r1, r2)
	if c == Multiplication {
		return NewProduct[F](common, merged)
	}
	return NewPower[F](common, merged)
}
