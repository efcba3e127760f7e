// Package formula provides a small symbolic expression engine for Go.
//
// A formula is a mutable tree of algebraic nodes (constants, variables, sums,
// products, ratios, powers and named functions) over a caller-supplied numeric
// Field. Trees support symbolic substitution (Evaluate), numeric evaluation
// (NEvaluate), rendering (String) and structural simplification: canonical
// ordering, constant folding and common-factor / common-exponent extraction
// (Simplify, Collect).
//
// Design goals:
//   - Strict ownership tree: every attached node has exactly one owner
//   - Atomic rewrites: simplification works on a clone and commits on success
//   - Bounded canonicalization: Collect never loops forever
//   - Embeddable: JSON codec and a tool dispatcher for HTTP/agent backends
package formula

import "fmt"

// ============================================================
// Field
// ============================================================

// Field is the scalar type a tree evaluates to.
type Field interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~float32 | ~float64
}

// ============================================================
// Kind: closed set of node variants
// ============================================================

type Kind uint8

const (
	KindConstant Kind = iota
	KindVariable
	KindSum
	KindProduct
	KindRatio
	KindPower
	KindFunction
)

var kindNames = [...]string{
	KindConstant: "constant",
	KindVariable: "variable",
	KindSum:      "sum",
	KindProduct:  "product",
	KindRatio:    "ratio",
	KindPower:    "power",
	KindFunction: "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsCollection reports whether k is a Sum or a Product.
func (k Kind) IsCollection() bool { return k == KindSum || k == KindProduct }

// ============================================================
// Node / Owner contracts
// ============================================================

// Node is one element of a formula tree. The set of implementations is closed:
// *Constant, *Variable, *Collection, *Ratio, *Power and *Function.
type Node[F Field] interface {
	Kind() Kind

	// ID is the slot id of the node inside its owner. It is meaningless for
	// a detached node.
	ID() int
	// Owner is the non-owning back-reference to the node holding this one,
	// nil when detached.
	Owner() Owner[F]

	Clone() Node[F]
	Evaluate(bindings map[string]Node[F]) Node[F]
	NEvaluate(bindings map[string]F, precision int) (F, error)

	// SimilarityKey is the canonical ordering key of the node as seen by a
	// collection merging with c.
	SimilarityKey(c Combiner) string
	// Key is the exact structural key. Two nodes with equal keys are the
	// same expression.
	Key() string

	// Simplify applies the local simplification rules bottom-up and commits
	// the result to the node's owner slot. The returned node is the one now
	// standing where the receiver stood.
	Simplify() (Node[F], error)
	// Collect runs one canonicalization pass and commits like Simplify.
	Collect() (Node[F], error)

	CompareWithField(v F) bool
	CompareWithString(s string) bool

	String() string

	link() *slot[F]
	simplifyOwned(rw *rewriter[F]) (Node[F], error)
	collectOwned(rw *rewriter[F]) (Node[F], error)
	adopt(other Node[F]) bool
}

// Owner is implemented by every node that holds children, and by Formula.
type Owner[F Field] interface {
	ReplaceByID(id int, n Node[F]) error
	RemoveByID(id int) error
}

// slot is the owner back-reference carried by every node.
type slot[F Field] struct {
	owner Owner[F]
	id    int
}

func (s *slot[F]) link() *slot[F] { return s }

// ID returns the slot id within the owner.
func (s *slot[F]) ID() int { return s.id }

// Owner returns the owning node, or nil.
func (s *slot[F]) Owner() Owner[F] { return s.owner }

func attach[F Field](n Node[F], owner Owner[F], id int) {
	l := n.link()
	if l.owner != nil {
		panic(fmt.Sprintf("formula: %s node is already owned (slot %d)", n.Kind(), l.id))
	}
	l.owner = owner
	l.id = id
}

func detach[F Field](n Node[F]) {
	if n == nil {
		return
	}
	l := n.link()
	l.owner = nil
	l.id = 0
}

// FreeVariables returns the set of variable names referenced by n.
func FreeVariables[F Field](n Node[F]) map[string]struct{} {
	out := map[string]struct{}{}
	collectVariables(n, out)
	return out
}

func collectVariables[F Field](n Node[F], out map[string]struct{}) {
	switch v := n.(type) {
	case *Variable[F]:
		out[v.name] = struct{}{}
	case *Collection[F]:
		for _, c := range v.children {
			collectVariables(c, out)
		}
	case *Ratio[F]:
		collectVariables(v.numerator, out)
		collectVariables(v.denominator, out)
	case *Power[F]:
		collectVariables(v.base, out)
		collectVariables(v.exponent, out)
	case *Function[F]:
		for _, a := range v.args {
			collectVariables(a, out)
		}
	}
}

// Equal reports whether a and b are the same expression structurally.
func Equal[F Field](a, b Node[F]) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Key() == b.Key()
}

// String renders n, or the empty string for nil.
func String[F Field](n Node[F]) string {
	if n == nil {
		return ""
	}
	return n.String()
}
