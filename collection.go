package formula

import (
	"fmt"
	"sort"
	"strings"
)

// ============================================================
// Collection: Sum / Product of owned children
// ============================================================

// Collection is an ordered list of owned children merged by one Combiner:
// a Sum for Addition, a Product for Multiplication.
//
// Children carry insertion-order ids that survive sorting; ReplaceByID and
// RemoveByID address children by those ids, never by position.
type Collection[F Field] struct {
	slot[F]
	op       Combiner
	children []Node[F]
	nextID   int
	sorted   bool
}

// NewSum returns a Sum owning terms.
func NewSum[F Field](terms ...Node[F]) *Collection[F] { return NewCollection(Addition, terms...) }

// NewProduct returns a Product owning factors.
func NewProduct[F Field](factors ...Node[F]) *Collection[F] {
	return NewCollection(Multiplication, factors...)
}

// NewCollection returns a collection merged by op owning children.
// It panics if a child is already owned.
func NewCollection[F Field](op Combiner, children ...Node[F]) *Collection[F] {
	c := &Collection[F]{op: op, children: make([]Node[F], 0, len(children))}
	for _, ch := range children {
		c.Append(ch)
	}
	return c
}

func (c *Collection[F]) Kind() Kind         { return c.op.kind() }
func (c *Collection[F]) Combiner() Combiner { return c.op }
func (c *Collection[F]) Len() int           { return len(c.children) }
func (c *Collection[F]) Sorted() bool       { return c.sorted }

// CloneEmpty returns a detached collection of the same kind with no children.
func (c *Collection[F]) CloneEmpty() *Collection[F] { return &Collection[F]{op: c.op} }

// Children returns the children in their current order. The slice is a
// copy; the nodes are not.
func (c *Collection[F]) Children() []Node[F] {
	return append([]Node[F](nil), c.children...)
}

// Child returns the child attached under id.
func (c *Collection[F]) Child(id int) (Node[F], bool) {
	i := c.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return c.children[i], true
}

// Append takes ownership of n and returns its slot id. It panics if n is
// already owned.
func (c *Collection[F]) Append(n Node[F]) int {
	if n == nil {
		panic("formula: cannot append nil node")
	}
	id := c.nextID
	attach[F](n, c, id)
	c.nextID++
	c.children = append(c.children, n)
	c.sorted = false
	return id
}

func (c *Collection[F]) indexOf(id int) int {
	for i, ch := range c.children {
		if ch.ID() == id {
			return i
		}
	}
	return -1
}

func (c *Collection[F]) ReplaceByID(id int, n Node[F]) error {
	if n == nil {
		return c.RemoveByID(id)
	}
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s has no child %d", ErrInvalidSlot, c.Kind(), id)
	}
	if n.Owner() != nil {
		return fmt.Errorf("%w: replacing %s child %d", ErrAlreadyOwned, c.Kind(), id)
	}
	old := c.children[i]
	detach(old)
	attach[F](n, c, id)
	c.children[i] = n
	c.sorted = false
	return nil
}

func (c *Collection[F]) RemoveByID(id int) error {
	i := c.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s has no child %d", ErrInvalidSlot, c.Kind(), id)
	}
	detach(c.children[i])
	c.children = append(c.children[:i], c.children[i+1:]...)
	return nil
}

// takeChildren detaches and returns every child, leaving c empty.
func (c *Collection[F]) takeChildren() []Node[F] {
	out := c.children
	for _, ch := range out {
		detach(ch)
	}
	c.children = nil
	c.sorted = false
	return out
}

func (c *Collection[F]) setChildren(children []Node[F]) {
	c.takeChildren()
	c.children = make([]Node[F], 0, len(children))
	for _, ch := range children {
		c.Append(ch)
	}
}

// swap puts n in place of the child at index i, keeping its slot id.
func (c *Collection[F]) swap(i int, n Node[F]) {
	old := c.children[i]
	id := old.ID()
	detach(old)
	detach(n)
	attach[F](n, c, id)
	c.children[i] = n
	c.sorted = false
}

// ============================================================
// Clone / Evaluate
// ============================================================

func (c *Collection[F]) Clone() Node[F] {
	out := c.CloneEmpty()
	for _, ch := range c.children {
		out.Append(ch.Clone())
	}
	out.sorted = c.sorted
	return out
}

func (c *Collection[F]) Evaluate(bindings map[string]Node[F]) Node[F] {
	out := c.CloneEmpty()
	for _, ch := range c.children {
		out.Append(ch.Evaluate(bindings))
	}
	return out
}

func (c *Collection[F]) NEvaluate(bindings map[string]F, precision int) (F, error) {
	acc := Identity[F](c.op)
	for _, ch := range c.children {
		v, err := ch.NEvaluate(bindings, precision)
		if err != nil {
			return 0, err
		}
		acc = CombineValues(c.op, acc, v)
	}
	return acc, nil
}

// ============================================================
// Keys and rendering
// ============================================================

func (c *Collection[F]) Key() string {
	keys := make([]string, len(c.children))
	for i, ch := range c.children {
		keys[i] = ch.Key()
	}
	return "~" + c.Kind().String() + "(" + strings.Join(keys, ",") + ")"
}

// SimilarityKey drops constant children when comb is the opposite of the
// collection's own combiner, so 2*x*y and 3*x*y group together in a Sum.
func (c *Collection[F]) SimilarityKey(comb Combiner) string {
	if comb == c.op {
		return c.Key()
	}
	keys := make([]string, 0, len(c.children))
	for _, ch := range c.children {
		if ch.Kind() != KindConstant {
			keys = append(keys, ch.Key())
		}
	}
	switch len(keys) {
	case 0:
		return c.Key()
	case 1:
		return keys[0]
	}
	return "~" + c.Kind().String() + "(" + strings.Join(keys, ",") + ")"
}

func (c *Collection[F]) String() string {
	if len(c.children) == 0 {
		return formatValue(Identity[F](c.op))
	}
	parts := make([]string, len(c.children))
	for i, ch := range c.children {
		if ch.Kind().IsCollection() {
			parts[i] = "(" + ch.String() + ")"
		} else {
			parts[i] = ch.String()
		}
	}
	return strings.Join(parts, c.op.Symbol())
}

func (c *Collection[F]) CompareWithField(F) bool       { return false }
func (c *Collection[F]) CompareWithString(string) bool { return false }

// ============================================================
// Sort / CollectConstants
// ============================================================

// Sort orders the children by SimilarityKey under the collection's own
// combiner. The sort is stable, so it is idempotent.
func (c *Collection[F]) Sort() {
	type keyed struct {
		n   Node[F]
		key string
	}
	ks := make([]keyed, len(c.children))
	for i, ch := range c.children {
		ks[i] = keyed{n: ch, key: ch.SimilarityKey(c.op)}
	}
	sort.SliceStable(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	for i := range ks {
		c.children[i] = ks[i].n
	}
	c.sorted = true
}

// CollectConstants folds every Constant child into one leading Constant,
// dropped when it equals the combiner identity.
func (c *Collection[F]) CollectConstants() {
	acc := Identity[F](c.op)
	found := false
	kept := c.children[:0]
	for _, ch := range c.children {
		if k, ok := ch.(*Constant[F]); ok {
			acc = CombineValues(c.op, acc, k.value)
			found = true
			detach[F](k)
			continue
		}
		kept = append(kept, ch)
	}
	c.children = kept
	if !found || acc == Identity[F](c.op) {
		return
	}
	k := C(acc)
	attach[F](k, c, c.nextID)
	c.nextID++
	c.children = append([]Node[F]{k}, c.children...)
}

// ============================================================
// Simplify / Collect
// ============================================================

func (c *Collection[F]) Simplify() (Node[F], error) { return commit(Node[F](c), Node[F].simplifyOwned) }
func (c *Collection[F]) Collect() (Node[F], error)  { return commit(Node[F](c), Node[F].collectOwned) }

func (c *Collection[F]) simplifyOwned(rw *rewriter[F]) (Node[F], error) {
	return c.rewrite(rw, false)
}

func (c *Collection[F]) collectOwned(rw *rewriter[F]) (Node[F], error) {
	return c.rewrite(rw, true)
}

func (c *Collection[F]) rewrite(rw *rewriter[F], collect bool) (Node[F], error) {
	if err := rw.step(); err != nil {
		return nil, err
	}
	for i, ch := range c.children {
		r, err := rewriteChild(ch, rw, collect)
		if err != nil {
			return nil, err
		}
		if r != ch {
			c.swap(i, r)
		}
	}
	n := c.normalize()
	if !collect || n != Node[F](c) {
		return n, nil
	}
	merged, err := c.mergeNeighbours(rw)
	if err != nil {
		return nil, err
	}
	c.setChildren(merged)
	return c.normalize(), nil
}

// normalize applies the local collection rules: flatten same-kind children,
// fold constants, annihilate a zero product, sort, and collapse a collection
// of zero or one child.
func (c *Collection[F]) normalize() Node[F] {
	if c.hasNested() {
		c.setChildren(c.flatten(c.takeChildren(), nil))
	}
	c.CollectConstants()
	if c.op == Multiplication && len(c.children) > 0 && isConstant(c.children[0], 0) {
		c.takeChildren()
		return C[F](0)
	}
	c.Sort()
	switch len(c.children) {
	case 0:
		return C(Identity[F](c.op))
	case 1:
		only := c.children[0]
		c.takeChildren()
		return only
	}
	return c
}

func (c *Collection[F]) hasNested() bool {
	for _, ch := range c.children {
		if inner, ok := ch.(*Collection[F]); ok && inner.op == c.op {
			return true
		}
	}
	return false
}

func (c *Collection[F]) flatten(children, out []Node[F]) []Node[F] {
	for _, ch := range children {
		if inner, ok := ch.(*Collection[F]); ok && inner.op == c.op {
			out = c.flatten(inner.takeChildren(), out)
			continue
		}
		out = append(out, ch)
	}
	return out
}

// mergeNeighbours walks the sorted children and replaces every pair of
// neighbours that intersect by the representative term of the pair: a Sum
// merges a*r1 + a*r2 into a*(r1+r2), a Product merges a^r1 * a^r2 into
// a^(r1+r2). The children are detached on return.
func (c *Collection[F]) mergeNeighbours(rw *rewriter[F]) ([]Node[F], error) {
	kids := c.takeChildren()
	if len(kids) < 2 {
		return kids, nil
	}
	out := make([]Node[F], 0, len(kids))
	acc := kids[0]
	for _, next := range kids[1:] {
		merged, err := c.mergePair(acc, next, rw)
		if err != nil {
			return nil, err
		}
		if merged != nil {
			acc = merged
			continue
		}
		out = append(out, acc)
		acc = next
	}
	return append(out, acc), nil
}

func (c *Collection[F]) mergePair(a, b Node[F], rw *rewriter[F]) (Node[F], error) {
	if a.Kind() == KindConstant || b.Kind() == KindConstant {
		return nil, nil
	}
	if err := rw.step(); err != nil {
		return nil, err
	}
	res, err := Intersect(a, b, c.op)
	if err != nil {
		return nil, err
	}
	if res.Common == nil {
		return nil, nil
	}
	rep := CombineTerms(c.op.Opposite(), res.Common, res.Remainder1, res.Remainder2)
	return rep.collectOwned(rw)
}

// Intersect computes the structural common part of c and other under comb.
func (c *Collection[F]) Intersect(other Node[F], comb Combiner) (Intersection[F], error) {
	return Intersect[F](c, other, comb)
}

func (c *Collection[F]) adopt(other Node[F]) bool {
	o, ok := other.(*Collection[F])
	if !ok || o.op != c.op {
		return false
	}
	if o == c {
		return true
	}
	sorted := o.sorted
	c.setChildren(o.takeChildren())
	c.sorted = sorted
	return true
}
