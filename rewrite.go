package formula

import (
	"fmt"
	"log/slog"
)

// DefaultPowerPrecision is the reserved precision passed to NEvaluate
// (10^-6). No node consumes it yet.
const DefaultPowerPrecision = -6

const (
	// DefaultMaxPasses bounds the fixed-point loop of Formula.Collect.
	DefaultMaxPasses = 16
	// DefaultMaxSteps bounds the node visits of a single rewrite pass.
	DefaultMaxSteps = 100_000
)

// Options tunes a Formula. Zero fields take the package defaults.
type Options struct {
	MaxPasses      int
	MaxSteps       int
	PowerPrecision int
	Logger         *slog.Logger
}

// DefaultOptions returns the options used by node-level Simplify/Collect.
func DefaultOptions() Options {
	return Options{
		MaxPasses:      DefaultMaxPasses,
		MaxSteps:       DefaultMaxSteps,
		PowerPrecision: DefaultPowerPrecision,
		Logger:         slog.Default(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxPasses <= 0 {
		o.MaxPasses = d.MaxPasses
	}
	if o.MaxSteps <= 0 {
		o.MaxSteps = d.MaxSteps
	}
	if o.PowerPrecision == 0 {
		o.PowerPrecision = d.PowerPrecision
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	return o
}

// rewriter carries the step budget of one rewrite pass.
type rewriter[F Field] struct {
	steps int
	limit int
}

func newRewriter[F Field](limit int) *rewriter[F] {
	return &rewriter[F]{limit: limit}
}

func (rw *rewriter[F]) step() error {
	rw.steps++
	if rw.limit > 0 && rw.steps > rw.limit {
		return fmt.Errorf("%w: more than %d steps in one pass", ErrRewriteLimit, rw.limit)
	}
	return nil
}

// commit runs a rewrite on a private clone of n and, on success, puts the
// result where n stands: into n itself when the kinds agree, otherwise into
// n's owner slot. A result equal to the identity of an owning collection
// removes n instead and commit returns nil. A failed rewrite leaves the tree
// untouched.
//
// The *Owned rewrites may return their receiver or a detached node; they
// never return a node that still hangs under the receiver.
func commit[F Field](n Node[F], run func(Node[F], *rewriter[F]) (Node[F], error)) (Node[F], error) {
	out, err := run(n.Clone(), newRewriter[F](DefaultMaxSteps))
	if err != nil {
		return nil, err
	}
	if n.adopt(out) {
		return n, nil
	}
	owner := n.Owner()
	if owner == nil {
		return out, nil
	}
	if c, ok := owner.(*Collection[F]); ok && isConstant(out, Identity[F](c.op)) {
		return nil, c.RemoveByID(n.ID())
	}
	if err := owner.ReplaceByID(n.ID(), out); err != nil {
		return nil, err
	}
	return out, nil
}

// rewriteChild applies run to a child and reports the node that should stand
// in its slot.
func rewriteChild[F Field](child Node[F], rw *rewriter[F], collect bool) (Node[F], error) {
	if collect {
		return child.collectOwned(rw)
	}
	return child.simplifyOwned(rw)
}
