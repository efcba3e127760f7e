package formula

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// SlotRoot is the only slot id of a Formula.
const SlotRoot = 0

// ============================================================
// Formula: root holder
// ============================================================

// Formula owns the root of an expression tree. It is the entry point for
// numeric evaluation by collaborators and the place where canonicalization
// iterates to a fixed point.
//
// A Formula is not safe for concurrent mutation.
type Formula[F Field] struct {
	id   uuid.UUID
	root Node[F]
	opts Options
}

// NewFormula takes ownership of root. A nil root is the constant 0.
func NewFormula[F Field](root Node[F]) *Formula[F] {
	return NewFormulaWithOptions(root, Options{})
}

// NewFormulaWithOptions is NewFormula with explicit options; zero fields take
// the package defaults.
func NewFormulaWithOptions[F Field](root Node[F], opts Options) *Formula[F] {
	f := &Formula[F]{id: uuid.New(), opts: opts.withDefaults()}
	if root == nil {
		root = C[F](0)
	}
	f.setRoot(root)
	return f
}

func (f *Formula[F]) ID() uuid.UUID    { return f.id }
func (f *Formula[F]) Root() Node[F]    { return f.root }
func (f *Formula[F]) Options() Options { return f.opts }
func (f *Formula[F]) String() string   { return f.root.String() }

func (f *Formula[F]) logger() *slog.Logger {
	return f.opts.Logger.With("formula_id", f.id.String())
}

func (f *Formula[F]) setRoot(n Node[F]) {
	attach[F](n, f, SlotRoot)
	f.root = n
}

// Clone returns an independent formula with a fresh id and the same options.
func (f *Formula[F]) Clone() *Formula[F] {
	return NewFormulaWithOptions(f.root.Clone(), f.opts)
}

// Evaluate returns a fresh tree with every bound variable replaced by a
// clone of its donor. The formula is not modified.
func (f *Formula[F]) Evaluate(bindings map[string]Node[F]) Node[F] {
	return f.root.Evaluate(bindings)
}

// NEvaluate folds the tree to a value using the formula's power precision.
func (f *Formula[F]) NEvaluate(bindings map[string]F) (F, error) {
	return f.NEvaluatePrecision(bindings, f.opts.PowerPrecision)
}

// NEvaluatePrecision folds the tree to a value with an explicit precision.
func (f *Formula[F]) NEvaluatePrecision(bindings map[string]F, precision int) (F, error) {
	v, err := f.root.NEvaluate(bindings, precision)
	if err != nil {
		nevaluateErrors.WithLabelValues(errorReason(err)).Inc()
		return 0, err
	}
	return v, nil
}

// ReplaceByID swaps the root.
func (f *Formula[F]) ReplaceByID(id int, n Node[F]) error {
	if id != SlotRoot {
		return fmt.Errorf("%w: formula has no slot %d", ErrInvalidSlot, id)
	}
	if n == nil {
		return f.RemoveByID(id)
	}
	if n.Owner() != nil {
		return fmt.Errorf("%w: replacing formula root", ErrAlreadyOwned)
	}
	detach(f.root)
	f.setRoot(n)
	return nil
}

// RemoveByID resets the root to the constant 0.
func (f *Formula[F]) RemoveByID(id int) error {
	if id != SlotRoot {
		return fmt.Errorf("%w: formula has no slot %d", ErrInvalidSlot, id)
	}
	detach(f.root)
	f.setRoot(C[F](0))
	return nil
}

// ============================================================
// Simplify / Collect
// ============================================================

// Simplify applies the local rules once over the whole tree. On error the
// tree is left as it was.
func (f *Formula[F]) Simplify() error {
	out, err := f.rewrite(f.root.Clone(), false)
	if err != nil {
		return err
	}
	f.replaceRoot(out)
	return nil
}

// Collect canonicalizes the tree, repeating passes until the rendered tree
// stops changing. Passes run on a private copy that replaces the root only
// once a fixed point is reached; on ErrRewriteLimit, from either the step or
// the pass budget, the tree is left as it was.
func (f *Formula[F]) Collect() error {
	log := f.logger()
	start := time.Now()
	work := f.root.Clone()
	for i := 1; i <= f.opts.MaxPasses; i++ {
		before := work.Key()
		out, err := f.rewrite(work, true)
		if err != nil {
			if errors.Is(err, ErrRewriteLimit) {
				rewriteLimitHits.Inc()
				log.Warn("collect aborted", "pass", i, "error", err)
			}
			return err
		}
		work = out
		changed := work.Key() != before
		log.Debug("collect pass", "pass", i, "changed", changed, "root", work.Key())
		if !changed {
			f.replaceRoot(work)
			collectPasses.Observe(float64(i))
			collectDuration.Observe(time.Since(start).Seconds())
			return nil
		}
	}
	rewriteLimitHits.Inc()
	log.Warn("collect did not converge", "max_passes", f.opts.MaxPasses)
	return fmt.Errorf("%w: no fixed point after %d passes", ErrRewriteLimit, f.opts.MaxPasses)
}

// rewrite runs one budgeted pass over the detached tree n and returns the
// detached result. n may be consumed.
func (f *Formula[F]) rewrite(n Node[F], collect bool) (Node[F], error) {
	out, err := rewriteChild(n, newRewriter[F](f.opts.MaxSteps), collect)
	if err != nil {
		return nil, err
	}
	detach(out)
	return out, nil
}

func (f *Formula[F]) replaceRoot(n Node[F]) {
	detach(f.root)
	f.setRoot(n)
}
