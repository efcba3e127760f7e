package formula

import "errors"

// Sentinel errors for formula operations. Callers match them with errors.Is;
// the engine wraps them with the offending name, slot or node kind.
var (
	// ErrUnboundVariable is returned by NEvaluate when a variable has no
	// value in the bindings.
	ErrUnboundVariable = errors.New("unbound variable")

	// ErrDivisionByZero is returned when a ratio denominator, or the base of
	// a negative integer power, evaluates to zero.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrInvalidSlot is returned by ReplaceByID/RemoveByID for an id the
	// owner does not hold, or for a slot that cannot be vacated.
	ErrInvalidSlot = errors.New("invalid slot id")

	// ErrAlreadyOwned is returned when a replacement node is still attached
	// to another owner.
	ErrAlreadyOwned = errors.New("node already has an owner")

	// ErrMalformedIntersect is returned by Intersect for operand/combiner
	// combinations it does not define.
	ErrMalformedIntersect = errors.New("malformed intersect")

	// ErrRewriteLimit is returned when canonicalization does not reach a
	// fixed point within the configured pass or step budget.
	ErrRewriteLimit = errors.New("rewrite limit exceeded")

	// ErrUnknownFunction is returned by NEvaluate for a function name with
	// no registered numeric implementation.
	ErrUnknownFunction = errors.New("unknown function")

	// ErrArity is returned when a function is evaluated with the wrong
	// number of arguments.
	ErrArity = errors.New("wrong number of arguments")

	// ErrDomain is returned when a numeric result is not a finite value of
	// the field.
	ErrDomain = errors.New("result outside field domain")

	// ErrInvalidJSON is returned by FromJSON for a malformed tree object.
	ErrInvalidJSON = errors.New("invalid expression json")
)
