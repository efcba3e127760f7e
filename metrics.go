package formula

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus metrics
// ============================================================

var (
	// collectPasses is the number of passes Formula.Collect needed to reach a
	// fixed point.
	collectPasses = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "formula",
		Subsystem: "engine",
		Name:      "collect_passes",
		Help:      "Passes needed by Collect to reach a fixed point",
		Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 16},
	})

	collectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "formula",
		Subsystem: "engine",
		Name:      "collect_duration_seconds",
		Help:      "Wall time of a successful Collect",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	rewriteLimitHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "formula",
		Subsystem: "engine",
		Name:      "rewrite_limit_total",
		Help:      "Canonicalizations aborted by the pass or step budget",
	})

	// nevaluateErrors counts failed numeric evaluations.
	// Labels: reason (unbound_variable, division_by_zero, unknown_function, arity, domain, rewrite_limit, other)
	nevaluateErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formula",
		Subsystem: "engine",
		Name:      "nevaluate_errors_total",
		Help:      "Failed numeric evaluations by reason",
	}, []string{"reason"})

	// toolCalls counts tool dispatches.
	// Labels: tool, status (ok, error)
	toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "formula",
		Subsystem: "tool",
		Name:      "calls_total",
		Help:      "Tool calls by tool and status",
	}, []string{"tool", "status"})
)

// errorReason maps an engine error to a metric label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, ErrUnboundVariable):
		return "unbound_variable"
	case errors.Is(err, ErrDivisionByZero):
		return "division_by_zero"
	case errors.Is(err, ErrUnknownFunction):
		return "unknown_function"
	case errors.Is(err, ErrArity):
		return "arity"
	case errors.Is(err, ErrDomain):
		return "domain"
	case errors.Is(err, ErrRewriteLimit):
		return "rewrite_limit"
	}
	return "other"
}
