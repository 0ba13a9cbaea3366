// Package telemetry exposes the Prometheus metrics surface.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EvaluationTicks counts evaluation pipeline runs, periodic and manual.
	EvaluationTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_evaluation_ticks_total",
		Help: "Number of schedule evaluation runs.",
	})

	// RulesExecuted counts rules that produced a commit.
	RulesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_rules_executed_total",
		Help: "Number of schedule rules that produced a committed write.",
	})

	// CommitFailures counts failed atomic store applies.
	CommitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_commit_failures_total",
		Help: "Number of failed atomic store commits.",
	})

	// RuleConflicts counts same-minute conflicting rule pairs.
	RuleConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kestrel_rule_conflicts_total",
		Help: "Number of same-minute rule pairs with conflicting actions.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
