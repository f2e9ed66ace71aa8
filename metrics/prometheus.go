// Package metrics bridges observe.Observer call/attempt lifecycle events to
// external metrics backends, grounded on the teacher's
// examples/prometheus/main.go (a prometheus.Registry wired straight into a
// retry.Executor via WithObserver) and generalized to also emit OpenTelemetry
// metrics for callers already standardized on an otel SDK.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cantrip-labs/resily/classify"
	"github.com/cantrip-labs/resily/observe"
	"github.com/cantrip-labs/resily/policy"
)

// PrometheusSubscriber is an observe.Observer recording call and attempt
// outcomes as Prometheus metrics. Embed observe.BaseObserver semantics are
// not needed here since every Observer method is implemented explicitly.
type PrometheusSubscriber struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	hedges   *prometheus.CounterVec
	budget   *prometheus.CounterVec
	calls    *prometheus.CounterVec
}

// NewPrometheusSubscriber registers its collectors against reg (typically a
// prometheus.NewRegistry(), or prometheus.DefaultRegisterer) and returns a
// subscriber ready to pass to retry.WithObserver.
func NewPrometheusSubscriber(reg prometheus.Registerer) *PrometheusSubscriber {
	s := &PrometheusSubscriber{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resily",
			Name:      "attempts_total",
			Help:      "Number of policy attempts, labeled by outcome and whether the attempt was a hedge.",
		}, []string{"key", "outcome", "hedge"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "resily",
			Name:      "attempt_duration_seconds",
			Help:      "Attempt duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"key", "hedge"}),
		hedges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resily",
			Name:      "hedges_spawned_total",
			Help:      "Number of hedge attempts spawned.",
		}, []string{"key"}),
		budget: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resily",
			Name:      "budget_decisions_total",
			Help:      "Budget admission decisions, labeled by budget name and whether the attempt was allowed.",
		}, []string{"key", "budget", "allowed"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "resily",
			Name:      "calls_total",
			Help:      "Calls through a retry executor, labeled by final outcome.",
		}, []string{"key", "outcome"}),
	}

	reg.MustRegister(s.attempts, s.duration, s.hedges, s.budget, s.calls)
	return s
}

func (s *PrometheusSubscriber) OnStart(context.Context, policy.PolicyKey, policy.EffectivePolicy) {}

func (s *PrometheusSubscriber) OnAttempt(_ context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	hedge := boolLabel(rec.IsHedge)
	s.attempts.WithLabelValues(key.String(), outcomeLabel(rec.Outcome.Kind), hedge).Inc()
	s.duration.WithLabelValues(key.String(), hedge).Observe(rec.EndTime.Sub(rec.StartTime).Seconds())
}

func (s *PrometheusSubscriber) OnHedgeSpawn(_ context.Context, key policy.PolicyKey, _ observe.AttemptRecord) {
	s.hedges.WithLabelValues(key.String()).Inc()
}

func (s *PrometheusSubscriber) OnHedgeCancel(context.Context, policy.PolicyKey, observe.AttemptRecord, string) {
}

func (s *PrometheusSubscriber) OnBudgetDecision(_ context.Context, event observe.BudgetDecisionEvent) {
	s.budget.WithLabelValues(event.Key.String(), event.BudgetName, boolLabel(event.Allowed)).Inc()
}

func (s *PrometheusSubscriber) OnSuccess(_ context.Context, key policy.PolicyKey, _ observe.Timeline) {
	s.calls.WithLabelValues(key.String(), "success").Inc()
}

func (s *PrometheusSubscriber) OnFailure(_ context.Context, key policy.PolicyKey, _ observe.Timeline) {
	s.calls.WithLabelValues(key.String(), "failure").Inc()
}

func outcomeLabel(k classify.OutcomeKind) string {
	switch k {
	case classify.OutcomeSuccess:
		return "success"
	case classify.OutcomeRetryable:
		return "retryable"
	case classify.OutcomeNonRetryable:
		return "non_retryable"
	case classify.OutcomeAbort:
		return "abort"
	default:
		return "unknown"
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
