package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cantrip-labs/resily/observe"
	"github.com/cantrip-labs/resily/policy"
)

// OTelSubscriber is an observe.Observer recording the same call/attempt
// lifecycle as PrometheusSubscriber, through an OpenTelemetry Meter instead
// of a Prometheus registry, for callers already standardized on an otel SDK
// pipeline.
type OTelSubscriber struct {
	attempts metric.Int64Counter
	duration metric.Float64Histogram
	hedges   metric.Int64Counter
	budget   metric.Int64Counter
	calls    metric.Int64Counter
}

// NewOTelSubscriber builds an OTelSubscriber against meter. Every
// metric.Meter instrument constructor can fail, so this mirrors that
// contract rather than panicking.
func NewOTelSubscriber(meter metric.Meter) (*OTelSubscriber, error) {
	attempts, err := meter.Int64Counter("resily.attempts",
		metric.WithDescription("Number of policy attempts."))
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("resily.attempt_duration",
		metric.WithDescription("Attempt duration in seconds."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	hedges, err := meter.Int64Counter("resily.hedges_spawned",
		metric.WithDescription("Number of hedge attempts spawned."))
	if err != nil {
		return nil, err
	}
	budget, err := meter.Int64Counter("resily.budget_decisions",
		metric.WithDescription("Budget admission decisions."))
	if err != nil {
		return nil, err
	}
	calls, err := meter.Int64Counter("resily.calls",
		metric.WithDescription("Calls through a retry executor."))
	if err != nil {
		return nil, err
	}
	return &OTelSubscriber{
		attempts: attempts,
		duration: duration,
		hedges:   hedges,
		budget:   budget,
		calls:    calls,
	}, nil
}

func (s *OTelSubscriber) OnStart(context.Context, policy.PolicyKey, policy.EffectivePolicy) {}

func (s *OTelSubscriber) OnAttempt(ctx context.Context, key policy.PolicyKey, rec observe.AttemptRecord) {
	s.attempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key.String()),
		attribute.String("outcome", outcomeLabel(rec.Outcome.Kind)),
		attribute.Bool("hedge", rec.IsHedge),
	))
	s.duration.Record(ctx, rec.EndTime.Sub(rec.StartTime).Seconds(), metric.WithAttributes(
		attribute.String("key", key.String()),
		attribute.Bool("hedge", rec.IsHedge),
	))
}

func (s *OTelSubscriber) OnHedgeSpawn(ctx context.Context, key policy.PolicyKey, _ observe.AttemptRecord) {
	s.hedges.Add(ctx, 1, metric.WithAttributes(attribute.String("key", key.String())))
}

func (s *OTelSubscriber) OnHedgeCancel(context.Context, policy.PolicyKey, observe.AttemptRecord, string) {
}

func (s *OTelSubscriber) OnBudgetDecision(ctx context.Context, event observe.BudgetDecisionEvent) {
	s.budget.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", event.Key.String()),
		attribute.String("budget", event.BudgetName),
		attribute.Bool("allowed", event.Allowed),
	))
}

func (s *OTelSubscriber) OnSuccess(ctx context.Context, key policy.PolicyKey, _ observe.Timeline) {
	s.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key.String()),
		attribute.String("outcome", "success"),
	))
}

func (s *OTelSubscriber) OnFailure(ctx context.Context, key policy.PolicyKey, _ observe.Timeline) {
	s.calls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("key", key.String()),
		attribute.String("outcome", "failure"),
	))
}
