package observe

import (
	"context"
	"time"

	"github.com/cantrip-labs/resily/budget"
	"github.com/cantrip-labs/resily/classify"
	"github.com/cantrip-labs/resily/policy"
)

// AttemptRecord describes a single attempt (or hedge) execution.
type AttemptRecord struct {
	Attempt   int
	StartTime time.Time
	EndTime   time.Time

	// Hedging (Phase 5+)
	IsHedge    bool
	HedgeIndex int

	// Classification (Phase 3+)
	Outcome classify.Outcome

	Err error

	Backoff time.Duration // backoff before this attempt

	// Budgets (Phase 4+)
	BudgetAllowed bool
	BudgetReason  string
}

// Timeline is the structured record of a single call and all of its attempts.
type Timeline struct {
	Key      policy.PolicyKey
	PolicyID string
	Start    time.Time
	End      time.Time

	// Attributes holds call-level metadata (policy source, fallbacks, normalization notes, etc.).
	Attributes map[string]string

	Attempts []AttemptRecord
	FinalErr error
}

// BudgetDecisionEvent records a single budget admission check for a retry or
// hedge attempt, whether allowed or denied.
type BudgetDecisionEvent struct {
	Key     policy.PolicyKey
	Attempt int

	Kind       budget.AttemptKind
	BudgetName string
	Cost       int

	Allowed bool
	Reason  string

	// Mode describes how a missing/broken budget was handled ("standard",
	// "allow", "allow_unsafe", "deny"). Empty when the budget resolved normally.
	Mode string
}

// Observer receives lifecycle callbacks for a single call.
type Observer interface {
	OnStart(ctx context.Context, key policy.PolicyKey, pol policy.EffectivePolicy)
	OnAttempt(ctx context.Context, key policy.PolicyKey, rec AttemptRecord)

	// Hedging hooks. The retry executor calls OnHedgeSpawn for each hedge it
	// launches; it does not call OnHedgeCancel.
	OnHedgeSpawn(ctx context.Context, key policy.PolicyKey, rec AttemptRecord)
	OnHedgeCancel(ctx context.Context, key policy.PolicyKey, rec AttemptRecord, reason string)

	OnBudgetDecision(ctx context.Context, event BudgetDecisionEvent)

	OnSuccess(ctx context.Context, key policy.PolicyKey, tl Timeline)
	OnFailure(ctx context.Context, key policy.PolicyKey, tl Timeline)
}
