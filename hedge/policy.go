package hedge

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/cantrip-labs/resily/classify"
	plcy "github.com/cantrip-labs/resily/policy"
)

// PolicyConfig configures a standalone hedging Policy: one primary attempt
// plus up to MaxHedges additional attempts, raced against each other and
// cancelled once a winner is decided.
type PolicyConfig struct {
	// MaxHedges bounds the number of extra attempts launched alongside the
	// primary. 0 disables hedging outright.
	MaxHedges int
	// HedgeDelay is the wait before the first hedge fires, consulted by the
	// default FixedDelayTrigger and by Trigger implementations that honor
	// HedgeState.HedgeDelay.
	HedgeDelay time.Duration
	// Trigger decides when to spawn the next hedge. Defaults to
	// FixedDelayTrigger{Delay: HedgeDelay}.
	Trigger Trigger
	// Classifier decides whether an attempt's result counts as a win.
	// Defaults to classify.AlwaysRetryOnError{}.
	Classifier classify.Classifier
	// CancelOnFirstTerminal returns as soon as any attempt classifies
	// non-retryable or aborted, instead of waiting for every attempt to
	// finish.
	CancelOnFirstTerminal bool
	// Tracker backs latency-percentile triggers. Defaults to a fresh
	// 256-sample RingBufferTracker private to this Policy.
	Tracker LatencyTracker
}

type attemptResult[T any] struct {
	val     T
	err     error
	outcome classify.Outcome
}

// Policy is a policy.Policy[T] that hedges action, racing the primary
// attempt against speculative duplicates per Trigger's schedule. It is
// grounded on the retry package's hedge-coordination loop, stripped of
// retry-group and budget bookkeeping so it can stand alone in a
// policy.Wrap chain.
type Policy[T any] struct {
	plcy.NopDispose

	maxHedges             int
	delay                 time.Duration
	trigger               Trigger
	classifier            classify.Classifier
	cancelOnFirstTerminal bool
	tracker               LatencyTracker
}

// New constructs a hedging Policy from cfg.
func New[T any](cfg PolicyConfig) *Policy[T] {
	trigger := cfg.Trigger
	if trigger == nil {
		trigger = FixedDelayTrigger{Delay: cfg.HedgeDelay}
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = classify.AlwaysRetryOnError{}
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewRingBufferTracker(256)
	}
	maxHedges := cfg.MaxHedges
	if maxHedges < 0 {
		maxHedges = 0
	}
	return &Policy[T]{
		maxHedges:             maxHedges,
		delay:                 cfg.HedgeDelay,
		trigger:               trigger,
		classifier:            classifier,
		cancelOnFirstTerminal: cfg.CancelOnFirstTerminal,
		tracker:               tracker,
	}
}

func (p *Policy[T]) Execute(ctx context.Context, action plcy.Action[T]) (T, error) {
	var zero T

	if p.maxHedges <= 0 {
		return action(ctx)
	}

	groupCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan attemptResult[T], 1+p.maxHedges)
	var active atomic.Int32

	launch := func() {
		active.Add(1)
		go func() {
			defer active.Add(-1)
			start := time.Now()
			val, err := action(groupCtx)
			p.tracker.Observe(time.Since(start))
			outcome := p.classifier.Classify(val, err)
			select {
			case results <- attemptResult[T]{val: val, err: err, outcome: outcome}:
			case <-groupCtx.Done():
			}
		}()
	}

	launch()

	start := time.Now()
	go func() {
		hedgesLaunched := 0
		timer := time.NewTimer(0)
		defer timer.Stop()

		for {
			select {
			case <-groupCtx.Done():
				return
			case <-timer.C:
				if hedgesLaunched >= p.maxHedges {
					return
				}

				state := HedgeState{
					AttemptStart:     start,
					AttemptsLaunched: 1 + hedgesLaunched,
					MaxHedges:        p.maxHedges,
					Elapsed:          time.Since(start),
					Snapshot:         p.tracker.Snapshot(),
					HedgeDelay:       p.delay,
				}

				should, nextCheck := p.trigger.ShouldSpawnHedge(state)
				if should {
					hedgesLaunched++
					launch()
					if hedgesLaunched < p.maxHedges {
						timer.Reset(0)
					}
					continue
				}

				if nextCheck <= 0 {
					nextCheck = 25 * time.Millisecond
				}
				timer.Reset(nextCheck)
			}
		}
	}()

	var last attemptResult[T]
	finished := 0
	for {
		select {
		case res := <-results:
			finished++
			if res.outcome.Kind == classify.OutcomeSuccess {
				return res.val, nil
			}
			last = res
			if p.cancelOnFirstTerminal &&
				(res.outcome.Kind == classify.OutcomeNonRetryable || res.outcome.Kind == classify.OutcomeAbort) {
				return res.val, res.err
			}
			if active.Load() == 0 {
				return last.val, &plcy.HedgingExhaustedError{AttemptsMade: finished, Cause: last.err}
			}
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}
