package circuit

import (
	"context"
	"sync"
	"time"
)

// Breaker implements a circuit breaker that opens after N consecutive
// failures and requires M consecutive half-open probe successes to close
// again. It is the teacher's ConsecutiveFailureBreaker, generalized with a
// configurable success threshold, named identity, call metrics, and
// state-change listeners so it can back the shared, named circuit registry
// this module's circuit breaker policy requires.
type Breaker struct {
	mu sync.Mutex

	name  string
	state State

	failureThreshold int
	successThreshold int
	breakDuration    time.Duration
	maxProbes        int // requests allowed in half-open state; always 1

	consecutiveFailures int
	consecutiveSuccess  int
	openedAt            time.Time
	lastTransitionAt    time.Time
	probesSent          int
	probesSuccessful    int

	totalCalls      int64
	successfulCalls int64
	failedCalls     int64
	rejectedCalls   int64

	listeners    []*listenerHandle
	listenersSeq uint64

	nowFn func() time.Time
}

type listenerHandle struct {
	id uint64
	fn StateChangeListener
	b  *Breaker
}

func (h *listenerHandle) Unsubscribe() {
	h.b.mu.Lock()
	defer h.b.mu.Unlock()
	for i, l := range h.b.listeners {
		if l.id == h.id {
			h.b.listeners = append(h.b.listeners[:i], h.b.listeners[i+1:]...)
			return
		}
	}
}

// Config configures a Breaker.
type Config struct {
	// FailureThreshold is the number of consecutive failures that opens the
	// circuit. Defaults to 5 if <= 0.
	FailureThreshold int
	// SuccessThreshold is the number of consecutive half-open probe
	// successes required to close the circuit. Defaults to 1 if <= 0.
	SuccessThreshold int
	// BreakDuration is how long the circuit stays open before allowing a
	// probe. 0 means the next Allow after opening goes half-open at once.
	// Defaults to 10s if < 0.
	BreakDuration time.Duration
}

// NewBreaker creates a new named Breaker.
func NewBreaker(name string, cfg Config) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.BreakDuration < 0 {
		cfg.BreakDuration = 10 * time.Second
	}
	return &Breaker{
		name:             name,
		state:            StateClosed,
		failureThreshold: cfg.FailureThreshold,
		successThreshold: cfg.SuccessThreshold,
		breakDuration:    cfg.BreakDuration,
		maxProbes:        1,
		lastTransitionAt: time.Now(),
	}
}

// NewConsecutiveFailureBreaker preserves the original constructor shape
// (unnamed breaker, threshold+cooldown only, default success threshold of
// 1) for callers that don't need the full Config.
func NewConsecutiveFailureBreaker(threshold int, cooldown time.Duration) *Breaker {
	return NewBreaker("", Config{FailureThreshold: threshold, BreakDuration: cooldown})
}

func (cb *Breaker) Name() string { return cb.name }

func (cb *Breaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.updateStateLocked()
}

func (cb *Breaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	state := cb.updateStateLocked()
	return cb.snapshotLocked(state)
}

func (cb *Breaker) snapshotLocked(state State) Snapshot {
	return Snapshot{
		Name:                cb.name,
		State:               state,
		ConsecutiveFailures: cb.consecutiveFailures,
		ConsecutiveSuccess:  cb.consecutiveSuccess,
		OpenedAt:            cb.openedAt,
		TotalCalls:          cb.totalCalls,
		SuccessfulCalls:     cb.successfulCalls,
		FailedCalls:         cb.failedCalls,
		RejectedCalls:       cb.rejectedCalls,
		LastTransitionAt:    cb.lastTransitionAt,
	}
}

func (cb *Breaker) OnStateChange(listener StateChangeListener) Subscription {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.listenersSeq++
	h := &listenerHandle{id: cb.listenersSeq, fn: listener, b: cb}
	cb.listeners = append(cb.listeners, h)
	return h
}

func (cb *Breaker) Allow(ctx context.Context) Decision {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.updateStateLocked()

	if state == StateOpen {
		cb.rejectedCalls++
		return Decision{Allowed: false, State: StateOpen, Reason: ReasonCircuitOpen, RetryAfter: cb.openedAt.Add(cb.breakDuration)}
	}

	if state == StateHalfOpen {
		if cb.probesSent >= cb.maxProbes {
			cb.rejectedCalls++
			return Decision{Allowed: false, State: StateHalfOpen, Reason: ReasonCircuitHalfOpenProbeLimit}
		}
		cb.probesSent++
		cb.totalCalls++
		return Decision{Allowed: true, State: StateHalfOpen}
	}

	cb.totalCalls++
	return Decision{Allowed: true, State: StateClosed}
}

func (cb *Breaker) RecordSuccess(ctx context.Context) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.updateStateLocked()
	cb.successfulCalls++

	switch state {
	case StateClosed:
		cb.consecutiveFailures = 0
	case StateHalfOpen:
		cb.probesSuccessful++
		cb.consecutiveSuccess++
		if cb.probesSuccessful >= cb.successThreshold {
			cb.transitionTo(StateClosed)
		} else {
			cb.probesSent--
		}
	}
}

func (cb *Breaker) RecordFailure(ctx context.Context) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	state := cb.updateStateLocked()
	cb.failedCalls++

	switch state {
	case StateClosed:
		cb.consecutiveFailures++
		if cb.consecutiveFailures >= cb.failureThreshold {
			cb.transitionTo(StateOpen)
		}
	case StateHalfOpen:
		cb.transitionTo(StateOpen)
	}
}

func (cb *Breaker) updateStateLocked() State {
	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) >= cb.breakDuration {
			cb.transitionTo(StateHalfOpen)
		}
	}
	return cb.state
}

func (cb *Breaker) transitionTo(newState State) {
	from := cb.state
	cb.state = newState
	cb.lastTransitionAt = cb.now()
	switch newState {
	case StateClosed:
		cb.consecutiveFailures = 0
		cb.consecutiveSuccess = 0
		cb.probesSent = 0
		cb.probesSuccessful = 0
	case StateOpen:
		cb.openedAt = cb.now()
		cb.consecutiveFailures = 0
		cb.consecutiveSuccess = 0
	case StateHalfOpen:
		cb.probesSent = 0
		cb.probesSuccessful = 0
	}
	if from == newState {
		return
	}
	snap := cb.snapshotLocked(cb.state)
	for _, l := range cb.listeners {
		l.fn(from, newState, snap)
	}
}

func (cb *Breaker) now() time.Time {
	if cb.nowFn != nil {
		return cb.nowFn()
	}
	return time.Now()
}

// SetClock overrides the breaker clock, primarily for tests.
func (cb *Breaker) SetClock(f func() time.Time) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.nowFn = f
}
