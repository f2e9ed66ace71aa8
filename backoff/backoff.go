// Package backoff computes the delay between retry attempts: the base
// sequence (constant, linear, exponential), jitter applied on top, and a
// ceiling applied last. It is the generalized form of the per-attempt delay
// math a retry executor needs, split out so it can be shared by the retry
// and hedging policies and unit tested on its own.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy computes the unjittered delay before attempt n (1-indexed: the
// delay before the *second* attempt, since there is no delay before the
// first). Implementations must be safe for concurrent use.
type Strategy interface {
	// Delay returns the base delay before attempt n, n >= 2.
	Delay(n int) time.Duration
}

// Jitter perturbs a base delay. Implementations must be safe for concurrent
// use.
type Jitter interface {
	Apply(base time.Duration) time.Duration
}

// StrategyFunc adapts a plain function to a Strategy.
type StrategyFunc func(n int) time.Duration

func (f StrategyFunc) Delay(n int) time.Duration { return f(n) }

// JitterFunc adapts a plain function to a Jitter.
type JitterFunc func(base time.Duration) time.Duration

func (f JitterFunc) Apply(base time.Duration) time.Duration { return f(base) }

// NoJitter returns the base delay unchanged.
var NoJitter Jitter = JitterFunc(func(base time.Duration) time.Duration { return base })

// FullJitter returns a uniformly random delay in [0, base) — AWS's
// "full jitter" strategy, the most aggressive at spreading out retry storms.
var FullJitter Jitter = JitterFunc(func(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	return time.Duration(rand.Float64() * float64(base))
})

// EqualJitter returns a delay uniformly random in [base/2, base) — half the
// base delay is guaranteed, the other half is randomized.
var EqualJitter Jitter = JitterFunc(func(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	half := float64(base) / 2
	return time.Duration(half + rand.Float64()*half)
})

// DecorrelatedJitter implements the "decorrelated jitter" strategy: each
// delay is uniformly random in [floor, prev*3), carrying state between
// calls, so it is not safe to share a single instance across unrelated
// retry loops. Construct one per retry attempt sequence.
type DecorrelatedJitter struct {
	Floor time.Duration
	prev  time.Duration
}

// NewDecorrelatedJitter returns a DecorrelatedJitter seeded at floor.
func NewDecorrelatedJitter(floor time.Duration) *DecorrelatedJitter {
	return &DecorrelatedJitter{Floor: floor, prev: floor}
}

func (d *DecorrelatedJitter) Apply(base time.Duration) time.Duration {
	ceil := d.prev * 3
	if ceil <= d.Floor {
		ceil = d.Floor + 1
	}
	span := float64(ceil - d.Floor)
	next := d.Floor + time.Duration(rand.Float64()*span)
	d.prev = next
	return next
}

// Constant always returns the same delay.
func Constant(d time.Duration) Strategy {
	return StrategyFunc(func(int) time.Duration { return d })
}

// Linear returns base*n for attempt n.
func Linear(base time.Duration) Strategy {
	return StrategyFunc(func(n int) time.Duration {
		return time.Duration(n) * base
	})
}

// Exponential returns initial*multiplier^(n-2), i.e. initial before the
// second attempt, growing by multiplier every attempt after. A multiplier
// less than 1 is treated as 1 (never shrinks).
func Exponential(initial time.Duration, multiplier float64) Strategy {
	if multiplier < 1 {
		multiplier = 1
	}
	return StrategyFunc(func(n int) time.Duration {
		if n <= 2 {
			return initial
		}
		cur := float64(initial)
		for i := 0; i < n-2; i++ {
			cur *= multiplier
		}
		if cur < 0 {
			return 0
		}
		return time.Duration(cur)
	})
}

// Capped wraps a Strategy so its output never exceeds max. max <= 0 means
// uncapped.
func Capped(s Strategy, max time.Duration) Strategy {
	return StrategyFunc(func(n int) time.Duration {
		return Cap(s.Delay(n), max)
	})
}

// Cap clamps d to [0, max]. max <= 0 means uncapped (only the floor at 0
// applies).
func Cap(d, max time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if max > 0 && d > max {
		return max
	}
	return d
}

// WithJitter composes a Strategy with a Jitter and a ceiling in the order
// the retry executor applies them: base delay, then jitter, then cap.
func WithJitter(s Strategy, j Jitter, max time.Duration) Strategy {
	if j == nil {
		j = NoJitter
	}
	return StrategyFunc(func(n int) time.Duration {
		return Cap(j.Apply(s.Delay(n)), max)
	})
}
