package policy

import "time"

// Option mutates an EffectivePolicy being built by New. Options are applied
// in order on top of DefaultPolicyFor, then the result is normalized.
type Option func(*EffectivePolicy)

// New builds an EffectivePolicy for key, starting from the default policy,
// applying opts in order, and normalizing the result. If normalization
// rejects the configuration outright (e.g. an unrecognized jitter kind), New
// falls back to the untouched default policy for key rather than returning
// an invalid one — a policy engine should degrade to safe defaults, not fail
// to construct.
func New(key string, opts ...Option) EffectivePolicy {
	return NewFromKey(ParseKey(key), opts...)
}

// NewFromKey is New for an already structured key.
func NewFromKey(key PolicyKey, opts ...Option) EffectivePolicy {
	p := DefaultPolicyFor(key)
	for _, opt := range opts {
		opt(&p)
	}

	normalized, err := p.Normalize()
	if err != nil {
		fallback, ferr := DefaultPolicyFor(key).Normalize()
		if ferr != nil {
			return DefaultPolicyFor(key)
		}
		return fallback
	}
	return normalized
}

// MaxAttempts sets the maximum number of attempts (including the first), for
// the retry dimension of the policy.
func MaxAttempts(n int) Option {
	return func(p *EffectivePolicy) { p.Retry.MaxAttempts = n }
}

// InitialBackoff sets the delay before the first retry.
func InitialBackoff(d time.Duration) Option {
	return func(p *EffectivePolicy) { p.Retry.InitialBackoff = d }
}

// MaxBackoff caps the delay between retries.
func MaxBackoff(d time.Duration) Option {
	return func(p *EffectivePolicy) { p.Retry.MaxBackoff = d }
}

// BackoffMultiplier sets the exponential backoff growth factor.
func BackoffMultiplier(m float64) Option {
	return func(p *EffectivePolicy) { p.Retry.BackoffMultiplier = m }
}

// Jitter selects the jitter strategy applied to computed backoff delays.
func Jitter(kind JitterKind) Option {
	return func(p *EffectivePolicy) { p.Retry.Jitter = kind }
}

// Classifier names the outcome classifier the retry (and fallback) dimension
// should resolve from the classifier registry.
func Classifier(name string) Option {
	return func(p *EffectivePolicy) { p.Retry.ClassifierName = name }
}

// Budget names the shared attempt budget the retry dimension draws from, at
// the given per-attempt cost (default 1 if cost <= 0).
func Budget(name string, cost ...int) Option {
	c := 1
	if len(cost) > 0 && cost[0] > 0 {
		c = cost[0]
	}
	return func(p *EffectivePolicy) { p.Retry.Budget = BudgetRef{Name: name, Cost: c} }
}

// WithHedging enables hedging with maxHedges speculative duplicates spaced
// delay apart.
func WithHedging(maxHedges int, delay time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Hedge.Enabled = true
		p.Hedge.MaxHedges = maxHedges
		p.Hedge.HedgeDelay = delay
	}
}

// HedgeTrigger names the hedge trigger (registered in a hedge.Registry) that
// decides when to spawn each speculative duplicate, in place of the fixed
// HedgeDelay.
func HedgeTrigger(name string) Option {
	return func(p *EffectivePolicy) {
		p.Hedge.Enabled = true
		p.Hedge.TriggerName = name
	}
}

// WithCircuitBreaker enables a circuit breaker that opens after threshold
// consecutive failures and stays open for cooldown.
func WithCircuitBreaker(threshold int, cooldown time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Circuit.Enabled = true
		p.Circuit.Threshold = threshold
		p.Circuit.Cooldown = cooldown
	}
}

// HTTPDefaults is a preset tuned for outbound HTTP calls: three attempts,
// exponential backoff with equal jitter, classified by the "http" classifier
// (status codes and Retry-After aware).
func HTTPDefaults() Option {
	return func(p *EffectivePolicy) {
		p.Retry.MaxAttempts = 3
		p.Retry.InitialBackoff = 50 * time.Millisecond
		p.Retry.MaxBackoff = 2 * time.Second
		p.Retry.BackoffMultiplier = 2.0
		p.Retry.Jitter = JitterEqual
		p.Retry.ClassifierName = "http"
	}
}

// LowLatencyDefaults is a preset tuned for latency-sensitive internal calls:
// few attempts, short backoff, hedging enabled so a slow replica doesn't
// stall the caller.
func LowLatencyDefaults() Option {
	return func(p *EffectivePolicy) {
		p.Retry.MaxAttempts = 2
		p.Retry.InitialBackoff = 5 * time.Millisecond
		p.Retry.MaxBackoff = 50 * time.Millisecond
		p.Retry.BackoffMultiplier = 2.0
		p.Retry.Jitter = JitterFull
		p.Hedge.Enabled = true
		p.Hedge.MaxHedges = 1
		p.Hedge.HedgeDelay = 25 * time.Millisecond
	}
}

// ExponentialBackoff sets initial and max backoff with equal jitter, the
// combination most HTTP and RPC clients in this codebase reach for.
func ExponentialBackoff(initial, max time.Duration) Option {
	return func(p *EffectivePolicy) {
		p.Retry.InitialBackoff = initial
		p.Retry.MaxBackoff = max
		p.Retry.Jitter = JitterEqual
	}
}
