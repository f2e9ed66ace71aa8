// Package bulkhead bounds concurrent execution with a fixed number of slots
// plus a bounded FIFO queue of waiters, each subject to its own queue
// timeout. It is grounded on golang.org/x/sync/semaphore.Weighted, which
// already provides the FIFO admission order and the "cancelled waiters
// don't leak a slot" guarantee a hand-rolled condition-variable queue would
// have to reimplement.
package bulkhead

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/cantrip-labs/resily/event"
	plcy "github.com/cantrip-labs/resily/policy"
)

// RejectionListener is notified whenever a call is rejected admission.
type RejectionListener func(err *plcy.BulkheadRejectedError)

// Config configures a Policy.
type Config struct {
	// MaxConcurrency is the number of slots available at once. Must be > 0.
	MaxConcurrency int
	// MaxQueueDepth bounds the number of callers allowed to wait for a free
	// slot. 0 means no queueing: a caller that can't take a slot immediately
	// is rejected.
	MaxQueueDepth int
	// QueueTimeout bounds how long a queued caller waits for a slot. <= 0
	// means queued callers wait indefinitely (subject only to ctx).
	QueueTimeout time.Duration
	// OnRejected is invoked synchronously whenever a call is rejected.
	OnRejected RejectionListener
	// Publisher, if set, receives a BulkheadRejectedEvent for every
	// rejection in addition to OnRejected.
	Publisher *event.Bus
}

// Policy is a policy.Policy[T] enforcing bounded concurrency via Config.
// Constructed twice under different names (Bulkhead, BulkheadIsolation) per
// spec — the two variants share this identical behavioral core and differ
// only in the field names callers configure them with.
type Policy[T any] struct {
	plcy.NopDispose

	sem          *semaphore.Weighted
	maxConc      int
	maxQueue     int
	queueTimeout time.Duration
	onRejected   RejectionListener
	publisher    *event.Bus

	queued int64
	active int64
}

// New constructs a bulkhead Policy from cfg.
func New[T any](cfg Config) *Policy[T] {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Policy[T]{
		sem:          semaphore.NewWeighted(int64(cfg.MaxConcurrency)),
		maxConc:      cfg.MaxConcurrency,
		maxQueue:     cfg.MaxQueueDepth,
		queueTimeout: cfg.QueueTimeout,
		onRejected:   cfg.OnRejected,
		publisher:    cfg.Publisher,
	}
}

// NewIsolation is an alias constructor for the BulkheadIsolation variant
// spec.md names separately; behaviorally identical to New.
func NewIsolation[T any](cfg Config) *Policy[T] { return New[T](cfg) }

// ActiveCount returns the number of slots currently held.
func (p *Policy[T]) ActiveCount() int { return int(atomic.LoadInt64(&p.active)) }

// QueuedCount returns the number of callers currently waiting for a slot.
func (p *Policy[T]) QueuedCount() int { return int(atomic.LoadInt64(&p.queued)) }

func (p *Policy[T]) Execute(ctx context.Context, action plcy.Action[T]) (T, error) {
	var zero T

	if p.sem.TryAcquire(1) {
		return p.runHeldSlot(ctx, action)
	}

	for {
		queued := atomic.LoadInt64(&p.queued)
		if queued >= int64(p.maxQueue) {
			err := &plcy.BulkheadRejectedError{
				MaxConcurrency: p.maxConc,
				MaxQueueDepth:  p.maxQueue,
				Reason:         plcy.BulkheadQueueFull,
			}
			p.notifyRejected(err)
			return zero, err
		}
		if atomic.CompareAndSwapInt64(&p.queued, queued, queued+1) {
			break
		}
	}
	defer atomic.AddInt64(&p.queued, -1)

	waitCtx := ctx
	var cancel context.CancelFunc
	if p.queueTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, p.queueTimeout)
		defer cancel()
	}

	if err := p.sem.Acquire(waitCtx, 1); err != nil {
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		rejErr := &plcy.BulkheadRejectedError{
			MaxConcurrency: p.maxConc,
			MaxQueueDepth:  p.maxQueue,
			Reason:         plcy.BulkheadQueueTimeout,
		}
		p.notifyRejected(rejErr)
		return zero, rejErr
	}

	return p.runHeldSlot(ctx, action)
}

func (p *Policy[T]) runHeldSlot(ctx context.Context, action plcy.Action[T]) (T, error) {
	atomic.AddInt64(&p.active, 1)
	defer func() {
		atomic.AddInt64(&p.active, -1)
		p.sem.Release(1)
	}()
	return action(ctx)
}

func (p *Policy[T]) notifyRejected(err *plcy.BulkheadRejectedError) {
	if p.onRejected != nil {
		p.onRejected(err)
	}
	if p.publisher != nil {
		p.publisher.Emit(event.NewBulkheadRejectedEvent(err.MaxConcurrency, err.MaxQueueDepth, err.Reason))
	}
}
