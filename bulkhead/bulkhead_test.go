package bulkhead

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cantrip-labs/resily/event"
	"github.com/cantrip-labs/resily/policy"
)

func TestPolicy_QueueFull_PublishesRejectedEvent(t *testing.T) {
	bus := event.NewBus(4, nil)
	ch, sub := bus.Subscribe()
	defer sub.Unsubscribe()

	p := New[string](Config{MaxConcurrency: 1, MaxQueueDepth: 0, Publisher: bus})

	holding := make(chan struct{})
	release := make(chan struct{})
	go p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		close(holding)
		<-release
		return "ok", nil
	})
	<-holding
	defer close(release)

	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		return "", nil
	})
	if err == nil {
		t.Fatal("expected rejection")
	}

	select {
	case ev := <-ch:
		if ev.Kind() != "bulkhead_rejected" {
			t.Fatalf("kind=%q, want bulkhead_rejected", ev.Kind())
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPolicy_FastPath_NoContention(t *testing.T) {
	p := New[string](Config{MaxConcurrency: 2})
	result, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		return "ok", nil
	})
	if err != nil || result != "ok" {
		t.Fatalf("result=%q err=%v, want ok/nil", result, err)
	}
	if p.ActiveCount() != 0 {
		t.Fatalf("active=%d, want 0 after release", p.ActiveCount())
	}
}

func TestPolicy_QueueFull_RejectsImmediately(t *testing.T) {
	p := New[string](Config{MaxConcurrency: 1, MaxQueueDepth: 0})

	holding := make(chan struct{})
	release := make(chan struct{})
	go p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		close(holding)
		<-release
		return "done", nil
	})
	<-holding

	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		t.Fatal("action should not run when queue is full")
		return "", nil
	})
	var rejErr *policy.BulkheadRejectedError
	if !errors.As(err, &rejErr) {
		t.Fatalf("expected BulkheadRejectedError, got %T: %v", err, err)
	}
	if rejErr.Reason != policy.BulkheadQueueFull {
		t.Fatalf("reason=%v, want queueFull", rejErr.Reason)
	}
	close(release)
}

func TestPolicy_QueueTimeout(t *testing.T) {
	p := New[string](Config{MaxConcurrency: 1, MaxQueueDepth: 1, QueueTimeout: 20 * time.Millisecond})

	holding := make(chan struct{})
	release := make(chan struct{})
	go p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		close(holding)
		<-release
		return "done", nil
	})
	<-holding

	_, err := p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		t.Fatal("action should not run after queue timeout")
		return "", nil
	})
	var rejErr *policy.BulkheadRejectedError
	if !errors.As(err, &rejErr) {
		t.Fatalf("expected BulkheadRejectedError, got %T: %v", err, err)
	}
	if rejErr.Reason != policy.BulkheadQueueTimeout {
		t.Fatalf("reason=%v, want queueTimeout", rejErr.Reason)
	}
	close(release)
}

func TestPolicy_QueuedWaiterGetsSlotOnRelease(t *testing.T) {
	p := New[string](Config{MaxConcurrency: 1, MaxQueueDepth: 1})

	holding := make(chan struct{})
	release := make(chan struct{})
	go p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		close(holding)
		<-release
		return "first", nil
	})
	<-holding

	var wg sync.WaitGroup
	wg.Add(1)
	var secondResult string
	var secondErr error
	go func() {
		defer wg.Done()
		secondResult, secondErr = p.Execute(context.Background(), func(ctx context.Context) (string, error) {
			return "second", nil
		})
	}()

	time.Sleep(10 * time.Millisecond) // let the second caller enqueue
	if p.QueuedCount() != 1 {
		t.Fatalf("queued=%d, want 1", p.QueuedCount())
	}
	close(release)
	wg.Wait()

	if secondErr != nil || secondResult != "second" {
		t.Fatalf("second result=%q err=%v, want second/nil", secondResult, secondErr)
	}
	if p.ActiveCount() != 0 || p.QueuedCount() != 0 {
		t.Fatalf("expected zeroed counts after completion, active=%d queued=%d", p.ActiveCount(), p.QueuedCount())
	}
}

func TestPolicy_NeverExceedsMaxConcurrency(t *testing.T) {
	const maxConc = 3
	p := New[int](Config{MaxConcurrency: maxConc, MaxQueueDepth: 20})

	var mu sync.Mutex
	var peak int
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Execute(context.Background(), func(ctx context.Context) (int, error) {
				mu.Lock()
				if p.ActiveCount() > peak {
					peak = p.ActiveCount()
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				return 0, nil
			})
		}()
	}
	wg.Wait()

	if peak > maxConc {
		t.Fatalf("observed peak concurrency %d, want <= %d", peak, maxConc)
	}
	if p.ActiveCount() != 0 || p.QueuedCount() != 0 {
		t.Fatalf("expected zeroed counts at the end, active=%d queued=%d", p.ActiveCount(), p.QueuedCount())
	}
}

func TestPolicy_OnRejectedCallback(t *testing.T) {
	var gotReason policy.BulkheadRejectReason
	p := New[string](Config{
		MaxConcurrency: 1,
		MaxQueueDepth:  0,
		OnRejected: func(err *policy.BulkheadRejectedError) {
			gotReason = err.Reason
		},
	})

	holding := make(chan struct{})
	release := make(chan struct{})
	go p.Execute(context.Background(), func(ctx context.Context) (string, error) {
		close(holding)
		<-release
		return "", nil
	})
	<-holding

	p.Execute(context.Background(), func(ctx context.Context) (string, error) { return "", nil })
	close(release)

	if gotReason != policy.BulkheadQueueFull {
		t.Fatalf("gotReason=%v, want queueFull", gotReason)
	}
}
